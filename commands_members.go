package main

import (
	"github.com/spf13/cobra"

	"library-desk/library"
)

func (a *app) membersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "members",
		Short: "Browse and edit library members",
	}
	cmd.AddCommand(
		a.membersListCmd(),
		a.membersShowCmd(),
		a.membersAddCmd(),
		a.membersUpdateCmd(),
		a.membersDeleteCmd(),
	)
	return cmd
}

func (a *app) membersListCmd() *cobra.Command {
	var f library.MemberFilter
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List members, optionally filtered",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			members, err := a.store.ListMembers(cmd.Context(), f)
			if err != nil {
				return err
			}
			if a.asJSON {
				return a.printJSON(members)
			}
			a.printMembers(members)
			return nil
		},
	}
	cmd.Flags().StringVarP(&f.Query, "query", "q", "", "match name, email or phone")
	cmd.Flags().StringVar(&f.Status, "status", "", "ACTIVE, EXPIRED, SUSPENDED or BLOCKED")
	return cmd
}

func (a *app) membersShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show MEMBER_ID",
		Short: "Show one member",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("member", args[0])
			if err != nil {
				return err
			}
			m, err := a.store.FindMember(cmd.Context(), id)
			if err != nil {
				return err
			}
			if a.asJSON {
				return a.printJSON(m)
			}
			a.printMember(m)
			return nil
		},
	}
}

type memberFlags struct {
	in     library.MemberInput
	since  string
	status string
}

func (mf *memberFlags) register(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringVar(&mf.in.FullName, "name", "", "full name")
	fs.StringVar(&mf.in.Email, "email", "", "email address")
	fs.StringVar(&mf.in.Phone, "phone", "", "phone number")
	fs.StringVar(&mf.since, "since", "", "member since, YYYY-MM-DD (default today)")
	fs.StringVar(&mf.status, "status", "", "ACTIVE, EXPIRED, SUSPENDED or BLOCKED")
}

func (mf *memberFlags) input(cmd *cobra.Command, cur *library.Member) (library.MemberInput, error) {
	in := mf.in
	in.Status = library.MemberStatus(mf.status)

	if cur != nil {
		fs := cmd.Flags()
		if !fs.Changed("name") {
			in.FullName = cur.FullName
		}
		if !fs.Changed("email") {
			in.Email = cur.Email
		}
		if !fs.Changed("phone") {
			in.Phone = cur.Phone
		}
		if !fs.Changed("status") {
			in.Status = cur.Status
		}
		in.MemberSince = cur.MemberSince
	}

	if mf.since != "" {
		since, err := library.ParseDate(mf.since)
		if err != nil {
			return in, library.NewValidationError("since", "must be a YYYY-MM-DD date")
		}
		in.MemberSince = since
	}
	return in, in.Validate()
}

func (a *app) membersAddCmd() *cobra.Command {
	var mf memberFlags
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Register a member",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := mf.input(cmd, nil)
			if err != nil {
				return err
			}
			id, err := a.store.CreateMember(cmd.Context(), in)
			if err != nil {
				return err
			}
			if a.asJSON {
				return a.printJSON(map[string]int64{"id": id})
			}
			a.printf("Added member '%s' with ID %d\n", in.FullName, id)
			return nil
		},
	}
	mf.register(cmd)
	return cmd
}

func (a *app) membersUpdateCmd() *cobra.Command {
	var mf memberFlags
	cmd := &cobra.Command{
		Use:   "update MEMBER_ID",
		Short: "Change a member; unset flags keep their value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("member", args[0])
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			cur, err := a.store.FindMember(ctx, id)
			if err != nil {
				return err
			}
			in, err := mf.input(cmd, cur)
			if err != nil {
				return err
			}
			if err := a.store.UpdateMember(ctx, id, in); err != nil {
				return err
			}
			a.printf("Updated member ID %d\n", id)
			return nil
		},
	}
	mf.register(cmd)
	return cmd
}

func (a *app) membersDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete MEMBER_ID",
		Short: "Remove a member; their loans stay in the ledger",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("member", args[0])
			if err != nil {
				return err
			}
			if err := a.store.DeleteMember(cmd.Context(), id); err != nil {
				return err
			}
			a.printf("Deleted member ID %d\n", id)
			return nil
		},
	}
}
