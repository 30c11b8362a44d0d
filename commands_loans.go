package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"library-desk/library"
)

func (a *app) loansCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "loans",
		Short: "Issue, return and browse loans",
	}
	cmd.AddCommand(
		a.loansListCmd(),
		a.loansShowCmd(),
		a.loansIssueCmd(),
		a.loansReturnCmd(),
		a.loansActiveCmd(),
		a.loansOverdueCmd(),
	)
	return cmd
}

// loanRows resolves book titles and member names. Deleted rows show their id.
func (a *app) loanRows(ctx context.Context, loans []*library.Loan) ([]loanRow, error) {
	rows := make([]loanRow, 0, len(loans))
	for _, l := range loans {
		r := loanRow{Loan: l}

		book, err := a.store.FindBook(ctx, l.BookID)
		switch {
		case err == nil:
			r.Title = book.Title
		case errors.Is(err, library.ErrNotFound):
			r.Title = fmt.Sprintf("(deleted book #%d)", l.BookID)
		default:
			return nil, err
		}

		member, err := a.store.FindMember(ctx, l.MemberID)
		switch {
		case err == nil:
			r.Member = member.FullName
		case errors.Is(err, library.ErrNotFound):
			r.Member = fmt.Sprintf("(deleted member #%d)", l.MemberID)
		default:
			return nil, err
		}
		rows = append(rows, r)
	}
	return rows, nil
}

func (a *app) printLoanList(ctx context.Context, loans []*library.Loan) error {
	rows, err := a.loanRows(ctx, loans)
	if err != nil {
		return err
	}
	if a.asJSON {
		return a.printJSON(rows)
	}
	a.printLoans(rows)
	return nil
}

func (a *app) loansListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List every loan, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			loans, err := a.store.ListLoans(cmd.Context())
			if err != nil {
				return err
			}
			return a.printLoanList(cmd.Context(), loans)
		},
	}
}

func (a *app) loansShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show LOAN_ID",
		Short: "Show one loan",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("loan", args[0])
			if err != nil {
				return err
			}
			loan, err := a.store.FindLoan(cmd.Context(), id)
			if err != nil {
				return err
			}
			return a.printLoanList(cmd.Context(), []*library.Loan{loan})
		},
	}
}

// dueDate resolves the --due and --days flags of loans issue.
func dueDate(due string, days int, now time.Time) (time.Time, error) {
	if due != "" {
		t, err := library.ParseDate(due)
		if err != nil {
			return time.Time{}, library.NewValidationError("due_on", "must be a YYYY-MM-DD date")
		}
		return t, nil
	}
	y, m, d := now.Date()
	return time.Date(y, m, d+days, 0, 0, 0, 0, time.UTC), nil
}

func (a *app) loansIssueCmd() *cobra.Command {
	var (
		bookID, memberID int64
		due              string
		days             int
	)
	cmd := &cobra.Command{
		Use:   "issue",
		Short: "Lend an available book to a member",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if days == 0 {
				days = a.cfg.Library.LoanDays
			}
			dueOn, err := dueDate(due, days, time.Now())
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			id, err := a.store.IssueLoan(ctx, library.IssueRequest{
				BookID:   bookID,
				MemberID: memberID,
				DueOn:    dueOn,
			})
			if err != nil {
				return err
			}
			if a.asJSON {
				return a.printJSON(map[string]int64{"id": id})
			}
			a.printf("Issued loan ID %d, due %s\n", id, formatDate(dueOn))
			return nil
		},
	}
	cmd.Flags().Int64Var(&bookID, "book", 0, "book ID")
	cmd.Flags().Int64Var(&memberID, "member", 0, "member ID")
	cmd.Flags().StringVar(&due, "due", "", "due date, YYYY-MM-DD")
	cmd.Flags().IntVar(&days, "days", 0, "loan period in days when --due is not given (default library.loan_days)")
	_ = cmd.MarkFlagRequired("book")
	_ = cmd.MarkFlagRequired("member")
	cmd.MarkFlagsMutuallyExclusive("due", "days")
	return cmd
}

func (a *app) loansReturnCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "return LOAN_ID",
		Short: "Close a loan and shelve its book",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("loan", args[0])
			if err != nil {
				return err
			}
			if err := a.store.ReturnLoan(cmd.Context(), id); err != nil {
				return err
			}
			a.printf("Returned loan ID %d\n", id)
			return nil
		},
	}
}

func (a *app) loansActiveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "active BOOK_ID",
		Short: "Show the open loan holding a book",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("book", args[0])
			if err != nil {
				return err
			}
			loan, err := a.store.FindActiveLoanForBook(cmd.Context(), id)
			if err != nil {
				return err
			}
			return a.printLoanList(cmd.Context(), []*library.Loan{loan})
		},
	}
}

func (a *app) loansOverdueCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "overdue",
		Short: "List overdue loans, earliest due first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit < 0 {
				return fmt.Errorf("--limit must be positive")
			}
			if limit == 0 {
				limit = a.cfg.Library.DashboardLimit
			}
			loans, err := a.store.OverdueLoans(cmd.Context(), limit)
			if err != nil {
				return err
			}
			return a.printLoanList(cmd.Context(), loans)
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "number of loans (default library.dashboard_limit)")
	return cmd
}
