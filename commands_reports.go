package main

import (
	"strings"

	"github.com/spf13/cobra"

	"library-desk/library"
)

func (a *app) dashboardCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dashboard",
		Short: "Show counts, recent books, overdue loans and the weekly trend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := a.store.Dashboard(cmd.Context(), a.cfg.Library.DashboardLimit)
			if err != nil {
				return err
			}
			if a.asJSON {
				return a.printJSON(d)
			}
			a.printDashboard(d)
			return nil
		},
	}
}

func (a *app) printDashboard(d *library.Dashboard) {
	c := d.Counts
	a.printf("Books:   %d total, %d available\n", c.TotalBooks, c.AvailableBooks)
	a.printf("Members: %d total, %d joined this month\n", c.TotalMembers, c.NewMembers)
	a.printf("Loans:   %d open, %d overdue, %d issued this month\n", c.OpenLoans, c.OverdueLoans, c.MonthlyLoans)

	a.println()
	a.println("Recently added:")
	if len(d.RecentBooks) == 0 {
		a.println("  none")
	}
	for _, b := range d.RecentBooks {
		a.printf("  #%-4d %s by %s\n", b.ID, b.Title, b.Author)
	}

	a.println()
	a.println("Overdue:")
	if len(d.Overdue) == 0 {
		a.println("  none")
	}
	for _, e := range d.Overdue {
		title, member := "(deleted book)", "(deleted member)"
		if e.Book != nil {
			title = e.Book.Title
		}
		if e.Member != nil {
			member = e.Member.FullName
		}
		a.printf("  #%-4d %s, %s, due %s\n", e.Loan.ID, title, member, formatDate(e.Loan.DueOn))
	}

	a.println()
	a.println("Loans issued, last 7 days:")
	for _, p := range d.Trend {
		a.printf("  %-6s %3d %s\n", p.Label, p.Count, strings.Repeat("#", p.Count))
	}
}

func (a *app) reportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "report",
		Short: "Print this month's circulation report",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := a.store.MonthlyReport(cmd.Context(), a.cfg.Library.ReportTopBooks)
			if err != nil {
				return err
			}
			if a.asJSON {
				return a.printJSON(r)
			}
			a.printReport(r)
			return nil
		},
	}
}

func (a *app) printReport(r *library.MonthlyReport) {
	a.printf("Monthly report, %s\n", r.Month)
	a.printf("Reference %s, generated %s\n", r.ID, formatDate(r.GeneratedOn))
	a.rule(60)
	a.printf("%-28s %d\n", "Books in catalog", r.TotalBooks)
	a.printf("%-28s %d\n", "Loans this month", r.MonthlyLoans)
	a.printf("%-28s %d\n", "Overdue loans", r.OverdueLoans)
	a.printf("%-28s %d\n", "New members this month", r.NewMembers)
	a.println()
	a.println("Most borrowed:")
	if len(r.TopBooks) == 0 {
		a.println("  no loans yet")
		return
	}
	tw := a.titleWidth(4 + 25 + 16)
	for i, t := range r.TopBooks {
		a.printf("%2d. %-*s %-25s %4d %3d%%\n",
			i+1, tw, truncateString(t.Title, tw), truncateString(t.Author, 25), t.Count, t.Percent)
	}
}

func (a *app) seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Load demo books, members and loans into an empty catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			seeded, err := a.store.Seed(cmd.Context())
			if err != nil {
				return err
			}
			if seeded {
				a.println("Demo data loaded.")
			} else {
				a.println("Catalog is not empty; nothing loaded.")
			}
			return nil
		},
	}
}

func (a *app) checkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Report books whose status disagrees with the loan ledger",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			found, err := a.store.CheckConsistency(cmd.Context())
			if err != nil {
				return err
			}
			if a.asJSON {
				return a.printJSON(found)
			}
			if len(found) == 0 {
				a.println("Catalog and ledger agree.")
				return nil
			}
			for _, f := range found {
				a.printf("%-18s book #%-4d %s\n", f.Kind, f.BookID, f.Detail)
			}
			return nil
		},
	}
}
