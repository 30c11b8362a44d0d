package library

import (
	"cmp"
	"context"
	"slices"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// TrendDays is the width of the loan trend window ending today.
const TrendDays = 7

// Counts is the set of headline figures shown on the dashboard.
type Counts struct {
	TotalBooks     int `json:"total_books"`
	AvailableBooks int `json:"available_books"`
	TotalMembers   int `json:"total_members"`
	OpenLoans      int `json:"open_loans"`
	OverdueLoans   int `json:"overdue_loans"`
	MonthlyLoans   int `json:"monthly_loans"`
	NewMembers     int `json:"new_members"`
}

// TopBook is one row of the most borrowed ranking. Percent is relative to
// the most borrowed book overall.
type TopBook struct {
	BookID  int64  `json:"book_id"`
	Title   string `json:"title"`
	Author  string `json:"author"`
	Count   int    `json:"count"`
	Percent int    `json:"percent"`
}

// TrendPoint is the number of loans issued on one day.
type TrendPoint struct {
	Date  time.Time `json:"date"`
	Label string    `json:"label"`
	Count int       `json:"count"`
}

// OverdueEntry is an overdue loan with whatever of its book and member still
// exist. Book or Member is nil when the row was deleted.
type OverdueEntry struct {
	Loan   *Loan   `json:"loan"`
	Book   *Book   `json:"book,omitempty"`
	Member *Member `json:"member,omitempty"`
}

// Dashboard bundles everything the front desk overview shows.
type Dashboard struct {
	Counts      Counts          `json:"counts"`
	RecentBooks []*Book         `json:"recent_books"`
	Overdue     []*OverdueEntry `json:"overdue"`
	Trend       []TrendPoint    `json:"trend"`
}

// MonthlyReport summarises circulation for the current month.
type MonthlyReport struct {
	ID           string    `json:"id"`
	Month        string    `json:"month"`
	GeneratedOn  time.Time `json:"generated_on"`
	TotalBooks   int       `json:"total_books"`
	MonthlyLoans int       `json:"monthly_loans"`
	OverdueLoans int       `json:"overdue_loans"`
	NewMembers   int       `json:"new_members"`
	TopBooks     []TopBook `json:"top_books"`
}

// Counts sweeps and then computes the headline figures.
func (s *Store) Counts(ctx context.Context) (Counts, error) {
	if err := s.sweep(ctx); err != nil {
		return Counts{}, err
	}
	return s.counts(ctx)
}

func (s *Store) counts(ctx context.Context) (Counts, error) {
	var c Counts
	books, err := s.repo.ListBooks(ctx)
	if err != nil {
		return c, err
	}
	members, err := s.repo.ListMembers(ctx)
	if err != nil {
		return c, err
	}
	loans, err := s.repo.ListLoans(ctx)
	if err != nil {
		return c, err
	}

	monthStart := firstOfMonth(s.today())

	c.TotalBooks = len(books)
	for _, b := range books {
		if b.Status == BookAvailable {
			c.AvailableBooks++
		}
	}
	c.TotalMembers = len(members)
	for _, m := range members {
		if !m.MemberSince.Before(monthStart) {
			c.NewMembers++
		}
	}
	for _, l := range loans {
		if l.Open() {
			c.OpenLoans++
		}
		if l.Status == LoanOverdue {
			c.OverdueLoans++
		}
		if !l.IssuedOn.Before(monthStart) {
			c.MonthlyLoans++
		}
	}
	return c, nil
}

// limitOf clamps a caller's row limit to [0, length]; n <= 0 yields no rows.
func limitOf(n, length int) int {
	return max(0, min(n, length))
}

// RecentBooks returns up to n books, newest first.
func (s *Store) RecentBooks(ctx context.Context, n int) ([]*Book, error) {
	books, err := s.repo.ListBooks(ctx)
	if err != nil {
		return nil, err
	}
	slices.SortFunc(books, func(a, b *Book) int { return cmp.Compare(b.ID, a.ID) })
	return books[:limitOf(n, len(books))], nil
}

// OverdueLoans sweeps and returns up to n overdue loans, earliest due first.
func (s *Store) OverdueLoans(ctx context.Context, n int) ([]*Loan, error) {
	if err := s.sweep(ctx); err != nil {
		return nil, err
	}
	return s.overdueLoans(ctx, n)
}

func (s *Store) overdueLoans(ctx context.Context, n int) ([]*Loan, error) {
	loans, err := s.repo.ListLoans(ctx)
	if err != nil {
		return nil, err
	}
	out := slices.DeleteFunc(loans, func(l *Loan) bool { return l.Status != LoanOverdue })
	slices.SortFunc(out, func(a, b *Loan) int {
		return cmp.Or(a.DueOn.Compare(b.DueOn), cmp.Compare(a.ID, b.ID))
	})
	return out[:limitOf(n, len(out))], nil
}

// AvailableBooks returns the books on the shelf, by title.
func (s *Store) AvailableBooks(ctx context.Context) ([]*Book, error) {
	books, err := s.repo.ListBooks(ctx)
	if err != nil {
		return nil, err
	}
	out := slices.DeleteFunc(books, func(b *Book) bool { return b.Status != BookAvailable })
	sortBooksByTitle(out)
	return out, nil
}

// TopBooks ranks books by how often they were lent, over the whole ledger.
// Ties go to the lower book id. Books deleted since are dropped after the
// limit is applied, so fewer than n rows may come back.
func (s *Store) TopBooks(ctx context.Context, n int) ([]TopBook, error) {
	loans, err := s.repo.ListLoans(ctx)
	if err != nil {
		return nil, err
	}
	if len(loans) == 0 {
		return []TopBook{}, nil
	}

	counts := make(map[int64]int)
	for _, l := range loans {
		counts[l.BookID]++
	}
	ids := make([]int64, 0, len(counts))
	highest := 0
	for id, c := range counts {
		ids = append(ids, id)
		highest = max(highest, c)
	}
	slices.SortFunc(ids, func(a, b int64) int {
		return cmp.Or(cmp.Compare(counts[b], counts[a]), cmp.Compare(a, b))
	})

	ids = ids[:limitOf(n, len(ids))]
	out := make([]TopBook, 0, len(ids))
	for _, id := range ids {
		book, err := s.repo.GetBook(ctx, id)
		if isNotFound(err) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, TopBook{
			BookID:  id,
			Title:   book.Title,
			Author:  book.Author,
			Count:   counts[id],
			Percent: counts[id] * 100 / highest,
		})
	}
	return out, nil
}

// LoanTrend counts loans issued on each of the TrendDays days ending today,
// oldest first. Days without loans are included with a zero count.
func (s *Store) LoanTrend(ctx context.Context) ([]TrendPoint, error) {
	loans, err := s.repo.ListLoans(ctx)
	if err != nil {
		return nil, err
	}
	today := s.today()
	first := today.AddDate(0, 0, -(TrendDays - 1))

	points := make([]TrendPoint, TrendDays)
	for i := range points {
		day := first.AddDate(0, 0, i)
		points[i] = TrendPoint{Date: day, Label: day.Format("1/2")}
	}
	for _, l := range loans {
		if l.IssuedOn.Before(first) || l.IssuedOn.After(today) {
			continue
		}
		points[int(l.IssuedOn.Sub(first).Hours()/24)].Count++
	}
	return points, nil
}

// Dashboard sweeps once and then gathers its parts concurrently.
func (s *Store) Dashboard(ctx context.Context, limit int) (*Dashboard, error) {
	if err := s.sweep(ctx); err != nil {
		return nil, err
	}

	var d Dashboard
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		c, err := s.counts(gctx)
		d.Counts = c
		return err
	})
	g.Go(func() error {
		books, err := s.RecentBooks(gctx, limit)
		d.RecentBooks = books
		return err
	})
	g.Go(func() error {
		entries, err := s.overdueEntries(gctx, limit)
		d.Overdue = entries
		return err
	})
	g.Go(func() error {
		trend, err := s.LoanTrend(gctx)
		d.Trend = trend
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &d, nil
}

func (s *Store) overdueEntries(ctx context.Context, n int) ([]*OverdueEntry, error) {
	loans, err := s.overdueLoans(ctx, n)
	if err != nil {
		return nil, err
	}
	out := make([]*OverdueEntry, 0, len(loans))
	for _, l := range loans {
		e := &OverdueEntry{Loan: l}
		if e.Book, err = s.repo.GetBook(ctx, l.BookID); err != nil && !isNotFound(err) {
			return nil, err
		}
		if e.Member, err = s.repo.GetMember(ctx, l.MemberID); err != nil && !isNotFound(err) {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

// MonthlyReport builds the current month's circulation report with the top
// topN books. Every report gets a fresh reference id.
func (s *Store) MonthlyReport(ctx context.Context, topN int) (*MonthlyReport, error) {
	c, err := s.Counts(ctx)
	if err != nil {
		return nil, err
	}
	top, err := s.TopBooks(ctx, topN)
	if err != nil {
		return nil, err
	}
	today := s.today()
	return &MonthlyReport{
		ID:           uuid.NewString(),
		Month:        today.Format("January 2006"),
		GeneratedOn:  today,
		TotalBooks:   c.TotalBooks,
		MonthlyLoans: c.MonthlyLoans,
		OverdueLoans: c.OverdueLoans,
		NewMembers:   c.NewMembers,
		TopBooks:     top,
	}, nil
}
