package library

import (
	"cmp"
	"context"
	"fmt"
	"slices"
)

// InconsistencyKind names a way the catalog and the ledger can disagree.
type InconsistencyKind string

const (
	// A CHECKED_OUT book with no open loan.
	StrandedCheckout InconsistencyKind = "STRANDED_CHECKOUT"
	// An open loan whose book is AVAILABLE.
	UnmarkedLoan InconsistencyKind = "UNMARKED_LOAN"
	// More than one open loan holds the same book.
	DoubleLoan InconsistencyKind = "DOUBLE_LOAN"
)

// Inconsistency is one finding of CheckConsistency.
type Inconsistency struct {
	Kind    InconsistencyKind `json:"kind"`
	BookID  int64             `json:"book_id"`
	LoanIDs []int64           `json:"loan_ids,omitempty"`
	Detail  string            `json:"detail"`
}

// CheckConsistency compares every book's status with the open loans that
// reference it. It reports and never repairs. Open loans on deleted books and
// on books marked LOST or DAMAGED are expected and not reported.
func (s *Store) CheckConsistency(ctx context.Context) ([]Inconsistency, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	books, err := s.repo.ListBooks(ctx)
	if err != nil {
		return nil, err
	}
	loans, err := s.repo.ListLoans(ctx)
	if err != nil {
		return nil, err
	}

	open := make(map[int64][]int64)
	for _, l := range loans {
		if l.Open() {
			open[l.BookID] = append(open[l.BookID], l.ID)
		}
	}

	found := make([]Inconsistency, 0)
	for _, b := range books {
		ids := open[b.ID]
		slices.Sort(ids)
		switch {
		case len(ids) > 1:
			found = append(found, Inconsistency{
				Kind:    DoubleLoan,
				BookID:  b.ID,
				LoanIDs: ids,
				Detail:  fmt.Sprintf("%d open loans hold %q", len(ids), b.Title),
			})
		case b.Status == BookCheckedOut && len(ids) == 0:
			found = append(found, Inconsistency{
				Kind:   StrandedCheckout,
				BookID: b.ID,
				Detail: fmt.Sprintf("%q is checked out but no loan holds it", b.Title),
			})
		case b.Status == BookAvailable && len(ids) == 1:
			found = append(found, Inconsistency{
				Kind:    UnmarkedLoan,
				BookID:  b.ID,
				LoanIDs: ids,
				Detail:  fmt.Sprintf("%q is available while loan %d is open", b.Title, ids[0]),
			})
		}
	}

	slices.SortFunc(found, func(a, b Inconsistency) int {
		return cmp.Or(cmp.Compare(a.BookID, b.BookID), cmp.Compare(a.Kind, b.Kind))
	})
	if len(found) > 0 {
		s.logger.WarnContext(ctx, "catalog and ledger disagree", "findings", len(found))
	}
	return found, nil
}
