package library

import (
	"context"
	"fmt"
	"time"
)

// pastDue reports whether an open loan has outlived its due date.
func pastDue(l *Loan, today time.Time) bool {
	return l.Open() && l.DueOn.Before(today)
}

// sweep promotes expired loans to OVERDUE. It runs synchronously before every
// read that depends on loan status; there is no background scheduler.
func (s *Store) sweep(ctx context.Context) error {
	today := s.today()

	s.mu.Lock()
	defer s.mu.Unlock()

	n, err := s.repo.MarkOverdue(ctx, today)
	if err != nil {
		return fmt.Errorf("sweep overdue loans: %w", err)
	}
	if n > 0 {
		s.logger.InfoContext(ctx, "loans marked overdue", "promoted", n, "today", formatDate(today))
	}
	return nil
}
