package library

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"
)

// Store is the single entry point to the catalog and the loan ledger. It
// serializes every mutation and runs each cross-entity write in one
// repository transaction, keeping book status and loan status consistent.
type Store struct {
	repo   Repository
	mu     sync.Mutex
	now    func() time.Time
	logger *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithClock replaces time.Now as the source of "today".
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithLogger sets the logger used for circulation events.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

// NewStore wraps repo. The Store owns repo from here on; Close closes it.
func NewStore(repo Repository, opts ...Option) *Store {
	s := &Store{
		repo:   repo,
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Close closes the underlying repository.
func (s *Store) Close() error { return s.repo.Close() }

func (s *Store) today() time.Time { return civilDate(s.now()) }

// ------------------ Books ------------------

// ListBooks returns the books matching f ordered by title then author.
func (s *Store) ListBooks(ctx context.Context, f BookFilter) ([]*Book, error) {
	books, err := s.repo.ListBooks(ctx)
	if err != nil {
		return nil, err
	}
	out := filterBooks(books, f)
	sortBooksByTitle(out)
	return out, nil
}

// ListCategories returns the distinct non-blank categories in use.
func (s *Store) ListCategories(ctx context.Context) ([]string, error) {
	books, err := s.repo.ListBooks(ctx)
	if err != nil {
		return nil, err
	}
	return distinctCategories(books), nil
}

// FindBook returns the book with the given id.
func (s *Store) FindBook(ctx context.Context, id int64) (*Book, error) {
	return s.repo.GetBook(ctx, id)
}

// CreateBook stores a new book and returns its id. A book can only enter
// the catalog checked out through IssueLoan, so CHECKED_OUT is refused.
func (s *Store) CreateBook(ctx context.Context, in BookInput) (int64, error) {
	in = in.normalized()
	status := BookAvailable
	if in.Status != "" {
		st, ok := ParseBookStatus(string(in.Status))
		if !ok {
			return 0, NewValidationError("status", "is not a book status")
		}
		status = st
	}
	if status == BookCheckedOut {
		return 0, fmt.Errorf("create book: only a loan can check a book out: %w", ErrConflict)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id, err := s.repo.InsertBook(ctx, &Book{
		Title:    in.Title,
		Author:   in.Author,
		Category: in.Category,
		ISBN:     in.ISBN,
		ImageURL: in.ImageURL,
		Year:     in.Year,
		Status:   status,
	})
	if err != nil {
		return 0, err
	}
	s.logger.DebugContext(ctx, "book created", "book_id", id)
	return id, nil
}

// UpdateBook replaces the editable fields of a book. The status may move
// between AVAILABLE, LOST and DAMAGED freely; it can leave CHECKED_OUT for
// AVAILABLE only once no loan holds the book, and never enter it.
func (s *Store) UpdateBook(ctx context.Context, id int64, in BookInput) error {
	in = in.normalized()

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.repo.InTx(ctx, func(tx Repository) error {
		book, err := tx.GetBook(ctx, id)
		if err != nil {
			return err
		}

		status := book.Status
		if in.Status != "" {
			st, ok := ParseBookStatus(string(in.Status))
			if !ok {
				return NewValidationError("status", "is not a book status")
			}
			status = st
		}
		if status == BookCheckedOut && book.Status != BookCheckedOut {
			return fmt.Errorf("update book %d: only a loan can check a book out: %w", id, ErrConflict)
		}
		if status == BookAvailable && book.Status == BookCheckedOut {
			loan, err := tx.OpenLoanForBook(ctx, id)
			switch {
			case err == nil:
				return fmt.Errorf("update book %d: loan %d is still open: %w", id, loan.ID, ErrConflict)
			case !errors.Is(err, ErrNotFound):
				return err
			}
		}

		book.Title = in.Title
		book.Author = in.Author
		book.Category = in.Category
		book.ISBN = in.ISBN
		book.ImageURL = in.ImageURL
		book.Year = in.Year
		book.Status = status
		return tx.UpdateBook(ctx, book)
	})
}

// DeleteBook removes a book. Loans that reference it are kept as they are.
func (s *Store) DeleteBook(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ok, err := s.repo.DeleteBook(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("book %d: %w", id, ErrNotFound)
	}
	s.logger.DebugContext(ctx, "book deleted", "book_id", id)
	return nil
}

// ------------------ Members ------------------

// ListMembers returns the members matching f ordered by full name.
func (s *Store) ListMembers(ctx context.Context, f MemberFilter) ([]*Member, error) {
	members, err := s.repo.ListMembers(ctx)
	if err != nil {
		return nil, err
	}
	out := filterMembers(members, f)
	sortMembersByName(out)
	return out, nil
}

// FindMember returns the member with the given id.
func (s *Store) FindMember(ctx context.Context, id int64) (*Member, error) {
	return s.repo.GetMember(ctx, id)
}

// CreateMember stores a new member and returns its id. Status defaults to
// ACTIVE and MemberSince to today.
func (s *Store) CreateMember(ctx context.Context, in MemberInput) (int64, error) {
	m, err := s.memberFromInput(in)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id, err := s.repo.InsertMember(ctx, m)
	if err != nil {
		return 0, err
	}
	s.logger.DebugContext(ctx, "member created", "member_id", id)
	return id, nil
}

// UpdateMember replaces the editable fields of a member. A zero MemberSince
// and an empty Status keep the current values.
func (s *Store) UpdateMember(ctx context.Context, id int64, in MemberInput) error {
	in = in.normalized()
	var status MemberStatus
	if in.Status != "" {
		st, ok := ParseMemberStatus(string(in.Status))
		if !ok {
			return NewValidationError("status", "is not a member status")
		}
		status = st
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.repo.InTx(ctx, func(tx Repository) error {
		m, err := tx.GetMember(ctx, id)
		if err != nil {
			return err
		}
		m.FullName = in.FullName
		m.Email = in.Email
		m.Phone = in.Phone
		if !in.MemberSince.IsZero() {
			m.MemberSince = civilDate(in.MemberSince)
		}
		if status != "" {
			m.Status = status
		}
		return tx.UpdateMember(ctx, m)
	})
}

// DeleteMember removes a member. Their loans stay in the ledger.
func (s *Store) DeleteMember(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ok, err := s.repo.DeleteMember(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("member %d: %w", id, ErrNotFound)
	}
	s.logger.DebugContext(ctx, "member deleted", "member_id", id)
	return nil
}

func (s *Store) memberFromInput(in MemberInput) (*Member, error) {
	in = in.normalized()
	status := MemberActive
	if in.Status != "" {
		st, ok := ParseMemberStatus(string(in.Status))
		if !ok {
			return nil, NewValidationError("status", "is not a member status")
		}
		status = st
	}
	since := s.today()
	if !in.MemberSince.IsZero() {
		since = civilDate(in.MemberSince)
	}
	return &Member{
		FullName:    in.FullName,
		Email:       in.Email,
		Phone:       in.Phone,
		MemberSince: since,
		Status:      status,
	}, nil
}

// ------------------ Loans ------------------

// ListLoans returns every loan, most recently issued first.
func (s *Store) ListLoans(ctx context.Context) ([]*Loan, error) {
	if err := s.sweep(ctx); err != nil {
		return nil, err
	}
	loans, err := s.repo.ListLoans(ctx)
	if err != nil {
		return nil, err
	}
	slices.SortFunc(loans, func(a, b *Loan) int {
		return cmp.Or(b.IssuedOn.Compare(a.IssuedOn), cmp.Compare(b.ID, a.ID))
	})
	return loans, nil
}

// FindLoan sweeps and returns the loan with the given id.
func (s *Store) FindLoan(ctx context.Context, id int64) (*Loan, error) {
	if err := s.sweep(ctx); err != nil {
		return nil, err
	}
	return s.repo.GetLoan(ctx, id)
}

// FindActiveLoanForBook returns the ACTIVE or OVERDUE loan holding a book.
func (s *Store) FindActiveLoanForBook(ctx context.Context, bookID int64) (*Loan, error) {
	if err := s.sweep(ctx); err != nil {
		return nil, err
	}
	return s.repo.OpenLoanForBook(ctx, bookID)
}

// IssueLoan lends an AVAILABLE book to a member and returns the new loan id.
// The loan and the book's move to CHECKED_OUT commit together or not at all.
// Member status is not consulted.
func (s *Store) IssueLoan(ctx context.Context, req IssueRequest) (int64, error) {
	today := s.today()
	due := civilDate(req.DueOn)
	if !due.After(today) {
		return 0, NewValidationError("due_on", "must be after today")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var loanID int64
	err := s.repo.InTx(ctx, func(tx Repository) error {
		book, err := tx.GetBook(ctx, req.BookID)
		if err != nil {
			return err
		}
		if _, err := tx.GetMember(ctx, req.MemberID); err != nil {
			return err
		}
		if book.Status != BookAvailable {
			return fmt.Errorf("book %d is %s: %w", book.ID, book.Status, ErrConflict)
		}

		loanID, err = tx.InsertLoan(ctx, &Loan{
			BookID:   book.ID,
			MemberID: req.MemberID,
			IssuedOn: today,
			DueOn:    due,
			Status:   LoanActive,
		})
		if err != nil {
			return err
		}
		book.Status = BookCheckedOut
		return tx.UpdateBook(ctx, book)
	})
	if err != nil {
		return 0, fmt.Errorf("issue loan: %w", err)
	}

	s.logger.InfoContext(ctx, "loan issued",
		"loan_id", loanID, "book_id", req.BookID, "member_id", req.MemberID, "due_on", formatDate(due))
	return loanID, nil
}

// ReturnLoan closes a loan and puts its book back on the shelf. Returning an
// already returned loan succeeds without changes. A book that was deleted or
// marked LOST/DAMAGED while on loan keeps its current state.
func (s *Store) ReturnLoan(ctx context.Context, loanID int64) error {
	today := s.today()

	s.mu.Lock()
	defer s.mu.Unlock()

	var returned bool
	err := s.repo.InTx(ctx, func(tx Repository) error {
		loan, err := tx.GetLoan(ctx, loanID)
		if err != nil {
			return err
		}
		if loan.Status == LoanReturned {
			return nil
		}

		on := today
		if on.Before(loan.IssuedOn) {
			on = loan.IssuedOn
		}
		loan.Status = LoanReturned
		loan.ReturnedOn = &on
		if err := tx.UpdateLoan(ctx, loan); err != nil {
			return err
		}
		returned = true

		book, err := tx.GetBook(ctx, loan.BookID)
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if book.Status != BookCheckedOut {
			return nil
		}
		book.Status = BookAvailable
		return tx.UpdateBook(ctx, book)
	})
	if err != nil {
		return fmt.Errorf("return loan: %w", err)
	}

	if returned {
		s.logger.InfoContext(ctx, "loan returned", "loan_id", loanID)
	}
	return nil
}
