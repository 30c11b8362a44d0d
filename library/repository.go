package library

import (
	"context"
	"time"
)

// Catalog persists books and members. Lookups of unknown ids return an error
// wrapping ErrNotFound; deletes report whether a row existed.
type Catalog interface {
	InsertBook(ctx context.Context, b *Book) (int64, error)
	GetBook(ctx context.Context, id int64) (*Book, error)
	ListBooks(ctx context.Context) ([]*Book, error)
	UpdateBook(ctx context.Context, b *Book) error
	DeleteBook(ctx context.Context, id int64) (bool, error)

	InsertMember(ctx context.Context, m *Member) (int64, error)
	GetMember(ctx context.Context, id int64) (*Member, error)
	ListMembers(ctx context.Context) ([]*Member, error)
	UpdateMember(ctx context.Context, m *Member) error
	DeleteMember(ctx context.Context, id int64) (bool, error)
}

// Ledger persists loans. Loans are never deleted.
type Ledger interface {
	InsertLoan(ctx context.Context, l *Loan) (int64, error)
	GetLoan(ctx context.Context, id int64) (*Loan, error)
	ListLoans(ctx context.Context) ([]*Loan, error)
	UpdateLoan(ctx context.Context, l *Loan) error
	// OpenLoanForBook returns the oldest ACTIVE or OVERDUE loan of a book.
	OpenLoanForBook(ctx context.Context, bookID int64) (*Loan, error)
	// MarkOverdue promotes ACTIVE loans due strictly before today and returns
	// how many changed.
	MarkOverdue(ctx context.Context, today time.Time) (int64, error)
}

// Repository is the storage behind a Store.
type Repository interface {
	Catalog
	Ledger
	// InTx runs fn against a transactional view of the repository. When fn
	// returns an error every write made through tx is discarded, and no reader
	// observes a partial result.
	InTx(ctx context.Context, fn func(tx Repository) error) error
	Close() error
}
