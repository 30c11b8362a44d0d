package library

import (
	"strings"
	"time"
)

// BookStatus is the shelf state of a single book.
type BookStatus string

const (
	BookAvailable  BookStatus = "AVAILABLE"
	BookCheckedOut BookStatus = "CHECKED_OUT"
	BookLost       BookStatus = "LOST"
	BookDamaged    BookStatus = "DAMAGED"
)

// ParseBookStatus accepts any case and surrounding whitespace.
func ParseBookStatus(s string) (BookStatus, bool) {
	switch st := BookStatus(strings.ToUpper(strings.TrimSpace(s))); st {
	case BookAvailable, BookCheckedOut, BookLost, BookDamaged:
		return st, true
	}
	return "", false
}

// MemberStatus is informational; it does not gate loan issuance.
type MemberStatus string

const (
	MemberActive    MemberStatus = "ACTIVE"
	MemberExpired   MemberStatus = "EXPIRED"
	MemberSuspended MemberStatus = "SUSPENDED"
	MemberBlocked   MemberStatus = "BLOCKED"
)

func ParseMemberStatus(s string) (MemberStatus, bool) {
	switch st := MemberStatus(strings.ToUpper(strings.TrimSpace(s))); st {
	case MemberActive, MemberExpired, MemberSuspended, MemberBlocked:
		return st, true
	}
	return "", false
}

// LoanStatus moves ACTIVE -> OVERDUE -> RETURNED or ACTIVE -> RETURNED.
type LoanStatus string

const (
	LoanActive   LoanStatus = "ACTIVE"
	LoanOverdue  LoanStatus = "OVERDUE"
	LoanReturned LoanStatus = "RETURNED"
)

func ParseLoanStatus(s string) (LoanStatus, bool) {
	switch st := LoanStatus(strings.ToUpper(strings.TrimSpace(s))); st {
	case LoanActive, LoanOverdue, LoanReturned:
		return st, true
	}
	return "", false
}

// Book represents a catalog entry and its current shelf status.
type Book struct {
	ID       int64      `json:"id"`
	Title    string     `json:"title"`
	Author   string     `json:"author"`
	Category string     `json:"category"`
	ISBN     string     `json:"isbn"`
	ImageURL string     `json:"image_url"`
	Year     int        `json:"year"`
	Status   BookStatus `json:"status"`
}

// Member represents a registered library member.
type Member struct {
	ID          int64        `json:"id"`
	FullName    string       `json:"full_name"`
	Email       string       `json:"email"`
	Phone       string       `json:"phone"`
	MemberSince time.Time    `json:"member_since"`
	Status      MemberStatus `json:"status"`
}

// Loan records one checkout. BookID and MemberID are weak references: the
// catalog rows they point at may have been deleted since.
type Loan struct {
	ID         int64      `json:"id"`
	BookID     int64      `json:"book_id"`
	MemberID   int64      `json:"member_id"`
	IssuedOn   time.Time  `json:"issued_on"`
	DueOn      time.Time  `json:"due_on"`
	ReturnedOn *time.Time `json:"returned_on,omitempty"`
	Status     LoanStatus `json:"status"`
}

// Open reports whether the loan still holds its book.
func (l *Loan) Open() bool {
	return l.Status == LoanActive || l.Status == LoanOverdue
}

// BookInput carries the editable fields of a book.
type BookInput struct {
	Title    string
	Author   string
	Category string
	ISBN     string
	ImageURL string
	Year     int
	// Status defaults to AVAILABLE on create and to the current status on update.
	Status BookStatus
}

// MemberInput carries the editable fields of a member.
type MemberInput struct {
	FullName string
	Email    string
	Phone    string
	// MemberSince defaults to today on create and to the current date on
	// update when zero.
	MemberSince time.Time
	// Status defaults to ACTIVE on create and to the current status on update.
	Status MemberStatus
}

// IssueRequest asks for a new loan of BookID to MemberID.
type IssueRequest struct {
	BookID   int64
	MemberID int64
	DueOn    time.Time
}

// BookFilter narrows ListBooks. Empty fields match everything and an
// unrecognised Status is ignored.
type BookFilter struct {
	Query    string
	Status   string
	Category string
}

// MemberFilter narrows ListMembers.
type MemberFilter struct {
	Query  string
	Status string
}

func (in BookInput) normalized() BookInput {
	in.Title = strings.TrimSpace(in.Title)
	in.Author = strings.TrimSpace(in.Author)
	in.Category = strings.TrimSpace(in.Category)
	in.ISBN = strings.TrimSpace(in.ISBN)
	in.ImageURL = strings.TrimSpace(in.ImageURL)
	return in
}

func (in MemberInput) normalized() MemberInput {
	in.FullName = strings.TrimSpace(in.FullName)
	in.Email = strings.TrimSpace(in.Email)
	in.Phone = strings.TrimSpace(in.Phone)
	return in
}
