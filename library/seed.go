package library

import (
	"context"
	"fmt"
	"time"
)

var seedBooks = []Book{
	{Title: "The Great Gatsby", Author: "F. Scott Fitzgerald", Category: "Classic Fiction", ISBN: "978-0743273565", Year: 1925, Status: BookAvailable},
	{Title: "1984", Author: "George Orwell", Category: "Science Fiction", ISBN: "978-0451524935", Year: 1949, Status: BookAvailable},
	{Title: "To Kill a Mockingbird", Author: "Harper Lee", Category: "Classic Fiction", ISBN: "978-0061120084", Year: 1960, Status: BookAvailable},
	{Title: "Pride and Prejudice", Author: "Jane Austen", Category: "Romance", ISBN: "978-1503290563", Year: 1813, Status: BookAvailable},
	{Title: "The Hobbit", Author: "J.R.R. Tolkien", Category: "Fantasy", ISBN: "978-0547928227", Year: 1937, Status: BookAvailable},
	{Title: "Harry Potter and the Sorcerer's Stone", Author: "J.K. Rowling", Category: "Fantasy", ISBN: "978-0590353427", Year: 1997, Status: BookAvailable},
	{Title: "The Fellowship of the Ring", Author: "J.R.R. Tolkien", Category: "Fantasy", ISBN: "978-0547928210", Year: 1954, Status: BookAvailable},
	{Title: "Dune", Author: "Frank Herbert", Category: "Science Fiction", ISBN: "978-0441013593", Year: 1965, Status: BookAvailable},
	{Title: "Clean Code", Author: "Robert C. Martin", Category: "Technology", ISBN: "978-0132350884", Year: 2008, Status: BookAvailable},
	{Title: "The Pragmatic Programmer", Author: "Andrew Hunt", Category: "Technology", ISBN: "978-0201616224", Year: 1999, Status: BookAvailable},
	{Title: "Thinking, Fast and Slow", Author: "Daniel Kahneman", Category: "Psychology", ISBN: "978-0374275631", Year: 2011, Status: BookAvailable},
	{Title: "Sapiens: A Brief History of Humankind", Author: "Yuval Noah Harari", Category: "History", ISBN: "978-0062316097", Year: 2014, Status: BookAvailable},
	{Title: "Atomic Habits", Author: "James Clear", Category: "Self-Help", ISBN: "978-0735211292", Year: 2018, Status: BookAvailable},
	{Title: "The Catcher in the Rye", Author: "J.D. Salinger", Category: "Classic Fiction", ISBN: "978-0316769488", Year: 1951, Status: BookDamaged},
	{Title: "Steve Jobs", Author: "Walter Isaacson", Category: "Biography", ISBN: "978-1451648539", Year: 2011, Status: BookAvailable},
	{Title: "The Da Vinci Code", Author: "Dan Brown", Category: "Thriller", ISBN: "978-0307474278", Year: 2003, Status: BookLost},
}

var seedMembers = []Member{
	{FullName: "Alice Johnson", Email: "alice@example.com", Phone: "555-0101", MemberSince: date(2023, 1, 15), Status: MemberActive},
	{FullName: "Bob Smith", Email: "bob@example.com", Phone: "555-0102", MemberSince: date(2023, 2, 20), Status: MemberActive},
	{FullName: "Charlie Brown", Email: "charlie@example.com", Phone: "555-0103", MemberSince: date(2023, 3, 10), Status: MemberSuspended},
	{FullName: "Diana Prince", Email: "diana@example.com", Phone: "555-0104", MemberSince: date(2022, 5, 12), Status: MemberActive},
	{FullName: "Evan Wright", Email: "evan@example.com", Phone: "555-0105", MemberSince: date(2023, 6, 1), Status: MemberActive},
	{FullName: "Fiona Gallagher", Email: "fiona@example.com", Phone: "555-0106", MemberSince: date(2023, 7, 15), Status: MemberBlocked},
	{FullName: "George Martin", Email: "george@example.com", Phone: "555-0107", MemberSince: date(2021, 8, 20), Status: MemberActive},
	{FullName: "Hannah Montana", Email: "hannah@example.com", Phone: "555-0108", MemberSince: date(2023, 9, 10), Status: MemberActive},
}

// seedLoan positions are 1-based indexes into seedBooks and seedMembers;
// days are offsets from today.
type seedLoan struct {
	book, member int
	issued, due  int
	open         bool
}

var seedLoans = []seedLoan{
	{book: 3, member: 1, issued: -10, due: 7, open: true},
	{book: 7, member: 2, issued: -10, due: -2, open: true},
	{book: 11, member: 4, issued: -10, due: 1, open: true},
	{book: 1, member: 5, issued: -6, due: 8},
	{book: 2, member: 7, issued: -6, due: 8},
	{book: 4, member: 8, issued: -5, due: 9},
	{book: 5, member: 1, issued: -4, due: 10},
	{book: 6, member: 2, issued: -4, due: 10},
	{book: 8, member: 4, issued: -4, due: 10},
	{book: 9, member: 5, issued: -2, due: 12},
	{book: 10, member: 7, issued: -2, due: 12},
	{book: 12, member: 8, issued: -1, due: 13},
	{book: 13, member: 1, issued: 0, due: 14, open: true},
	{book: 9, member: 5, issued: -30, due: -16},
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Seed fills an empty catalog with demo books, members and a week of loan
// history. It reports false and changes nothing when any book exists.
func (s *Store) Seed(ctx context.Context) (bool, error) {
	today := s.today()

	s.mu.Lock()
	defer s.mu.Unlock()

	var seeded bool
	err := s.repo.InTx(ctx, func(tx Repository) error {
		existing, err := tx.ListBooks(ctx)
		if err != nil {
			return err
		}
		if len(existing) > 0 {
			return nil
		}

		bookIDs := make([]int64, len(seedBooks))
		for i := range seedBooks {
			b := seedBooks[i]
			if bookIDs[i], err = tx.InsertBook(ctx, &b); err != nil {
				return err
			}
		}
		memberIDs := make([]int64, len(seedMembers))
		for i := range seedMembers {
			m := seedMembers[i]
			if memberIDs[i], err = tx.InsertMember(ctx, &m); err != nil {
				return err
			}
		}

		for _, sl := range seedLoans {
			if err := seedOne(ctx, tx, sl, bookIDs[sl.book-1], memberIDs[sl.member-1], today); err != nil {
				return err
			}
		}
		seeded = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("seed demo data: %w", err)
	}
	if seeded {
		s.logger.InfoContext(ctx, "demo data seeded",
			"books", len(seedBooks), "members", len(seedMembers), "loans", len(seedLoans))
	}
	return seeded, nil
}

// seedOne records a loan the way circulation would have: open loans check
// their book out, closed ones were returned two days after issue.
func seedOne(ctx context.Context, tx Repository, sl seedLoan, bookID, memberID int64, today time.Time) error {
	l := &Loan{
		BookID:   bookID,
		MemberID: memberID,
		IssuedOn: today.AddDate(0, 0, sl.issued),
		DueOn:    today.AddDate(0, 0, sl.due),
		Status:   LoanActive,
	}
	if !sl.open {
		returned := l.IssuedOn.AddDate(0, 0, 2)
		if returned.After(today) {
			returned = today
		}
		l.Status = LoanReturned
		l.ReturnedOn = &returned
	}
	if _, err := tx.InsertLoan(ctx, l); err != nil {
		return err
	}
	if !sl.open {
		return nil
	}

	book, err := tx.GetBook(ctx, bookID)
	if err != nil {
		return err
	}
	book.Status = BookCheckedOut
	return tx.UpdateBook(ctx, book)
}
