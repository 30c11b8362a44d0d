package library

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueAndReturn(t *testing.T) {
	eachBackend(t, func(t *testing.T, s *Store, clock *testClock) {
		ctx := context.Background()
		bookID := addBook(t, s, "Dune")
		memberID := addMember(t, s, "alice")

		loanID := issue(t, s, clock, bookID, memberID, 14)

		book, err := s.FindBook(ctx, bookID)
		require.NoError(t, err)
		assert.Equal(t, BookCheckedOut, book.Status)

		active, err := s.FindActiveLoanForBook(ctx, bookID)
		require.NoError(t, err)
		assert.Equal(t, loanID, active.ID)
		assert.Equal(t, LoanActive, active.Status)
		assert.Equal(t, clock.Today(), active.IssuedOn)
		assert.Equal(t, clock.Days(14), active.DueOn)
		assert.Nil(t, active.ReturnedOn)
		requireConsistent(t, s)

		require.NoError(t, s.ReturnLoan(ctx, loanID))

		loan, err := s.FindLoan(ctx, loanID)
		require.NoError(t, err)
		assert.Equal(t, LoanReturned, loan.Status)
		require.NotNil(t, loan.ReturnedOn)
		assert.Equal(t, clock.Today(), *loan.ReturnedOn)

		book, err = s.FindBook(ctx, bookID)
		require.NoError(t, err)
		assert.Equal(t, BookAvailable, book.Status)

		_, err = s.FindActiveLoanForBook(ctx, bookID)
		assert.ErrorIs(t, err, ErrNotFound)
		requireConsistent(t, s)
	})
}

func TestIssueCheckedOutBookConflicts(t *testing.T) {
	eachBackend(t, func(t *testing.T, s *Store, clock *testClock) {
		ctx := context.Background()
		bookID := addBook(t, s, "Dune")
		alice := addMember(t, s, "alice")
		bob := addMember(t, s, "bob")
		issue(t, s, clock, bookID, alice, 14)

		_, err := s.IssueLoan(ctx, IssueRequest{BookID: bookID, MemberID: bob, DueOn: clock.Days(7)})
		require.ErrorIs(t, err, ErrConflict)

		loans, err := s.ListLoans(ctx)
		require.NoError(t, err)
		assert.Len(t, loans, 1)
		book, err := s.FindBook(ctx, bookID)
		require.NoError(t, err)
		assert.Equal(t, BookCheckedOut, book.Status)
	})
}

func TestIssueRejectsUnavailableStatuses(t *testing.T) {
	eachBackend(t, func(t *testing.T, s *Store, clock *testClock) {
		ctx := context.Background()
		memberID := addMember(t, s, "alice")
		for _, st := range []BookStatus{BookLost, BookDamaged} {
			id, err := s.CreateBook(ctx, BookInput{Title: string(st), Author: "x", Category: "y", Year: 2000, Status: st})
			require.NoError(t, err)

			_, err = s.IssueLoan(ctx, IssueRequest{BookID: id, MemberID: memberID, DueOn: clock.Days(3)})
			assert.ErrorIs(t, err, ErrConflict, string(st))
		}
	})
}

func TestIssueValidation(t *testing.T) {
	eachBackend(t, func(t *testing.T, s *Store, clock *testClock) {
		ctx := context.Background()
		bookID := addBook(t, s, "Dune")
		memberID := addMember(t, s, "alice")

		tests := []struct {
			name string
			req  IssueRequest
			want error
		}{
			{name: "due today", req: IssueRequest{BookID: bookID, MemberID: memberID, DueOn: clock.Today()}, want: ErrValidation},
			{name: "due yesterday", req: IssueRequest{BookID: bookID, MemberID: memberID, DueOn: clock.Days(-1)}, want: ErrValidation},
			{name: "date checked before ids", req: IssueRequest{BookID: 999, MemberID: memberID, DueOn: clock.Today()}, want: ErrValidation},
			{name: "unknown book", req: IssueRequest{BookID: 999, MemberID: memberID, DueOn: clock.Days(1)}, want: ErrNotFound},
			{name: "unknown member", req: IssueRequest{BookID: bookID, MemberID: 999, DueOn: clock.Days(1)}, want: ErrNotFound},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				_, err := s.IssueLoan(ctx, tt.req)
				require.ErrorIs(t, err, tt.want)
			})
		}

		var verr *ValidationError
		_, err := s.IssueLoan(ctx, IssueRequest{BookID: bookID, MemberID: memberID, DueOn: clock.Today()})
		require.True(t, errors.As(err, &verr))
		assert.Equal(t, "due_on", verr.Errors[0].Field)

		loans, err := s.ListLoans(ctx)
		require.NoError(t, err)
		assert.Empty(t, loans, "failed issues must leave no loan behind")
		book, err := s.FindBook(ctx, bookID)
		require.NoError(t, err)
		assert.Equal(t, BookAvailable, book.Status)
	})
}

func TestIssueIgnoresMemberStatus(t *testing.T) {
	eachBackend(t, func(t *testing.T, s *Store, clock *testClock) {
		ctx := context.Background()
		bookID := addBook(t, s, "Dune")
		memberID, err := s.CreateMember(ctx, MemberInput{FullName: "Fiona", Email: "f@example.com", Status: MemberBlocked})
		require.NoError(t, err)

		_, err = s.IssueLoan(ctx, IssueRequest{BookID: bookID, MemberID: memberID, DueOn: clock.Days(1)})
		assert.NoError(t, err)
	})
}

func TestReturnIsIdempotent(t *testing.T) {
	eachBackend(t, func(t *testing.T, s *Store, clock *testClock) {
		ctx := context.Background()
		bookID := addBook(t, s, "Dune")
		memberID := addMember(t, s, "alice")
		loanID := issue(t, s, clock, bookID, memberID, 14)

		require.NoError(t, s.ReturnLoan(ctx, loanID))
		first, err := s.FindLoan(ctx, loanID)
		require.NoError(t, err)

		// Lend the book again so a second return of the old loan would be
		// visible if it touched the book.
		clock.Advance(2)
		next := issue(t, s, clock, bookID, memberID, 14)

		require.NoError(t, s.ReturnLoan(ctx, loanID))
		second, err := s.FindLoan(ctx, loanID)
		require.NoError(t, err)
		assert.Equal(t, first, second)

		book, err := s.FindBook(ctx, bookID)
		require.NoError(t, err)
		assert.Equal(t, BookCheckedOut, book.Status)
		active, err := s.FindActiveLoanForBook(ctx, bookID)
		require.NoError(t, err)
		assert.Equal(t, next, active.ID)
	})
}

func TestReturnUnknownLoan(t *testing.T) {
	eachBackend(t, func(t *testing.T, s *Store, clock *testClock) {
		err := s.ReturnLoan(context.Background(), 42)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestReturnNeverPrecedesIssue(t *testing.T) {
	eachBackend(t, func(t *testing.T, s *Store, clock *testClock) {
		ctx := context.Background()
		bookID := addBook(t, s, "Dune")
		memberID := addMember(t, s, "alice")
		loanID := issue(t, s, clock, bookID, memberID, 14)

		clock.Advance(-3)
		require.NoError(t, s.ReturnLoan(ctx, loanID))

		loan, err := s.FindLoan(ctx, loanID)
		require.NoError(t, err)
		require.NotNil(t, loan.ReturnedOn)
		assert.Equal(t, loan.IssuedOn, *loan.ReturnedOn)
	})
}

func TestReturnLeavesLostBookAlone(t *testing.T) {
	eachBackend(t, func(t *testing.T, s *Store, clock *testClock) {
		ctx := context.Background()
		bookID := addBook(t, s, "Dune")
		memberID := addMember(t, s, "alice")
		loanID := issue(t, s, clock, bookID, memberID, 14)

		book, err := s.FindBook(ctx, bookID)
		require.NoError(t, err)
		require.NoError(t, s.UpdateBook(ctx, bookID, BookInput{
			Title: book.Title, Author: book.Author, Category: book.Category, Year: book.Year, Status: BookLost,
		}))

		require.NoError(t, s.ReturnLoan(ctx, loanID))

		book, err = s.FindBook(ctx, bookID)
		require.NoError(t, err)
		assert.Equal(t, BookLost, book.Status)
		loan, err := s.FindLoan(ctx, loanID)
		require.NoError(t, err)
		assert.Equal(t, LoanReturned, loan.Status)
	})
}

func TestConcurrentIssueExactlyOneWins(t *testing.T) {
	eachBackend(t, func(t *testing.T, s *Store, clock *testClock) {
		ctx := context.Background()
		bookID := addBook(t, s, "Dune")

		const workers = 8
		members := make([]int64, workers)
		for i := range members {
			members[i] = addMember(t, s, "member"+string(rune('a'+i)))
		}

		var wg sync.WaitGroup
		errs := make(chan error, workers)
		start := make(chan struct{})
		for _, m := range members {
			wg.Add(1)
			go func(memberID int64) {
				defer wg.Done()
				<-start
				_, err := s.IssueLoan(ctx, IssueRequest{BookID: bookID, MemberID: memberID, DueOn: clock.Days(7)})
				errs <- err
			}(m)
		}
		close(start)
		wg.Wait()
		close(errs)

		var ok, conflicts int
		for err := range errs {
			switch {
			case err == nil:
				ok++
			case errors.Is(err, ErrConflict):
				conflicts++
			default:
				t.Fatalf("unexpected error: %v", err)
			}
		}
		assert.Equal(t, 1, ok)
		assert.Equal(t, workers-1, conflicts)

		loans, err := s.ListLoans(ctx)
		require.NoError(t, err)
		assert.Len(t, loans, 1)
		requireConsistent(t, s)
	})
}

func TestConcurrentCirculationKeepsInvariant(t *testing.T) {
	eachBackend(t, func(t *testing.T, s *Store, clock *testClock) {
		ctx := context.Background()
		books := []int64{addBook(t, s, "A"), addBook(t, s, "B"), addBook(t, s, "C")}
		memberID := addMember(t, s, "alice")

		var wg sync.WaitGroup
		for w := 0; w < 6; w++ {
			wg.Add(1)
			go func(w int) {
				defer wg.Done()
				bookID := books[w%len(books)]
				for i := 0; i < 5; i++ {
					id, err := s.IssueLoan(ctx, IssueRequest{BookID: bookID, MemberID: memberID, DueOn: clock.Days(7)})
					if errors.Is(err, ErrConflict) {
						continue
					}
					if !assert.NoError(t, err) {
						return
					}
					assert.NoError(t, s.ReturnLoan(ctx, id))
				}
			}(w)
		}
		wg.Wait()
		requireConsistent(t, s)
	})
}

func TestCatalogTrimsInput(t *testing.T) {
	eachBackend(t, func(t *testing.T, s *Store, clock *testClock) {
		ctx := context.Background()
		id, err := s.CreateBook(ctx, BookInput{
			Title:    "  Dune \t",
			Author:   " Frank Herbert ",
			Category: " Science Fiction",
			ISBN:     " 978-0441013593 ",
			Year:     1965,
		})
		require.NoError(t, err)

		book, err := s.FindBook(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, &Book{
			ID:       id,
			Title:    "Dune",
			Author:   "Frank Herbert",
			Category: "Science Fiction",
			ISBN:     "978-0441013593",
			Year:     1965,
			Status:   BookAvailable,
		}, book)

		memberID, err := s.CreateMember(ctx, MemberInput{FullName: " Alice ", Email: " alice@example.com ", Phone: "  "})
		require.NoError(t, err)
		m, err := s.FindMember(ctx, memberID)
		require.NoError(t, err)
		assert.Equal(t, "Alice", m.FullName)
		assert.Equal(t, "alice@example.com", m.Email)
		assert.Equal(t, "", m.Phone)
		assert.Equal(t, clock.Today(), m.MemberSince)
		assert.Equal(t, MemberActive, m.Status)
	})
}

func TestUpdateAndDeleteUnknownIDs(t *testing.T) {
	eachBackend(t, func(t *testing.T, s *Store, clock *testClock) {
		ctx := context.Background()
		in := BookInput{Title: "x", Author: "y", Category: "z", Year: 2000}

		assert.ErrorIs(t, s.UpdateBook(ctx, 7, in), ErrNotFound)
		assert.ErrorIs(t, s.DeleteBook(ctx, 7), ErrNotFound)
		assert.ErrorIs(t, s.UpdateMember(ctx, 7, MemberInput{FullName: "a", Email: "a@b.c"}), ErrNotFound)
		assert.ErrorIs(t, s.DeleteMember(ctx, 7), ErrNotFound)
		_, err := s.FindBook(ctx, 7)
		assert.ErrorIs(t, err, ErrNotFound)
		_, err = s.FindMember(ctx, 7)
		assert.ErrorIs(t, err, ErrNotFound)
		_, err = s.FindLoan(ctx, 7)
		assert.ErrorIs(t, err, ErrNotFound)

		books, err := s.ListBooks(ctx, BookFilter{})
		require.NoError(t, err)
		assert.Empty(t, books)
	})
}

func TestUpdateBookAndMember(t *testing.T) {
	eachBackend(t, func(t *testing.T, s *Store, clock *testClock) {
		ctx := context.Background()
		bookID := addBook(t, s, "Dune")
		require.NoError(t, s.UpdateBook(ctx, bookID, BookInput{
			Title: " Dune Messiah ", Author: "Frank Herbert", Category: "SF", Year: 1969, Status: BookDamaged,
		}))
		book, err := s.FindBook(ctx, bookID)
		require.NoError(t, err)
		assert.Equal(t, "Dune Messiah", book.Title)
		assert.Equal(t, 1969, book.Year)
		assert.Equal(t, BookDamaged, book.Status)

		// An empty status keeps the current one.
		require.NoError(t, s.UpdateBook(ctx, bookID, BookInput{Title: "Dune Messiah", Author: "F. Herbert", Category: "SF", Year: 1969}))
		book, err = s.FindBook(ctx, bookID)
		require.NoError(t, err)
		assert.Equal(t, BookDamaged, book.Status)
		assert.Equal(t, "F. Herbert", book.Author)

		memberID := addMember(t, s, "alice")
		since := clock.Days(-400)
		require.NoError(t, s.UpdateMember(ctx, memberID, MemberInput{
			FullName: "Alice Liddell", Email: "al@example.com", Phone: "555", MemberSince: since, Status: MemberExpired,
		}))
		m, err := s.FindMember(ctx, memberID)
		require.NoError(t, err)
		assert.Equal(t, "Alice Liddell", m.FullName)
		assert.Equal(t, since, m.MemberSince)
		assert.Equal(t, MemberExpired, m.Status)
	})
}

func TestCatalogEditGuard(t *testing.T) {
	eachBackend(t, func(t *testing.T, s *Store, clock *testClock) {
		ctx := context.Background()
		base := BookInput{Title: "Dune", Author: "Herbert", Category: "SF", Year: 1965}

		in := base
		in.Status = BookCheckedOut
		_, err := s.CreateBook(ctx, in)
		assert.ErrorIs(t, err, ErrConflict, "create as checked out")

		bookID, err := s.CreateBook(ctx, base)
		require.NoError(t, err)
		assert.ErrorIs(t, s.UpdateBook(ctx, bookID, in), ErrConflict, "edit into checked out")

		memberID := addMember(t, s, "alice")
		loanID := issue(t, s, clock, bookID, memberID, 14)

		in.Status = BookAvailable
		assert.ErrorIs(t, s.UpdateBook(ctx, bookID, in), ErrConflict, "shelve a book on loan")

		in.Status = BookCheckedOut
		assert.NoError(t, s.UpdateBook(ctx, bookID, in), "keeping checked out is fine")
		requireConsistent(t, s)

		in.Status = BookDamaged
		require.NoError(t, s.UpdateBook(ctx, bookID, in))
		require.NoError(t, s.ReturnLoan(ctx, loanID))
		book, err := s.FindBook(ctx, bookID)
		require.NoError(t, err)
		assert.Equal(t, BookDamaged, book.Status)
	})
}

func TestDanglingReferencesAreTolerated(t *testing.T) {
	eachBackend(t, func(t *testing.T, s *Store, clock *testClock) {
		ctx := context.Background()
		bookID := addBook(t, s, "Dune")
		memberID := addMember(t, s, "alice")
		loanID := issue(t, s, clock, bookID, memberID, 1)

		require.NoError(t, s.DeleteBook(ctx, bookID))
		require.NoError(t, s.DeleteMember(ctx, memberID))
		assert.ErrorIs(t, s.DeleteBook(ctx, bookID), ErrNotFound)

		clock.Advance(3)
		d, err := s.Dashboard(ctx, 5)
		require.NoError(t, err)
		require.Len(t, d.Overdue, 1)
		assert.Nil(t, d.Overdue[0].Book)
		assert.Nil(t, d.Overdue[0].Member)

		top, err := s.TopBooks(ctx, 5)
		require.NoError(t, err)
		assert.Empty(t, top)

		require.NoError(t, s.ReturnLoan(ctx, loanID))
		loan, err := s.FindLoan(ctx, loanID)
		require.NoError(t, err)
		assert.Equal(t, LoanReturned, loan.Status)
	})
}

func TestIDsAreNeverReused(t *testing.T) {
	eachBackend(t, func(t *testing.T, s *Store, clock *testClock) {
		ctx := context.Background()
		first := addBook(t, s, "A")
		second := addBook(t, s, "B")
		require.NoError(t, s.DeleteBook(ctx, second))
		third := addBook(t, s, "C")
		assert.Less(t, first, second)
		assert.Less(t, second, third)

		m1 := addMember(t, s, "a")
		require.NoError(t, s.DeleteMember(ctx, m1))
		m2 := addMember(t, s, "b")
		assert.Less(t, m1, m2)
	})
}

func TestListBooksFilters(t *testing.T) {
	eachBackend(t, func(t *testing.T, s *Store, clock *testClock) {
		ctx := context.Background()
		create := func(title, author, category, isbn string, status BookStatus) int64 {
			id, err := s.CreateBook(ctx, BookInput{Title: title, Author: author, Category: category, ISBN: isbn, Year: 2000, Status: status})
			require.NoError(t, err)
			return id
		}
		hobbit := create("the Hobbit", "Tolkien", "Fantasy", "978-0547928227", BookAvailable)
		dune := create("Dune", "Herbert", "Science Fiction", "978-0441013593", BookAvailable)
		fellowship := create("The Fellowship", "Tolkien", "fantasy", "", BookLost)
		abc := create("The Hobbit", "Anon", "Fantasy", "", BookDamaged)

		ids := func(books []*Book) []int64 {
			out := make([]int64, 0, len(books))
			for _, b := range books {
				out = append(out, b.ID)
			}
			return out
		}

		tests := []struct {
			name   string
			filter BookFilter
			want   []int64
		}{
			{name: "all sorted by title then author", filter: BookFilter{}, want: []int64{dune, fellowship, abc, hobbit}},
			{name: "query matches author any case", filter: BookFilter{Query: "  TOLKIEN "}, want: []int64{fellowship, hobbit}},
			{name: "query matches isbn", filter: BookFilter{Query: "0441"}, want: []int64{dune}},
			{name: "query matches category", filter: BookFilter{Query: "science"}, want: []int64{dune}},
			{name: "status", filter: BookFilter{Status: "lost"}, want: []int64{fellowship}},
			{name: "unknown status ignored", filter: BookFilter{Status: "BORROWED"}, want: []int64{dune, fellowship, abc, hobbit}},
			{name: "category exact any case", filter: BookFilter{Category: "FANTASY"}, want: []int64{fellowship, abc, hobbit}},
			{name: "category is not substring", filter: BookFilter{Category: "Fant"}, want: []int64{}},
			{name: "combined", filter: BookFilter{Query: "hobbit", Status: "AVAILABLE", Category: "fantasy"}, want: []int64{hobbit}},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				books, err := s.ListBooks(ctx, tt.filter)
				require.NoError(t, err)
				assert.Equal(t, tt.want, ids(books))
			})
		}
	})
}

func TestListCategories(t *testing.T) {
	eachBackend(t, func(t *testing.T, s *Store, clock *testClock) {
		ctx := context.Background()
		for _, c := range []string{" Fantasy ", "biography", "Fantasy", "fantasy", "History"} {
			_, err := s.CreateBook(ctx, BookInput{Title: "t", Author: "a", Category: c, Year: 2000})
			require.NoError(t, err)
		}
		cats, err := s.ListCategories(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"biography", "Fantasy", "fantasy", "History"}, cats)
	})
}

func TestListMembersFilters(t *testing.T) {
	eachBackend(t, func(t *testing.T, s *Store, clock *testClock) {
		ctx := context.Background()
		create := func(name, email, phone string, st MemberStatus) int64 {
			id, err := s.CreateMember(ctx, MemberInput{FullName: name, Email: email, Phone: phone, Status: st})
			require.NoError(t, err)
			return id
		}
		bob := create("bob Smith", "bob@example.com", "555-0102", MemberActive)
		alice := create("Alice Johnson", "alice@example.com", "555-0101", MemberActive)
		charlie := create("Charlie Brown", "charlie@example.com", "", MemberSuspended)

		all, err := s.ListMembers(ctx, MemberFilter{})
		require.NoError(t, err)
		require.Len(t, all, 3)
		assert.Equal(t, []int64{alice, bob, charlie}, []int64{all[0].ID, all[1].ID, all[2].ID})

		byPhone, err := s.ListMembers(ctx, MemberFilter{Query: "0102"})
		require.NoError(t, err)
		require.Len(t, byPhone, 1)
		assert.Equal(t, bob, byPhone[0].ID)

		byEmail, err := s.ListMembers(ctx, MemberFilter{Query: "CHARLIE@"})
		require.NoError(t, err)
		require.Len(t, byEmail, 1)

		suspended, err := s.ListMembers(ctx, MemberFilter{Status: "suspended"})
		require.NoError(t, err)
		require.Len(t, suspended, 1)
		assert.Equal(t, charlie, suspended[0].ID)

		ignored, err := s.ListMembers(ctx, MemberFilter{Status: "nope"})
		require.NoError(t, err)
		assert.Len(t, ignored, 3)
	})
}

func TestListLoansOrder(t *testing.T) {
	eachBackend(t, func(t *testing.T, s *Store, clock *testClock) {
		ctx := context.Background()
		memberID := addMember(t, s, "alice")
		a := issue(t, s, clock, addBook(t, s, "A"), memberID, 10)
		b := issue(t, s, clock, addBook(t, s, "B"), memberID, 10)
		clock.Advance(1)
		c := issue(t, s, clock, addBook(t, s, "C"), memberID, 10)

		loans, err := s.ListLoans(ctx)
		require.NoError(t, err)
		require.Len(t, loans, 3)
		assert.Equal(t, []int64{c, b, a}, []int64{loans[0].ID, loans[1].ID, loans[2].ID})
	})
}

func TestUpdateMemberKeepsUnsetFields(t *testing.T) {
	eachBackend(t, func(t *testing.T, s *Store, clock *testClock) {
		ctx := context.Background()
		since := clock.Days(-90)
		memberID, err := s.CreateMember(ctx, MemberInput{
			FullName: "Ada", Email: "ada@example.com", MemberSince: since, Status: MemberSuspended,
		})
		require.NoError(t, err)

		clock.Advance(3)
		require.NoError(t, s.UpdateMember(ctx, memberID, MemberInput{FullName: "Ada Lovelace", Email: "ada@example.com"}))

		m, err := s.FindMember(ctx, memberID)
		require.NoError(t, err)
		assert.Equal(t, "Ada Lovelace", m.FullName)
		assert.Equal(t, since, m.MemberSince)
		assert.Equal(t, MemberSuspended, m.Status)

		err = s.UpdateMember(ctx, memberID, MemberInput{FullName: "Ada", Email: "ada@example.com", Status: "VIP"})
		assert.ErrorIs(t, err, ErrValidation)
	})
}
