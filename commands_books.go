package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"library-desk/library"
)

func (a *app) booksCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "books",
		Short: "Browse and edit the book catalog",
	}
	cmd.AddCommand(
		a.booksListCmd(),
		a.booksShowCmd(),
		a.booksAddCmd(),
		a.booksUpdateCmd(),
		a.booksDeleteCmd(),
		a.booksCategoriesCmd(),
		a.booksAvailableCmd(),
		a.booksRecentCmd(),
	)
	return cmd
}

func (a *app) booksListCmd() *cobra.Command {
	var f library.BookFilter
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List books, optionally filtered",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			books, err := a.store.ListBooks(cmd.Context(), f)
			if err != nil {
				return err
			}
			if a.asJSON {
				return a.printJSON(books)
			}
			a.printBooks(books)
			return nil
		},
	}
	cmd.Flags().StringVarP(&f.Query, "query", "q", "", "match title, author, ISBN or category")
	cmd.Flags().StringVar(&f.Status, "status", "", "AVAILABLE, CHECKED_OUT, LOST or DAMAGED")
	cmd.Flags().StringVar(&f.Category, "category", "", "exact category, any case")
	return cmd
}

func (a *app) booksShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show BOOK_ID",
		Short: "Show one book and who holds it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("book", args[0])
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			book, err := a.store.FindBook(ctx, id)
			if err != nil {
				return err
			}
			loan, err := a.store.FindActiveLoanForBook(ctx, id)
			if err != nil && !errors.Is(err, library.ErrNotFound) {
				return err
			}

			if a.asJSON {
				return a.printJSON(struct {
					*library.Book
					Loan *library.Loan `json:"loan,omitempty"`
				}{book, loan})
			}
			a.printBook(book)
			if loan != nil {
				a.printf("  On loan:  #%d to member %d, due %s (%s)\n",
					loan.ID, loan.MemberID, formatDate(loan.DueOn), loan.Status)
			}
			return nil
		},
	}
}

// bookFlags binds the editable book fields to a command's flags.
type bookFlags struct {
	in     library.BookInput
	status string
}

func (bf *bookFlags) register(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringVar(&bf.in.Title, "title", "", "title")
	fs.StringVar(&bf.in.Author, "author", "", "author")
	fs.StringVar(&bf.in.Category, "category", "", "category")
	fs.StringVar(&bf.in.ISBN, "isbn", "", "ISBN")
	fs.StringVar(&bf.in.ImageURL, "image-url", "", "cover image URL")
	fs.IntVar(&bf.in.Year, "year", 0, "publication year")
	fs.StringVar(&bf.status, "status", "", "AVAILABLE, LOST or DAMAGED")
}

// merge overlays the flags the user set onto the current book.
func (bf *bookFlags) merge(cmd *cobra.Command, cur *library.Book) library.BookInput {
	in := library.BookInput{
		Title:    cur.Title,
		Author:   cur.Author,
		Category: cur.Category,
		ISBN:     cur.ISBN,
		ImageURL: cur.ImageURL,
		Year:     cur.Year,
	}
	fs := cmd.Flags()
	if fs.Changed("title") {
		in.Title = bf.in.Title
	}
	if fs.Changed("author") {
		in.Author = bf.in.Author
	}
	if fs.Changed("category") {
		in.Category = bf.in.Category
	}
	if fs.Changed("isbn") {
		in.ISBN = bf.in.ISBN
	}
	if fs.Changed("image-url") {
		in.ImageURL = bf.in.ImageURL
	}
	if fs.Changed("year") {
		in.Year = bf.in.Year
	}
	in.Status = library.BookStatus(bf.status)
	return in
}

func (a *app) booksAddCmd() *cobra.Command {
	var bf bookFlags
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a book to the catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			in := bf.in
			in.Status = library.BookStatus(bf.status)
			if err := in.Validate(); err != nil {
				return err
			}
			id, err := a.store.CreateBook(cmd.Context(), in)
			if err != nil {
				return err
			}
			if a.asJSON {
				return a.printJSON(map[string]int64{"id": id})
			}
			a.printf("Added book ID %d\n", id)
			return nil
		},
	}
	bf.register(cmd)
	return cmd
}

func (a *app) booksUpdateCmd() *cobra.Command {
	var bf bookFlags
	cmd := &cobra.Command{
		Use:   "update BOOK_ID",
		Short: "Change a book; unset flags keep their value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("book", args[0])
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			cur, err := a.store.FindBook(ctx, id)
			if err != nil {
				return err
			}
			in := bf.merge(cmd, cur)
			if err := in.Validate(); err != nil {
				return err
			}
			if err := a.store.UpdateBook(ctx, id, in); err != nil {
				return err
			}
			a.printf("Updated book ID %d\n", id)
			return nil
		},
	}
	bf.register(cmd)
	return cmd
}

func (a *app) booksDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete BOOK_ID",
		Short: "Remove a book; its loans stay in the ledger",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("book", args[0])
			if err != nil {
				return err
			}
			if err := a.store.DeleteBook(cmd.Context(), id); err != nil {
				return err
			}
			a.printf("Deleted book ID %d\n", id)
			return nil
		},
	}
}

func (a *app) booksCategoriesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "categories",
		Short: "List the categories in use",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cats, err := a.store.ListCategories(cmd.Context())
			if err != nil {
				return err
			}
			if a.asJSON {
				return a.printJSON(cats)
			}
			if len(cats) == 0 {
				a.println("No categories yet.")
			}
			for _, c := range cats {
				a.println(c)
			}
			return nil
		},
	}
}

func (a *app) booksAvailableCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "available",
		Short: "List books on the shelf",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			books, err := a.store.AvailableBooks(cmd.Context())
			if err != nil {
				return err
			}
			if a.asJSON {
				return a.printJSON(books)
			}
			a.printBooks(books)
			return nil
		},
	}
}

func (a *app) booksRecentCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "recent",
		Short: "List the newest additions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit < 1 {
				return fmt.Errorf("--limit must be positive")
			}
			books, err := a.store.RecentBooks(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if a.asJSON {
				return a.printJSON(books)
			}
			a.printBooks(books)
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 5, "number of books")
	return cmd
}
