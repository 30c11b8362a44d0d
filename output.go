package main

import (
	"fmt"
	"os"
	"strings"
	"time"
	"unicode/utf8"

	jsoniter "github.com/json-iterator/go"
	"golang.org/x/term"

	"library-desk/library"
)

const defaultWidth = 100

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

func (a *app) printJSON(v any) error {
	enc := jsonAPI.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printf writes to the command output; write errors surface on the next
// JSON encode or on exit.
func (a *app) printf(format string, args ...any) {
	fmt.Fprintf(a.out, format, args...)
}

func (a *app) println(args ...any) {
	fmt.Fprintln(a.out, args...)
}

// terminalWidth is the width of stdout when it is a terminal and the command
// writes there, defaultWidth otherwise.
func (a *app) terminalWidth() int {
	if a.out != os.Stdout {
		return defaultWidth
	}
	fd := int(os.Stdout.Fd())
	if !term.IsTerminal(fd) {
		return defaultWidth
	}
	w, _, err := term.GetSize(fd)
	if err != nil || w < 60 {
		return defaultWidth
	}
	return w
}

// titleWidth gives the title column whatever the fixed columns leave over.
func (a *app) titleWidth(fixed int) int {
	return max(20, a.terminalWidth()-fixed)
}

func (a *app) rule(width int) {
	a.println(strings.Repeat("-", min(width, a.terminalWidth())))
}

func truncateString(s string, maxLen int) string {
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	r := []rune(s)
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format(library.DateLayout)
}

func (a *app) printBooks(books []*library.Book) {
	if len(books) == 0 {
		a.println("No books found.")
		return
	}
	tw := a.titleWidth(5 + 1 + 25 + 1 + 18 + 1 + 6 + 1 + 11)
	a.printf("%-5s %-*s %-25s %-18s %-6s %s\n", "ID", tw, "Title", "Author", "Category", "Year", "Status")
	a.rule(tw + 70)
	for _, b := range books {
		a.printf("%-5d %-*s %-25s %-18s %-6d %s\n",
			b.ID,
			tw, truncateString(b.Title, tw),
			truncateString(b.Author, 25),
			truncateString(b.Category, 18),
			b.Year,
			b.Status)
	}
}

func (a *app) printBook(b *library.Book) {
	a.printf("Book #%d\n", b.ID)
	a.printf("  Title:    %s\n", b.Title)
	a.printf("  Author:   %s\n", b.Author)
	a.printf("  Category: %s\n", b.Category)
	a.printf("  ISBN:     %s\n", orDash(b.ISBN))
	a.printf("  Year:     %d\n", b.Year)
	a.printf("  Cover:    %s\n", orDash(b.ImageURL))
	a.printf("  Status:   %s\n", b.Status)
}

func (a *app) printMembers(members []*library.Member) {
	if len(members) == 0 {
		a.println("No members found.")
		return
	}
	a.printf("%-5s %-28s %-30s %-14s %-12s %s\n", "ID", "Name", "Email", "Phone", "Since", "Status")
	a.rule(105)
	for _, m := range members {
		a.printf("%-5d %-28s %-30s %-14s %-12s %s\n",
			m.ID,
			truncateString(m.FullName, 28),
			truncateString(m.Email, 30),
			truncateString(orDash(m.Phone), 14),
			formatDate(m.MemberSince),
			m.Status)
	}
}

func (a *app) printMember(m *library.Member) {
	a.printf("Member #%d\n", m.ID)
	a.printf("  Name:   %s\n", m.FullName)
	a.printf("  Email:  %s\n", m.Email)
	a.printf("  Phone:  %s\n", orDash(m.Phone))
	a.printf("  Since:  %s\n", formatDate(m.MemberSince))
	a.printf("  Status: %s\n", m.Status)
}

// loanRow is a loan with the names of its book and member, which may have
// been deleted since.
type loanRow struct {
	*library.Loan
	Title  string `json:"title"`
	Member string `json:"member"`
}

func (a *app) printLoans(rows []loanRow) {
	if len(rows) == 0 {
		a.println("No loans found.")
		return
	}
	tw := a.titleWidth(5 + 1 + 22 + 1 + 11 + 1 + 11 + 1 + 11 + 1 + 8)
	a.printf("%-5s %-*s %-22s %-11s %-11s %-11s %s\n", "ID", tw, "Book", "Member", "Issued", "Due", "Returned", "Status")
	a.rule(tw + 75)
	for _, r := range rows {
		returned := "-"
		if r.ReturnedOn != nil {
			returned = formatDate(*r.ReturnedOn)
		}
		a.printf("%-5d %-*s %-22s %-11s %-11s %-11s %s\n",
			r.ID,
			tw, truncateString(r.Title, tw),
			truncateString(r.Member, 22),
			formatDate(r.IssuedOn),
			formatDate(r.DueOn),
			returned,
			r.Status)
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
