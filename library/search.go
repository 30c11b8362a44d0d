package library

import (
	"cmp"
	"slices"
	"strings"

	"golang.org/x/text/cases"
)

// fold returns the case-folded, trimmed form of s used for matching and
// ordering. A Caser is not safe for concurrent use, so each call builds one.
func fold(s string) string {
	return cases.Fold().String(strings.TrimSpace(s))
}

func matchesBook(b *Book, q string) bool {
	return strings.Contains(fold(b.Title), q) ||
		strings.Contains(fold(b.Author), q) ||
		strings.Contains(fold(b.ISBN), q) ||
		strings.Contains(fold(b.Category), q)
}

func matchesMember(m *Member, q string) bool {
	return strings.Contains(fold(m.FullName), q) ||
		strings.Contains(fold(m.Email), q) ||
		strings.Contains(fold(m.Phone), q)
}

func filterBooks(books []*Book, f BookFilter) []*Book {
	q := fold(f.Query)
	category := fold(f.Category)
	status, byStatus := ParseBookStatus(f.Status)

	out := make([]*Book, 0, len(books))
	for _, b := range books {
		if q != "" && !matchesBook(b, q) {
			continue
		}
		if byStatus && b.Status != status {
			continue
		}
		if category != "" && fold(b.Category) != category {
			continue
		}
		out = append(out, b)
	}
	return out
}

func filterMembers(members []*Member, f MemberFilter) []*Member {
	q := fold(f.Query)
	status, byStatus := ParseMemberStatus(f.Status)

	out := make([]*Member, 0, len(members))
	for _, m := range members {
		if q != "" && !matchesMember(m, q) {
			continue
		}
		if byStatus && m.Status != status {
			continue
		}
		out = append(out, m)
	}
	return out
}

// sortBooksByTitle orders by title, then author, case-insensitively; id breaks ties.
func sortBooksByTitle(books []*Book) {
	slices.SortFunc(books, func(a, b *Book) int {
		return cmp.Or(
			cmp.Compare(fold(a.Title), fold(b.Title)),
			cmp.Compare(fold(a.Author), fold(b.Author)),
			cmp.Compare(a.ID, b.ID),
		)
	})
}

func sortMembersByName(members []*Member) {
	slices.SortFunc(members, func(a, b *Member) int {
		return cmp.Or(
			cmp.Compare(fold(a.FullName), fold(b.FullName)),
			cmp.Compare(a.ID, b.ID),
		)
	})
}

// distinctCategories keeps each trimmed spelling once, ordered case-insensitively.
func distinctCategories(books []*Book) []string {
	seen := make(map[string]struct{})
	out := make([]string, 0)
	for _, b := range books {
		c := strings.TrimSpace(b.Category)
		if c == "" {
			continue
		}
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	slices.SortFunc(out, func(a, b string) int {
		return cmp.Or(cmp.Compare(fold(a), fold(b)), cmp.Compare(a, b))
	})
	return out
}
