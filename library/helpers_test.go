package library

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// testToday is the date every test store starts on.
var testToday = time.Date(2026, 3, 18, 0, 0, 0, 0, time.UTC)

// testClock is a mutable clock shared by a store and its test.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(days int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.AddDate(0, 0, days)
}

func (c *testClock) Today() time.Time { return civilDate(c.Now()) }

func (c *testClock) Days(n int) time.Time { return c.Today().AddDate(0, 0, n) }

func tempDB(t *testing.T) *Database {
	t.Helper()
	db, err := NewDatabase(context.Background(), filepath.Join(t.TempDir(), "test.db"), 5*time.Second)
	require.NoError(t, err, "new db")
	return db
}

type backend struct {
	name string
	open func(t *testing.T) Repository
}

var backends = []backend{
	{name: "memory", open: func(t *testing.T) Repository { return NewMemoryRepository() }},
	{name: "sqlite", open: func(t *testing.T) Repository { return tempDB(t) }},
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestStore(t *testing.T, repo Repository) (*Store, *testClock) {
	t.Helper()
	clock := &testClock{now: testToday.Add(10 * time.Hour)}
	s := NewStore(repo, WithClock(clock.Now), WithLogger(discardLogger()))
	t.Cleanup(func() { s.Close() })
	return s, clock
}

// eachBackend runs fn once per repository implementation.
func eachBackend(t *testing.T, fn func(t *testing.T, s *Store, clock *testClock)) {
	for _, b := range backends {
		t.Run(b.name, func(t *testing.T) {
			s, clock := newTestStore(t, b.open(t))
			fn(t, s, clock)
		})
	}
}

// eachRepo is eachBackend for tests that also write through the repository.
func eachRepo(t *testing.T, fn func(t *testing.T, s *Store, repo Repository, clock *testClock)) {
	for _, b := range backends {
		t.Run(b.name, func(t *testing.T) {
			repo := b.open(t)
			s, clock := newTestStore(t, repo)
			fn(t, s, repo, clock)
		})
	}
}

func addBook(t *testing.T, s *Store, title string) int64 {
	t.Helper()
	id, err := s.CreateBook(context.Background(), BookInput{
		Title:    title,
		Author:   "Author of " + title,
		Category: "Fiction",
		Year:     2000,
	})
	require.NoError(t, err, "add book %q", title)
	return id
}

func addMember(t *testing.T, s *Store, name string) int64 {
	t.Helper()
	id, err := s.CreateMember(context.Background(), MemberInput{
		FullName: name,
		Email:    name + "@example.com",
	})
	require.NoError(t, err, "add member %q", name)
	return id
}

// issue lends bookID for the given number of days from the clock's today.
func issue(t *testing.T, s *Store, clock *testClock, bookID, memberID int64, days int) int64 {
	t.Helper()
	id, err := s.IssueLoan(context.Background(), IssueRequest{
		BookID:   bookID,
		MemberID: memberID,
		DueOn:    clock.Days(days),
	})
	require.NoError(t, err, "issue book %d to member %d", bookID, memberID)
	return id
}

func requireConsistent(t *testing.T, s *Store) {
	t.Helper()
	found, err := s.CheckConsistency(context.Background())
	require.NoError(t, err)
	require.Empty(t, found)
}
