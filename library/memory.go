package library

import (
	"context"
	"fmt"
	"maps"
	"sync"
	"time"
)

// MemoryRepository keeps the catalog and ledger in process. Writes made
// inside InTx hold the write lock for the whole callback and are rolled back
// from a snapshot when it fails.
type MemoryRepository struct {
	mu    sync.RWMutex
	state memState
}

// NewMemoryRepository initializes an empty in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{state: memState{
		books:   make(map[int64]Book),
		members: make(map[int64]Member),
		loans:   make(map[int64]Loan),
	}}
}

func (m *MemoryRepository) Close() error { return nil }

// InTx serializes fn against every other reader and writer.
func (m *MemoryRepository) InTx(ctx context.Context, fn func(tx Repository) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := m.state.clone()
	if err := fn(&memTx{state: &m.state}); err != nil {
		m.state = snapshot
		return err
	}
	return nil
}

// ------------------ Books ------------------

func (m *MemoryRepository) InsertBook(ctx context.Context, b *Book) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.insertBook(b), nil
}

func (m *MemoryRepository) GetBook(ctx context.Context, id int64) (*Book, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.getBook(id)
}

func (m *MemoryRepository) ListBooks(ctx context.Context) ([]*Book, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.listBooks(), nil
}

func (m *MemoryRepository) UpdateBook(ctx context.Context, b *Book) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.updateBook(b)
}

func (m *MemoryRepository) DeleteBook(ctx context.Context, id int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.deleteBook(id), nil
}

// ------------------ Members ------------------

func (m *MemoryRepository) InsertMember(ctx context.Context, mem *Member) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.insertMember(mem), nil
}

func (m *MemoryRepository) GetMember(ctx context.Context, id int64) (*Member, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.getMember(id)
}

func (m *MemoryRepository) ListMembers(ctx context.Context) ([]*Member, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.listMembers(), nil
}

func (m *MemoryRepository) UpdateMember(ctx context.Context, mem *Member) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.updateMember(mem)
}

func (m *MemoryRepository) DeleteMember(ctx context.Context, id int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.deleteMember(id), nil
}

// ------------------ Loans ------------------

func (m *MemoryRepository) InsertLoan(ctx context.Context, l *Loan) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.insertLoan(l), nil
}

func (m *MemoryRepository) GetLoan(ctx context.Context, id int64) (*Loan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.getLoan(id)
}

func (m *MemoryRepository) ListLoans(ctx context.Context) ([]*Loan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.listLoans(), nil
}

func (m *MemoryRepository) UpdateLoan(ctx context.Context, l *Loan) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.updateLoan(l)
}

func (m *MemoryRepository) OpenLoanForBook(ctx context.Context, bookID int64) (*Loan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.openLoanForBook(bookID)
}

func (m *MemoryRepository) MarkOverdue(ctx context.Context, today time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.markOverdue(today), nil
}

// ---------------------------------------------------------------------------
// Transactional view
// ---------------------------------------------------------------------------

// memTx operates on the state while MemoryRepository.InTx holds the lock.
type memTx struct {
	state *memState
}

func (t *memTx) Close() error { return nil }

func (t *memTx) InTx(ctx context.Context, fn func(tx Repository) error) error { return fn(t) }

func (t *memTx) InsertBook(ctx context.Context, b *Book) (int64, error) {
	return t.state.insertBook(b), nil
}
func (t *memTx) GetBook(ctx context.Context, id int64) (*Book, error) { return t.state.getBook(id) }
func (t *memTx) ListBooks(ctx context.Context) ([]*Book, error)       { return t.state.listBooks(), nil }
func (t *memTx) UpdateBook(ctx context.Context, b *Book) error        { return t.state.updateBook(b) }
func (t *memTx) DeleteBook(ctx context.Context, id int64) (bool, error) {
	return t.state.deleteBook(id), nil
}

func (t *memTx) InsertMember(ctx context.Context, m *Member) (int64, error) {
	return t.state.insertMember(m), nil
}
func (t *memTx) GetMember(ctx context.Context, id int64) (*Member, error) {
	return t.state.getMember(id)
}
func (t *memTx) ListMembers(ctx context.Context) ([]*Member, error) {
	return t.state.listMembers(), nil
}
func (t *memTx) UpdateMember(ctx context.Context, m *Member) error { return t.state.updateMember(m) }
func (t *memTx) DeleteMember(ctx context.Context, id int64) (bool, error) {
	return t.state.deleteMember(id), nil
}

func (t *memTx) InsertLoan(ctx context.Context, l *Loan) (int64, error) {
	return t.state.insertLoan(l), nil
}
func (t *memTx) GetLoan(ctx context.Context, id int64) (*Loan, error) { return t.state.getLoan(id) }
func (t *memTx) ListLoans(ctx context.Context) ([]*Loan, error)       { return t.state.listLoans(), nil }
func (t *memTx) UpdateLoan(ctx context.Context, l *Loan) error        { return t.state.updateLoan(l) }
func (t *memTx) OpenLoanForBook(ctx context.Context, bookID int64) (*Loan, error) {
	return t.state.openLoanForBook(bookID)
}
func (t *memTx) MarkOverdue(ctx context.Context, today time.Time) (int64, error) {
	return t.state.markOverdue(today), nil
}

// ---------------------------------------------------------------------------
// Unlocked state
// ---------------------------------------------------------------------------

// memState stores values, never pointers, so callers cannot mutate it.
// Id counters only grow, even across deletes.
type memState struct {
	books   map[int64]Book
	members map[int64]Member
	loans   map[int64]Loan

	lastBookID   int64
	lastMemberID int64
	lastLoanID   int64
}

func (s *memState) clone() memState {
	c := *s
	c.books = maps.Clone(s.books)
	c.members = maps.Clone(s.members)
	c.loans = maps.Clone(s.loans)
	return c
}

func (s *memState) insertBook(b *Book) int64 {
	s.lastBookID++
	row := *b
	row.ID = s.lastBookID
	s.books[row.ID] = row
	return row.ID
}

func (s *memState) getBook(id int64) (*Book, error) {
	b, ok := s.books[id]
	if !ok {
		return nil, fmt.Errorf("book %d: %w", id, ErrNotFound)
	}
	return &b, nil
}

func (s *memState) listBooks() []*Book {
	out := make([]*Book, 0, len(s.books))
	for _, b := range s.books {
		out = append(out, &b)
	}
	return out
}

func (s *memState) updateBook(b *Book) error {
	if _, ok := s.books[b.ID]; !ok {
		return fmt.Errorf("book %d: %w", b.ID, ErrNotFound)
	}
	s.books[b.ID] = *b
	return nil
}

func (s *memState) deleteBook(id int64) bool {
	_, ok := s.books[id]
	delete(s.books, id)
	return ok
}

func (s *memState) insertMember(m *Member) int64 {
	s.lastMemberID++
	row := *m
	row.ID = s.lastMemberID
	s.members[row.ID] = row
	return row.ID
}

func (s *memState) getMember(id int64) (*Member, error) {
	m, ok := s.members[id]
	if !ok {
		return nil, fmt.Errorf("member %d: %w", id, ErrNotFound)
	}
	return &m, nil
}

func (s *memState) listMembers() []*Member {
	out := make([]*Member, 0, len(s.members))
	for _, m := range s.members {
		out = append(out, &m)
	}
	return out
}

func (s *memState) updateMember(m *Member) error {
	if _, ok := s.members[m.ID]; !ok {
		return fmt.Errorf("member %d: %w", m.ID, ErrNotFound)
	}
	s.members[m.ID] = *m
	return nil
}

func (s *memState) deleteMember(id int64) bool {
	_, ok := s.members[id]
	delete(s.members, id)
	return ok
}

func (s *memState) insertLoan(l *Loan) int64 {
	s.lastLoanID++
	row := *l
	row.ID = s.lastLoanID
	s.loans[row.ID] = row
	return row.ID
}

func (s *memState) getLoan(id int64) (*Loan, error) {
	l, ok := s.loans[id]
	if !ok {
		return nil, fmt.Errorf("loan %d: %w", id, ErrNotFound)
	}
	return &l, nil
}

func (s *memState) listLoans() []*Loan {
	out := make([]*Loan, 0, len(s.loans))
	for _, l := range s.loans {
		out = append(out, &l)
	}
	return out
}

func (s *memState) updateLoan(l *Loan) error {
	if _, ok := s.loans[l.ID]; !ok {
		return fmt.Errorf("loan %d: %w", l.ID, ErrNotFound)
	}
	s.loans[l.ID] = *l
	return nil
}

func (s *memState) openLoanForBook(bookID int64) (*Loan, error) {
	var found *Loan
	for _, l := range s.loans {
		if l.BookID != bookID || !l.Open() {
			continue
		}
		if found == nil || l.ID < found.ID {
			found = &l
		}
	}
	if found == nil {
		return nil, fmt.Errorf("open loan for book %d: %w", bookID, ErrNotFound)
	}
	return found, nil
}

func (s *memState) markOverdue(today time.Time) int64 {
	var n int64
	for id, l := range s.loans {
		if l.Status == LoanActive && pastDue(&l, today) {
			l.Status = LoanOverdue
			s.loans[id] = l
			n++
		}
	}
	return n
}
