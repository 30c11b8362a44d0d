package library

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Database is the SQLite-backed Repository.
type Database struct {
	db *sql.DB
	sqlRepo
}

// NewDatabase opens (or creates) the SQLite database at dbPath and applies
// the embedded schema migrations.
func NewDatabase(ctx context.Context, dbPath string, busyTimeout time.Duration) (*Database, error) {
	// Ensure directory exists so first-run succeeds.
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	// Immediate transactions take the write lock up front, so two issuers
	// never both read AVAILABLE and then race to upgrade.
	dsn := fmt.Sprintf("file:%s?_busy_timeout=%d&_journal_mode=WAL&_txlock=immediate",
		dbPath, busyTimeout.Milliseconds())
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	if err := applyMigrations(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return &Database{db: db, sqlRepo: sqlRepo{q: db}}, nil
}

// Close closes the DB.
func (d *Database) Close() error { return d.db.Close() }

// InTx runs fn inside a SQLite transaction; an error from fn rolls it back.
func (d *Database) InTx(ctx context.Context, fn func(tx Repository) error) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&sqlTx{sqlRepo{q: tx}}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// sqlTx is the Repository view handed to InTx callbacks.
type sqlTx struct {
	sqlRepo
}

func (t *sqlTx) InTx(ctx context.Context, fn func(tx Repository) error) error { return fn(t) }
func (t *sqlTx) Close() error                                                { return nil }

// ---------------------------------------------------------------------------
// Schema migration
// ---------------------------------------------------------------------------

func applyMigrations(ctx context.Context, db *sql.DB) error {
	fsys, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("migrations fs: %w", err)
	}
	provider, err := goose.NewProvider(goose.DialectSQLite3, db, fsys)
	if err != nil {
		return fmt.Errorf("migration provider: %w", err)
	}
	if _, err := provider.Up(ctx); err != nil {
		return fmt.Errorf("apply migration: %w", err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Queries
// ---------------------------------------------------------------------------

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type rowScanner interface {
	Scan(dest ...any) error
}

type sqlRepo struct {
	q querier
}

var (
	bookColumns   = []string{"id", "title", "author", "category", "isbn", "image_url", "year", "status"}
	memberColumns = []string{"id", "full_name", "email", "phone", "member_since", "status"}
	loanColumns   = []string{"id", "book_id", "member_id", "issued_on", "due_on", "returned_on", "status"}
)

func (r *sqlRepo) insert(ctx context.Context, b sq.InsertBuilder) (int64, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return 0, err
	}
	res, err := r.q.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// exec runs a statement and returns the number of rows it touched.
func (r *sqlRepo) exec(ctx context.Context, b sq.Sqlizer) (int64, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return 0, err
	}
	res, err := r.q.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *sqlRepo) queryRow(ctx context.Context, b sq.SelectBuilder) (*sql.Row, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, err
	}
	return r.q.QueryRowContext(ctx, query, args...), nil
}

func (r *sqlRepo) query(ctx context.Context, b sq.SelectBuilder) (*sql.Rows, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, err
	}
	return r.q.QueryContext(ctx, query, args...)
}

// notFound maps sql.ErrNoRows onto ErrNotFound.
func notFound(err error, entity string, id int64) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s %d: %w", entity, id, ErrNotFound)
	}
	return fmt.Errorf("%s %d: %w", entity, id, err)
}

// ------------------ Books ------------------

func (r *sqlRepo) InsertBook(ctx context.Context, b *Book) (int64, error) {
	id, err := r.insert(ctx, sq.Insert("books").
		Columns(bookColumns[1:]...).
		Values(b.Title, b.Author, b.Category, b.ISBN, b.ImageURL, b.Year, string(b.Status)))
	if err != nil {
		return 0, fmt.Errorf("insert book: %w", err)
	}
	return id, nil
}

func (r *sqlRepo) GetBook(ctx context.Context, id int64) (*Book, error) {
	row, err := r.queryRow(ctx, sq.Select(bookColumns...).From("books").Where(sq.Eq{"id": id}))
	if err != nil {
		return nil, err
	}
	b, err := scanBook(row)
	if err != nil {
		return nil, notFound(err, "book", id)
	}
	return b, nil
}

func (r *sqlRepo) ListBooks(ctx context.Context) ([]*Book, error) {
	rows, err := r.query(ctx, sq.Select(bookColumns...).From("books").OrderBy("id"))
	if err != nil {
		return nil, fmt.Errorf("list books: %w", err)
	}
	defer rows.Close()

	books := make([]*Book, 0)
	for rows.Next() {
		b, err := scanBook(rows)
		if err != nil {
			return nil, fmt.Errorf("scan book: %w", err)
		}
		books = append(books, b)
	}
	return books, rows.Err()
}

func (r *sqlRepo) UpdateBook(ctx context.Context, b *Book) error {
	n, err := r.exec(ctx, sq.Update("books").SetMap(map[string]any{
		"title":     b.Title,
		"author":    b.Author,
		"category":  b.Category,
		"isbn":      b.ISBN,
		"image_url": b.ImageURL,
		"year":      b.Year,
		"status":    string(b.Status),
	}).Where(sq.Eq{"id": b.ID}))
	if err != nil {
		return fmt.Errorf("update book %d: %w", b.ID, err)
	}
	if n == 0 {
		return fmt.Errorf("book %d: %w", b.ID, ErrNotFound)
	}
	return nil
}

func (r *sqlRepo) DeleteBook(ctx context.Context, id int64) (bool, error) {
	n, err := r.exec(ctx, sq.Delete("books").Where(sq.Eq{"id": id}))
	if err != nil {
		return false, fmt.Errorf("delete book %d: %w", id, err)
	}
	return n > 0, nil
}

func scanBook(s rowScanner) (*Book, error) {
	var (
		b      Book
		status string
	)
	if err := s.Scan(&b.ID, &b.Title, &b.Author, &b.Category, &b.ISBN, &b.ImageURL, &b.Year, &status); err != nil {
		return nil, err
	}
	b.Status = BookStatus(status)
	return &b, nil
}

// ------------------ Members ------------------

func (r *sqlRepo) InsertMember(ctx context.Context, m *Member) (int64, error) {
	id, err := r.insert(ctx, sq.Insert("members").
		Columns(memberColumns[1:]...).
		Values(m.FullName, m.Email, m.Phone, formatDate(m.MemberSince), string(m.Status)))
	if err != nil {
		return 0, fmt.Errorf("insert member: %w", err)
	}
	return id, nil
}

func (r *sqlRepo) GetMember(ctx context.Context, id int64) (*Member, error) {
	row, err := r.queryRow(ctx, sq.Select(memberColumns...).From("members").Where(sq.Eq{"id": id}))
	if err != nil {
		return nil, err
	}
	m, err := scanMember(row)
	if err != nil {
		return nil, notFound(err, "member", id)
	}
	return m, nil
}

func (r *sqlRepo) ListMembers(ctx context.Context) ([]*Member, error) {
	rows, err := r.query(ctx, sq.Select(memberColumns...).From("members").OrderBy("id"))
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	defer rows.Close()

	members := make([]*Member, 0)
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

func (r *sqlRepo) UpdateMember(ctx context.Context, m *Member) error {
	n, err := r.exec(ctx, sq.Update("members").SetMap(map[string]any{
		"full_name":    m.FullName,
		"email":        m.Email,
		"phone":        m.Phone,
		"member_since": formatDate(m.MemberSince),
		"status":       string(m.Status),
	}).Where(sq.Eq{"id": m.ID}))
	if err != nil {
		return fmt.Errorf("update member %d: %w", m.ID, err)
	}
	if n == 0 {
		return fmt.Errorf("member %d: %w", m.ID, ErrNotFound)
	}
	return nil
}

func (r *sqlRepo) DeleteMember(ctx context.Context, id int64) (bool, error) {
	n, err := r.exec(ctx, sq.Delete("members").Where(sq.Eq{"id": id}))
	if err != nil {
		return false, fmt.Errorf("delete member %d: %w", id, err)
	}
	return n > 0, nil
}

func scanMember(s rowScanner) (*Member, error) {
	var (
		m             Member
		since, status string
	)
	if err := s.Scan(&m.ID, &m.FullName, &m.Email, &m.Phone, &since, &status); err != nil {
		return nil, err
	}
	t, err := ParseDate(since)
	if err != nil {
		return nil, err
	}
	m.MemberSince = t
	m.Status = MemberStatus(status)
	return &m, nil
}

// ------------------ Loans ------------------

func (r *sqlRepo) InsertLoan(ctx context.Context, l *Loan) (int64, error) {
	id, err := r.insert(ctx, sq.Insert("loans").
		Columns(loanColumns[1:]...).
		Values(l.BookID, l.MemberID, formatDate(l.IssuedOn), formatDate(l.DueOn), nullDate(l.ReturnedOn), string(l.Status)))
	if err != nil {
		return 0, fmt.Errorf("insert loan: %w", err)
	}
	return id, nil
}

func (r *sqlRepo) GetLoan(ctx context.Context, id int64) (*Loan, error) {
	row, err := r.queryRow(ctx, sq.Select(loanColumns...).From("loans").Where(sq.Eq{"id": id}))
	if err != nil {
		return nil, err
	}
	l, err := scanLoan(row)
	if err != nil {
		return nil, notFound(err, "loan", id)
	}
	return l, nil
}

func (r *sqlRepo) ListLoans(ctx context.Context) ([]*Loan, error) {
	rows, err := r.query(ctx, sq.Select(loanColumns...).From("loans").OrderBy("id"))
	if err != nil {
		return nil, fmt.Errorf("list loans: %w", err)
	}
	defer rows.Close()

	loans := make([]*Loan, 0)
	for rows.Next() {
		l, err := scanLoan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan loan: %w", err)
		}
		loans = append(loans, l)
	}
	return loans, rows.Err()
}

func (r *sqlRepo) UpdateLoan(ctx context.Context, l *Loan) error {
	n, err := r.exec(ctx, sq.Update("loans").SetMap(map[string]any{
		"returned_on": nullDate(l.ReturnedOn),
		"status":      string(l.Status),
	}).Where(sq.Eq{"id": l.ID}))
	if err != nil {
		return fmt.Errorf("update loan %d: %w", l.ID, err)
	}
	if n == 0 {
		return fmt.Errorf("loan %d: %w", l.ID, ErrNotFound)
	}
	return nil
}

func (r *sqlRepo) OpenLoanForBook(ctx context.Context, bookID int64) (*Loan, error) {
	row, err := r.queryRow(ctx, sq.Select(loanColumns...).From("loans").
		Where(sq.Eq{"book_id": bookID, "status": []string{string(LoanActive), string(LoanOverdue)}}).
		OrderBy("id").
		Limit(1))
	if err != nil {
		return nil, err
	}
	l, err := scanLoan(row)
	if err != nil {
		return nil, notFound(err, "open loan for book", bookID)
	}
	return l, nil
}

// MarkOverdue persists the overdue promotion. ISO dates compare lexically.
func (r *sqlRepo) MarkOverdue(ctx context.Context, today time.Time) (int64, error) {
	n, err := r.exec(ctx, sq.Update("loans").
		Set("status", string(LoanOverdue)).
		Where(sq.Eq{"status": string(LoanActive)}).
		Where(sq.Lt{"due_on": formatDate(today)}))
	if err != nil {
		return 0, fmt.Errorf("mark overdue: %w", err)
	}
	return n, nil
}

func scanLoan(s rowScanner) (*Loan, error) {
	var (
		l                   Loan
		issued, due, status string
		returned            sql.NullString
	)
	if err := s.Scan(&l.ID, &l.BookID, &l.MemberID, &issued, &due, &returned, &status); err != nil {
		return nil, err
	}
	var err error
	if l.IssuedOn, err = ParseDate(issued); err != nil {
		return nil, err
	}
	if l.DueOn, err = ParseDate(due); err != nil {
		return nil, err
	}
	if returned.Valid {
		t, err := ParseDate(returned.String)
		if err != nil {
			return nil, err
		}
		l.ReturnedOn = &t
	}
	l.Status = LoanStatus(status)
	return &l, nil
}

func nullDate(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatDate(*t), Valid: true}
}
