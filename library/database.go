package library

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Database provides high-level helpers around a SQLite connection. It
// owns the catalog (books) and the loan ledger (issued_books).
type Database struct {
	db *sql.DB

	addBookStmt     *sql.Stmt
	insertIssueStmt *sql.Stmt
}

// NewDatabase opens (or creates) the SQLite database at dbPath, applies
// schema migrations, and prepares common statements.
func NewDatabase(dbPath string) (*Database, error) {
	// Ensure directory exists so first-run succeeds.
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	// busy_timeout keeps concurrent statement writes from failing
	// fast. Foreign keys stay unenforced: the ledger's book_id is a
	// soft reference and CheckConsistency audits it instead.
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000", dbPath)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, storeErr("open sqlite", err)
	}

	if err := applyMigrations(db); err != nil {
		db.Close()
		return nil, err
	}

	database := &Database{db: db}
	if err := database.prepareStatements(); err != nil {
		db.Close()
		return nil, err
	}
	return database, nil
}

// Close releases prepared statements and closes the DB.
func (d *Database) Close() error {
	if d.addBookStmt != nil {
		d.addBookStmt.Close()
	}
	if d.insertIssueStmt != nil {
		d.insertIssueStmt.Close()
	}
	return d.db.Close()
}

func storeErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %v", op, ErrStorage, err)
}

// ---------------------------------------------------------------------------
// Schema migration
// ---------------------------------------------------------------------------

const schemaVersion = 1

func applyMigrations(db *sql.DB) error {
	// WAL improves write concurrency.
	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		return storeErr("enable WAL", err)
	}

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS meta (key TEXT PRIMARY KEY, value TEXT);`); err != nil {
		return storeErr("create meta", err)
	}

	var current int
	_ = db.QueryRow(`SELECT value FROM meta WHERE key='schema_version';`).Scan(&current)
	if current >= schemaVersion {
		return nil
	}

	tx, err := db.Begin()
	if err != nil {
		return storeErr("begin migration", err)
	}
	defer tx.Rollback()

	stmts := []string{
		`CREATE TABLE IF NOT EXISTS books (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            title TEXT NOT NULL,
            author TEXT NOT NULL,
            year TEXT NOT NULL DEFAULT '',
            isbn TEXT NOT NULL DEFAULT '',
            copies INTEGER NOT NULL DEFAULT 1
        );`,
		`CREATE TABLE IF NOT EXISTS issued_books (
            issue_id INTEGER PRIMARY KEY AUTOINCREMENT,
            book_id INTEGER NOT NULL REFERENCES books(id),
            title TEXT NOT NULL,
            borrower TEXT NOT NULL,
            issue_date DATETIME NOT NULL,
            return_date DATETIME
        );`,
		`CREATE INDEX IF NOT EXISTS idx_issued_books_book_id ON issued_books(book_id);`,
	}

	for _, stmt := range stmts {
		if _, err := tx.Exec(stmt); err != nil {
			return storeErr("apply migration", err)
		}
	}

	if _, err := tx.Exec(`INSERT INTO meta(key,value) VALUES('schema_version',?)
        ON CONFLICT(key) DO UPDATE SET value=excluded.value;`, schemaVersion); err != nil {
		return storeErr("record schema version", err)
	}

	if err := tx.Commit(); err != nil {
		return storeErr("commit migration", err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Prepared statements
// ---------------------------------------------------------------------------

func (d *Database) prepareStatements() error {
	var err error
	if d.addBookStmt, err = d.db.Prepare(`INSERT INTO books(title,author,year,isbn,copies) VALUES(?,?,?,?,?)`); err != nil {
		return storeErr("prepare add book", err)
	}
	if d.insertIssueStmt, err = d.db.Prepare(`INSERT INTO issued_books(book_id,title,borrower,issue_date,return_date) VALUES(?,?,?,?,NULL)`); err != nil {
		return storeErr("prepare insert issue", err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Catalog
// ---------------------------------------------------------------------------

// AddBook inserts a catalog row and returns its assigned id.
func (d *Database) AddBook(title, author, year, isbn string, copies int) (int64, error) {
	if strings.TrimSpace(title) == "" {
		return 0, fmt.Errorf("%w: title is required", ErrValidation)
	}
	if copies < 0 {
		return 0, fmt.Errorf("%w: copies must not be negative", ErrValidation)
	}
	res, err := d.addBookStmt.Exec(title, author, year, isbn, copies)
	if err != nil {
		return 0, storeErr("add book", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, storeErr("add book id", err)
	}
	return id, nil
}

func (d *Database) GetBook(id int64) (*Book, error) {
	var b Book
	err := d.db.QueryRow(`SELECT id,title,author,year,isbn,copies FROM books WHERE id=?`, id).
		Scan(&b.ID, &b.Title, &b.Author, &b.Year, &b.ISBN, &b.Copies)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: book %d", ErrNotFound, id)
	}
	if err != nil {
		return nil, storeErr("get book", err)
	}
	return &b, nil
}

// GetAllBooks returns every catalog row ordered by id.
func (d *Database) GetAllBooks() ([]*Book, error) {
	return d.queryBooks(`SELECT id,title,author,year,isbn,copies FROM books ORDER BY id`)
}

// SearchBooks matches term as a case-insensitive substring against
// title, author, and ISBN. An empty term returns the whole catalog.
func (d *Database) SearchBooks(term string) ([]*Book, error) {
	pattern := "%" + strings.TrimSpace(term) + "%"
	return d.queryBooks(`
        SELECT id,title,author,year,isbn,copies FROM books
        WHERE title LIKE ? OR author LIKE ? OR isbn LIKE ?
        ORDER BY id`, pattern, pattern, pattern)
}

func (d *Database) queryBooks(query string, args ...any) ([]*Book, error) {
	rows, err := d.db.Query(query, args...)
	if err != nil {
		return nil, storeErr("query books", err)
	}
	defer rows.Close()

	var books []*Book
	for rows.Next() {
		var b Book
		if err := rows.Scan(&b.ID, &b.Title, &b.Author, &b.Year, &b.ISBN, &b.Copies); err != nil {
			return nil, storeErr("scan book", err)
		}
		books = append(books, &b)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("iterate books", err)
	}
	return books, nil
}

// UpdateCopies sets the shelf count to an absolute value. The
// circulation path does not use this; it exists for administrative
// corrections and applies no floor beyond what callers check.
func (d *Database) UpdateCopies(id int64, copies int) error {
	res, err := d.db.Exec(`UPDATE books SET copies=? WHERE id=?`, copies, id)
	if err != nil {
		return storeErr("update copies", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return storeErr("update copies", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: book %d", ErrNotFound, id)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Loan ledger
// ---------------------------------------------------------------------------

// InsertIssue records a loan without touching the catalog. Callers
// that need the copies invariant upheld should use IssueBook instead.
func (d *Database) InsertIssue(bookID int64, titleSnapshot, borrower string, issuedAt time.Time) (int64, error) {
	res, err := d.insertIssueStmt.Exec(bookID, titleSnapshot, borrower, issuedAt)
	if err != nil {
		return 0, storeErr("insert issue", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, storeErr("insert issue id", err)
	}
	return id, nil
}

func (d *Database) GetIssue(issueID int64) (*Issue, error) {
	row := d.db.QueryRow(`SELECT issue_id,book_id,title,borrower,issue_date,return_date FROM issued_books WHERE issue_id=?`, issueID)
	iss, err := scanIssue(row.Scan)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: issue %d", ErrNotFound, issueID)
	}
	if err != nil {
		return nil, storeErr("get issue", err)
	}
	return iss, nil
}

// GetAllIssues returns every ledger row ordered by issue id.
func (d *Database) GetAllIssues() ([]*Issue, error) {
	rows, err := d.db.Query(`SELECT issue_id,book_id,title,borrower,issue_date,return_date FROM issued_books ORDER BY issue_id`)
	if err != nil {
		return nil, storeErr("query issues", err)
	}
	defer rows.Close()

	var issues []*Issue
	for rows.Next() {
		iss, err := scanIssue(rows.Scan)
		if err != nil {
			return nil, storeErr("scan issue", err)
		}
		issues = append(issues, iss)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("iterate issues", err)
	}
	return issues, nil
}

func scanIssue(scan func(...any) error) (*Issue, error) {
	var iss Issue
	var returned sql.NullTime
	if err := scan(&iss.ID, &iss.BookID, &iss.Title, &iss.Borrower, &iss.IssuedAt, &returned); err != nil {
		return nil, err
	}
	if returned.Valid {
		t := returned.Time
		iss.ReturnedAt = &t
	}
	return &iss, nil
}

// MarkReturned stamps return_date on an open loan. Returns false
// without error when the issue is unknown or already returned, so a
// second return is a safe no-op.
func (d *Database) MarkReturned(issueID int64, returnedAt time.Time) (bool, error) {
	res, err := d.db.Exec(`UPDATE issued_books SET return_date=? WHERE issue_id=? AND return_date IS NULL`, returnedAt, issueID)
	if err != nil {
		return false, storeErr("mark returned", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, storeErr("mark returned", err)
	}
	return n == 1, nil
}

// ---------------------------------------------------------------------------
// Circulation
// ---------------------------------------------------------------------------

// IssueBook records the loan and decrements the shelf count in one
// transaction. The decrement is conditional on copies > 0, so two
// concurrent attempts on the last copy cannot both succeed.
func (d *Database) IssueBook(bookID int64, borrower string, issuedAt time.Time) (int64, error) {
	tx, err := d.db.Begin()
	if err != nil {
		return 0, storeErr("begin issue", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(`UPDATE books SET copies=copies-1 WHERE id=? AND copies>0`, bookID)
	if err != nil {
		return 0, storeErr("decrement copies", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, storeErr("decrement copies", err)
	}
	if n == 0 {
		// Distinguish a missing book from an out-of-stock one.
		var exists bool
		if err := tx.QueryRow(`SELECT EXISTS(SELECT 1 FROM books WHERE id=?)`, bookID).Scan(&exists); err != nil {
			return 0, storeErr("check book", err)
		}
		if !exists {
			return 0, fmt.Errorf("%w: book %d", ErrNotFound, bookID)
		}
		return 0, fmt.Errorf("%w: book %d", ErrNoCopies, bookID)
	}

	var title string
	if err := tx.QueryRow(`SELECT title FROM books WHERE id=?`, bookID).Scan(&title); err != nil {
		return 0, storeErr("snapshot title", err)
	}

	ins, err := tx.Exec(`INSERT INTO issued_books(book_id,title,borrower,issue_date,return_date) VALUES(?,?,?,?,NULL)`,
		bookID, title, borrower, issuedAt)
	if err != nil {
		return 0, storeErr("insert issue", err)
	}
	issueID, err := ins.LastInsertId()
	if err != nil {
		return 0, storeErr("insert issue id", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, storeErr("commit issue", err)
	}
	return issueID, nil
}

// ReturnBook stamps the loan and increments the shelf count in one
// transaction. Returns false when the issue is unknown or was already
// returned; the catalog is untouched in that case.
func (d *Database) ReturnBook(issueID int64, returnedAt time.Time) (bool, error) {
	tx, err := d.db.Begin()
	if err != nil {
		return false, storeErr("begin return", err)
	}
	defer tx.Rollback()

	var bookID int64
	var returned sql.NullTime
	err = tx.QueryRow(`SELECT book_id, return_date FROM issued_books WHERE issue_id=?`, issueID).
		Scan(&bookID, &returned)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, storeErr("lookup issue", err)
	}
	if returned.Valid {
		return false, nil
	}

	if _, err := tx.Exec(`UPDATE issued_books SET return_date=? WHERE issue_id=?`, returnedAt, issueID); err != nil {
		return false, storeErr("mark returned", err)
	}
	if _, err := tx.Exec(`UPDATE books SET copies=copies+1 WHERE id=?`, bookID); err != nil {
		return false, storeErr("increment copies", err)
	}

	if err := tx.Commit(); err != nil {
		return false, storeErr("commit return", err)
	}
	return true, nil
}

// CheckConsistency audits the ledger against the catalog and reports
// states the paired circulation path can never produce: open loans
// referencing missing books, and negative shelf counts. An empty slice
// means the store is clean.
func (d *Database) CheckConsistency() ([]string, error) {
	var problems []string

	rows, err := d.db.Query(`
        SELECT ib.issue_id, ib.book_id FROM issued_books ib
        LEFT JOIN books b ON b.id = ib.book_id
        WHERE ib.return_date IS NULL AND b.id IS NULL
        ORDER BY ib.issue_id`)
	if err != nil {
		return nil, storeErr("audit orphans", err)
	}
	defer rows.Close()
	for rows.Next() {
		var issueID, bookID int64
		if err := rows.Scan(&issueID, &bookID); err != nil {
			return nil, storeErr("audit orphans", err)
		}
		problems = append(problems, fmt.Sprintf("issue %d references missing book %d", issueID, bookID))
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("audit orphans", err)
	}

	neg, err := d.queryBooks(`SELECT id,title,author,year,isbn,copies FROM books WHERE copies < 0 ORDER BY id`)
	if err != nil {
		return nil, err
	}
	for _, b := range neg {
		problems = append(problems, fmt.Sprintf("book %d (%s) has negative copies: %d", b.ID, b.Title, b.Copies))
	}

	return problems, nil
}
