package library

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

// LibraryManager is a thin facade over the catalog/ledger database and
// the credential store, keeping presentation code simple. It enforces
// boundary validation and upholds the pairing between ledger writes
// and copy-count changes; the session identity is passed explicitly
// into every mutation rather than held as ambient state.
type LibraryManager struct {
	db     *Database
	creds  *CredentialStore
	logger *zap.Logger
}

// NewLibraryManager opens (or creates) both backing stores.
func NewLibraryManager(cfg *Config, logger *zap.Logger) (*LibraryManager, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	db, err := NewDatabase(cfg.DBPath)
	if err != nil {
		return nil, err
	}
	creds, err := OpenCredentialStore(cfg.UsersPath, cfg.AdminPassword)
	if err != nil {
		db.Close()
		return nil, err
	}
	return &LibraryManager{db: db, creds: creds, logger: logger}, nil
}

// Close closes the underlying database.
func (lm *LibraryManager) Close() error { return lm.db.Close() }

// Database exposes the underlying store for maintenance tooling.
func (lm *LibraryManager) Database() *Database { return lm.db }

func actor(who *Identity) zap.Field {
	if who == nil {
		return zap.String("user", "")
	}
	return zap.String("user", who.Username)
}

// ------------------ Session helpers ------------------

// Login authenticates and returns the session Identity the caller
// holds for the rest of the session. Logout is dropping the value.
func (lm *LibraryManager) Login(username, password string) (*Identity, error) {
	who, err := lm.creds.Authenticate(username, password)
	if err != nil {
		lm.logger.Warn("login rejected", zap.String("user", username))
		return nil, err
	}
	lm.logger.Info("login", actor(who), zap.String("role", who.Role))
	return who, nil
}

// Register creates a login with the default "user" role. Returns false
// when the username is already taken.
func (lm *LibraryManager) Register(username, password, displayName string) (bool, error) {
	ok, err := lm.creds.Register(username, password, displayName, "user")
	if err != nil {
		return false, err
	}
	if ok {
		lm.logger.Info("registered", zap.String("user", username))
	}
	return ok, nil
}

// ------------------ Catalog helpers ------------------

// AddBook validates at the boundary and inserts a catalog row.
func (lm *LibraryManager) AddBook(who *Identity, title, author, year, isbn string, copies int) (int64, error) {
	if strings.TrimSpace(title) == "" {
		return 0, fmt.Errorf("%w: title is required", ErrValidation)
	}
	if copies <= 0 {
		return 0, fmt.Errorf("%w: copies must be a positive number", ErrValidation)
	}
	id, err := lm.db.AddBook(strings.TrimSpace(title), strings.TrimSpace(author), strings.TrimSpace(year), strings.TrimSpace(isbn), copies)
	if err != nil {
		return 0, err
	}
	lm.logger.Info("book added", actor(who), zap.Int64("book_id", id), zap.String("title", title), zap.Int("copies", copies))
	return id, nil
}

func (lm *LibraryManager) GetBook(id int64) (*Book, error) { return lm.db.GetBook(id) }
func (lm *LibraryManager) GetAllBooks() ([]*Book, error)   { return lm.db.GetAllBooks() }

func (lm *LibraryManager) SearchBooks(term string) ([]*Book, error) {
	return lm.db.SearchBooks(term)
}

// SetCopies is the administrative absolute-value correction; the
// circulation path never goes through here.
func (lm *LibraryManager) SetCopies(who *Identity, bookID int64, copies int) error {
	if copies < 0 {
		return fmt.Errorf("%w: copies must not be negative", ErrValidation)
	}
	if err := lm.db.UpdateCopies(bookID, copies); err != nil {
		return err
	}
	lm.logger.Info("copies adjusted", actor(who), zap.Int64("book_id", bookID), zap.Int("copies", copies))
	return nil
}

// ------------------ Circulation ------------------

// Issue loans a book out. The ledger insert and the copy decrement
// happen in one transaction, so no crash can record one without the
// other, and concurrent attempts on the last copy cannot both succeed.
func (lm *LibraryManager) Issue(who *Identity, bookID int64, borrower string) (int64, error) {
	if strings.TrimSpace(borrower) == "" {
		return 0, fmt.Errorf("%w: borrower name is required", ErrValidation)
	}
	issueID, err := lm.db.IssueBook(bookID, strings.TrimSpace(borrower), time.Now())
	if err != nil {
		return 0, err
	}
	lm.logger.Info("book issued", actor(who),
		zap.Int64("book_id", bookID), zap.Int64("issue_id", issueID), zap.String("borrower", borrower))
	return issueID, nil
}

// Return closes a loan. A second return of the same issue is a no-op
// reporting false.
func (lm *LibraryManager) Return(who *Identity, issueID int64) (bool, error) {
	ok, err := lm.db.ReturnBook(issueID, time.Now())
	if err != nil {
		return false, err
	}
	if ok {
		lm.logger.Info("book returned", actor(who), zap.Int64("issue_id", issueID))
	}
	return ok, nil
}

func (lm *LibraryManager) GetIssue(issueID int64) (*Issue, error) { return lm.db.GetIssue(issueID) }
func (lm *LibraryManager) GetAllIssues() ([]*Issue, error)        { return lm.db.GetAllIssues() }

// ------------------ Dashboard ------------------

// Dashboard recomputes the analytics snapshot; the presentation layer
// calls this after every mutation.
func (lm *LibraryManager) Dashboard() (*Analytics, error) { return lm.db.GetAnalytics() }

// Reconcile audits ledger/catalog consistency and returns a list of
// violations, empty when clean.
func (lm *LibraryManager) Reconcile() ([]string, error) {
	problems, err := lm.db.CheckConsistency()
	if err != nil {
		return nil, err
	}
	if len(problems) > 0 {
		lm.logger.Warn("consistency check failed", zap.Strings("problems", problems))
	}
	return problems, nil
}

// ------------------ Export ------------------

// ExportBooks writes the catalog snapshot to dir and returns the file
// path for operator display.
func (lm *LibraryManager) ExportBooks(who *Identity, dir string) (string, error) {
	books, err := lm.db.GetAllBooks()
	if err != nil {
		return "", err
	}
	path, err := WriteExport(dir, "books", FormatBooksCSV(books), time.Now())
	if err != nil {
		return "", err
	}
	lm.logger.Info("books exported", actor(who), zap.String("path", path), zap.Int("rows", len(books)))
	return path, nil
}

// ExportIssues writes the ledger snapshot to dir and returns the file
// path.
func (lm *LibraryManager) ExportIssues(who *Identity, dir string) (string, error) {
	issues, err := lm.db.GetAllIssues()
	if err != nil {
		return "", err
	}
	path, err := WriteExport(dir, "issues", FormatIssuesCSV(issues), time.Now())
	if err != nil {
		return "", err
	}
	lm.logger.Info("issues exported", actor(who), zap.String("path", path), zap.Int("rows", len(issues)))
	return path, nil
}
