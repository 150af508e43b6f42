package library

import "time"

// DefaultTopN bounds the ranking and recent-activity lists on the
// dashboard.
const DefaultTopN = 5

// Loan status labels derived from the presence of a return date.
const (
	StatusReturned    = "returned"
	StatusOutstanding = "outstanding"
)

// PopularBook is one row of the most-borrowed ranking.
type PopularBook struct {
	BookID        int64
	Title         string
	Author        string
	TimesBorrowed int
}

// RecentIssue is one row of the latest-activity list, annotated with a
// derived loan status.
type RecentIssue struct {
	IssueID  int64
	BookID   int64
	Title    string
	Borrower string
	IssuedAt time.Time
	Status   string
}

// Analytics is a point-in-time dashboard snapshot computed from the
// catalog and the ledger. Nothing here is persisted.
type Analytics struct {
	TotalBooks   int
	TotalIssues  int
	ActiveIssues int
	PopularBooks []PopularBook
	RecentIssues []RecentIssue
}

func (d *Database) TotalBooks() (int, error) {
	return d.countRow(`SELECT COUNT(*) FROM books`)
}

func (d *Database) TotalIssues() (int, error) {
	return d.countRow(`SELECT COUNT(*) FROM issued_books`)
}

func (d *Database) ActiveIssues() (int, error) {
	return d.countRow(`SELECT COUNT(*) FROM issued_books WHERE return_date IS NULL`)
}

func (d *Database) countRow(query string) (int, error) {
	var n int
	if err := d.db.QueryRow(query).Scan(&n); err != nil {
		return 0, storeErr("count", err)
	}
	return n, nil
}

// PopularBooks ranks books by how often they have been issued,
// descending, with book id ascending as the tie-break so the order is
// deterministic. Books never issued appear with a zero count.
func (d *Database) PopularBooks(limit int) ([]PopularBook, error) {
	if limit <= 0 {
		limit = DefaultTopN
	}
	rows, err := d.db.Query(`
        SELECT b.id, b.title, b.author, COUNT(ib.issue_id) AS times_borrowed
        FROM books b
        LEFT JOIN issued_books ib ON b.id = ib.book_id
        GROUP BY b.id, b.title, b.author
        ORDER BY times_borrowed DESC, b.id ASC
        LIMIT ?`, limit)
	if err != nil {
		return nil, storeErr("popular books", err)
	}
	defer rows.Close()

	var ranked []PopularBook
	for rows.Next() {
		var p PopularBook
		if err := rows.Scan(&p.BookID, &p.Title, &p.Author, &p.TimesBorrowed); err != nil {
			return nil, storeErr("scan popular book", err)
		}
		ranked = append(ranked, p)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("iterate popular books", err)
	}
	return ranked, nil
}

// RecentIssues lists the latest loans, newest first, each labeled
// returned or outstanding.
func (d *Database) RecentIssues(limit int) ([]RecentIssue, error) {
	if limit <= 0 {
		limit = DefaultTopN
	}
	rows, err := d.db.Query(`
        SELECT issue_id, book_id, title, borrower, issue_date, return_date
        FROM issued_books
        ORDER BY issue_date DESC, issue_id DESC
        LIMIT ?`, limit)
	if err != nil {
		return nil, storeErr("recent issues", err)
	}
	defer rows.Close()

	var recent []RecentIssue
	for rows.Next() {
		iss, err := scanIssue(rows.Scan)
		if err != nil {
			return nil, storeErr("scan recent issue", err)
		}
		r := RecentIssue{
			IssueID:  iss.ID,
			BookID:   iss.BookID,
			Title:    iss.Title,
			Borrower: iss.Borrower,
			IssuedAt: iss.IssuedAt,
			Status:   StatusOutstanding,
		}
		if !iss.Active() {
			r.Status = StatusReturned
		}
		recent = append(recent, r)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("iterate recent issues", err)
	}
	return recent, nil
}

// GetAnalytics assembles the full dashboard snapshot.
func (d *Database) GetAnalytics() (*Analytics, error) {
	a := &Analytics{}
	var err error
	if a.TotalBooks, err = d.TotalBooks(); err != nil {
		return nil, err
	}
	if a.TotalIssues, err = d.TotalIssues(); err != nil {
		return nil, err
	}
	if a.ActiveIssues, err = d.ActiveIssues(); err != nil {
		return nil, err
	}
	if a.PopularBooks, err = d.PopularBooks(DefaultTopN); err != nil {
		return nil, err
	}
	if a.RecentIssues, err = d.RecentIssues(DefaultTopN); err != nil {
		return nil, err
	}
	return a, nil
}
