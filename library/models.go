package library

import "time"

// Book is a catalog entry. Copies tracks how many physical copies are
// currently on the shelf; it is decremented on issue and incremented on
// return.
type Book struct {
	ID     int64  `json:"id"`
	Title  string `json:"title"`
	Author string `json:"author"`
	Year   string `json:"year"`
	ISBN   string `json:"isbn"`
	Copies int    `json:"copies"`
}

// Issue is one loan record. Title is a snapshot of the book title at
// issue time so ledger rows stay readable even if the catalog row is
// edited later. ReturnedAt is nil while the loan is outstanding.
type Issue struct {
	ID         int64      `json:"issue_id"`
	BookID     int64      `json:"book_id"`
	Title      string     `json:"title"`
	Borrower   string     `json:"borrower"`
	IssuedAt   time.Time  `json:"issue_date"`
	ReturnedAt *time.Time `json:"return_date,omitempty"`
}

// Active reports whether the loan is still outstanding.
func (i *Issue) Active() bool { return i.ReturnedAt == nil }

// Credential is one stored login. PasswordHash is a deterministic
// one-way digest; the plaintext is never persisted.
type Credential struct {
	PasswordHash string    `json:"password"`
	Role         string    `json:"role"`
	Name         string    `json:"name"`
	CreatedAt    time.Time `json:"created_at"`
}

// Identity is the in-memory session value returned by a successful
// login. Callers hold it for the session's duration and pass it into
// mutating operations; there is no ambient current-user state.
type Identity struct {
	Username string `json:"username"`
	Role     string `json:"role"`
	Name     string `json:"name"`
}
