package library

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnalyticsCounts(t *testing.T) {
	db := tempDB(t)

	a, err := db.GetAnalytics()
	require.NoError(t, err)
	assert.Zero(t, a.TotalBooks)
	assert.Zero(t, a.TotalIssues)
	assert.Zero(t, a.ActiveIssues)

	bookID, _ := db.AddBook("Dune", "Frank Herbert", "1965", "", 2)
	first, err := db.IssueBook(bookID, "Alice", time.Now())
	require.NoError(t, err)
	_, err = db.IssueBook(bookID, "Bob", time.Now())
	require.NoError(t, err)
	_, err = db.ReturnBook(first, time.Now())
	require.NoError(t, err)

	a, err = db.GetAnalytics()
	require.NoError(t, err)
	assert.Equal(t, 1, a.TotalBooks)
	assert.Equal(t, 2, a.TotalIssues)
	assert.Equal(t, 1, a.ActiveIssues)
}

// Ranking is deterministic: equal counts break ties by book id
// ascending, and never-issued books still appear with count zero.
func TestPopularBooksDeterministicOrder(t *testing.T) {
	db := tempDB(t)

	idA, _ := db.AddBook("Alpha", "A", "", "", 5)
	idB, _ := db.AddBook("Beta", "B", "", "", 5)
	idC, _ := db.AddBook("Gamma", "C", "", "", 5)

	for i := 0; i < 2; i++ {
		_, err := db.IssueBook(idA, "Reader", time.Now())
		require.NoError(t, err)
		_, err = db.IssueBook(idB, "Reader", time.Now())
		require.NoError(t, err)
	}

	ranked, err := db.PopularBooks(5)
	require.NoError(t, err)
	require.Len(t, ranked, 3)

	assert.Equal(t, idA, ranked[0].BookID)
	assert.Equal(t, 2, ranked[0].TimesBorrowed)
	assert.Equal(t, idB, ranked[1].BookID)
	assert.Equal(t, 2, ranked[1].TimesBorrowed)
	assert.Equal(t, idC, ranked[2].BookID)
	assert.Equal(t, 0, ranked[2].TimesBorrowed, "zero-issue book appears with count 0")
}

func TestPopularBooksLimit(t *testing.T) {
	db := tempDB(t)
	for i := 0; i < 8; i++ {
		_, err := db.AddBook("Book", "Author", "", "", 1)
		require.NoError(t, err)
	}

	ranked, err := db.PopularBooks(3)
	require.NoError(t, err)
	assert.Len(t, ranked, 3)

	// Non-positive limit falls back to the dashboard default.
	ranked, err = db.PopularBooks(0)
	require.NoError(t, err)
	assert.Len(t, ranked, DefaultTopN)
}

func TestRecentIssuesStatusAndOrder(t *testing.T) {
	db := tempDB(t)
	bookID, _ := db.AddBook("Dune", "Frank Herbert", "1965", "", 3)

	base := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	older, err := db.InsertIssue(bookID, "Dune", "Alice", base)
	require.NoError(t, err)
	newer, err := db.InsertIssue(bookID, "Dune", "Bob", base.Add(2*time.Hour))
	require.NoError(t, err)

	_, err = db.MarkReturned(older, base.Add(time.Hour))
	require.NoError(t, err)

	recent, err := db.RecentIssues(5)
	require.NoError(t, err)
	require.Len(t, recent, 2)

	assert.Equal(t, newer, recent[0].IssueID, "newest first")
	assert.Equal(t, StatusOutstanding, recent[0].Status)
	assert.Equal(t, older, recent[1].IssueID)
	assert.Equal(t, StatusReturned, recent[1].Status)
}

func TestRecentIssuesLimit(t *testing.T) {
	db := tempDB(t)
	bookID, _ := db.AddBook("Book", "Author", "", "", 1)

	base := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 7; i++ {
		_, err := db.InsertIssue(bookID, "Book", "Reader", base.Add(time.Duration(i)*time.Minute))
		require.NoError(t, err)
	}

	recent, err := db.RecentIssues(5)
	require.NoError(t, err)
	assert.Len(t, recent, 5)
}
