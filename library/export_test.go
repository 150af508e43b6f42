package library

import (
	"os"
	"strings"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatBooksCSVEmpty(t *testing.T) {
	got := FormatBooksCSV(nil)
	assert.Equal(t, "ID,Title,Author,Year,ISBN,Copies\n", got,
		"empty catalog exports as exactly the header line")
}

func TestFormatBooksCSVGolden(t *testing.T) {
	books := []*Book{
		{ID: 1, Title: "Dune", Author: "Frank Herbert", Year: "1965", ISBN: "978-0441172719", Copies: 2},
		{ID: 2, Title: "Animal Farm", Author: "George Orwell", Year: "1945", ISBN: "978-0452284241", Copies: 4},
	}
	g := goldie.New(t)
	g.Assert(t, "books_csv", []byte(FormatBooksCSV(books)))
}

func TestFormatIssuesCSVGolden(t *testing.T) {
	issued := time.Date(2026, 4, 2, 10, 30, 0, 0, time.UTC)
	returned := time.Date(2026, 4, 9, 16, 45, 0, 0, time.UTC)
	issues := []*Issue{
		{ID: 1, BookID: 1, Title: "Dune", Borrower: "Alice", IssuedAt: issued, ReturnedAt: &returned},
		{ID: 2, BookID: 2, Title: "Animal Farm", Borrower: "Bob", IssuedAt: issued.AddDate(0, 0, 1).Add(30 * time.Minute)},
	}
	g := goldie.New(t)
	g.Assert(t, "issues_csv", []byte(FormatIssuesCSV(issues)))
}

// Fields are not quoted, so an embedded comma shifts every column
// after it. This documents the current format rather than blessing it.
func TestFormatBooksCSVCommaCorruption(t *testing.T) {
	books := []*Book{
		{ID: 1, Title: "Dune, Deluxe Edition", Author: "Frank Herbert", Year: "1965", ISBN: "x", Copies: 1},
	}
	lines := strings.Split(strings.TrimRight(FormatBooksCSV(books), "\n"), "\n")
	require.Len(t, lines, 2)
	assert.Len(t, strings.Split(lines[1], ","), 7,
		"embedded comma produces an extra column")
}

func TestWriteExportNaming(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2026, 8, 30, 14, 5, 9, 0, time.UTC)

	path, err := WriteExport(dir, "books", "ID\n", now)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(path, "books_export_20260830_140509.csv"), path)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "ID\n", string(raw))
}
