package library

import (
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func tempManager(t *testing.T) *LibraryManager {
	t.Helper()
	dir := t.TempDir()
	cfg := &Config{
		DBPath:    filepath.Join(dir, "library.db"),
		UsersPath: filepath.Join(dir, "users.json"),
		ExportDir: dir,
	}
	lm, err := NewLibraryManager(cfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { lm.Close() })
	return lm
}

func adminIdentity(t *testing.T, lm *LibraryManager) *Identity {
	t.Helper()
	who, err := lm.Login("admin", DefaultAdminPassword)
	require.NoError(t, err)
	return who
}

func TestManagerBoundaryValidation(t *testing.T) {
	lm := tempManager(t)
	who := adminIdentity(t, lm)

	_, err := lm.AddBook(who, "   ", "Author", "2000", "", 1)
	assert.ErrorIs(t, err, ErrValidation)

	_, err = lm.AddBook(who, "Title", "Author", "2000", "", 0)
	assert.ErrorIs(t, err, ErrValidation)

	id, err := lm.AddBook(who, "Title", "Author", "2000", "", 1)
	require.NoError(t, err)

	_, err = lm.Issue(who, id, "  ")
	assert.ErrorIs(t, err, ErrValidation)

	err = lm.SetCopies(who, id, -1)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestManagerIssueReturnCycle(t *testing.T) {
	lm := tempManager(t)
	who := adminIdentity(t, lm)

	bookID, err := lm.AddBook(who, "Dune", "Frank Herbert", "1965", "978-0441172719", 1)
	require.NoError(t, err)

	issueID, err := lm.Issue(who, bookID, "Alice")
	require.NoError(t, err)

	b, err := lm.GetBook(bookID)
	require.NoError(t, err)
	assert.Equal(t, 0, b.Copies)

	// Second issue on the last copy is rejected and leaves the
	// ledger alone.
	_, err = lm.Issue(who, bookID, "Bob")
	assert.ErrorIs(t, err, ErrNoCopies)
	issues, err := lm.GetAllIssues()
	require.NoError(t, err)
	assert.Len(t, issues, 1)

	ok, err := lm.Return(who, issueID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = lm.Return(who, issueID)
	require.NoError(t, err)
	assert.False(t, ok, "second return must be a no-op")

	b, err = lm.GetBook(bookID)
	require.NoError(t, err)
	assert.Equal(t, 1, b.Copies)
}

// TestCopiesInvariantUnderRandomTraffic exercises the paired
// orchestration with a random issue/return sequence and verifies that
// for every book, copies = original - active issues afterwards.
func TestCopiesInvariantUnderRandomTraffic(t *testing.T) {
	lm := tempManager(t)
	who := adminIdentity(t, lm)
	rng := rand.New(rand.NewSource(1))

	original := map[int64]int{}
	for i, copies := range []int{1, 2, 3, 5} {
		id, err := lm.AddBook(who, "Book "+strings.Repeat("x", i+1), "Author", "", "", copies)
		require.NoError(t, err)
		original[id] = copies
	}

	var open []int64
	bookIDs := make([]int64, 0, len(original))
	for id := range original {
		bookIDs = append(bookIDs, id)
	}

	for i := 0; i < 200; i++ {
		if rng.Intn(2) == 0 || len(open) == 0 {
			bookID := bookIDs[rng.Intn(len(bookIDs))]
			issueID, err := lm.Issue(who, bookID, "Borrower")
			if err != nil {
				assert.ErrorIs(t, err, ErrNoCopies)
				continue
			}
			open = append(open, issueID)
		} else {
			idx := rng.Intn(len(open))
			ok, err := lm.Return(who, open[idx])
			require.NoError(t, err)
			assert.True(t, ok)
			open = append(open[:idx], open[idx+1:]...)
		}
	}

	active := map[int64]int{}
	issues, err := lm.GetAllIssues()
	require.NoError(t, err)
	for _, iss := range issues {
		if iss.Active() {
			active[iss.BookID]++
		}
	}

	for id, orig := range original {
		b, err := lm.GetBook(id)
		require.NoError(t, err)
		assert.Equal(t, orig-active[id], b.Copies, "book %d", id)
	}

	problems, err := lm.Reconcile()
	require.NoError(t, err)
	assert.Empty(t, problems)
}

func TestManagerExports(t *testing.T) {
	lm := tempManager(t)
	who := adminIdentity(t, lm)

	bookID, err := lm.AddBook(who, "Dune", "Frank Herbert", "1965", "978-0441172719", 2)
	require.NoError(t, err)
	_, err = lm.Issue(who, bookID, "Alice")
	require.NoError(t, err)

	dir := t.TempDir()
	booksPath, err := lm.ExportBooks(who, dir)
	require.NoError(t, err)
	assert.Contains(t, filepath.Base(booksPath), "books_export_")
	raw, err := os.ReadFile(booksPath)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimRight(string(raw), "\n"), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "ID,Title,Author,Year,ISBN,Copies", lines[0])
	assert.Contains(t, lines[1], "Dune,Frank Herbert")

	issuesPath, err := lm.ExportIssues(who, dir)
	require.NoError(t, err)
	assert.Contains(t, filepath.Base(issuesPath), "issues_export_")
	raw, err = os.ReadFile(issuesPath)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "Not Returned")
}

func TestManagerRegisterAndLogin(t *testing.T) {
	lm := tempManager(t)

	ok, err := lm.Register("maya", "hunter2", "Maya L")
	require.NoError(t, err)
	assert.True(t, ok)

	// Duplicate username is a polite no-op.
	ok, err = lm.Register("maya", "other", "Someone Else")
	require.NoError(t, err)
	assert.False(t, ok)

	who, err := lm.Login("maya", "hunter2")
	require.NoError(t, err)
	assert.Equal(t, "maya", who.Username)
	assert.Equal(t, "user", who.Role)
	assert.Equal(t, "Maya L", who.Name)

	_, err = lm.Login("maya", "wrong")
	assert.ErrorIs(t, err, ErrAuth)
}
