package library

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Timestamp layouts used in export rows and file names.
const (
	exportTimeLayout = "2006-01-02 15:04:05"
	exportNameLayout = "20060102_150405"
)

// notReturned is the placeholder rendered for loans still outstanding.
const notReturned = "Not Returned"

// FormatBooksCSV renders the catalog as delimited text: a header line
// followed by one row per book in the order given. Fields are joined
// with bare commas and never quoted, so a field containing a comma
// corrupts the row. Known limitation, kept for compatibility with the
// files operators already consume.
func FormatBooksCSV(books []*Book) string {
	var sb strings.Builder
	sb.WriteString("ID,Title,Author,Year,ISBN,Copies\n")
	for _, b := range books {
		fmt.Fprintf(&sb, "%d,%s,%s,%s,%s,%d\n", b.ID, b.Title, b.Author, b.Year, b.ISBN, b.Copies)
	}
	return sb.String()
}

// FormatIssuesCSV renders the ledger the same way. Open loans show
// "Not Returned" in the final column.
func FormatIssuesCSV(issues []*Issue) string {
	var sb strings.Builder
	sb.WriteString("IssueID,BookID,Title,Borrower,IssueDate,ReturnDate\n")
	for _, iss := range issues {
		returned := notReturned
		if iss.ReturnedAt != nil {
			returned = iss.ReturnedAt.Format(exportTimeLayout)
		}
		fmt.Fprintf(&sb, "%d,%d,%s,%s,%s,%s\n",
			iss.ID, iss.BookID, iss.Title, iss.Borrower,
			iss.IssuedAt.Format(exportTimeLayout), returned)
	}
	return sb.String()
}

// WriteExport writes data to <entity>_export_<timestamp>.csv under dir
// and returns the path. An empty dir means the working directory.
func WriteExport(dir, entity, data string, now time.Time) (string, error) {
	name := fmt.Sprintf("%s_export_%s.csv", entity, now.Format(exportNameLayout))
	path := name
	if dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("create export dir: %w: %v", ErrStorage, err)
		}
		path = filepath.Join(dir, name)
	}
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		return "", fmt.Errorf("write export: %w: %v", ErrStorage, err)
	}
	return path, nil
}
