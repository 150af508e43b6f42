package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"

	"library-tracker/library"
)

// The CLI is presentation glue: it authenticates, forwards calls into
// the library core, and renders whatever comes back. Every failure is
// shown to the operator; nothing is swallowed.

var (
	logger   *zap.Logger
	manager  *library.LibraryManager
	cfg      *library.Config
	username string
)

func main() {
	var err error
	logger, err = zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := godotenv.Load(); err != nil {
		logger.Debug("no .env file found, using system environment")
	}

	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "library-tracker",
		Short:         "Track a book inventory, loans, and returns",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg = library.LoadConfigFromEnv()
			var err error
			manager, err = library.NewLibraryManager(cfg, logger)
			return err
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if manager != nil {
				manager.Close()
			}
		},
	}
	root.PersistentFlags().StringVarP(&username, "user", "u", "", "username to log in as")

	root.AddCommand(
		newBooksCmd(),
		newIssueCmd(),
		newReturnCmd(),
		newIssuesCmd(),
		newStatsCmd(),
		newExportCmd(),
		newRegisterCmd(),
		newReconcileCmd(),
	)
	return root
}

// readPassword reads a password with terminal masking.
func readPassword(prompt string) (string, error) {
	fmt.Print(prompt)
	raw, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return strings.TrimSpace(string(raw)), nil
}

// login gates every command behind credential authentication and
// returns the session identity that is passed into each mutation.
func login() (*library.Identity, error) {
	user := username
	if user == "" {
		fmt.Print("Username: ")
		sc := bufio.NewScanner(os.Stdin)
		if !sc.Scan() {
			return nil, errors.New("no username given")
		}
		user = strings.TrimSpace(sc.Text())
	}
	password, err := readPassword("Password: ")
	if err != nil {
		return nil, err
	}
	who, err := manager.Login(user, password)
	if err != nil {
		return nil, err
	}
	fmt.Printf("Welcome, %s (%s)\n", who.Name, who.Role)
	return who, nil
}

func newBooksCmd() *cobra.Command {
	books := &cobra.Command{
		Use:   "books",
		Short: "Catalog operations",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List the catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			all, err := manager.GetAllBooks()
			if err != nil {
				return err
			}
			printBooks(all)
			return nil
		},
	}

	var title, author, year, isbn string
	var copies int
	add := &cobra.Command{
		Use:   "add",
		Short: "Add a book to the catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			who, err := login()
			if err != nil {
				return err
			}
			id, err := manager.AddBook(who, title, author, year, isbn, copies)
			if err != nil {
				return err
			}
			fmt.Printf("Book %q added with ID %d.\n", title, id)
			return nil
		},
	}
	add.Flags().StringVar(&title, "title", "", "book title (required)")
	add.Flags().StringVar(&author, "author", "", "book author")
	add.Flags().StringVar(&year, "year", "", "publication year")
	add.Flags().StringVar(&isbn, "isbn", "", "ISBN")
	add.Flags().IntVar(&copies, "copies", 1, "number of copies")

	search := &cobra.Command{
		Use:   "search <term>",
		Short: "Search title, author, and ISBN",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			found, err := manager.SearchBooks(args[0])
			if err != nil {
				return err
			}
			printBooks(found)
			return nil
		},
	}

	books.AddCommand(list, add, search)
	return books
}

func newIssueCmd() *cobra.Command {
	var borrower string
	cmd := &cobra.Command{
		Use:   "issue <book-id>",
		Short: "Issue a book to a borrower",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			bookID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("book id must be a number: %q", args[0])
			}
			who, err := login()
			if err != nil {
				return err
			}
			issueID, err := manager.Issue(who, bookID, borrower)
			if err != nil {
				return err
			}
			fmt.Printf("Issued as loan %d to %s.\n", issueID, borrower)
			return nil
		},
	}
	cmd.Flags().StringVar(&borrower, "borrower", "", "borrower name (required)")
	return cmd
}

func newReturnCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "return <issue-id>",
		Short: "Return an issued book",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			issueID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("issue id must be a number: %q", args[0])
			}
			who, err := login()
			if err != nil {
				return err
			}
			ok, err := manager.Return(who, issueID)
			if err != nil {
				return err
			}
			if !ok {
				fmt.Println("Nothing to do: unknown loan or already returned.")
				return nil
			}
			fmt.Println("Book returned.")
			return nil
		},
	}
}

func newIssuesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "issues",
		Short: "List the loan ledger",
		RunE: func(cmd *cobra.Command, args []string) error {
			all, err := manager.GetAllIssues()
			if err != nil {
				return err
			}
			fmt.Printf("%-8s %-8s %-30s %-20s %-20s %s\n", "IssueID", "BookID", "Title", "Borrower", "IssueDate", "ReturnDate")
			for _, iss := range all {
				returned := "Not Returned"
				if iss.ReturnedAt != nil {
					returned = iss.ReturnedAt.Format("2006-01-02 15:04:05")
				}
				fmt.Printf("%-8d %-8d %-30s %-20s %-20s %s\n",
					iss.ID, iss.BookID, iss.Title, iss.Borrower,
					iss.IssuedAt.Format("2006-01-02 15:04:05"), returned)
			}
			return nil
		},
	}
}

func newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show the analytics dashboard",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := manager.Dashboard()
			if err != nil {
				return err
			}
			fmt.Printf("Total books:   %d\n", a.TotalBooks)
			fmt.Printf("Total issues:  %d\n", a.TotalIssues)
			fmt.Printf("Active issues: %d\n", a.ActiveIssues)
			fmt.Println("\nMost borrowed:")
			for _, p := range a.PopularBooks {
				fmt.Printf("  %-30s %-20s %d\n", p.Title, p.Author, p.TimesBorrowed)
			}
			fmt.Println("\nRecent activity:")
			for _, r := range a.RecentIssues {
				fmt.Printf("  %-30s %-20s %-20s %s\n", r.Title, r.Borrower, r.IssuedAt.Format("2006-01-02 15:04:05"), r.Status)
			}
			return nil
		},
	}
}

func newExportCmd() *cobra.Command {
	export := &cobra.Command{
		Use:   "export",
		Short: "Export snapshots to CSV",
	}

	books := &cobra.Command{
		Use:   "books",
		Short: "Export the catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			who, err := login()
			if err != nil {
				return err
			}
			path, err := manager.ExportBooks(who, cfg.ExportDir)
			if err != nil {
				return err
			}
			fmt.Printf("Books exported to %s\n", path)
			return nil
		},
	}

	issues := &cobra.Command{
		Use:   "issues",
		Short: "Export the loan ledger",
		RunE: func(cmd *cobra.Command, args []string) error {
			who, err := login()
			if err != nil {
				return err
			}
			path, err := manager.ExportIssues(who, cfg.ExportDir)
			if err != nil {
				return err
			}
			fmt.Printf("Issues exported to %s\n", path)
			return nil
		},
	}

	export.AddCommand(books, issues)
	return export
}

func newRegisterCmd() *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "register <username>",
		Short: "Register a new login",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			password, err := readPassword("Choose a password: ")
			if err != nil {
				return err
			}
			confirm, err := readPassword("Confirm password: ")
			if err != nil {
				return err
			}
			if password != confirm {
				return errors.New("passwords do not match")
			}
			ok, err := manager.Register(args[0], password, name)
			if err != nil {
				return err
			}
			if !ok {
				fmt.Printf("Username %q is already taken.\n", args[0])
				return nil
			}
			fmt.Printf("User %q registered.\n", args[0])
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "display name")
	return cmd
}

func newReconcileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Audit ledger/catalog consistency",
		RunE: func(cmd *cobra.Command, args []string) error {
			problems, err := manager.Reconcile()
			if err != nil {
				return err
			}
			if len(problems) == 0 {
				fmt.Println("Store is consistent.")
				return nil
			}
			for _, p := range problems {
				fmt.Println(p)
			}
			return fmt.Errorf("%d consistency problem(s) found", len(problems))
		},
	}
}

func printBooks(books []*library.Book) {
	fmt.Printf("%-5s %-30s %-25s %-6s %-15s %s\n", "ID", "Title", "Author", "Year", "ISBN", "Copies")
	for _, b := range books {
		fmt.Printf("%-5d %-30s %-25s %-6s %-15s %d\n", b.ID, b.Title, b.Author, b.Year, b.ISBN, b.Copies)
	}
}
