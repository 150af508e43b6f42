package main

import (
	"fmt"
	"os"

	"go.uber.org/zap"

	"library-tracker/library"
)

// seed_books resets the database and loads a small sample catalog so a
// fresh checkout has something to browse.

type seedBook struct {
	title  string
	author string
	year   string
	isbn   string
	copies int
}

var catalog = []seedBook{
	{"1984", "George Orwell", "1949", "978-0451524935", 3},
	{"Animal Farm", "George Orwell", "1945", "978-0452284241", 2},
	{"Dune", "Frank Herbert", "1965", "978-0441172719", 1},
	{"The Fellowship of the Ring", "J.R.R. Tolkien", "1954", "978-0547928210", 2},
	{"The Two Towers", "J.R.R. Tolkien", "1954", "978-0547928203", 2},
	{"The Return of the King", "J.R.R. Tolkien", "1955", "978-0547928197", 2},
	{"The Art of War", "Sun Tzu", "-500", "978-1599869773", 4},
	{"Romeo and Juliet", "William Shakespeare", "1597", "978-0743477116", 1},
	{"The Three Musketeers", "Alexandre Dumas", "1844", "978-0140367470", 1},
	{"The Diary of a Young Girl", "Anne Frank", "1947", "978-0553577129", 2},
}

func main() {
	cfg := library.LoadConfigFromEnv()

	// Clean up any existing database files so ids start from 1.
	fmt.Println("Cleaning up existing database files...")
	dbFiles := []string{cfg.DBPath, cfg.DBPath + "-shm", cfg.DBPath + "-wal"}
	for _, file := range dbFiles {
		if err := os.Remove(file); err != nil && !os.IsNotExist(err) {
			fmt.Printf("Warning: could not remove %s: %v\n", file, err)
		}
	}

	logger, err := zap.NewDevelopment()
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	manager, err := library.NewLibraryManager(cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating database: %v\n", err)
		os.Exit(1)
	}
	defer manager.Close()

	fmt.Printf("Seeding %d books into %s...\n", len(catalog), cfg.DBPath)
	added := 0
	for _, b := range catalog {
		id, err := manager.AddBook(nil, b.title, b.author, b.year, b.isbn, b.copies)
		if err != nil {
			fmt.Printf("Failed to add %q: %v\n", b.title, err)
			continue
		}
		fmt.Printf("  %3d  %s by %s (%d copies)\n", id, b.title, b.author, b.copies)
		added++
	}

	fmt.Printf("Done: %d of %d books added.\n", added, len(catalog))
}
