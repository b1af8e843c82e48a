package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"library-catalog/config"
	"library-catalog/library"
)

func main() {
	if err := newImportCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newImportCmd() *cobra.Command {
	var (
		configFile string
		csvPath    string
		reset      bool
	)
	cmd := &cobra.Command{
		Use:           "import_books --file books.csv",
		Short:         "Bulk-load books from a CSV file (title,author,publication_date,keywords)",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configFile, cmd.Flags())
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			return runImport(cmd.OutOrStdout(), cfg, csvPath, reset)
		},
	}
	cmd.Flags().StringVar(&configFile, "config", "", "config file (default: ./library.yaml if present)")
	cmd.Flags().String("db", "", "path of the SQLite database file (default: library.db)")
	cmd.Flags().String("driver", "", "SQLite driver: sqlite3 or sqlite")
	cmd.Flags().StringVarP(&csvPath, "file", "f", "books.csv", "CSV file to import")
	cmd.Flags().BoolVar(&reset, "reset", false, "remove the existing database first")
	return cmd
}

func runImport(out io.Writer, cfg *config.Config, csvPath string, reset bool) error {
	if reset {
		fmt.Fprintln(out, "Cleaning up existing database files...")
		for _, file := range []string{cfg.DBPath, cfg.DBPath + "-shm", cfg.DBPath + "-wal"} {
			if err := os.Remove(file); err != nil && !os.IsNotExist(err) {
				fmt.Fprintf(out, "Warning: Could not remove %s: %v\n", file, err)
			}
		}
		fmt.Fprintln(out, "Database cleanup complete.")
	}

	db, err := library.NewDatabase(cfg.Driver, cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()
	manager := library.NewLibraryManager(db, library.Options{
		Logger:   cfg.NewLogger(os.Stderr),
		HashCost: cfg.BcryptCost,
	})

	f, err := os.Open(csvPath)
	if err != nil {
		return fmt.Errorf("open csv: %w", err)
	}
	defer f.Close()

	fmt.Fprintf(out, "Importing books from %s...\n", csvPath)
	results, err := manager.ImportBooksCSV(f)

	successCount, errorCount := 0, 0
	for _, r := range results {
		if r.Err != nil {
			fmt.Fprintf(out, "Line %d: %s... ERROR - %v\n", r.Line, r.Title, r.Err)
			errorCount++
			continue
		}
		fmt.Fprintf(out, "Line %d: %s... SUCCESS (ID: %d)\n", r.Line, r.Title, r.BookID)
		successCount++
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "\nImport complete!\n")
	fmt.Fprintf(out, "Successfully imported: %d books\n", successCount)
	fmt.Fprintf(out, "Errors: %d\n", errorCount)

	if successCount == 0 {
		return nil
	}
	books, err := manager.GetAllBooks()
	if err != nil {
		return fmt.Errorf("list books: %w", err)
	}
	fmt.Fprintln(out, "\nCatalog:")
	fmt.Fprintf(out, "%-5s %-40s %-25s %-12s\n", "ID", "Title", "Author", "Published")
	fmt.Fprintln(out, strings.Repeat("-", 85))
	for _, b := range books {
		fmt.Fprintf(out, "%-5d %-40s %-25s %-12s\n", b.ID, truncateString(b.Title, 40), truncateString(b.Author, 25), b.PublicationDate)
	}
	return nil
}

func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
