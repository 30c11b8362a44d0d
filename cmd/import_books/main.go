package main

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"library-desk/internal/config"
	"library-desk/internal/logging"
	"library-desk/library"
)

// requiredColumns must appear in the CSV header; isbn, image_url and status
// are optional.
var requiredColumns = []string{"title", "author", "category", "year"}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		cfgPath string
		dbPath  string
		dryRun  bool
	)
	cmd := &cobra.Command{
		Use:           "import_books FILE.csv",
		Short:         "Bulk-add books to the catalog from a CSV file",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return err
			}
			if dbPath != "" {
				cfg.Storage.Driver = config.DriverSQLite
				cfg.Storage.Path = dbPath
			}
			logger := logging.New(cfg.Log)

			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			rows, err := readBooks(f)
			if err != nil {
				return fmt.Errorf("read %s: %w", args[0], err)
			}
			if dryRun {
				return report(cmd.Context(), cmd.OutOrStdout(), rows, nil)
			}

			if cfg.Storage.Driver != config.DriverSQLite {
				return fmt.Errorf("storage driver %q cannot persist an import; use %q or pass --db", cfg.Storage.Driver, config.DriverSQLite)
			}
			db, err := library.NewDatabase(cmd.Context(), cfg.Storage.Path, cfg.Storage.BusyTimeout)
			if err != nil {
				return fmt.Errorf("open database %s: %w", cfg.Storage.Path, err)
			}
			store := library.NewStore(db, library.WithLogger(logger))
			defer store.Close()

			return report(cmd.Context(), cmd.OutOrStdout(), rows, store)
		},
	}
	cmd.Flags().StringVar(&cfgPath, "config", "", "path to the YAML config")
	cmd.Flags().StringVar(&dbPath, "db", "", "SQLite database file, overrides storage.path")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "validate the file without writing")
	return cmd
}

// bookRow is one CSV record, already validated or carrying why it is not.
type bookRow struct {
	line int
	in   library.BookInput
	err  error
}

// readBooks parses the header and every record. Malformed records become rows
// with an error; only an unreadable file or header fails the whole import.
func readBooks(r io.Reader) ([]bookRow, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, h := range header {
		col[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, name := range requiredColumns {
		if _, ok := col[name]; !ok {
			return nil, fmt.Errorf("header: missing column %q", name)
		}
	}
	field := func(rec []string, name string) string {
		i, ok := col[name]
		if !ok || i >= len(rec) {
			return ""
		}
		return rec[i]
	}

	var rows []bookRow
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				rows = append(rows, bookRow{line: line, err: err})
				continue
			}
			return nil, err
		}

		row := bookRow{line: line}
		year, err := strconv.Atoi(strings.TrimSpace(field(rec, "year")))
		if err != nil {
			row.err = library.NewValidationError("year", "is not a number")
			rows = append(rows, row)
			continue
		}
		row.in = library.BookInput{
			Title:    field(rec, "title"),
			Author:   field(rec, "author"),
			Category: field(rec, "category"),
			ISBN:     field(rec, "isbn"),
			ImageURL: field(rec, "image_url"),
			Year:     year,
			Status:   library.BookStatus(field(rec, "status")),
		}
		row.err = row.in.Validate()
		rows = append(rows, row)
	}
	return rows, nil
}

// report creates each valid row through store, or only lists them when store
// is nil, and prints a summary.
func report(ctx context.Context, w io.Writer, rows []bookRow, store *library.Store) error {
	successCount := 0
	errorCount := 0

	for _, row := range rows {
		if row.err != nil {
			fmt.Fprintf(w, "line %d: ERROR - %v\n", row.line, row.err)
			errorCount++
			continue
		}
		title := strings.TrimSpace(row.in.Title)
		if store == nil {
			fmt.Fprintf(w, "line %d: OK - %s\n", row.line, title)
			successCount++
			continue
		}

		id, err := store.CreateBook(ctx, row.in)
		if err != nil {
			fmt.Fprintf(w, "line %d: ERROR - %v\n", row.line, err)
			errorCount++
			continue
		}
		fmt.Fprintf(w, "line %d: %s SUCCESS (ID: %d)\n", row.line, title, id)
		successCount++
	}

	if store == nil {
		fmt.Fprintf(w, "\nDry run complete, nothing written.\n")
		fmt.Fprintf(w, "Valid: %d books\n", successCount)
	} else {
		fmt.Fprintf(w, "\nImport complete!\n")
		fmt.Fprintf(w, "Successfully imported: %d books\n", successCount)
	}
	fmt.Fprintf(w, "Errors: %d\n", errorCount)
	return nil
}
