package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"library-desk/internal/config"
	"library-desk/internal/logging"
	"library-desk/library"
)

// app carries what every command needs once the root pre-run has opened the
// store.
type app struct {
	cfgPath string
	dbPath  string
	asJSON  bool

	cfg    *config.Config
	logger *slog.Logger
	store  *library.Store
	out    io.Writer
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Stdout, os.Args[1:]); err != nil {
		printError(os.Stderr, err)
		os.Exit(1)
	}
}

// run executes one command line and always releases the store, including
// when the command fails.
func run(ctx context.Context, out io.Writer, args []string) error {
	a := &app{out: out}
	root := a.rootCmd()
	root.SetArgs(args)

	err := root.ExecuteContext(ctx)
	return errors.Join(err, a.close())
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "library",
		Short:         "Circulation desk for a small library",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.open(cmd.Context())
		},
	}
	root.SetOut(a.out)

	root.PersistentFlags().StringVar(&a.cfgPath, "config", "", "path to the YAML config (default $CONFIG_PATH or ./library.yaml)")
	root.PersistentFlags().StringVar(&a.dbPath, "db", "", "SQLite database file, overrides storage.path")
	root.PersistentFlags().BoolVar(&a.asJSON, "json", false, "print results as JSON")

	root.AddCommand(
		a.booksCmd(),
		a.membersCmd(),
		a.loansCmd(),
		a.dashboardCmd(),
		a.reportCmd(),
		a.seedCmd(),
		a.checkCmd(),
	)
	return root
}

func (a *app) open(ctx context.Context) error {
	cfg, err := config.Load(a.cfgPath)
	if err != nil {
		return err
	}
	if a.dbPath != "" {
		cfg.Storage.Driver = config.DriverSQLite
		cfg.Storage.Path = a.dbPath
	}
	a.cfg = cfg
	a.logger = logging.New(cfg.Log)

	repo, err := openRepository(ctx, cfg.Storage)
	if err != nil {
		return err
	}
	a.store = library.NewStore(repo, library.WithLogger(a.logger))

	if cfg.Library.SeedOnEmpty {
		if _, err := a.store.Seed(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (a *app) close() error {
	if a.store == nil {
		return nil
	}
	err := a.store.Close()
	a.store = nil
	return err
}

func openRepository(ctx context.Context, cfg config.StorageConfig) (library.Repository, error) {
	switch cfg.Driver {
	case config.DriverMemory:
		return library.NewMemoryRepository(), nil
	case config.DriverSQLite:
		db, err := library.NewDatabase(ctx, cfg.Path, cfg.BusyTimeout)
		if err != nil {
			return nil, fmt.Errorf("open database %s: %w", cfg.Path, err)
		}
		return db, nil
	}
	return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
}

// printError reports field errors one per line.
func printError(w io.Writer, err error) {
	var verr *library.ValidationError
	if errors.As(err, &verr) {
		fmt.Fprintln(w, "Error: invalid input")
		for _, fe := range verr.Errors {
			fmt.Fprintf(w, "  %s: %s\n", fe.Field, fe.Message)
		}
		return
	}
	fmt.Fprintf(w, "Error: %v\n", err)
}

func parseID(kind, s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s ID: %s", kind, s)
	}
	return id, nil
}
