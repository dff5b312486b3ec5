package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/multiris/multiris/internal/storage"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		dialect string
		dsn     string
	)

	root := &cobra.Command{
		Use:           "migrate",
		Short:         "Manage the multiris database schema",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&dialect, "dialect", envOr("STORAGE_BACKEND", "postgres"), "Database dialect: postgres or sqlite")
	root.PersistentFlags().StringVar(&dsn, "dsn", "", "PostgreSQL DSN or SQLite path (defaults to POSTGRES_DSN or SQLITE_PATH)")

	withDB := func(run func(ctx context.Context, db *sql.DB, dialect string) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			db, gooseDialect, err := openDB(ctx, dialect, dsn)
			if err != nil {
				return err
			}
			defer db.Close()
			return run(ctx, db, gooseDialect)
		}
	}

	root.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			RunE: withDB(func(ctx context.Context, db *sql.DB, d string) error {
				if err := storage.RunMigrations(ctx, db, d); err != nil {
					return err
				}
				v, err := storage.SchemaVersion(ctx, db, d)
				if err != nil {
					return err
				}
				fmt.Printf("schema at version %d\n", v)
				return nil
			}),
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back the most recent migration",
			RunE: withDB(func(ctx context.Context, db *sql.DB, d string) error {
				return storage.RollbackMigration(ctx, db, d)
			}),
		},
		&cobra.Command{
			Use:   "status",
			Short: "Show the state of every migration",
			RunE: withDB(func(ctx context.Context, db *sql.DB, d string) error {
				return storage.MigrationStatus(ctx, db, d)
			}),
		},
	)
	return root
}

// openDB opens a database/sql handle and returns the goose dialect for it
func openDB(ctx context.Context, dialect, dsn string) (*sql.DB, string, error) {
	switch dialect {
	case "postgres":
		if dsn == "" {
			dsn = os.Getenv("POSTGRES_DSN")
		}
		if dsn == "" {
			return nil, "", fmt.Errorf("--dsn or POSTGRES_DSN is required")
		}
		db, err := sql.Open("pgx", dsn)
		if err != nil {
			return nil, "", fmt.Errorf("failed to open database: %w", err)
		}
		if err := db.PingContext(ctx); err != nil {
			db.Close()
			return nil, "", fmt.Errorf("failed to ping database: %w", err)
		}
		return db, storage.DialectPostgres, nil
	case "sqlite":
		if dsn == "" {
			dsn = os.Getenv("SQLITE_PATH")
		}
		if dsn == "" {
			return nil, "", fmt.Errorf("--dsn or SQLITE_PATH is required")
		}
		db, err := storage.OpenSQLite(ctx, dsn)
		if err != nil {
			return nil, "", err
		}
		return db, storage.DialectSQLite, nil
	default:
		return nil, "", fmt.Errorf("unsupported dialect %q (must be postgres or sqlite)", dialect)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
