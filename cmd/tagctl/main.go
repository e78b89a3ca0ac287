// Command tagctl tags subjects in a local SQLite store. It drives the same
// tagging service the server does, just wired to an embedded database, so
// the semantics (idempotent attach, symmetric replace, vacuous filters) are
// identical.
package main

import (
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"tagd/internal/tagging/service"
	"tagd/internal/tagging/store"
)

var (
	flagConfig       string
	flagSQLitePath   string
	flagDelimiter    string
	flagUntagOnDel   bool
	flagDeleteUnused bool

	tagging *service.Service
	db      *sql.DB
)

var rootCmd = &cobra.Command{
	Use:           "tagctl",
	Short:         "Tag subjects in a local SQLite store",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		return setup(cmd)
	},
	PersistentPostRun: func(*cobra.Command, []string) {
		if db != nil {
			db.Close()
		}
	},
}

// setup merges config file and flags, opens the store, and builds the
// service every command runs against.
func setup(cmd *cobra.Command) error {
	explicit := cmd.Flags().Changed("config")
	path := flagConfig
	if path == "" {
		path = defaultConfigPath()
	}
	cfg, err := loadConfig(path, explicit)
	if err != nil {
		return err
	}

	sqlitePath := flagSQLitePath
	if !cmd.Flags().Changed("db") && cfg.SQLitePath != "" {
		sqlitePath = cfg.SQLitePath
	}
	delimiter := flagDelimiter
	if !cmd.Flags().Changed("delimiter") && cfg.Delimiter != "" {
		delimiter = cfg.Delimiter
	}
	untagOnDelete := flagUntagOnDel
	if !cmd.Flags().Changed("untag-on-delete") && cfg.UntagOnDelete != nil {
		untagOnDelete = *cfg.UntagOnDelete
	}
	deleteUnused := flagDeleteUnused
	if !cmd.Flags().Changed("delete-unused") && cfg.DeleteUnused != nil {
		deleteUnused = *cfg.DeleteUnused
	}

	db, err = store.OpenSQLite(sqlitePath)
	if err != nil {
		return err
	}

	st := store.NewSQLite(db)
	if err := st.EnsureSchema(cmd.Context()); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}

	tagging = service.New(st, store.NewSQLiteTx(db), nil,
		service.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		service.WithDelimiter(delimiter),
		service.WithUntagOnDelete(untagOnDelete),
		service.WithDeleteUnused(deleteUnused),
	)
	return nil
}

func main() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "config file (default ~/.tagd.yaml)")
	rootCmd.PersistentFlags().StringVar(&flagSQLitePath, "db", "tagd.db", "sqlite database path")
	rootCmd.PersistentFlags().StringVar(&flagDelimiter, "delimiter", ",", "tag list delimiter")
	rootCmd.PersistentFlags().BoolVar(&flagUntagOnDel, "untag-on-delete", true, "adjust counts when a subject is deleted")
	rootCmd.PersistentFlags().BoolVar(&flagDeleteUnused, "delete-unused", false, "purge tags whose count drops to zero")

	rootCmd.AddCommand(
		newAttachCmd(),
		newDetachCmd(),
		newReplaceCmd(),
		newTagsCmd(),
		newCatalogCmd(),
		newSubjectsCmd(),
		newPurgeCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "tagctl:", err)
		os.Exit(1)
	}
}
