// Package cmd implements the idm-open command-line front end: a thin
// presenter over internal/engine, dispatching one engine call per
// invocation and printing the result.
package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/muhammad1505/idm-open/internal/config"
	"github.com/muhammad1505/idm-open/internal/engine"
	"github.com/muhammad1505/idm-open/internal/storage"
)

var dbPath string

var rootCmd = &cobra.Command{
	Use:   "idm-open",
	Short: "A resumable, multi-connection HTTP(S) download manager",
	Long: `idm-open downloads files over HTTP(S) and HTTPS using several concurrent
connections per file, resumes interrupted transfers, and can verify a
download's checksum once it finishes.`,
	SilenceUsage: true,
}

// Execute runs the root command, exiting the process on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", defaultDBPath(), "path to the task database")
}

// defaultDBPath resolves a per-user database location. It mirrors the
// convention of keeping application state under a dotdirectory in the
// user's home, falling back to the working directory if the home
// directory can't be determined.
func defaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".idm-open", "tasks.db")
	}
	return filepath.Join(home, ".idm-open", "tasks.db")
}

// openEngine constructs the SQLite-backed engine shared by every
// subcommand and returns its storage's Close alongside it. Each CLI
// invocation is a fresh process, so the engine's in-memory active-set and
// queue always start empty; EnqueueQueued (run command) is what rebuilds
// admission state from the database.
func openEngine() (*engine.Engine, func() error, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	store, err := storage.Open(dbPath)
	if err != nil {
		return nil, nil, fmt.Errorf("opening database: %w", err)
	}

	e := engine.New(config.Default()).WithStorage(store)
	return e, store.Close, nil
}
