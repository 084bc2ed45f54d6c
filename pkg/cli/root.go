// Package cli implements the extblock command line.
package cli

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"extblock/pkg/config"
	"extblock/pkg/logger"
	"extblock/pkg/registry"
	"extblock/pkg/store"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "extblock",
	Short: "Blocked file extension registry",
	Long: `extblock keeps the list of file extensions an upload gate must reject: a fixed
set that can be switched on and off, and up to 200 custom extensions.

Run without a subcommand to start the server.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runServe,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default $EXTBLOCK_CONFIG or /etc/extblock/extblock.conf)")
}

// Execute runs the command line given by os.Args.
func Execute() error {
	return Run(context.Background(), os.Args[1:])
}

// Run executes the command line args. Cancelling ctx stops a running server
// the same way SIGTERM does.
func Run(ctx context.Context, args []string) error {
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(ctx)
	if err != nil {
		slog.Error("command failed", "error", err)
	}
	return err
}

func loadConfig() (*config.Config, error) {
	if configPath != "" {
		return config.Load(configPath, true)
	}
	return config.Setup()
}

// environment is what every command needs once config is loaded.
type environment struct {
	cfg *config.Config
	log *slog.Logger
	db  *sql.DB
	reg *registry.Registry
}

func (e *environment) Close() {
	if e.db != nil {
		if err := e.db.Close(); err != nil {
			e.log.Warn("failed to close database", "error", err)
		}
	}
}

// bootstrap loads config, sets up logging, migrates and seeds the database
// and builds the registry.
func bootstrap(ctx context.Context) (*environment, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	log := logger.Setup(cfg.Logging.Level, cfg.Logging.File)

	db, err := openDatabase(ctx, cfg.Database.Path, log)
	if err != nil {
		return nil, err
	}

	reg := registry.New(store.New(db), registry.Options{
		StrictToggle: cfg.Registry.StrictToggle,
		Log:          log,
	})
	return &environment{cfg: cfg, log: log, db: db, reg: reg}, nil
}

func openDatabase(ctx context.Context, path string, log *slog.Logger) (*sql.DB, error) {
	db, err := store.Open(path)
	if err != nil {
		return nil, err
	}
	if err := store.Migrate(path); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := store.Seed(ctx, db, registry.FixedExtensions); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("seed fixed extensions: %w", err)
	}
	log.Debug("database ready", "path", path)
	return db, nil
}
