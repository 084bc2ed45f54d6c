package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"extblock/pkg/config"
	"extblock/pkg/dnsbl"
	"extblock/pkg/logger"
	"extblock/pkg/server"
)

func init() {
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API (and the DNSBL responder when enabled)",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, cancel := context.WithCancel(context.WithoutCancel(cmd.Context()))
	defer cancel()

	env, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer env.Close()
	log := env.log

	srv := server.New(serverOptions(env.cfg), env.reg, log)
	if err := srv.Start(ctx); err != nil {
		log.Error("failed to start server", "error", err)
		return err
	}

	serveErr := make(chan error, 1)
	go func() { serveErr <- srv.Wait() }()

	// Set up signal handling
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigChan)

	shutdown := func() error {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), env.cfg.Server.ShutdownTimeout)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("shutdown failed", "error", err)
			return err
		}
		return <-serveErr
	}

	for {
		select {
		case err := <-serveErr:
			if err != nil {
				log.Error("server stopped", "error", err)
				return err
			}
			return nil
		case <-cmd.Context().Done():
			log.Info("context cancelled, shutting down")
			return shutdown()
		case sig := <-sigChan:
			switch sig {
			case syscall.SIGHUP:
				log.Info("received SIGHUP signal, reloading log level")
				reloadLogLevel(env)
			case syscall.SIGINT, syscall.SIGTERM:
				log.Info("received shutdown signal", "signal", sig)
				return shutdown()
			}
		}
	}
}

func serverOptions(cfg *config.Config) server.Options {
	opts := server.Options{
		Listen:         cfg.Server.Listen,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		Language:       cfg.Language,
	}
	if cfg.DNSBL.Enabled {
		opts.DNSBL = &dnsbl.Options{
			Listen:       cfg.DNSBL.Listen,
			Zone:         cfg.DNSBL.Zone,
			QueryLogPath: cfg.DNSBL.QueryLog,
		}
	}
	return opts
}

// reloadLogLevel re-reads the config file and applies its log level. Other
// settings need a restart.
func reloadLogLevel(env *environment) {
	cfg, err := loadConfig()
	if err != nil {
		env.log.Error("failed to reload config", "error", err)
		return
	}
	if cfg.Logging.Level == env.cfg.Logging.Level {
		return
	}
	logger.SetLevel(cfg.Logging.Level)
	env.log.Info("log level changed", "from", env.cfg.Logging.Level, "to", cfg.Logging.Level)
	env.cfg.Logging.Level = cfg.Logging.Level
}
