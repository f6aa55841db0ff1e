package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/formstore-dev/formstore/internal/config"
	"github.com/formstore-dev/formstore/pkg/server"
)

func serveCmd() *cobra.Command {
	var (
		configPath string
		addr       string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the form-state server",
		Long: `Run the WebSocket form-state server.

The configuration file declares the listen address, timeouts, and the
named form schemas clients can select. A missing file falls back to
the defaults.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Addr = addr
			}

			logger := newLogger(cfg.LogLevel)
			slog.SetDefault(logger)

			srv := server.New(server.Config{
				Addr:            cfg.Addr,
				ReadTimeout:     cfg.ReadTimeout.Std(),
				WriteTimeout:    cfg.WriteTimeout.Std(),
				MaxMessageBytes: cfg.MaxMessageBytes,
				Logger:          logger,
			}, cfg.RuleSets())

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			logger.Info("starting formd", "version", version, "addr", cfg.Addr,
				"forms", len(cfg.Forms))
			return srv.Run(ctx)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", config.ConfigFileName,
		"Path to the configuration file")
	cmd.Flags().StringVar(&addr, "addr", "", fmt.Sprintf("Listen address (overrides config, default %s)", config.DefaultAddr))

	return cmd
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
