// Package main provides the CLI entry point for the DMR relay server.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/radiogrid/dmrelay/internal/config"
	"github.com/radiogrid/dmrelay/internal/health"
	"github.com/radiogrid/dmrelay/internal/logging"
	"github.com/radiogrid/dmrelay/internal/metrics"
	"github.com/radiogrid/dmrelay/internal/registry"
	"github.com/radiogrid/dmrelay/internal/relay"
	"github.com/radiogrid/dmrelay/internal/store"
)

var (
	// Version is set at build time
	Version = "dev"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "dmrelay",
		Short: "dmrelay - DMR voice and data frame relay server",
		Long: `dmrelay is a UDP relay server for DMR voice and data frames.

Radio clients send framed datagrams to the relay, which registers each
sender and rebroadcasts every valid frame to all other active clients.
Idle clients are evicted automatically; frame and client activity can
be audited to a MariaDB database.`,
		Version: Version,
	}

	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(configCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runCmd() *cobra.Command {
	var (
		configPath string
		listen     string
		timeout    time.Duration
		verbose    bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the relay server",
		Long:  "Start the relay server with the specified configuration.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}

			// Flags win over the file.
			if cmd.Flags().Changed("listen") {
				cfg.Server.Listen = listen
			}
			if cmd.Flags().Changed("timeout") {
				cfg.Server.ClientTimeout = timeout
			}
			if verbose {
				cfg.Log.Level = "debug"
			}

			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid config: %w", err)
			}

			logger := newLogger(cfg)

			st := openStore(cfg, logger)

			m := metrics.Default()

			reg := registry.New(registry.Config{
				MaxClients: cfg.Server.MaxClients,
				Sink:       st,
				Logger:     logger,
				Metrics:    m,
			})

			srv, err := relay.New(relay.Config{
				Listen:        cfg.Server.Listen,
				ClientTimeout: cfg.Server.ClientTimeout,
				SweepInterval: cfg.Server.SweepInterval,
				Registry:      reg,
				Store:         st,
				Metrics:       m,
				Logger:        logger,
			})
			if err != nil {
				return fmt.Errorf("failed to create server: %w", err)
			}

			if err := srv.Start(); err != nil {
				return fmt.Errorf("failed to start server: %w", err)
			}

			var healthSrv *health.Server
			if cfg.HTTP.Enabled {
				healthSrv = health.NewServer(health.ServerConfig{
					Address:      cfg.HTTP.Address,
					ReadTimeout:  cfg.HTTP.ReadTimeout,
					WriteTimeout: cfg.HTTP.WriteTimeout,
				}, srv)
				if err := healthSrv.Start(); err != nil {
					srv.Stop()
					return fmt.Errorf("failed to start http server: %w", err)
				}
				logger.Info("http server started",
					logging.KeyAddress, healthSrv.Address().String())
			}

			fmt.Printf("DMR relay listening on %s (timeout %s, max clients %d)\n",
				srv.LocalAddr(), cfg.Server.ClientTimeout, cfg.Server.MaxClients)

			// Wait for shutdown signal
			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

			sig := <-sigCh
			fmt.Printf("\nReceived signal %v, shutting down...\n", sig)

			if healthSrv != nil {
				if err := healthSrv.Stop(); err != nil {
					logger.Warn("http shutdown failed", logging.KeyError, err)
				}
			}

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			if err := srv.StopWithContext(ctx); err != nil {
				fmt.Printf("Shutdown error: %v\n", err)
				return err
			}

			fmt.Println("Relay stopped.")
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to configuration file")
	cmd.Flags().StringVarP(&listen, "listen", "l", ":62031", "UDP listen address")
	cmd.Flags().DurationVarP(&timeout, "timeout", "t", 5*time.Minute, "Idle client timeout")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	return cmd
}

func configCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show the effective configuration",
		Long:  "Print the effective configuration with secrets redacted.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid config: %w", err)
			}
			fmt.Println(cfg.Redacted().String())
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to configuration file")

	return cmd
}

// loadConfig reads the config file when a path is given, otherwise
// returns the built-in defaults.
func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) *slog.Logger {
	if cfg.Log.File != "" {
		return logging.NewRotatingLogger(cfg.Log.Level, cfg.Log.Format, logging.FileConfig{
			Path:       cfg.Log.File,
			MaxSizeMB:  cfg.Log.MaxSizeMB,
			MaxBackups: cfg.Log.MaxBackups,
		})
	}
	return logging.NewLogger(cfg.Log.Level, cfg.Log.Format)
}

// openStore connects the audit store when the database is enabled.
// A connection failure is not fatal: the relay runs without auditing.
func openStore(cfg *config.Config, logger *slog.Logger) store.Store {
	if !cfg.Database.Enabled {
		return store.NewNop()
	}

	st, err := store.Open(cfg.Database.DSN(), logger)
	if err != nil {
		logger.Warn("database unavailable, continuing without audit store",
			logging.KeyError, err)
		return store.NewNop()
	}
	return st
}
