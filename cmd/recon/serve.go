package main

import (
	"fmt"
	"strconv"

	"github.com/TFMV/recon/api"
	"github.com/TFMV/recon/config"
	"github.com/TFMV/recon/logger"
	"github.com/TFMV/recon/metrics"
	"github.com/spf13/cobra"
)

// ServeOptions represents the options for the serve command.
type ServeOptions struct {
	ConfigPath string
	Port       int
	Workers    int
	Prefork    bool
	LogLevel   string
}

func newServeCommand() *cobra.Command {
	options := &ServeOptions{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the recon HTTP API",
		Long: `The serve command starts an HTTP API exposing /health, /version, /metrics
and POST /compare for ad-hoc reconciliation of inline datasets.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			srv, err := buildServer(cmd, options)
			if err != nil {
				return err
			}
			return srv.Start()
		},
	}

	cmd.Flags().StringVarP(&options.ConfigPath, "config", "c", "", "Optional config file for log and server settings")
	cmd.Flags().IntVarP(&options.Port, "port", "p", 0, "Port to listen on (default 3000)")
	cmd.Flags().IntVarP(&options.Workers, "workers", "w", 1, "Number of comparison workers per request")
	cmd.Flags().BoolVar(&options.Prefork, "prefork", false, "Enable Fiber prefork")
	cmd.Flags().StringVar(&options.LogLevel, "log-level", "", "Log level (debug, info, warn, error)")

	return cmd
}

func buildServer(cmd *cobra.Command, options *ServeOptions) (*api.Server, error) {
	logCfg := logger.Config{Level: "info"}
	port := options.Port
	if options.ConfigPath != "" {
		cfg, err := config.LoadConfig(options.ConfigPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		logCfg = cfg.Log
		if port == 0 {
			port = cfg.Server.Port
		}
	}
	if options.LogLevel != "" {
		logCfg.Level = options.LogLevel
	}
	if port < 0 || port > 65535 {
		return nil, fmt.Errorf("invalid port %d", port)
	}

	log, _, err := logger.NewWithWriter(logCfg, cmd.ErrOrStderr())
	if err != nil {
		return nil, err
	}

	opts := api.ServerOptions{
		Prefork:   options.Prefork,
		Workers:   options.Workers,
		Logger:    log,
		Collector: metrics.NewCollector(),
	}
	if port > 0 {
		opts.Port = strconv.Itoa(port)
	}
	return api.NewServer(opts), nil
}
