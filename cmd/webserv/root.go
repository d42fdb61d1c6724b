package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ashpect/webserv/pkg/config"
	"github.com/ashpect/webserv/pkg/logging"
	"github.com/ashpect/webserv/pkg/server"
)

var logLevelFlag string

var rootCmd = &cobra.Command{
	Use:           "webserv <config.toml>",
	Short:         "Event-driven static HTTP/1.1 server",
	Long:          "webserv serves static files from the locations declared in a TOML configuration, over a single epoll loop with an LRU content cache.",
	Args:          cobra.ExactArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runServe,
}

func init() {
	rootCmd.Flags().StringVar(&logLevelFlag, "log-level", "", "Override log_level from the configuration (debug, info, warning, error)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig(args[0])
	if err != nil {
		return err
	}
	if logLevelFlag != "" {
		cfg.LogLevel = logLevelFlag
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}

	srv, err := server.New(cfg, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Log(logging.LevelInfo, "main", "starting", "config", args[0], "servers", len(cfg.Servers))
	return srv.Run(ctx)
}

func newLogger(cfg *config.SystemCfg) (logging.Logger, error) {
	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	return logging.New(logging.Config{
		Level:  level,
		Format: logging.Format(cfg.LogFormat),
		Output: os.Stderr,
	}), nil
}
