package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	logger "github.com/lixenwraith/logengine"
	"github.com/lixenwraith/logengine/configsource"
)

var configPath string

// rootCmd runs the engine standalone: load configuration, start the
// engine, watch for the level-only hot reload, and drain on SIGINT/SIGTERM,
// following the cobra root-command shape of _examples/Geun-Oh-lx/cmd/lx.
var rootCmd = &cobra.Command{
	Use:   "logengine",
	Short: "Run the logging engine as a standalone sink-forwarding process",
	Long: `logengine starts the asynchronous logging engine with sinks configured
from a TOML file and keeps running until interrupted, forwarding whatever
is written to its queue (by an embedding application sharing the process,
or by a future stdin-ingest mode) to the configured Console/File/Http sinks.`,
	RunE: run,
}

// version is set at build time via -ldflags "-X main.version=...";
// it stays "dev" for a plain `go build`.
var version = "dev"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the logengine version",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Println(version)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a TOML config file (defaults compiled in if omitted)")
	rootCmd.AddCommand(versionCmd)
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var cfg *logger.LoggerConfig
	if configPath != "" {
		loaded, err := configsource.Load(configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}

	if err := logger.Init(ctx, cfg); err != nil {
		return fmt.Errorf("logengine: init: %w", err)
	}
	defer func() { _ = logger.Shutdown(context.Background()) }()

	if configPath != "" {
		reloadMS := int64(1000)
		if cfg != nil && cfg.Other.ReloadIntervalMS > 0 {
			reloadMS = cfg.Other.ReloadIntervalMS
		}
		watcher := configsource.NewWatcher(configPath, time.Duration(reloadMS)*time.Millisecond)
		go watcher.Run(ctx)
	}

	logger.Logf(ctx, logger.LevelInfo, "logengine started, pid {}", os.Getpid())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	logger.Logf(ctx, logger.LevelInfo, "logengine received shutdown signal")
	return nil
}
