// Copyright 2025 The Aimee Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// aimeed is the automation engine daemon: it serves the JSON API and
// webhook endpoints and runs the workflow scheduler.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/inqbatorchris/aimee-sub008/internal/adapter"
	"github.com/inqbatorchris/aimee-sub008/internal/config"
	"github.com/inqbatorchris/aimee-sub008/internal/engine"
	"github.com/inqbatorchris/aimee-sub008/internal/log"
	"github.com/inqbatorchris/aimee-sub008/internal/scheduler"
	"github.com/inqbatorchris/aimee-sub008/internal/server"
	"github.com/inqbatorchris/aimee-sub008/internal/store"
	"github.com/inqbatorchris/aimee-sub008/internal/store/memory"
	"github.com/inqbatorchris/aimee-sub008/internal/store/sqlite"
	"github.com/inqbatorchris/aimee-sub008/internal/vault"
)

// Version information (injected via ldflags at build time)
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		configPath  string
		addr        string
		storeType   string
		dbPath      string
		noScheduler bool
	)

	root := &cobra.Command{
		Use:           "aimeed",
		Short:         "Integration automation engine daemon",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}

			// CLI flags override file and environment.
			if addr != "" {
				cfg.Server.Addr = addr
			}
			if storeType != "" {
				cfg.Store.Type = storeType
			}
			if dbPath != "" {
				cfg.Store.Path = dbPath
			}
			if noScheduler {
				disabled := false
				cfg.Scheduler.Enabled = &disabled
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			return serve(cmd.Context(), cfg)
		},
	}

	root.Flags().StringVar(&configPath, "config", "", "Path to YAML config file")
	root.Flags().StringVar(&addr, "addr", "", "HTTP listen address (overrides config)")
	root.Flags().StringVar(&storeType, "store", "", "Storage backend (memory, sqlite)")
	root.Flags().StringVar(&dbPath, "db", "", "SQLite database path")
	root.Flags().BoolVar(&noScheduler, "no-scheduler", false, "Disable the schedule runner")

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(*cobra.Command, []string) {
			fmt.Printf("aimeed %s (commit: %s, built: %s)\n", version, commit, buildDate)
		},
	})

	return root
}

func serve(ctx context.Context, cfg *config.Config) error {
	logCfg := log.FromEnv()
	if cfg.Log.Level != "" {
		logCfg.Level = cfg.Log.Level
	}
	if cfg.Log.Format != "" {
		logCfg.Format = log.Format(cfg.Log.Format)
	}
	logger := log.New(logCfg)
	slog.SetDefault(logger)

	st, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer st.Close()

	v, err := vault.New(cfg.Vault.Secret)
	if err != nil {
		return fmt.Errorf("initializing vault: %w", err)
	}

	registry := adapter.DefaultRegistry(adapter.HTTPOptions{
		Timeout:   cfg.Adapter.Timeout,
		RateLimit: cfg.Adapter.RateLimit,
		RateBurst: cfg.Adapter.RateBurst,
		Logger:    logger,
	})

	eng := engine.New(st, v, registry, logger)
	srv := server.New(cfg.Server.Addr, eng, logger)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	if cfg.SchedulerEnabled() {
		runner := scheduler.NewRunner(st, eng, cfg.Scheduler.TickInterval, logger)
		go runner.Run(ctx)
	} else {
		logger.Info("scheduler disabled")
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	logger.Info("aimeed started",
		"version", version,
		"addr", cfg.Server.Addr,
		"store", cfg.Store.Type)

	select {
	case sig := <-sigCh:
		logger.Info("shutting down", "signal", sig.String())
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown error", "error", err)
			return err
		}
		return nil
	case err := <-errCh:
		return err
	}
}

func openStore(cfg *config.Config) (store.Store, error) {
	switch cfg.Store.Type {
	case "memory":
		return memory.New(), nil
	case "sqlite":
		return sqlite.New(sqlite.Config{Path: cfg.Store.Path, WAL: true})
	default:
		return nil, fmt.Errorf("unknown store type %q", cfg.Store.Type)
	}
}
