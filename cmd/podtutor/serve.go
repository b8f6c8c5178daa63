package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/podtutor/internal/adapters/driving/http"
	"github.com/custodia-labs/podtutor/internal/config"
)

// Run modes
const (
	modeAPI    = "api"
	modeWorker = "worker"
	modeAll    = "all"
)

func newServeCommand(ctx *commandContext, mode, short string) *cobra.Command {
	return &cobra.Command{
		Use:   mode,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMode(cmd, ctx, mode)
		},
	}
}

func runMode(cmd *cobra.Command, cmdCtx *commandContext, mode string) error {
	cfg, err := cmdCtx.ensureConfig()
	if err != nil {
		return err
	}
	if err := checkMode(cfg, mode); err != nil {
		return err
	}

	logger := newLogger(cfg.Logging)
	logger.Info("podtutor starting",
		"version", version,
		"mode", mode,
		"backend", cfg.Backend,
		"config", cmdCtx.configPath,
		"env_file", cmdCtx.envFile)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := buildApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	switch mode {
	case modeAPI:
		return runAPI(ctx, a, nil)
	case modeWorker:
		return runWorker(ctx, a)
	default:
		return runAll(ctx, a)
	}
}

// checkMode rejects split deployments on the in-process backend, where an
// api process and a worker process would not share a queue.
func checkMode(cfg *config.Config, mode string) error {
	switch mode {
	case modeAPI, modeWorker:
		if cfg.Backend == config.BackendMemory {
			return fmt.Errorf("%s mode needs a shared backend (redis or postgres); use %q with the memory backend", mode, modeAll)
		}
	case modeAll:
	default:
		return fmt.Errorf("unknown run mode %q (want api, worker or all)", mode)
	}
	return nil
}

func runAPI(ctx context.Context, a *app, checks map[string]http.Pinger) error {
	server := a.newServer(checks)
	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

func runWorker(ctx context.Context, a *app) error {
	w := a.newWorker()
	if err := w.Start(ctx); err != nil {
		return fmt.Errorf("start worker: %w", err)
	}

	<-ctx.Done()
	w.Stop()
	return nil
}

func runAll(ctx context.Context, a *app) error {
	w := a.newWorker()
	if err := w.Start(ctx); err != nil {
		return fmt.Errorf("start worker: %w", err)
	}
	defer w.Stop()

	err := runAPI(ctx, a, map[string]http.Pinger{"worker": w})
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
