package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/tripledger/tripledger/cmd/tripledger/cli"
	"github.com/tripledger/tripledger/internal/app"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	env, err := cli.NewEnv(ctx, cfg, logger)
	if err != nil {
		logger.Error("initialise client", slog.Any("error", err))
		os.Exit(1)
	}

	code := cli.Execute(ctx, env, os.Args[1:])
	if err := env.Close(); err != nil {
		logger.Warn("close", slog.Any("error", err))
	}
	stop()
	os.Exit(code)
}
