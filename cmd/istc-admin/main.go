package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/hongminglow/istc-be/internal/admincli"
	"github.com/hongminglow/istc-be/internal/auth"
	"github.com/hongminglow/istc-be/internal/config"
	"github.com/hongminglow/istc-be/internal/logging"
	postgres "github.com/hongminglow/istc-be/internal/storage/postgres"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logger := logging.New(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := postgres.NewStore(ctx, cfg.DatabaseURL, postgres.Options{
		MaxConns:     2,
		QueryTimeout: cfg.DBTimeout,
	})
	if err != nil {
		logger.Error("init database", "error", err)
		os.Exit(1)
	}

	app := &admincli.App{
		Store:  store,
		Hasher: auth.NewPasswordHasher(cfg.BcryptCost),
		In:     os.Stdin,
		Out:    os.Stdout,
	}
	err = app.Run(ctx, os.Args[1:])
	store.Close()
	if err != nil {
		if !errors.Is(err, admincli.ErrUsage) {
			logger.Error("command failed", "error", err)
		}
		os.Exit(1)
	}
}
