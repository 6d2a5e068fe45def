package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hongminglow/istc-be/internal/config"
	"github.com/hongminglow/istc-be/internal/logging"
	"github.com/hongminglow/istc-be/internal/mail"
	"github.com/hongminglow/istc-be/internal/server"
	postgres "github.com/hongminglow/istc-be/internal/storage/postgres"
	"github.com/joho/godotenv"
)

func main() {
	loadLocalEnv()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logger := logging.New(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)

	ctx := context.Background()
	store, err := postgres.NewStore(ctx, cfg.DatabaseURL, postgres.Options{
		MaxConns:     cfg.DBMaxConns,
		QueryTimeout: cfg.DBTimeout,
	})
	if err != nil {
		logger.Error("init database", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	srv := server.New(cfg, store, newSender(cfg, logger), logger)

	go func() {
		logger.Info("ISTC backend listening", "addr", cfg.HTTPAddress(), "revocation", cfg.TokenRevocation)
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			os.Exit(1)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctxShutdown); err != nil {
		logger.Error("graceful shutdown error", "error", err)
	}
}

func newSender(cfg config.Config, logger *slog.Logger) mail.Sender {
	if cfg.SMTP.Host == "" {
		logger.Warn("SMTP_HOST not set; emails will be logged instead of sent")
		return mail.NewLogSender(logger)
	}
	return mail.NewSMTPSender(cfg.SMTP)
}

func loadLocalEnv() {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found; relying on existing environment")
	}
}
