package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/thereayou/ritual-union/internal/config"
	"github.com/thereayou/ritual-union/pkg/log"
)

func main() {
	config.LoadEnvFiles()

	cfg, err := config.Load("./config")
	if err != nil {
		l := log.L()
		l.Fatal().Err(err).Msg("load config")
	}

	log.Init(log.Config{Level: cfg.Log.Level, Pretty: cfg.Log.Pretty, ServiceName: "ritual-union"})
	logger := log.L()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = log.WithLogger(ctx, logger)

	srv, err := NewServer(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("init server")
	}

	if err := srv.Run(ctx); err != nil {
		logger.Error().Err(err).Msg("server stopped with error")
		os.Exit(1)
	}
	logger.Info().Msg("server stopped")
}
