// Package main is the entry point for the Lobbi voice bridge: the HTTP
// application the launcher packages and runs. It resolves the entry point
// named by APP_MODULE, binds 0.0.0.0 on PORT (default 8080), and serves
// until terminated. Any startup failure exits non-zero before a port is
// ever bound.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	adapterhttp "github.com/lobbi/launchpad/internal/adapters/http"
	"github.com/lobbi/launchpad/internal/app"
	"github.com/lobbi/launchpad/internal/bridge"
	"github.com/lobbi/launchpad/internal/core/domain"
)

const defaultEntryPoint = "bridge:app"

func main() {
	logger := newLogger()

	cfg, err := bridge.LoadConfig()
	if err != nil {
		logger.Fatal().Err(err).Msg("configuration invalid")
	}

	app.Default.Register(mustEntryPoint(defaultEntryPoint), func() (*fiber.App, error) {
		return adapterhttp.NewApp(cfg, nil, logger), nil
	})

	epName := os.Getenv("APP_MODULE")
	if epName == "" {
		epName = defaultEntryPoint
	}
	ep, err := domain.ParseEntryPoint(epName)
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid APP_MODULE")
	}

	application, err := app.Default.Resolve(ep)
	if err != nil {
		logger.Fatal().Err(err).Msg("entry point resolution failed")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	addr := fmt.Sprintf("0.0.0.0:%d", cfg.Port)
	serverErr := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", addr).Str("entry_point", ep.String()).Msg("bridge listening")
		if err := application.Listen(addr); err != nil {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		logger.Fatal().Err(err).Msg("server failed")
	case <-ctx.Done():
		logger.Info().Msg("shutdown signal received")
	}

	if err := application.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Fatal().Err(err).Msg("graceful shutdown failed")
	}
	logger.Info().Msg("stopped cleanly")
}

func mustEntryPoint(s string) domain.EntryPoint {
	ep, err := domain.ParseEntryPoint(s)
	if err != nil {
		panic(err)
	}
	return ep
}

func newLogger() zerolog.Logger {
	lvl, err := zerolog.ParseLevel(envOr("LOG_LEVEL", "info"))
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(os.Stdout).
		Level(lvl).
		With().Timestamp().Str("component", "bridge").Logger()
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
