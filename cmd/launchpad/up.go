package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/lobbi/launchpad/internal/adapters/builder"
	"github.com/lobbi/launchpad/internal/adapters/docker"
	adapterhttp "github.com/lobbi/launchpad/internal/adapters/http"
	"github.com/lobbi/launchpad/internal/launcher"
)

var upCmd = &cobra.Command{
	Use:   "up",
	Short: "Build the image and run the app container",
	Long: `Up runs the full bootstrap sequence: build the runtime image, start
one container with the recipe's port published on all interfaces, verify
the advertised port is the bound port, and wait for the app to accept
connections. Logs stream to stdout until SIGINT or SIGTERM, which stops
the container and exits zero.`,
	RunE: runUp,
}

func runUp(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	b, err := builder.NewBuilderAdapter(logger)
	if err != nil {
		return err
	}
	runtime, err := docker.NewAdapter()
	if err != nil {
		return err
	}

	l := launcher.New(b, runtime, logger)
	c, err := l.Up(ctx, rec)
	if err != nil {
		return err
	}

	if rec.Ingress.Enabled {
		ingress := adapterhttp.NewIngressApp(runtime, rec.App.Name, logger)
		go func() {
			logger.Info().Str("addr", rec.Ingress.Addr).Msg("ingress listening")
			if err := ingress.Listen(rec.Ingress.Addr); err != nil {
				logger.Error().Err(err).Msg("ingress failed")
			}
		}()
		defer func() {
			if err := ingress.ShutdownWithTimeout(5 * time.Second); err != nil {
				logger.Warn().Err(err).Msg("ingress shutdown error")
			}
		}()
	}

	go func() {
		if err := l.StreamLogs(ctx, c.ID, os.Stdout); err != nil {
			logger.Warn().Err(err).Msg("log stream ended")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	shutCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := l.Shutdown(shutCtx, c.ID); err != nil {
		return err
	}

	logger.Info().Msg("stopped cleanly")
	return nil
}
