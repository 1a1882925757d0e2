// Package launcher implements the bootstrap contract: build a runtime image
// from a recipe, then start exactly one container serving on the advertised
// port. The sequence is linear with two terminal outcomes: the container is
// up and verified, or the launcher fails and the caller exits non-zero.
// There is no retry; restart policy belongs to the hosting platform.
package launcher

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/lobbi/launchpad/internal/core/domain"
	"github.com/lobbi/launchpad/internal/core/ports"
	"github.com/lobbi/launchpad/internal/recipe"
)

type Launcher struct {
	builder ports.BuilderService
	runtime ports.ContainerRuntime
	log     zerolog.Logger
}

func New(builder ports.BuilderService, runtime ports.ContainerRuntime, log zerolog.Logger) *Launcher {
	return &Launcher{builder: builder, runtime: runtime, log: log}
}

// Build runs only the build phase.
func (l *Launcher) Build(ctx context.Context, rec *recipe.Recipe) (domain.Image, error) {
	return l.builder.BuildImage(ctx, rec)
}

// Up builds the image and starts the container, then verifies the port
// contract: the advertised port must be the bound port, and the process
// inside must accept TCP connections before the startup timeout. Any
// failure after start tears the container down again.
func (l *Launcher) Up(ctx context.Context, rec *recipe.Recipe) (domain.Container, error) {
	img, err := l.builder.BuildImage(ctx, rec)
	if err != nil {
		return domain.Container{}, err
	}

	env := append([]string{}, rec.Runtime.Env...)
	env = append(env,
		"PORT="+strconv.Itoa(rec.Runtime.Port),
		"APP_MODULE="+rec.App.EntryPoint,
	)

	c, err := l.runtime.StartContainer(ctx, ports.StartOptions{
		Image: img.Tag,
		Name:  rec.App.Name,
		Port:  rec.Runtime.Port,
		Env:   env,
	})
	if err != nil {
		return domain.Container{}, fmt.Errorf("starting %s: %w", img.Tag, err)
	}
	log := l.log.With().Str("container", c.ID).Str("image", img.Tag).Logger()

	if c.AdvertisedPort != rec.Runtime.Port || c.BoundPort != c.AdvertisedPort {
		l.destroy(ctx, c.ID)
		return domain.Container{}, fmt.Errorf(
			"port contract violated: recipe declares %d, container advertises %d, host bound %d",
			rec.Runtime.Port, c.AdvertisedPort, c.BoundPort)
	}

	log.Info().Int("port", c.BoundPort).Dur("timeout", rec.Runtime.StartupTimeout).
		Msg("waiting for the app to listen")
	if err := l.runtime.WaitForListen(ctx, c, rec.Runtime.StartupTimeout); err != nil {
		l.destroy(ctx, c.ID)
		return domain.Container{}, fmt.Errorf("app never came up: %w", err)
	}

	log.Info().Msg("app is serving")
	return c, nil
}

// StreamLogs copies container logs to w until the stream or ctx ends.
func (l *Launcher) StreamLogs(ctx context.Context, id string, w io.Writer) error {
	logs, err := l.runtime.GetContainerLogs(ctx, id)
	if err != nil {
		return fmt.Errorf("streaming logs: %w", err)
	}
	defer logs.Close()
	_, err = io.Copy(w, logs)
	if err != nil && ctx.Err() != nil {
		return nil
	}
	return err
}

// Shutdown stops and removes the container. Used for the graceful,
// signal-driven exit path.
func (l *Launcher) Shutdown(ctx context.Context, id string) error {
	if err := l.runtime.StopContainer(ctx, id); err != nil {
		return fmt.Errorf("stopping container: %w", err)
	}
	if err := l.runtime.RemoveContainer(ctx, id); err != nil {
		return fmt.Errorf("removing container: %w", err)
	}
	return nil
}

func (l *Launcher) destroy(ctx context.Context, id string) {
	if err := l.Shutdown(ctx, id); err != nil {
		l.log.Warn().Err(err).Str("container", id).Msg("cleanup failed")
	}
}
