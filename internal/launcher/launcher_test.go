package launcher

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lobbi/launchpad/internal/core/domain"
	"github.com/lobbi/launchpad/internal/core/ports"
	"github.com/lobbi/launchpad/internal/recipe"
)

type fakeBuilder struct {
	calls int
	err   error
}

func (f *fakeBuilder) BuildImage(ctx context.Context, rec *recipe.Recipe) (domain.Image, error) {
	f.calls++
	if f.err != nil {
		return domain.Image{}, f.err
	}
	return domain.Image{Tag: rec.Tag(), BuildID: "build-1"}, nil
}

type fakeRuntime struct {
	started   []ports.StartOptions
	stopped   []string
	removed   []string
	startErr  error
	waitErr   error
	container domain.Container
	logs      string
}

func (f *fakeRuntime) ListContainers(ctx context.Context) ([]domain.Container, error) {
	return nil, nil
}

func (f *fakeRuntime) StartContainer(ctx context.Context, opts ports.StartOptions) (domain.Container, error) {
	f.started = append(f.started, opts)
	if f.startErr != nil {
		return domain.Container{}, f.startErr
	}
	return f.container, nil
}

func (f *fakeRuntime) InspectContainer(ctx context.Context, id string) (domain.Container, error) {
	return f.container, nil
}

func (f *fakeRuntime) StopContainer(ctx context.Context, id string) error {
	f.stopped = append(f.stopped, id)
	return nil
}

func (f *fakeRuntime) RemoveContainer(ctx context.Context, id string) error {
	f.removed = append(f.removed, id)
	return nil
}

func (f *fakeRuntime) GetContainerLogs(ctx context.Context, id string) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader(f.logs)), nil
}

func (f *fakeRuntime) WaitForListen(ctx context.Context, c domain.Container, timeout time.Duration) error {
	return f.waitErr
}

func testRecipe() *recipe.Recipe {
	return &recipe.Recipe{
		App: recipe.AppConfig{Name: "lobbi-bridge", EntryPoint: "bridge:app"},
		Build: recipe.BuildConfig{
			BaseImage: "python:3.12-slim",
			WorkDir:   "/app",
			Manifest:  "requirements.txt",
			Source:    ".",
		},
		Runtime: recipe.RuntimeConfig{
			Host:           "0.0.0.0",
			Port:           8080,
			StartupTimeout: time.Second,
		},
	}
}

func healthyContainer() domain.Container {
	return domain.Container{
		ID:             "abc123def456",
		Name:           "lobbi-bridge",
		State:          "running",
		AdvertisedPort: 8080,
		BoundPort:      8080,
	}
}

func TestUpHappyPath(t *testing.T) {
	b := &fakeBuilder{}
	rt := &fakeRuntime{container: healthyContainer()}
	l := New(b, rt, zerolog.Nop())

	c, err := l.Up(context.Background(), testRecipe())
	require.NoError(t, err)
	assert.Equal(t, 1, b.calls)
	assert.Equal(t, "abc123def456", c.ID)

	require.Len(t, rt.started, 1)
	opts := rt.started[0]
	assert.Equal(t, "lobbi-bridge:latest", opts.Image)
	assert.Equal(t, 8080, opts.Port)
	assert.Contains(t, opts.Env, "PORT=8080")
	assert.Contains(t, opts.Env, "APP_MODULE=bridge:app")
	assert.Empty(t, rt.stopped)
}

func TestUpBuildFailureSkipsRun(t *testing.T) {
	boom := errors.New("no matching distribution")
	b := &fakeBuilder{err: boom}
	rt := &fakeRuntime{container: healthyContainer()}
	l := New(b, rt, zerolog.Nop())

	_, err := l.Up(context.Background(), testRecipe())
	require.ErrorIs(t, err, boom)
	assert.Empty(t, rt.started, "a failed build must never start a container")
}

func TestUpStartFailurePropagates(t *testing.T) {
	bindConflict := errors.New("bind: address already in use")
	b := &fakeBuilder{}
	rt := &fakeRuntime{startErr: bindConflict}
	l := New(b, rt, zerolog.Nop())

	_, err := l.Up(context.Background(), testRecipe())
	require.ErrorIs(t, err, bindConflict)
}

func TestUpDetectsPortMismatch(t *testing.T) {
	c := healthyContainer()
	c.BoundPort = 9090 // silently bound elsewhere
	b := &fakeBuilder{}
	rt := &fakeRuntime{container: c}
	l := New(b, rt, zerolog.Nop())

	_, err := l.Up(context.Background(), testRecipe())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "port contract violated")
	// The offending container is torn down again.
	assert.Equal(t, []string{"abc123def456"}, rt.stopped)
	assert.Equal(t, []string{"abc123def456"}, rt.removed)
}

func TestUpWaitFailureTearsDown(t *testing.T) {
	b := &fakeBuilder{}
	rt := &fakeRuntime{container: healthyContainer(), waitErr: errors.New("timeout")}
	l := New(b, rt, zerolog.Nop())

	_, err := l.Up(context.Background(), testRecipe())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "never came up")
	assert.Equal(t, []string{"abc123def456"}, rt.stopped)
}

func TestStreamLogs(t *testing.T) {
	rt := &fakeRuntime{logs: "line one\nline two\n"}
	l := New(&fakeBuilder{}, rt, zerolog.Nop())

	var buf strings.Builder
	require.NoError(t, l.StreamLogs(context.Background(), "abc", &buf))
	assert.Equal(t, "line one\nline two\n", buf.String())
}

func TestShutdownStopsAndRemoves(t *testing.T) {
	rt := &fakeRuntime{}
	l := New(&fakeBuilder{}, rt, zerolog.Nop())

	require.NoError(t, l.Shutdown(context.Background(), "abc"))
	assert.Equal(t, []string{"abc"}, rt.stopped)
	assert.Equal(t, []string{"abc"}, rt.removed)
}
