package ports

import (
	"context"
	"io"
	"time"

	"github.com/lobbi/launchpad/internal/core/domain"
)

// StartOptions configures the single container the launcher runs.
type StartOptions struct {
	Image string
	Name  string
	// Port is published on the host and advertised to the platform via a
	// label on the container. The process inside must bind it on 0.0.0.0.
	Port int
	Env  []string
}

// ContainerRuntime defines the core operations for running the built image.
// This interface allows us to switch between Docker, Podman, or Kubernetes
// without changing the launch sequence.
type ContainerRuntime interface {
	ListContainers(ctx context.Context) ([]domain.Container, error)
	StartContainer(ctx context.Context, opts StartOptions) (domain.Container, error)
	// InspectContainer re-reads the container state, including the
	// advertised and bound ports.
	InspectContainer(ctx context.Context, id string) (domain.Container, error)
	StopContainer(ctx context.Context, id string) error
	RemoveContainer(ctx context.Context, id string) error
	GetContainerLogs(ctx context.Context, id string) (io.ReadCloser, error)
	// WaitForListen blocks until a TCP connect to the container's bound
	// port succeeds, or the timeout elapses.
	WaitForListen(ctx context.Context, c domain.Container, timeout time.Duration) error
}
