package docker

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"io"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
	"github.com/docker/go-connections/nat"

	"github.com/lobbi/launchpad/internal/core/domain"
	"github.com/lobbi/launchpad/internal/core/ports"
)

// PortLabel is the container label carrying the advertised port. The
// platform contract is that the process inside binds exactly this port.
const PortLabel = "launchpad.port"

// Adapter implements ports.ContainerRuntime using the Docker SDK.
type Adapter struct {
	cli *client.Client
}

// NewAdapter creates a new Docker adapter instance
func NewAdapter() (*Adapter, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}
	return &Adapter{cli: cli}, nil
}

// ListContainers returns a list of containers with details
func (a *Adapter) ListContainers(ctx context.Context) ([]domain.Container, error) {
	containers, err := a.cli.ContainerList(ctx, types.ContainerListOptions{All: true})
	if err != nil {
		return nil, fmt.Errorf("failed to list containers: %w", err)
	}

	var result []domain.Container
	for _, c := range containers {
		// Use the first name if available, remove slash
		name := ""
		if len(c.Names) > 0 {
			name = c.Names[0][1:]
		}

		dc := domain.Container{
			ID:     c.ID[:12], // Short ID
			Name:   name,
			Image:  c.Image,
			Status: c.Status,
			State:  c.State,
		}
		dc.AdvertisedPort = advertisedPort(c.Labels)
		for _, p := range c.Ports {
			if int(p.PrivatePort) == dc.AdvertisedPort && p.PublicPort != 0 {
				dc.BoundPort = int(p.PublicPort)
				break
			}
		}

		result = append(result, dc)
	}
	return result, nil
}

// StartContainer creates and starts the single app container, publishing
// and advertising the recipe's port. A bind conflict on the host port
// surfaces as the start error; the caller treats it as fatal.
func (a *Adapter) StartContainer(ctx context.Context, opts ports.StartOptions) (domain.Container, error) {
	port, err := nat.NewPort("tcp", strconv.Itoa(opts.Port))
	if err != nil {
		return domain.Container{}, fmt.Errorf("invalid port %d: %w", opts.Port, err)
	}

	resp, err := a.cli.ContainerCreate(ctx, &container.Config{
		Image:        opts.Image,
		Env:          opts.Env,
		ExposedPorts: nat.PortSet{port: struct{}{}},
		Labels:       map[string]string{PortLabel: strconv.Itoa(opts.Port)},
	}, &container.HostConfig{
		PortBindings: nat.PortMap{
			port: []nat.PortBinding{{HostIP: "0.0.0.0", HostPort: strconv.Itoa(opts.Port)}},
		},
	}, nil, nil, opts.Name)
	if err != nil {
		return domain.Container{}, fmt.Errorf("failed to create container: %w", err)
	}

	if err := a.cli.ContainerStart(ctx, resp.ID, types.ContainerStartOptions{}); err != nil {
		// Leave no half-started container behind.
		_ = a.RemoveContainer(ctx, resp.ID)
		return domain.Container{}, fmt.Errorf("failed to start container: %w", err)
	}

	return a.InspectContainer(ctx, resp.ID)
}

// InspectContainer re-reads container state, including the advertised and
// bound ports the launcher compares after startup.
func (a *Adapter) InspectContainer(ctx context.Context, id string) (domain.Container, error) {
	info, err := a.cli.ContainerInspect(ctx, id)
	if err != nil {
		return domain.Container{}, fmt.Errorf("failed to inspect container: %w", err)
	}

	dc := domain.Container{
		ID:    info.ID[:12],
		Image: info.Config.Image,
	}
	if len(info.Name) > 1 {
		dc.Name = info.Name[1:]
	}
	if info.State != nil {
		dc.State = info.State.Status
		dc.Status = info.State.Status
	}
	dc.AdvertisedPort = advertisedPort(info.Config.Labels)

	if info.NetworkSettings != nil {
		for p, bindings := range info.NetworkSettings.Ports {
			if p.Int() != dc.AdvertisedPort {
				continue
			}
			for _, b := range bindings {
				if bound, err := strconv.Atoi(b.HostPort); err == nil && bound != 0 {
					dc.BoundPort = bound
					break
				}
			}
		}
		if info.NetworkSettings.IPAddress != "" {
			dc.IPAddress = info.NetworkSettings.IPAddress
		}
	}

	return dc, nil
}

// StopContainer stops a running container
func (a *Adapter) StopContainer(ctx context.Context, id string) error {
	// Timeout can be configurable, but keeping it simple for now
	timeout := 10 * time.Second
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return a.cli.ContainerStop(ctx, id, container.StopOptions{})
}

// RemoveContainer removes a stopped container.
func (a *Adapter) RemoveContainer(ctx context.Context, id string) error {
	return a.cli.ContainerRemove(ctx, id, types.ContainerRemoveOptions{Force: true})
}

// GetContainerLogs returns a stream of container logs
func (a *Adapter) GetContainerLogs(ctx context.Context, id string) (io.ReadCloser, error) {
	options := types.ContainerLogsOptions{
		ShowStdout: true,
		ShowStderr: true,
		Follow:     true,
		Timestamps: true,
	}
	return a.cli.ContainerLogs(ctx, id, options)
}

func advertisedPort(labels map[string]string) int {
	if v, ok := labels[PortLabel]; ok {
		if p, err := strconv.Atoi(v); err == nil {
			return p
		}
	}
	return 0
}

var _ ports.ContainerRuntime = (*Adapter)(nil)
