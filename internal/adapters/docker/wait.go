package docker

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/lobbi/launchpad/internal/core/domain"
)

const probeInterval = 250 * time.Millisecond

// WaitForListen blocks until a TCP connection to the container's bound port
// succeeds, proving the process inside came up and bound its advertised
// port, or fails after the timeout.
func (a *Adapter) WaitForListen(ctx context.Context, c domain.Container, timeout time.Duration) error {
	if c.BoundPort == 0 {
		return fmt.Errorf("container %s has no bound port to probe", c.ID)
	}
	addr := fmt.Sprintf("127.0.0.1:%d", c.BoundPort)
	return waitForTCP(ctx, addr, timeout)
}

func waitForTCP(ctx context.Context, addr string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		conn, err := net.DialTimeout("tcp", addr, probeInterval)
		if err == nil {
			return conn.Close()
		}

		if time.Now().After(deadline) {
			return fmt.Errorf("%s did not accept connections within %s: %w", addr, timeout, err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(probeInterval):
		}
	}
}
