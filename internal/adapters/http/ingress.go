package http

import (
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/rs/zerolog"

	"github.com/lobbi/launchpad/internal/core/domain"
	"github.com/lobbi/launchpad/internal/core/ports"
)

// IngressHandler stands in for the hosting platform's edge: it forwards
// inbound HTTP to the bound port of the one container the launcher runs.
type IngressHandler struct {
	runtime ports.ContainerRuntime
	appName string
	log     zerolog.Logger
}

func NewIngressHandler(runtime ports.ContainerRuntime, appName string, log zerolog.Logger) *IngressHandler {
	return &IngressHandler{runtime: runtime, appName: appName, log: log}
}

// NewIngressApp builds a fiber app that proxies every request.
func NewIngressApp(runtime ports.ContainerRuntime, appName string, log zerolog.Logger) *fiber.App {
	h := NewIngressHandler(runtime, appName, log)
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	app.Use(h.Forward)
	return app
}

// Forward proxies the request to the running app container.
func (h *IngressHandler) Forward(c *fiber.Ctx) error {
	target, err := h.resolveTarget(c)
	if err != nil {
		return c.Status(fiber.StatusNotFound).SendString(err.Error())
	}

	remote, err := url.Parse("http://" + target)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).SendString("Invalid target URL")
	}

	proxy := httputil.NewSingleHostReverseProxy(remote)

	// Rewrite Host to the target so the app inside the container sees a
	// host it expects.
	originalDirector := proxy.Director
	proxy.Director = func(req *http.Request) {
		originalDirector(req)
		req.Host = remote.Host
		req.URL.Host = remote.Host
		req.URL.Scheme = remote.Scheme
	}

	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		h.log.Warn().Err(err).Str("target", target).Msg("ingress proxy error")
		w.WriteHeader(http.StatusBadGateway)
		fmt.Fprintf(w, "Proxy Info: target=%s error=%v", target, err)
	}

	return adaptor.HTTPHandler(proxy)(c)
}

// resolveTarget finds the running container for the app and returns its
// published host:port.
func (h *IngressHandler) resolveTarget(c *fiber.Ctx) (string, error) {
	containers, err := h.runtime.ListContainers(c.Context())
	if err != nil {
		return "", fmt.Errorf("failed to list containers: %w", err)
	}

	var found *domain.Container
	for i, container := range containers {
		if container.Name == h.appName && container.State == "running" {
			found = &containers[i]
			break
		}
	}
	if found == nil || found.BoundPort == 0 {
		return "", fmt.Errorf("app %q not found or not running", h.appName)
	}

	return fmt.Sprintf("127.0.0.1:%d", found.BoundPort), nil
}
