// Package recipe defines the build recipe consumed by the launcher: which
// base runtime to build on, where the dependency manifest and source tree
// live, which entry point the server resolves at startup, and the port
// contract the running container must honor.
package recipe

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/lobbi/launchpad/internal/core/domain"
)

// Recipe is the root of a launchpad.yml deploy recipe.
type Recipe struct {
	App     AppConfig     `mapstructure:"app" validate:"required"`
	Build   BuildConfig   `mapstructure:"build" validate:"required"`
	Runtime RuntimeConfig `mapstructure:"runtime" validate:"required"`
	Ingress IngressConfig `mapstructure:"ingress"`
}

type AppConfig struct {
	Name string `mapstructure:"name" validate:"required,hostname_rfc1123"`
	// EntryPoint names the application object the server loads at
	// startup, "module:object".
	EntryPoint string `mapstructure:"entrypoint" validate:"required,contains=:"`
}

type BuildConfig struct {
	// BaseImage is the runtime the image is built FROM.
	BaseImage string `mapstructure:"base_image" validate:"required"`
	// WorkDir is the fixed working location the source tree is copied to.
	WorkDir string `mapstructure:"workdir" validate:"required,startswith=/"`
	// Manifest is the dependency manifest path, relative to the source root.
	Manifest string `mapstructure:"manifest" validate:"required"`
	// Source is a local directory or a git URL to shallow-clone.
	Source string `mapstructure:"source" validate:"required"`
	// ImageTag names the built image. Empty means "<app.name>:latest".
	ImageTag string `mapstructure:"image_tag"`
	// InstallCommand installs the manifest inside the image. {{.Manifest}}
	// is substituted.
	InstallCommand string `mapstructure:"install_command"`
	// ServerCommand overrides the container command. Empty means the
	// standard ASGI launch: uvicorn <entrypoint> on the recipe's port.
	ServerCommand []string `mapstructure:"server_command"`
}

type RuntimeConfig struct {
	// Host and Port are the listen contract advertised to the platform.
	Host string `mapstructure:"host" validate:"required,ip"`
	Port int    `mapstructure:"port" validate:"required,gt=0,lte=65535"`
	// StartupTimeout bounds how long the launcher waits for the port to
	// accept connections after the container starts.
	StartupTimeout time.Duration `mapstructure:"startup_timeout" validate:"required"`
	Env            []string      `mapstructure:"env"`
}

type IngressConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

// Defaults mirroring the original deploy artifact: serve on all interfaces,
// port 8080, a pip-style installer, half a minute to come up.
const (
	DefaultHost           = "0.0.0.0"
	DefaultPort           = 8080
	DefaultWorkDir        = "/app"
	DefaultManifest       = "requirements.txt"
	DefaultStartupTimeout = 30 * time.Second
	DefaultInstallCommand = "pip install --no-cache-dir -r {{.Manifest}}"
	DefaultIngressAddr    = ":9000"
)

// Validate checks the recipe with struct tags plus the cross-field rules
// tags cannot express.
func (r *Recipe) Validate() error {
	if err := validator.New().Struct(r); err != nil {
		return fmt.Errorf("invalid recipe: %w", err)
	}
	if _, err := domain.ParseEntryPoint(r.App.EntryPoint); err != nil {
		return fmt.Errorf("invalid recipe: %w", err)
	}
	if r.Ingress.Enabled && r.Ingress.Addr == "" {
		return fmt.Errorf("invalid recipe: ingress.addr is required when ingress is enabled")
	}
	return nil
}

// EntryPoint returns the parsed entry point. Validate must have accepted
// the recipe first.
func (r *Recipe) EntryPoint() domain.EntryPoint {
	ep, _ := domain.ParseEntryPoint(r.App.EntryPoint)
	return ep
}

// Tag returns the image tag, defaulting to "<app.name>:latest".
func (r *Recipe) Tag() string {
	if r.Build.ImageTag != "" {
		return r.Build.ImageTag
	}
	return r.App.Name + ":latest"
}
