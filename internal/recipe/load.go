package recipe

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Load reads the recipe from the optional YAML file at path, then overlays
// environment variables with the LAUNCHPAD_ prefix (e.g. LAUNCHPAD_RUNTIME_PORT).
// A missing file is not an error; the recipe can come entirely from
// defaults plus environment.
func Load(path string) (*Recipe, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix("LAUNCHPAD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			v.SetConfigFile(path)
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("reading recipe %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("reading recipe %s: %w", path, err)
		}
	}

	var rec Recipe
	if err := v.Unmarshal(&rec); err != nil {
		return nil, fmt.Errorf("parsing recipe: %w", err)
	}

	if err := rec.Validate(); err != nil {
		return nil, err
	}
	return &rec, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("build.workdir", DefaultWorkDir)
	v.SetDefault("build.manifest", DefaultManifest)
	v.SetDefault("build.install_command", DefaultInstallCommand)
	v.SetDefault("runtime.host", DefaultHost)
	v.SetDefault("runtime.port", DefaultPort)
	v.SetDefault("runtime.startup_timeout", DefaultStartupTimeout)
	v.SetDefault("ingress.addr", DefaultIngressAddr)
}
