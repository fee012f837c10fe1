package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// YAMLLoader loads a Config from a YAML file overlaid with environment
// variables, mirroring the pack's viper-backed layered loader: file values
// win unless an env var of the form ZOHOBRIDGE_<FIELD> is set, in which
// case the env var wins. This lets an operator inject secrets (client
// secret, refresh token, signing key, webhook secret) via environment
// rather than committing them to the config file. Those four secrets are
// bound explicitly; any other field takes its env override only when its
// key also appears in the file.
type YAMLLoader struct {
	path string
	v    *viper.Viper
}

// NewYAMLLoader constructs a loader for the YAML file at path.
func NewYAMLLoader(path string) *YAMLLoader {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("zohobridge")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	for _, key := range []string{"upstream-client-secret", "upstream-refresh-token", "bearer-signing-key", "webhook-secret"} {
		_ = v.BindEnv(key)
	}
	return &YAMLLoader{path: path, v: v}
}

// Load reads the file, overlays the environment, and unmarshals onto the
// spec-mandated defaults.
func (l *YAMLLoader) Load() (*Config, error) {
	if _, err := os.Stat(l.path); err != nil {
		return nil, fmt.Errorf("config: stat %q: %w", l.path, err)
	}
	if err := l.v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: read %q: %w", l.path, err)
	}

	cfg := Defaults()
	if err := l.v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal %q: %w", l.path, err)
	}
	return cfg, nil
}
