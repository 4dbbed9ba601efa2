// Package config implements the kernel's layered configuration: defaults,
// then a YAML file, then environment variables, merged via koanf and
// validated with go-playground/validator before anything is wired up.
package config

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// Config is the kernel's own ambient configuration: listener binding,
// shutdown deadline, and the TLS/logging knobs every deployment needs
// regardless of which protocol collaborators it wires in.
type Config struct {
	Listen          string `koanf:"listen" validate:"required,hostname_port|ip4_addr"`
	ShutdownTimeout string `koanf:"shutdown_timeout" validate:"required"`
	LogLevel        string `koanf:"log_level" validate:"required,oneof=debug info warn error"`
	TLS             TLSConfig `koanf:"tls"`
	Metrics         MetricsConfig `koanf:"metrics"`
}

// TLSConfig configures the security layer's certificate source.
type TLSConfig struct {
	Enabled   bool     `koanf:"enabled"`
	AutoCert  bool     `koanf:"autocert"`
	Hosts     []string `koanf:"hosts" validate:"required_if=Enabled true AutoCert true"`
	CacheDir  string   `koanf:"cache_dir"`
	CertFile  string   `koanf:"cert_file" validate:"required_if=Enabled true AutoCert false"`
	KeyFile   string   `koanf:"key_file" validate:"required_if=Enabled true AutoCert false"`
}

// MetricsConfig configures the prometheus exposition endpoint.
type MetricsConfig struct {
	Enabled bool   `koanf:"enabled"`
	Listen  string `koanf:"listen"`
}

// Default returns the kernel's baseline configuration, used as the base
// layer every other source is merged over.
func Default() Config {
	return Config{
		Listen:          "127.0.0.1:8080",
		ShutdownTimeout: "10s",
		LogLevel:        "info",
		Metrics:         MetricsConfig{Enabled: true, Listen: "127.0.0.1:9090"},
	}
}

// Load merges Default() with an optional YAML file at path (skipped if
// path is empty; a missing file is an error) and environment variables
// prefixed with envPrefix (e.g. "RAMA_"), then validates the result.
func Load(path, envPrefix string) (Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return Config{}, fmt.Errorf("load config defaults: %w", err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return Config{}, fmt.Errorf("load config file %q: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, envPrefix)), "_", ".")
	}), nil); err != nil {
		return Config{}, fmt.Errorf("load config env: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

var validatorInstance = validator.New()

func validate(cfg Config) error {
	if err := validatorInstance.Struct(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}
