package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New())
//  2. file (YAML) if CROPLENS_CONFIG is set
//  3. env (prefix CROPLENS_)
func Load(ctx context.Context) (*Config, error) {
	base := New()

	k := koanf.New(".")

	if path := os.Getenv("CROPLENS_CONFIG"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrLoadConfig, err)
		}
	}

	// Environment variables: CROPLENS_MAX_CLOUD, CROPLENS_SCENE_DIR, ...
	// Underscores are preserved to match the koanf tags on the struct.
	envProvider := env.Provider("CROPLENS_", ".", func(s string) string {
		s = strings.ToLower(s)
		return strings.TrimPrefix(s, "croplens_")
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoadConfig, err)
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoadConfig, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Source {
	case SourceSTAC:
		if c.StacURL == "" {
			return fmt.Errorf("%w: stac_url must not be empty for the stac source", ErrInvalidConfig)
		}
	case SourceLocal:
		if c.SceneDir == "" {
			return fmt.Errorf("%w: scene_dir must not be empty for the local source", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown source %q", ErrInvalidConfig, c.Source)
	}

	if c.MaxCloud < 0 || c.MaxCloud > 1 {
		return fmt.Errorf("%w: max_cloud must be in [0,1], got %v", ErrInvalidConfig, c.MaxCloud)
	}
	if c.FieldWorkers < 1 {
		return fmt.Errorf("%w: field_workers must be at least 1", ErrInvalidConfig)
	}

	switch c.Bucketing {
	case "stage", "slot":
	default:
		return fmt.Errorf("%w: bucketing must be \"stage\" or \"slot\", got %q", ErrInvalidConfig, c.Bucketing)
	}
	return nil
}
