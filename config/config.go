// Package config loads runtime settings for the lotus CLI and embedders
// from a YAML file, layered over sane defaults and a couple of
// environment variables.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	lotus "github.com/BrainbaseHQ/lotus-prompt"
)

// Duration is a time.Duration that unmarshals from YAML strings like
// "30s" or "2h".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the duration as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config is the full runtime configuration. Every field has a usable
// default so an empty file (or no file at all) yields a working setup.
type Config struct {
	// Model names the chat model used for exchanges, trigger
	// evaluation, and extraction.
	Model string `yaml:"model"`

	// MaxIterations caps consecutive unmatched iterations per loop.
	MaxIterations int `yaml:"max_iterations"`

	// MaxDepth bounds loop nesting at runtime.
	MaxDepth int `yaml:"max_depth"`

	// FallbackMessage is said when the loop guard trips.
	FallbackMessage string `yaml:"fallback_message"`

	// FallbackTransfer optionally hands guard-tripped sessions off.
	FallbackTransfer string `yaml:"fallback_transfer"`

	// HTTPTimeout bounds external api / webhook calls.
	HTTPTimeout Duration `yaml:"http_timeout"`

	// RedisAddr, when set, switches session state from in-memory maps
	// to a Redis hash per session.
	RedisAddr string `yaml:"redis_addr"`

	// RedisTTL expires idle Redis session state. Zero keeps it forever.
	RedisTTL Duration `yaml:"redis_ttl"`

	// NATSURL, when set, publishes session events to NATS instead of
	// the in-process broker.
	NATSURL string `yaml:"nats_url"`

	// RetainState keeps session state after the session ends.
	RetainState bool `yaml:"retain_state"`
}

// Default returns the configuration used when no file overrides it.
func Default() Config {
	return Config{
		Model:           "gpt-4o-mini",
		MaxIterations:   25,
		MaxDepth:        16,
		FallbackMessage: "I'm sorry, I'm having trouble helping with this. Let me connect you with someone who can.",
		HTTPTimeout:     Duration(30 * time.Second),
	}
}

// Load reads path and unmarshals it over Default. A missing file is not
// an error, the defaults are returned as-is. REDIS_ADDR and NATS_URL in
// the environment win over the file.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
		case err != nil:
			return cfg, fmt.Errorf("reading config %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("parsing config %s: %w", path, err)
			}
		}
	}

	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		cfg.RedisAddr = addr
	}
	if url := os.Getenv("NATS_URL"); url != "" {
		cfg.NATSURL = url
	}

	return cfg, cfg.validate()
}

func (c Config) validate() error {
	if c.Model == "" {
		return fmt.Errorf("model must not be empty")
	}
	if c.MaxIterations < 0 {
		return fmt.Errorf("max_iterations must not be negative")
	}
	if c.MaxDepth < 0 {
		return fmt.Errorf("max_depth must not be negative")
	}
	return nil
}

// Limits converts the ceilings and fallback policy into manager options.
func (c Config) Limits() lotus.Limits {
	return lotus.Limits{
		MaxIterations:    c.MaxIterations,
		MaxDepth:         c.MaxDepth,
		FallbackMessage:  c.FallbackMessage,
		FallbackTransfer: c.FallbackTransfer,
	}
}
