package app

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"dario.cat/mergo"
	"github.com/go-viper/mapstructure/v2"

	"github.com/seedbed/seedbed/internal/document"
)

// DefaultConfigFile is consulted when no --config flag is given. A missing
// default file is not an error.
const DefaultConfigFile = "seedbed.yaml"

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	API APIConfig `mapstructure:"api"`
	Log LogConfig `mapstructure:"log"`
	Run RunConfig `mapstructure:"run"`

	// Set carries caller-supplied system data. Fixtures resolve these
	// pairs through the same reference lookups as materialized entities.
	Set map[string]any `mapstructure:"set"`
}

// APIConfig describes how to reach the entity API.
type APIConfig struct {
	URL     string            `mapstructure:"url"`
	Token   string            `mapstructure:"token"`
	Headers map[string]string `mapstructure:"headers"`
	Timeout time.Duration     `mapstructure:"timeout"`
}

// LogConfig controls logger verbosity and output encoding.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// RunConfig holds per-run behaviour switches.
type RunConfig struct {
	Seed     uint64 `mapstructure:"seed"`
	Teardown bool   `mapstructure:"teardown"`
}

// NewConfig validates cfg and returns it ready for use.
func NewConfig(cfg Config) (*Config, error) {
	switch cfg.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return nil, fmt.Errorf("unknown log level %q (want debug, info, warn or error)", cfg.Log.Level)
	}
	switch cfg.Log.Format {
	case "text", "json":
	default:
		return nil, fmt.Errorf("unknown log format %q (want text or json)", cfg.Log.Format)
	}
	if cfg.API.Timeout < 0 {
		return nil, fmt.Errorf("api timeout must not be negative, got %s", cfg.API.Timeout)
	}
	return &cfg, nil
}

// LoadOptions selects the mutable configuration sources for LoadConfig.
type LoadOptions struct {
	// File is the config file path. Empty selects DefaultConfigFile.
	File string
	// FileExplicit marks File as user-supplied; a missing explicit file
	// is an error, a missing default file is skipped.
	FileExplicit bool
	// Flags holds dotted config keys ("log.level") for values bound to
	// command line flags, the highest precedence source.
	Flags map[string]any
}

// LoadConfig resolves configuration from built-in defaults, the optional
// config file, SEEDBED_* environment variables, and command line flags, in
// ascending precedence.
func LoadConfig(opts LoadOptions) (*Config, error) {
	path, explicit := opts.File, opts.FileExplicit
	if path == "" {
		path, explicit = DefaultConfigFile, false
	}

	merged := defaults()
	fileMap, err := fileLayer(path, explicit)
	if err != nil {
		return nil, err
	}
	if err := mergo.Merge(&merged, fileMap, mergo.WithOverride); err != nil {
		return nil, fmt.Errorf("merging config file %q: %w", path, err)
	}
	for _, layer := range []map[string]any{envLayer(), opts.Flags} {
		for key, value := range layer {
			setKey(merged, key, value)
		}
	}

	var cfg Config
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &cfg,
		WeaklyTypedInput: true,
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
	})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(merged); err != nil {
		return nil, fmt.Errorf("decoding configuration: %w", err)
	}
	return NewConfig(cfg)
}

// defaults is the base configuration layer; every other source overrides it.
func defaults() map[string]any {
	return map[string]any{
		"api": map[string]any{
			"timeout": "30s",
		},
		"log": map[string]any{
			"level":  "info",
			"format": "text",
		},
	}
}

// envBindings maps SEEDBED_* environment variables onto dotted config keys.
var envBindings = map[string]string{
	"SEEDBED_API_URL":      "api.url",
	"SEEDBED_API_TOKEN":    "api.token",
	"SEEDBED_API_TIMEOUT":  "api.timeout",
	"SEEDBED_LOG_LEVEL":    "log.level",
	"SEEDBED_LOG_FORMAT":   "log.format",
	"SEEDBED_RUN_SEED":     "run.seed",
	"SEEDBED_RUN_TEARDOWN": "run.teardown",
}

func envLayer() map[string]any {
	layer := map[string]any{}
	for env, key := range envBindings {
		if v, ok := os.LookupEnv(env); ok {
			layer[key] = v
		}
	}
	return layer
}

// fileLayer reads and decodes the config file into a plain map.
func fileLayer(path string, explicit bool) (map[string]any, error) {
	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) && !explicit {
		return map[string]any{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading config file %q: %w", path, err)
	}
	node, err := document.Decode(raw)
	if err != nil {
		return nil, fmt.Errorf("parsing config file %q: %w", path, err)
	}
	if _, empty := node.(document.Null); empty {
		return map[string]any{}, nil
	}
	m, ok := document.ToGo(node).(map[string]any)
	if !ok {
		return nil, fmt.Errorf("config file %q: top level must be a mapping", path)
	}
	return m, nil
}

// setKey writes value into m at a dotted key, creating intermediate maps.
// Map values merge shallowly so --set pairs stack on file-provided ones
// instead of replacing the whole group.
func setKey(m map[string]any, key string, value any) {
	parts := strings.Split(key, ".")
	for _, part := range parts[:len(parts)-1] {
		child, ok := m[part].(map[string]any)
		if !ok {
			child = map[string]any{}
			m[part] = child
		}
		m = child
	}
	last := parts[len(parts)-1]
	if src, ok := value.(map[string]any); ok {
		if dst, ok := m[last].(map[string]any); ok {
			for k, v := range src {
				dst[k] = v
			}
			return
		}
	}
	m[last] = value
}
