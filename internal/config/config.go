package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	yamlv3 "gopkg.in/yaml.v3"
)

// ErrConfig marks every configuration problem detected before a request is sent.
var ErrConfig = errors.New("invalid configuration")

// Errorf returns a formatted error marked as ErrConfig.
func Errorf(format string, args ...any) error {
	return errors.Mark(errors.Newf(format, args...), ErrConfig)
}

// envPrefix is the prefix of environment variable overrides.
const envPrefix = "FUNCALL_"

// nestedSections are config sections whose keys may be set from the
// environment, e.g. FUNCALL_HISTORY_ENABLED -> history.enabled.
var nestedSections = []string{"history", "overhead"}

// Load reads configuration from the given YAML file, then overlays
// environment variable overrides (FUNCALL_*). A missing file yields the
// defaults.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	// Start from defaults.
	cfg := DefaultConfig()

	if _, err := os.Stat(path); err == nil {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, errors.Mark(errors.Wrapf(err, "reading config %s", path), ErrConfig)
		}
	} else if !os.IsNotExist(err) {
		return nil, errors.Wrapf(err, "accessing config %s", path)
	}

	if err := k.Load(env.Provider(envPrefix, ".", envKey), nil); err != nil {
		return nil, errors.Wrap(err, "loading env overrides")
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, errors.Mark(errors.Wrap(err, "unmarshalling config"), ErrConfig)
	}

	return cfg, nil
}

// envKey maps FUNCALL_MAX_TURNS to max_turns and FUNCALL_HISTORY_PATH to
// history.path.
func envKey(s string) string {
	key := strings.ToLower(strings.TrimPrefix(s, envPrefix))
	for _, section := range nestedSections {
		if strings.HasPrefix(key, section+"_") {
			return section + "." + strings.TrimPrefix(key, section+"_")
		}
	}
	return key
}

// Save writes the configuration to the given YAML file path, creating the
// parent directory when needed.
func (c *Config) Save(path string) error {
	var doc yamlv3.Node
	if err := doc.Encode(c); err != nil {
		return errors.Wrap(err, "marshalling config")
	}
	setScalar(&doc, "provider_timeout", c.ProviderTimeout.String())
	data, err := yamlv3.Marshal(&doc)
	if err != nil {
		return errors.Wrap(err, "marshalling config")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrapf(err, "creating config directory for %s", path)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrapf(err, "writing config to %s", path)
	}
	return nil
}

// setScalar replaces the value of a top-level key. Durations would otherwise
// be written as integer nanoseconds.
func setScalar(doc *yamlv3.Node, key, value string) {
	root := doc
	if root.Kind == yamlv3.DocumentNode && len(root.Content) > 0 {
		root = root.Content[0]
	}
	if root.Kind != yamlv3.MappingNode {
		return
	}
	for i := 0; i+1 < len(root.Content); i += 2 {
		if root.Content[i].Value == key {
			root.Content[i+1] = &yamlv3.Node{Kind: yamlv3.ScalarNode, Tag: "!!str", Value: value}
			return
		}
	}
}

// validBackends is the set of recognized backend values.
var validBackends = map[Backend]bool{
	BackendOpenAI:     true,
	BackendOpenRouter: true,
	BackendOllama:     true,
}

// Validate checks that the configuration contains valid values. Every
// returned error is marked ErrConfig.
func (c *Config) Validate() error {
	if c.Backend == "" {
		return Errorf("backend is required")
	}
	if !validBackends[c.Backend] {
		return Errorf("invalid backend %q: must be one of openai, openrouter, ollama", c.Backend)
	}

	if strings.TrimSpace(c.Model) == "" {
		return Errorf("model is required")
	}

	if c.MaxTurns <= 0 {
		return Errorf("max_turns must be positive, got %d", c.MaxTurns)
	}

	if c.TopP < 0 || c.TopP > 1 {
		return Errorf("top_p must be between 0 and 1, got %g", c.TopP)
	}

	if c.Overhead.PerMessage < 0 || c.Overhead.PerName < 0 || c.Overhead.Reply < 0 {
		return Errorf("overhead values must be non-negative")
	}

	if c.ProviderTimeout < 0 {
		return Errorf("provider_timeout must be non-negative")
	}

	if c.RequestsPerMinute < 0 {
		return Errorf("requests_per_minute must be non-negative")
	}

	seen := make(map[string]bool, len(c.Providers))
	for i, p := range c.Providers {
		if strings.TrimSpace(p.Name) == "" {
			return Errorf("providers[%d]: name must not be empty", i)
		}
		if strings.TrimSpace(p.Command) == "" {
			return Errorf("provider %s: command must not be empty", p.Name)
		}
		if seen[p.Name] {
			return Errorf("provider %s: duplicate name", p.Name)
		}
		seen[p.Name] = true
	}

	for _, f := range c.Functions {
		if !seen[f.Name] {
			return Errorf("function override %q has no matching provider", f.Name)
		}
	}

	return nil
}

// APIKeyEnvVar returns the conventional environment variable name for
// the API key of the given backend.
func APIKeyEnvVar(b Backend) string {
	switch b {
	case BackendOpenAI:
		return "OPENAI_API_KEY"
	case BackendOpenRouter:
		return "OPENROUTER_API_KEY"
	default:
		return ""
	}
}
