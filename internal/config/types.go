package config

import "time"

// Backend identifies the chat-completion service to talk to.
type Backend string

const (
	BackendOpenAI     Backend = "openai"
	BackendOpenRouter Backend = "openrouter"
	BackendOllama     Backend = "ollama"
)

// ModelAuto selects the cheapest known model whose context window still
// fits the conversation.
const ModelAuto = "auto"

// Config is the top-level funcall configuration, corresponding to config.yml.
type Config struct {
	Backend            Backend            `yaml:"backend" koanf:"backend"`
	Model              string             `yaml:"model" koanf:"model"`
	BaseURL            string             `yaml:"base_url,omitempty" koanf:"base_url"`
	SystemPrompt       string             `yaml:"system_prompt" koanf:"system_prompt"`
	MaxTurns           int                `yaml:"max_turns" koanf:"max_turns"`
	TopP               float64            `yaml:"top_p,omitempty" koanf:"top_p"`
	Stop               []string           `yaml:"stop,omitempty" koanf:"stop"`
	SkipBudget         bool               `yaml:"skip_budget,omitempty" koanf:"skip_budget"`
	AllowUnknownModels bool               `yaml:"allow_unknown_models,omitempty" koanf:"allow_unknown_models"`
	Overhead           OverheadConfig     `yaml:"overhead" koanf:"overhead"`
	ProviderTimeout    time.Duration      `yaml:"provider_timeout" koanf:"provider_timeout"`
	RequestsPerMinute  int                `yaml:"requests_per_minute,omitempty" koanf:"requests_per_minute"`
	History            HistoryConfig      `yaml:"history" koanf:"history"`
	Providers          []ProviderConfig   `yaml:"providers" koanf:"providers"`
	Functions          []FunctionOverride `yaml:"functions,omitempty" koanf:"functions"`
}

// OverheadConfig holds the token framing constants used by the budget
// calculator.
type OverheadConfig struct {
	PerMessage int `yaml:"per_message" koanf:"per_message"`
	PerName    int `yaml:"per_name" koanf:"per_name"`
	Reply      int `yaml:"reply" koanf:"reply"`
}

// HistoryConfig controls the local run history database.
type HistoryConfig struct {
	Enabled bool   `yaml:"enabled" koanf:"enabled"`
	Path    string `yaml:"path,omitempty" koanf:"path"`
}

// ProviderConfig is the launch recipe of one function provider executable.
type ProviderConfig struct {
	Name    string   `yaml:"name" koanf:"name"`
	Command string   `yaml:"command" koanf:"command"`
	Args    []string `yaml:"args,omitempty" koanf:"args"`
}

// FunctionOverride replaces parts of a provider-reported function spec.
type FunctionOverride struct {
	Name        string         `yaml:"name" koanf:"name"`
	Description string         `yaml:"description,omitempty" koanf:"description"`
	Parameters  map[string]any `yaml:"parameters,omitempty" koanf:"parameters"`
}
