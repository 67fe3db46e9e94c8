package config

import (
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
)

const appName = "funcall"

// DefaultSystemPrompt is sent as the first message of every conversation.
const DefaultSystemPrompt = "You are a helpful command-line assistant. " +
	"Call one of the provided functions whenever it can supply facts you do not know. " +
	"Answer concisely in plain text."

// DefaultModel is used when the config does not name a model.
const DefaultModel = "gpt-3.5-turbo"

// defaultModels maps each backend to the model suggested by the wizard.
var defaultModels = map[Backend]string{
	BackendOpenAI:     DefaultModel,
	BackendOpenRouter: "openai/gpt-3.5-turbo",
	BackendOllama:     "llama3",
}

// DefaultModelFor returns the suggested model for a backend.
func DefaultModelFor(b Backend) string {
	if m, ok := defaultModels[b]; ok {
		return m
	}
	return DefaultModel
}

// DefaultPath returns the per-user config file location,
// e.g. ~/.config/funcall/config.yml on Linux.
func DefaultPath() string {
	return filepath.Join(xdg.ConfigHome, appName, "config.yml")
}

// DefaultHistoryPath returns the per-user history database location.
func DefaultHistoryPath() string {
	return filepath.Join(xdg.DataHome, appName, "history.db")
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Backend:      BackendOpenAI,
		Model:        DefaultModel,
		SystemPrompt: DefaultSystemPrompt,
		MaxTurns:     8,
		Overhead: OverheadConfig{
			PerMessage: 3,
			PerName:    1,
			Reply:      3,
		},
		ProviderTimeout: 30 * time.Second,
		History: HistoryConfig{
			Enabled: false,
		},
	}
}
