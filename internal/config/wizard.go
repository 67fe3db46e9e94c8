package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/manifoldco/promptui"
)

// RunWizard runs an interactive configuration wizard, saves the result to
// path and returns it.
func RunWizard(path string) (*Config, error) {
	fmt.Println("Welcome to funcall! Let's configure your assistant.")
	fmt.Println()

	cfg := DefaultConfig()

	// 1. Backend selection.
	backendPrompt := promptui.Select{
		Label: "Select completion backend",
		Items: []string{string(BackendOpenAI), string(BackendOpenRouter), string(BackendOllama)},
	}
	_, backendStr, err := backendPrompt.Run()
	if err != nil {
		return nil, errors.Wrap(err, "backend selection")
	}
	cfg.Backend = Backend(backendStr)
	// Local models are missing from the model table.
	cfg.AllowUnknownModels = cfg.Backend == BackendOllama

	// 2. Model.
	modelPrompt := promptui.Prompt{
		Label:   "Model (\"auto\" picks the cheapest model that fits)",
		Default: DefaultModelFor(cfg.Backend),
	}
	if cfg.Model, err = modelPrompt.Run(); err != nil {
		return nil, errors.Wrap(err, "model")
	}

	// 3. Function providers, repeated until the name is left blank.
	for {
		p, err := promptProvider(len(cfg.Providers) + 1)
		if err != nil {
			return nil, err
		}
		if p == nil {
			break
		}
		cfg.Providers = append(cfg.Providers, *p)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	envVar := APIKeyEnvVar(cfg.Backend)
	if envVar != "" && os.Getenv(envVar) == "" {
		fmt.Printf("\nNote: Set %s in your environment before running funcall.\n", envVar)
	}

	if err := cfg.Save(path); err != nil {
		return nil, errors.Wrap(err, "saving config")
	}

	fmt.Printf("\nConfiguration saved to %s\n", path)
	return cfg, nil
}

// promptProvider asks for one provider entry. It returns nil when the user
// leaves the name empty.
func promptProvider(n int) (*ProviderConfig, error) {
	namePrompt := promptui.Prompt{
		Label: fmt.Sprintf("Function provider #%d name (blank to finish)", n),
	}
	name, err := namePrompt.Run()
	if err != nil {
		return nil, errors.Wrap(err, "provider name")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, nil
	}

	commandPrompt := promptui.Prompt{
		Label: "Command line for " + name,
		Validate: func(s string) error {
			if len(strings.Fields(s)) == 0 {
				return errors.New("command must not be empty")
			}
			return nil
		},
	}
	line, err := commandPrompt.Run()
	if err != nil {
		return nil, errors.Wrap(err, "provider command")
	}

	fields := strings.Fields(line)
	return &ProviderConfig{Name: name, Command: fields[0], Args: fields[1:]}, nil
}
