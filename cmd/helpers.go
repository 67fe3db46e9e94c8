package cmd

import (
	"context"

	"github.com/charmbracelet/log"
	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/ziadkadry99/funcall/internal/budget"
	"github.com/ziadkadry99/funcall/internal/config"
	"github.com/ziadkadry99/funcall/internal/db"
	"github.com/ziadkadry99/funcall/internal/functions"
	"github.com/ziadkadry99/funcall/internal/history"
	"github.com/ziadkadry99/funcall/internal/llm"
	"github.com/ziadkadry99/funcall/internal/output"
)

func newLogger(cmd *cobra.Command) *log.Logger {
	return output.NewLogger(cmd.ErrOrStderr(), verbosity)
}

// loadConfig loads and validates the config, providing a user-friendly error.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, errors.WithHint(err, "run `funcall init` to create a config file")
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.WithHintf(err, "fix %s or run `funcall init`", cfgFile)
	}
	return cfg, nil
}

// loadFunctions builds the provider registry and queries every spec.
func loadFunctions(ctx context.Context, cfg *config.Config, logger *log.Logger) (*functions.Registry, []llm.FunctionSpec, error) {
	registry, err := functions.Load(cfg.Providers, cfg.Functions,
		functions.WithTimeout(cfg.ProviderTimeout),
		functions.WithLogger(logger),
	)
	if err != nil {
		return nil, nil, err
	}

	specs, err := registry.Specs(ctx)
	if err != nil {
		return nil, nil, err
	}
	if names := registry.Names(); len(names) == 0 {
		logger.Warn("no function providers configured", "config", cfgFile)
	} else {
		logger.Info("functions loaded", "names", names)
	}
	return registry, specs, nil
}

// newCompletionClient creates the completion backend from config settings.
func newCompletionClient(cfg *config.Config) (llm.Provider, error) {
	provider, err := llm.NewProvider(string(cfg.Backend), cfg.Model, cfg.BaseURL)
	if err != nil {
		return nil, errors.Mark(err, config.ErrConfig)
	}
	return llm.NewRateLimitedProvider(provider, cfg.RequestsPerMinute), nil
}

// newCalculator builds the token budget calculator, using tiktoken with a
// character heuristic as fallback.
func newCalculator(cfg *config.Config, logger *log.Logger) *budget.Calculator {
	return budget.NewCalculator(
		budget.NewTiktokenCounter(budget.HeuristicCounter{}),
		budget.WithOverhead(budget.Overhead{
			PerMessage: cfg.Overhead.PerMessage,
			PerName:    cfg.Overhead.PerName,
			Reply:      cfg.Overhead.Reply,
		}),
		budget.WithUnknownModels(cfg.AllowUnknownModels),
		budget.WithLogger(logger),
	)
}

func historyPath(cfg *config.Config) string {
	if cfg.History.Path != "" {
		return cfg.History.Path
	}
	return config.DefaultHistoryPath()
}

func openHistory(cfg *config.Config, logger *log.Logger) (*history.Store, func(), error) {
	database, err := db.Open(historyPath(cfg))
	if err != nil {
		return nil, nil, errors.Wrap(err, "opening run history")
	}
	logger.Debug("run history opened", "path", database.Path())
	return history.NewStore(database), func() { database.Close() }, nil
}

// recordRun stores a finished run. Failures are logged, never returned.
func recordRun(ctx context.Context, cfg *config.Config, logger *log.Logger, run history.Run) {
	store, closeStore, err := openHistory(cfg, logger)
	if err != nil {
		logger.Warn("run history unavailable", "err", err)
		return
	}
	defer closeStore()

	id, err := store.Record(ctx, run)
	if err != nil {
		logger.Warn("recording run failed", "err", err)
		return
	}
	logger.Debug("run recorded", "id", id)
}
