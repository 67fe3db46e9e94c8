package cmd

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/ziadkadry99/funcall/internal/config"
	"github.com/ziadkadry99/funcall/internal/conversation"
	"github.com/ziadkadry99/funcall/internal/history"
	"github.com/ziadkadry99/funcall/internal/output"
	"github.com/ziadkadry99/funcall/internal/progress"
)

var (
	cfgFile   string
	verbosity int
)

var rootCmd = &cobra.Command{
	Use:   "funcall",
	Short: "Answer questions with a chat model that can call local functions",
	Long: `funcall reads a question from standard input, sends it to a chat
completion service together with the functions offered by the configured
provider executables, runs the functions the model asks for and prints
the model's final answer.`,
	Example: `  echo "What is the weather like in Boston?" | funcall
  funcall -v < question.txt`,
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runConversation,
}

// Execute runs the CLI and returns the process exit code.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	return output.NewWriter(os.Stdout, os.Stderr).Fail(err)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", config.DefaultPath(), "config file path")
	rootCmd.PersistentFlags().CountVarP(&verbosity, "verbose", "v", "log function calls (-v) and full payloads (-vv)")
}

func runConversation(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	logger := newLogger(cmd)

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	registry, specs, err := loadFunctions(ctx, cfg, logger)
	if err != nil {
		return err
	}

	client, err := newCompletionClient(cfg)
	if err != nil {
		return err
	}

	data, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return errors.Wrap(err, "reading standard input")
	}
	input := string(data)

	reporter := progress.NewReporter(logger)
	orchestrator := conversation.NewOrchestrator(
		client,
		registry,
		conversation.NewBuilder(conversation.PolicyFromConfig(cfg), newCalculator(cfg, logger)),
		specs,
		conversation.WithSystemPrompt(cfg.SystemPrompt),
		conversation.WithMaxTurns(cfg.MaxTurns),
		conversation.WithObserver(reporter),
	)

	started := time.Now()
	res, runErr := orchestrator.Run(ctx, input)
	reporter.Finish(res)

	if cfg.History.Enabled {
		recordRun(context.WithoutCancel(ctx), cfg, logger, history.NewRun(started, string(cfg.Backend), input, res, runErr))
	}

	if runErr != nil {
		return runErr
	}
	return output.NewWriter(cmd.OutOrStdout(), cmd.ErrOrStderr()).Answer(res.Answer)
}
