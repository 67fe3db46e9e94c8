package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/ziadkadry99/funcall/internal/budget"
	"github.com/ziadkadry99/funcall/internal/conversation"
	"github.com/ziadkadry99/funcall/internal/llm"
)

var costCmd = &cobra.Command{
	Use:   "cost",
	Short: "Estimate the prompt size and cost of a question without sending it",
	Long: `Performs a dry run: reads the question from standard input, queries the
function providers and computes the first request's prompt tokens, remaining
completion budget and input cost for every known model. No completion
request is made.`,
	Args: cobra.NoArgs,
	RunE: runCost,
}

func init() {
	rootCmd.AddCommand(costCmd)
}

func runCost(cmd *cobra.Command, args []string) error {
	logger := newLogger(cmd)

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	_, specs, err := loadFunctions(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}

	data, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return errors.Wrap(err, "reading standard input")
	}
	input := strings.TrimSpace(string(data))
	if input == "" {
		return conversation.ErrEmptyInput
	}

	messages := []llm.Message{}
	if cfg.SystemPrompt != "" {
		messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: cfg.SystemPrompt})
	}
	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: input})

	calc := newCalculator(cfg, logger)
	out := cmd.OutOrStdout()

	fmt.Fprintln(out, "Cost Estimate (first request)")
	fmt.Fprintln(out, "=============================")
	fmt.Fprintf(out, "  Messages:   %d\n", len(messages))
	fmt.Fprintf(out, "  Functions:  %d\n", len(specs))
	fmt.Fprintln(out)
	fmt.Fprintf(out, "    %-20s %8s %8s %10s\n", "Model", "Prompt", "Budget", "Input $")
	for _, m := range llm.Models() {
		prompt := calc.PromptTokens(m.Name, messages, specs)
		remaining, err := calc.MaxCompletionTokens(m.Name, messages, specs)
		budgetCol := fmt.Sprintf("%d", remaining)
		var exceeded *budget.BudgetExceededError
		if errors.As(err, &exceeded) {
			budgetCol = "too long"
		} else if err != nil {
			return err
		}

		marker := " "
		if m.Name == cfg.Model {
			marker = "*"
		}
		fmt.Fprintf(out, "  %s %-20s %8d %8s %10.6f\n", marker, m.Name, prompt, budgetCol, llm.EstimateCost(m.Name, prompt, 0))
	}
	fmt.Fprintln(out)
	fmt.Fprintln(out, "  * = current configuration")
	fmt.Fprintf(out, "  Backend: %s\n", cfg.Backend)
	fmt.Fprintf(out, "  Model:   %s\n", cfg.Model)
	return nil
}
