package cmd

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/ziadkadry99/funcall/internal/llm"
)

var (
	historyLimit int
	historyJSON  bool
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recorded runs",
	Long:  `Lists the runs stored in the local history database, newest first. Recording is enabled with history.enabled in the config file.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := newLogger(cmd)
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		store, closeStore, err := openHistory(cfg, logger)
		if err != nil {
			return err
		}
		defer closeStore()

		runs, err := store.List(cmd.Context(), historyLimit)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if historyJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(runs)
		}

		if len(runs) == 0 {
			fmt.Fprintln(out, "No runs recorded.")
			return nil
		}
		for _, r := range runs {
			fmt.Fprintf(out, "%s  %s  %-6s  %-14s  %d calls  %s\n",
				r.ID, r.StartedAt.Local().Format(time.DateTime), r.Status, r.Model, r.FunctionCalls, oneLine(r.Input, 60))
		}
		return nil
	},
}

var historyShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Print the conversation of a recorded run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := newLogger(cmd)
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		store, closeStore, err := openHistory(cfg, logger)
		if err != nil {
			return err
		}
		defer closeStore()

		run, err := store.Get(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if historyJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(run)
		}

		fmt.Fprintf(out, "Run %s\n", run.ID)
		fmt.Fprintf(out, "  Started:  %s (%s)\n", run.StartedAt.Local().Format(time.DateTime), run.Duration)
		fmt.Fprintf(out, "  Backend:  %s\n", run.Backend)
		fmt.Fprintf(out, "  Model:    %s\n", run.Model)
		fmt.Fprintf(out, "  Status:   %s\n", run.Status)
		fmt.Fprintf(out, "  Requests: %d, function calls: %d, tokens: %d in / %d out\n",
			run.Requests, run.FunctionCalls, run.InputTokens, run.OutputTokens)
		if run.Error != "" {
			fmt.Fprintf(out, "  Error:    %s\n", run.Error)
		}
		fmt.Fprintln(out)
		for _, m := range run.Conversation {
			fmt.Fprintln(out, formatMessage(m))
		}
		return nil
	},
}

func init() {
	historyCmd.PersistentFlags().BoolVar(&historyJSON, "json", false, "print as JSON")
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "maximum number of runs to list (0 lists all)")
	historyCmd.AddCommand(historyShowCmd)
	rootCmd.AddCommand(historyCmd)
}

func formatMessage(m llm.Message) string {
	switch {
	case m.FunctionCall != nil:
		return fmt.Sprintf("[%s] call %s(%s)", m.Role, m.FunctionCall.Name, m.FunctionCall.Arguments)
	case m.Role == llm.RoleFunction:
		return fmt.Sprintf("[%s %s] %s", m.Role, m.Name, m.Content)
	default:
		return fmt.Sprintf("[%s] %s", m.Role, m.Content)
	}
}

func oneLine(s string, limit int) string {
	s = strings.Join(strings.Fields(s), " ")
	if utf8.RuneCountInString(s) > limit {
		return lo.Substring(s, 0, uint(limit)) + "..."
	}
	return s
}
