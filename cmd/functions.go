package cmd

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/samber/lo"
	"github.com/spf13/cobra"
)

var functionsJSON bool

var functionsCmd = &cobra.Command{
	Use:   "functions",
	Short: "List the functions offered by the configured providers",
	Long:  `Queries every configured provider for its function spec, applies the configured overrides and prints the result.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := newLogger(cmd)
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		_, specs, err := loadFunctions(cmd.Context(), cfg, logger)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if functionsJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(specs)
		}

		if len(specs) == 0 {
			fmt.Fprintln(out, "No function providers configured.")
			return nil
		}
		for _, spec := range specs {
			fmt.Fprintf(out, "%s\n", spec.Name)
			fmt.Fprintf(out, "  %s\n", spec.Description)
			if params := parameterNames(spec.Parameters); len(params) > 0 {
				fmt.Fprintf(out, "  parameters: %s\n", strings.Join(params, ", "))
			}
		}
		return nil
	},
}

func init() {
	functionsCmd.Flags().BoolVar(&functionsJSON, "json", false, "print the specs as JSON")
	rootCmd.AddCommand(functionsCmd)
}

// parameterNames lists the schema's properties, marking required ones with *.
func parameterNames(params map[string]any) []string {
	props, _ := params["properties"].(map[string]any)
	required, _ := params["required"].([]any)

	names := lo.Keys(props)
	sort.Strings(names)
	return lo.Map(names, func(name string, _ int) string {
		if lo.Contains(required, any(name)) {
			return name + "*"
		}
		return name
	})
}
