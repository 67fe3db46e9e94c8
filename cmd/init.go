package cmd

import (
	"github.com/spf13/cobra"

	"github.com/ziadkadry99/funcall/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the funcall configuration with an interactive wizard",
	Long:  `Runs an interactive wizard that picks a completion backend and model, registers function providers and writes the config file.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, err := config.RunWizard(cfgFile)
		return err
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
