package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/samuelfneumann/portfolioa2c/experiment"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Write the default configuration",
	Long: `Config writes the default training configuration to a file. The
format is YAML for .yaml and .yml files and JSON otherwise.`,
	RunE: runConfig,
}

var configOut string

func init() {
	rootCmd.AddCommand(configCmd)

	configCmd.Flags().StringVarP(&configOut, "out", "o", "config.yaml",
		"path to write the configuration to")
}

func runConfig(cmd *cobra.Command, args []string) error {
	if err := experiment.DefaultConfig().SaveToFile(configOut); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", configOut)
	return nil
}
