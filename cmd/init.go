package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gnolang/tinvert/invert"
)

// initCmd: tinvert init
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a new configuration file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := initConfigurationFile(cfgFile)
		if err != nil {
			return fmt.Errorf("initialize config file: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Configuration file created/updated: %s\n", path)
		return nil
	},
}

func initConfigurationFile(configurationPath string) (string, error) {
	if configurationPath == "" {
		configurationPath = invert.DefaultConfigFile
	}
	return configurationPath, invert.WriteConfig(configurationPath, invert.DefaultConfig())
}
