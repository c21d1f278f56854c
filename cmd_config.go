package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var configOut string

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Write the effective configuration as YAML",
	Long: `Writes the configuration after defaults, the --config file and environment
overrides have been applied. The output can be passed back with --config.

Example:
  negotiator config --out negotiator.yaml`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Save(configOut); err != nil {
			return err
		}
		logger.Info("Configuration written", zap.String("path", configOut))
		return nil
	},
}

func init() {
	configCmd.Flags().StringVarP(&configOut, "out", "o", "", "file to write")
	_ = configCmd.MarkFlagRequired("out")
}
