// Package app wires the bridge's cobra commands: serve (network
// transport), stream (stdio transport), validate (configuration check),
// and tools (manifest inspection).
package app

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/zohobridge/mcp-gateway/pkg/logger"
)

// NewRootCmd creates the root command for the bridge CLI.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:               "bridge",
		DisableAutoGenTag: true,
		Short:             "zoho-mcp-bridge adapts MCP tool calls onto the Zoho Projects and WorkDrive REST APIs",
		Run: func(cmd *cobra.Command, _ []string) {
			if err := cmd.Help(); err != nil {
				logger.Errorf("error displaying help: %v", err)
			}
		},
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			logger.Initialize()
		},
	}

	rootCmd.PersistentFlags().String("config", "", "path to config file")
	if err := viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config")); err != nil {
		logger.Errorf("error binding config flag: %v", err)
	}

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(streamCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(toolsCmd)

	rootCmd.SilenceUsage = true
	return rootCmd
}
