package main

import (
	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:           "task-tracker",
	Short:         "Task tracker REST API",
	SilenceUsage:  true,
	SilenceErrors: true,
	// running the binary without a subcommand starts the server
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve(cmd.Context())
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "path to an optional YAML config file")
	rootCmd.AddCommand(serveCmd, migrateCmd)
}
