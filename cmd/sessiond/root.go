package main

import (
	"github.com/spf13/cobra"
)

// Global flags available to all subcommands.
var (
	envFile   string
	logFormat string
)

// NewRootCmd creates the root command for the sessiond CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessiond",
		Short: "sessiond - stateless session service",
		Long: `sessiond authenticates accounts with a password and issues stateless,
signed session credentials bound to an anti-forgery (XSRF) token.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before reading SESSIOND_* variables")
	cmd.PersistentFlags().StringVar(&logFormat, "log-format", "json", "log format: json or console")

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewKeygenCmd())
	cmd.AddCommand(NewHashCmd())
	cmd.AddCommand(NewAccountCmd())

	return cmd
}
