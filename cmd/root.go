// Package cmd implements the chatgraph CLI using cobra.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/chatgraph-poc/server/internal/config"
	logx "github.com/chatgraph-poc/server/pkg/logger"
)

const version = "0.1.0"

var (
	envFile  string
	logLevel string

	appConfig *config.AppConfig
)

// rootCmd is the base command.
var rootCmd = &cobra.Command{
	Use:           "chatgraph",
	Short:         "Tool-calling chat assistant",
	Long:          "chatgraph runs a chat model in a loop with its tools, from the terminal or over HTTP.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load(envFile)
		if err != nil {
			return err
		}
		level := cfg.LogLevel
		if logLevel != "" {
			level = logLevel
		}
		logx.Init(logx.LoggerOpts{Environment: cfg.Environment, Level: level, Output: cmd.ErrOrStderr()})
		appConfig = cfg
		return nil
	},
}

// Execute runs the root command and exits on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.Version = version

	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Env file loaded before reading the environment")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (overrides LOG_LEVEL)")

	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(verifyAuthCmd)
}
