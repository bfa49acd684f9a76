// Package commands provides the CLI commands for weft.
package commands

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	// Version information set at build time
	Version   = "0.1.0"
	BuildTime = "dev"
)

var logLevel string

var rootCmd = &cobra.Command{
	Use:   "weft",
	Short: "weft - streaming tool-calling orchestrator",
	Long: `weft drives multi-turn, streaming conversations with a hosted
chat-completion endpoint, executing model-issued tool calls in a bounded
loop and multiplexing many concurrent conversations.

Run 'weft run' for a one-shot conversation turn, or 'weft serve' to start
the HTTP server.`,
	Version: Version,
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// .env is optional; env vars already set win
		_ = godotenv.Load()
		if logLevel != "" {
			os.Setenv("WEFT_LOG_LEVEL", logLevel)
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug|info|warn|error)")
	rootCmd.SetVersionTemplate(fmt.Sprintf("weft %s (%s)\n", Version, BuildTime))

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(runCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// GetWorkDir returns the working directory from flag or current directory.
func GetWorkDir(dir string) (string, error) {
	if dir != "" {
		return dir, nil
	}
	return os.Getwd()
}
