// Package commands provides the CLI commands for sidekick.
package commands

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/sidekick-ai/sidekick/internal/config"
)

var (
	// Version information set at build time
	Version   = "0.1.0"
	BuildTime = "dev"
)

// Global flags
var (
	logLevel  string
	socketDir string
)

var rootCmd = &cobra.Command{
	Use:   "sidekick",
	Short: "sidekick - editor-aware permission hooks for coding agents",
	Long: `sidekick mediates between a coding agent's file modifications and your
live editor sessions. As a hook it denies edits to files you are actively
editing with unsaved changes, reloads buffers after the agent writes to
disk, and injects your visual selection as prompt context.

Run 'sidekick hook' from the agent's hook configuration, and launch your
editor through 'sidekick nvim' so it is discoverable.`,
	Version: Version,
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

func init() {
	cobra.OnInitialize(func() {
		_ = godotenv.Load()
	})

	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (DEBUG|INFO|WARN|ERROR)")
	rootCmd.PersistentFlags().StringVar(&socketDir, "socket-dir", "", "Directory holding editor instance sockets")

	rootCmd.SetVersionTemplate(fmt.Sprintf("sidekick %s (%s)\n", Version, BuildTime))

	rootCmd.AddCommand(hookCmd)
	rootCmd.AddCommand(nvimCmd)
	rootCmd.AddCommand(instancesCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// loadConfig loads configuration for the current directory and applies
// command-line overrides.
func loadConfig() *config.Config {
	cwd, _ := os.Getwd()
	cfg := config.Load(cwd)
	if socketDir != "" {
		cfg.SocketDir = socketDir
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	return cfg
}
