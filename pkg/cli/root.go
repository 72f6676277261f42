// Package cli implements the slopdrop command-line interface.
package cli

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

const (
	// Version is the current version of slopdrop
	Version = "1.0.0"
)

// GlobalConfig is the shared configuration instance
var GlobalConfig = &Settings{}

// NewRootCommand creates the root cobra command for slopdrop
func NewRootCommand() *cobra.Command {
	var configDir string

	cmd := &cobra.Command{
		Use:   "slopdrop",
		Short: "slopdrop - scriptable command runtime with versioned state",
		Long: `slopdrop embeds a small Tcl-like command language behind a versioned
state engine. Every successful evaluation that changes the environment is
recorded as a commit; history can be inspected and any commit restored.`,
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Initialize configuration
			if err := initConfig(configDir); err != nil {
				return fmt.Errorf("failed to initialize configuration: %w", err)
			}

			// Setup logging
			if GlobalConfig.Debug {
				log.SetOutput(os.Stderr)
				log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)
			} else {
				log.SetOutput(io.Discard)
			}

			return nil
		},
	}

	// Persistent flags (available to all subcommands)
	cmd.PersistentFlags().BoolVar(&GlobalConfig.Debug, "debug", false, "Enable debug logging")
	cmd.PersistentFlags().StringVar(&configDir, "config-dir", "", "Configuration directory (default: ~/.slopdrop)")

	// Add subcommands
	cmd.AddCommand(NewReplCommand())
	cmd.AddCommand(NewServeCommand())
	cmd.AddCommand(NewEvalCommand())
	cmd.AddCommand(NewHistoryCommand())
	cmd.AddCommand(NewRollbackCommand())

	return cmd
}

// initConfig resolves the configuration directory and loads config.yaml,
// creating a default file on first run.
func initConfig(configDir string) error {
	// Environment variable always takes priority (for testing)
	if envDir := os.Getenv("SLOPDROP_CONFIG_DIR"); envDir != "" {
		configDir = envDir
	}
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to get user home directory: %w", err)
		}
		configDir = filepath.Join(homeDir, ".slopdrop")
	}

	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	settings, err := LoadSettings(filepath.Join(configDir, "config.yaml"))
	if err != nil {
		return err
	}
	settings.Debug = GlobalConfig.Debug
	settings.ConfigDir = configDir
	*GlobalConfig = *settings

	return nil
}
