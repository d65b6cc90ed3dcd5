// Command fm is the foreman work-item orchestration server and CLI.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/forgecrew/foreman/internal/config"
)

var (
	// Version is overridden by ldflags at build time
	Version = "0.3.0"
	// Build can be set via ldflags at compile time
	Build = "dev"
)

var (
	dbPath  string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "fm",
	Short: "foreman - work-item orchestration for agent workflows",
	Long: `foreman tracks hierarchical work items through a role ladder
(queue -> work -> review -> terminal) with dependency gating, note-schema
gates, and parent cascades, exposed to agents as an MCP tool server.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := config.Initialize(); err != nil {
			return err
		}
		if dbPath != "" {
			config.Set("db", dbPath)
		}
		if verbose {
			config.Set("log.verbose", true)
		}
		return nil
	},
}

func main() {
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "database path (default: discovered .foreman/foreman.db)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log to stderr when no log file is configured")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(versionCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
