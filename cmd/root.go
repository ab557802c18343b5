/*
Copyright © 2025 3 Leaps <info@3leaps.net>
*/
package cmd

import (
	"errors"
	"os"

	"github.com/spf13/cobra"

	"github.com/fulmenhq/preflight/pkg/buildinfo"
	"github.com/fulmenhq/preflight/pkg/exitcode"
	"github.com/fulmenhq/preflight/pkg/logger"
)

// newRootCommand creates a fresh root command instance.
// Tests build isolated trees from it without shared flag state.
func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "preflight",
		Short: "Pre-install supply-chain scanner for JavaScript projects",
		Long: `Preflight inspects a freshly cloned project before you install its
dependencies. It flags suspicious code, install-time scripts, typosquatted
names, brand-new or unknown packages and known vulnerabilities.

Examples:
   preflight scan                   # Scan the current directory
   preflight scan ./repo -f json    # Machine-readable report
   preflight scan --skip-network    # Local checks only
   preflight version                # Show version`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			initializeLogger(cmd)
		},
	}

	cmd.PersistentFlags().String("log-level", "info", "Set log level (trace|debug|info|warn|error)")
	cmd.PersistentFlags().Bool("json-logs", false, "Output logs in JSON format")
	cmd.PersistentFlags().Bool("no-color", false, "Disable colored output")

	cmd.Version = buildinfo.Version()
	cmd.SetVersionTemplate("preflight {{.Version}}\n")
	return cmd
}

// registerSubcommands adds all subcommands to the root command.
func registerSubcommands(cmd *cobra.Command) {
	cmd.AddCommand(newScanCommand())
	cmd.AddCommand(newVersionCommand())
}

var rootCmd = newRootCommand()

func init() {
	registerSubcommands(rootCmd)
}

// Execute runs the root command and exits with the code carried by the
// returned error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		code := exitCodeFor(err)
		if code != exitcode.FindingsAtThreshold {
			logger.Error("Command execution failed", logger.Err(err))
		}
		os.Exit(code)
	}
}

func exitCodeFor(err error) int {
	var coded *exitcode.Error
	if errors.As(err, &coded) {
		return coded.Code
	}
	return exitcode.GeneralError
}

// initializeLogger sets up the logger based on command flags
func initializeLogger(cmd *cobra.Command) {
	logLevelStr, _ := cmd.Flags().GetString("log-level")
	jsonLogs, _ := cmd.Flags().GetBool("json-logs")
	noColor, _ := cmd.Flags().GetBool("no-color")

	config := logger.Config{
		Level:     logger.ParseLevel(logLevelStr),
		UseColor:  !noColor,
		JSON:      jsonLogs,
		Component: "preflight",
	}
	if err := logger.Initialize(config); err != nil {
		_, _ = os.Stderr.WriteString("Failed to initialize logger: " + err.Error() + "\n")
		os.Exit(exitcode.ConfigError)
	}
}
