// Package cli parses the orchestrator's command-line surface (§6): one or
// more -c/--config-dir roots to scan and watch, and an optional
// -p/--plain-output override.
package cli

import (
	"github.com/spf13/cobra"
)

// Options carries the parsed command-line arguments.
type Options struct {
	ConfigDirs  []string
	PlainOutput bool
}

// Parse parses args into Options. At least one --config-dir is enforced by
// the callers (runApp in cmd/main.go and App.Start), not here, so that
// --help keeps working without one.
func Parse(args []string) (*Options, error) {
	result := &Options{}

	root := buildRootCommand(result)
	root.SetArgs(args)

	if err := root.Execute(); err != nil {
		return nil, err
	}

	return result, nil
}

func buildRootCommand(result *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jigctl",
		Short: "Factory/hardware test orchestrator",
		Long: `jigctl discovers declarative unit files on disk, evaluates their
mutual compatibility, and drives selected units through their lifecycle in
response to external triggers.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return nil
		},
	}

	cmd.Flags().StringArrayVarP(&result.ConfigDirs, "config-dir", "c", nil,
		"root directory to scan and watch for unit files (repeatable)")
	cmd.Flags().BoolVarP(&result.PlainOutput, "plain-output", "p", false,
		"force plain (non-interactive) terminal output")

	return cmd
}
