package commands

import (
	"context"
	"fmt"
	"io"

	fcolor "github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/envswitch/envswitch/pkg/errdefs"
	"github.com/envswitch/envswitch/pkg/notify"
)

var (
	// Global flags
	configDir  string
	verbose    bool
	jsonOutput bool
	noColor    bool
)

// Execute runs the root command and prints any error with its hint.
func Execute(ctx context.Context, version, commit, buildDate string) error {
	rt := newRuntime(version)
	rootCmd := newRootCommand(rt, version, commit, buildDate)

	err := rootCmd.ExecuteContext(ctx)
	rt.close(err)
	if err != nil {
		reportError(rootCmd.ErrOrStderr(), err)
	}
	return err
}

func newRootCommand(rt *runtime, version, commit, buildDate string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "envswitch",
		Short: "envswitch - switch between named sets of environment variables",
		Long: `envswitch stores named sets of environment variables and switches your
shell between them.

Features:
  - Named configurations with descriptions and timestamps
  - Shell activation for bash, zsh, fish and POSIX sh
  - Import and export as JSON, ENV or YAML
  - Automatic backups and an audit history`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if noColor {
				fcolor.NoColor = true
			}
		},
	}

	// Persistent flags available to all commands
	rootCmd.PersistentFlags().StringVar(&configDir, "config-dir", "", "configuration directory (default: $ENVSWITCH_CONFIG_DIR or the user config dir)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output in JSON format")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")

	// Add subcommands
	rootCmd.AddCommand(newSetCommand(rt))
	rootCmd.AddCommand(newUseCommand(rt))
	rootCmd.AddCommand(newDeactivateCommand(rt))
	rootCmd.AddCommand(newListCommand(rt))
	rootCmd.AddCommand(newShowCommand(rt))
	rootCmd.AddCommand(newStatusCommand(rt))
	rootCmd.AddCommand(newDeleteCommand(rt))
	rootCmd.AddCommand(newRenameCommand(rt))
	rootCmd.AddCommand(newEditCommand(rt))
	rootCmd.AddCommand(newExportCommand(rt))
	rootCmd.AddCommand(newImportCommand(rt))
	rootCmd.AddCommand(newBackupCommand(rt))
	rootCmd.AddCommand(newHistoryCommand(rt))
	rootCmd.AddCommand(newWatchCommand(rt))
	rootCmd.AddCommand(newInitCommand())
	rootCmd.AddCommand(newVersionCommand(version, commit, buildDate))

	return rootCmd
}

func reportError(w io.Writer, err error) {
	notify.Errorf(w, "%s", err.Error())
	if hint := errdefs.HintFor(err); hint != "" {
		notify.Hintf(w, "%s", hint)
	}
}
