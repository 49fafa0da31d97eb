package commands

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/envswitch/envswitch/pkg/config"
	"github.com/envswitch/envswitch/pkg/shell"
)

func newInitCommand() *cobra.Command {
	var shellName string

	cmd := &cobra.Command{
		Use:     "init",
		Aliases: []string{"setup"},
		Short:   "Print shell integration",
		Long: `Print the shell functions that make 'envswitch use' and 'envswitch deactivate'
change the current shell. Add the output to your shell's startup file.`,
		Example: `  # bash
  envswitch init >> ~/.bashrc

  # fish
  envswitch init --shell fish >> ~/.config/fish/config.fish`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var settings *config.Settings
			if paths, err := config.ResolvePaths(configDir); err == nil {
				if s, err := config.LoadSettings(paths.SettingsFile); err == nil {
					settings = s
				}
			}

			kind, err := resolveShell(shellName, settings)
			if err != nil {
				return err
			}
			_, err = io.WriteString(cmd.OutOrStdout(), shell.Instructions(kind))
			return err
		},
	}

	cmd.Flags().StringVarP(&shellName, "shell", "s", "", "target shell: bash, zsh, fish or sh (default: detected from $SHELL)")

	return cmd
}

func newVersionCommand(version, commit, buildDate string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if jsonOutput {
				return printJSON(cmd.OutOrStdout(), map[string]string{
					"version":    version,
					"commit":     commit,
					"build_date": buildDate,
				})
			}
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "envswitch %s (commit: %s, built: %s)\n", version, commit, buildDate)
			return err
		},
	}
}
