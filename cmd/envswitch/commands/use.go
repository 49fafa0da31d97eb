package commands

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/envswitch/envswitch/pkg/config"
	"github.com/envswitch/envswitch/pkg/notify"
	"github.com/envswitch/envswitch/pkg/shell"
)

func newUseCommand(rt *runtime) *cobra.Command {
	var shellName string

	cmd := &cobra.Command{
		Use:   "use <alias>",
		Short: "Activate a configuration in the current shell",
		Long: `Mark a configuration active and print the shell commands that export its
variables. Variables of the previously active configuration that the new
one does not define are unset.

The output has to be evaluated by your shell; see 'envswitch init'.`,
		Example: `  # bash / zsh
  eval "$(envswitch use dev)"

  # fish
  envswitch use dev --shell fish | source`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := rt.open(cmd)
			if err != nil {
				return err
			}
			alias := args[0]

			kind, err := resolveShell(shellName, rt.settings)
			if err != nil {
				return err
			}

			prev, err := rt.manager.GetActiveConfiguration(ctx)
			if err != nil {
				return err
			}
			cfg, err := rt.manager.Get(ctx, alias)
			if err != nil {
				return err
			}

			// Generate first so an unexportable name never activates
			script, err := shell.GenerateActivation(cfg.Variables, kind)
			if err != nil {
				return err
			}
			var stale []string
			if prev != nil && prev.Alias != alias {
				for key := range prev.Variables {
					if _, ok := cfg.Variables[key]; !ok {
						stale = append(stale, key)
					}
				}
			}
			unset, err := shell.GenerateDeactivation(stale, kind)
			if err != nil {
				return err
			}

			if err := rt.manager.SetActive(ctx, alias); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if _, err := io.WriteString(out, unset.Text+script.Text); err != nil {
				return err
			}

			errOut := cmd.ErrOrStderr()
			if script.Fallback {
				notify.Warningf(errOut, "Could not detect your shell; printed POSIX sh syntax")
				notify.Hintf(errOut, "pass --shell bash|zsh|fish|sh to choose explicitly")
			}
			if isTerminal(out) {
				notify.Warningf(errOut, "Printed commands only take effect when evaluated by your shell")
				notify.Hintf(errOut, "%s", evalHint(kind, alias))
			}
			notify.Successf(errOut, "Activated '%s' (%d variables)", alias, len(cfg.Variables))
			return nil
		},
	}

	cmd.Flags().StringVarP(&shellName, "shell", "s", "", "target shell: bash, zsh, fish or sh (default: detected from $SHELL)")

	return cmd
}

func newDeactivateCommand(rt *runtime) *cobra.Command {
	var shellName string

	cmd := &cobra.Command{
		Use:   "deactivate",
		Short: "Deactivate the active configuration",
		Long: `Clear the active configuration and print the shell commands that unset
its variables.`,
		Example: `  eval "$(envswitch deactivate)"`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := rt.open(cmd)
			if err != nil {
				return err
			}

			kind, err := resolveShell(shellName, rt.settings)
			if err != nil {
				return err
			}

			prev, err := rt.manager.ClearActive(ctx)
			if err != nil {
				return err
			}
			if prev == nil {
				notify.Infof(cmd.ErrOrStderr(), "No configuration is active")
				return nil
			}

			script, err := shell.GenerateDeactivation(sortedKeys(prev.Variables), kind)
			if err != nil {
				return err
			}
			if _, err := io.WriteString(cmd.OutOrStdout(), script.Text); err != nil {
				return err
			}
			notify.Successf(cmd.ErrOrStderr(), "Deactivated '%s'", prev.Alias)
			return nil
		},
	}

	cmd.Flags().StringVarP(&shellName, "shell", "s", "", "target shell: bash, zsh, fish or sh (default: detected from $SHELL)")

	return cmd
}

// resolveShell picks the dialect: explicit flag, then the settings
// default, then $SHELL.
func resolveShell(flag string, settings *config.Settings) (shell.Kind, error) {
	if flag != "" {
		return shell.ParseKind(flag)
	}
	if settings != nil && settings.Shell.Default != "" {
		return shell.ParseKind(settings.Shell.Default)
	}
	return shell.Detect(os.Getenv("SHELL")), nil
}

func evalHint(kind shell.Kind, alias string) string {
	if kind == shell.Fish {
		return fmt.Sprintf("run: envswitch use %s --shell fish | source", alias)
	}
	return fmt.Sprintf(`run: eval "$(envswitch use %s)"`, alias)
}
