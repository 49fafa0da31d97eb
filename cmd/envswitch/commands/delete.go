package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/envswitch/envswitch/pkg/notify"
)

func newDeleteCommand(rt *runtime) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:     "delete <alias>",
		Aliases: []string{"rm"},
		Short:   "Delete a configuration",
		Long: `Delete a configuration permanently. You are asked to confirm unless
--force is given. Deleting the active configuration also clears the
active marker; variables already exported in your shell stay until you
run 'envswitch deactivate' or open a new shell.`,
		Example: `  envswitch delete old-config
  envswitch delete temp-config --force`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := rt.open(cmd)
			if err != nil {
				return err
			}
			alias := args[0]

			cfg, err := rt.manager.Get(ctx, alias)
			if err != nil {
				return err
			}

			if !force {
				p, release := newPrompter(cmd)
				ok, err := confirm(p, fmt.Sprintf("Delete '%s' with %d variables?", alias, len(cfg.Variables)))
				release()
				if err != nil {
					return err
				}
				if !ok {
					notify.Infof(cmd.ErrOrStderr(), "Deletion cancelled")
					return nil
				}
			}

			wasActive, err := rt.manager.Delete(ctx, alias)
			if err != nil {
				return err
			}
			notify.Successf(cmd.ErrOrStderr(), "Deleted '%s'", alias)
			if wasActive {
				notify.Warningf(cmd.ErrOrStderr(), "'%s' was active; its variables are still set in your shell", alias)
				notify.Hintf(cmd.ErrOrStderr(), "start a new shell to clear them")
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "skip the confirmation prompt")

	return cmd
}

func newRenameCommand(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "rename <old> <new>",
		Aliases: []string{"mv"},
		Short:   "Rename a configuration",
		Long: `Rename a configuration. Its variables and timestamps are kept and it
stays active if it was.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := rt.open(cmd)
			if err != nil {
				return err
			}
			if err := rt.manager.Rename(ctx, args[0], args[1]); err != nil {
				return err
			}
			notify.Successf(cmd.ErrOrStderr(), "Renamed '%s' to '%s'", args[0], args[1])
			return nil
		},
	}

	return cmd
}
