package commands

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/envswitch/envswitch/pkg/notify"
	"github.com/envswitch/envswitch/pkg/stores"
)

func newBackupCommand(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Manage backups of the configuration store",
		Long: `Create, list, restore and clean up backups of the configuration store.

Backups are timestamped copies of the store file kept next to it. Imports
run with --backup create one automatically and keep the newest ones as
configured by backups.keep in settings.yaml.`,
	}

	cmd.AddCommand(newBackupCreateCommand(rt))
	cmd.AddCommand(newBackupListCommand(rt))
	cmd.AddCommand(newBackupRestoreCommand(rt))
	cmd.AddCommand(newBackupCleanupCommand(rt))

	return cmd
}

func newBackupCreateCommand(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "create",
		Short: "Back up the configuration store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := rt.open(cmd)
			if err != nil {
				return err
			}

			path, err := rt.manager.CreateBackup(ctx)
			if err != nil {
				return err
			}
			if path == "" {
				notify.Infof(cmd.ErrOrStderr(), "Nothing to back up yet")
				return nil
			}
			if _, err := fmt.Fprintln(cmd.OutOrStdout(), path); err != nil {
				return err
			}
			notify.Successf(cmd.ErrOrStderr(), "Backup created")
			return nil
		},
	}
}

func newBackupListCommand(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List backups, newest first",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := rt.open(cmd)
			if err != nil {
				return err
			}

			backups, err := rt.manager.ListBackups(ctx)
			if err != nil {
				return err
			}
			if jsonOutput {
				if backups == nil {
					backups = []stores.BackupInfo{}
				}
				return printJSON(cmd.OutOrStdout(), backups)
			}
			if len(backups) == 0 {
				notify.Infof(cmd.ErrOrStderr(), "No backups in %s", rt.paths.Dir)
				return nil
			}

			rows := make([][]string, 0, len(backups))
			for _, b := range backups {
				rows = append(rows, []string{
					b.Name,
					b.ModTime.Local().Format(timeLayout),
					fmt.Sprintf("%d", b.Size),
				})
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"NAME", "CREATED", "BYTES"}, rows, nil))
			return err
		},
	}
}

func newBackupRestoreCommand(rt *runtime) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "restore <backup>",
		Short: "Restore the store from a backup",
		Long: `Replace the configuration store with a backup. The backup is given by
name as shown by 'envswitch backup list' or by path. The current store is
backed up first, so a restore can be undone.`,
		Example: `  envswitch backup restore config_backup_20250101_120000.000.json`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := rt.open(cmd)
			if err != nil {
				return err
			}

			if !force {
				p, release := newPrompter(cmd)
				ok, err := confirm(p, fmt.Sprintf("Replace the current store with %s?", filepath.Base(args[0])))
				release()
				if err != nil {
					return err
				}
				if !ok {
					notify.Infof(cmd.ErrOrStderr(), "Restore cancelled")
					return nil
				}
			}

			safety, err := rt.manager.RestoreBackup(ctx, args[0])
			if err != nil {
				return err
			}
			notify.Successf(cmd.ErrOrStderr(), "Restored %s", filepath.Base(args[0]))
			if safety != "" {
				notify.Infof(cmd.ErrOrStderr(), "Previous store saved as %s", filepath.Base(safety))
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "skip the confirmation prompt")

	return cmd
}

func newBackupCleanupCommand(rt *runtime) *cobra.Command {
	var keep int

	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Remove old backups",
		Long:  `Remove all but the newest backups. Defaults to backups.keep from settings.yaml.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := rt.open(cmd)
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("keep") {
				keep = rt.settings.Backups.Keep
			}
			if keep <= 0 {
				notify.Infof(cmd.ErrOrStderr(), "Keeping all backups (keep is %d)", keep)
				return nil
			}

			removed, err := rt.manager.CleanupBackups(ctx, keep)
			if err != nil {
				return err
			}
			notify.Successf(cmd.ErrOrStderr(), "Removed %d backups, kept the newest %d", removed, keep)
			return nil
		},
	}

	cmd.Flags().IntVarP(&keep, "keep", "k", 0, "number of backups to keep")

	return cmd
}
