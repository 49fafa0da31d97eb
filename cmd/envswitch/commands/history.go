package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/envswitch/envswitch/pkg/notify"
	"github.com/envswitch/envswitch/pkg/stores"
)

func newHistoryCommand(rt *runtime) *cobra.Command {
	var (
		limit  int
		action string
		prune  time.Duration
	)

	cmd := &cobra.Command{
		Use:   "history [alias]",
		Short: "Show the change history",
		Long: `Show recorded changes, newest first. Every create, update, rename, delete,
activation, import and restore is recorded when history.enabled is set.`,
		Example: `  envswitch history
  envswitch history dev --limit 5
  envswitch history --action import
  envswitch history --prune 720h`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := rt.open(cmd)
			if err != nil {
				return err
			}
			if rt.history == nil {
				notify.Infof(cmd.ErrOrStderr(), "History is not available")
				notify.Hintf(cmd.ErrOrStderr(), "set history.enabled: true in %s", rt.paths.SettingsFile)
				return nil
			}

			if prune > 0 {
				removed, err := rt.history.Prune(ctx, time.Now().UTC().Add(-prune))
				if err != nil {
					return err
				}
				notify.Successf(cmd.ErrOrStderr(), "Removed %d entries older than %s", removed, prune)
				return nil
			}

			filter := stores.HistoryFilter{Limit: limit, Action: stores.Action(action)}
			if len(args) == 1 {
				filter.Alias = args[0]
			}
			entries, err := rt.history.List(ctx, filter)
			if err != nil {
				return err
			}

			if jsonOutput {
				return printJSON(cmd.OutOrStdout(), entries)
			}
			if len(entries) == 0 {
				notify.Infof(cmd.ErrOrStderr(), "No history entries")
				return nil
			}

			rows := make([][]string, 0, len(entries))
			for _, e := range entries {
				rows = append(rows, []string{
					e.Timestamp.Local().Format(timeLayout),
					string(e.Action),
					e.Alias,
					truncate(string(e.Details), 50),
				})
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(),
				renderTable([]string{"TIME", "ACTION", "ALIAS", "DETAILS"}, rows, nil))
			return err
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum entries to show (0 for all)")
	cmd.Flags().StringVar(&action, "action", "", "only show this action (create, update, delete, rename, activate, deactivate, import, restore)")
	cmd.Flags().DurationVar(&prune, "prune", 0, "delete entries older than this duration instead of listing")

	return cmd
}
