package commands

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/mitchellh/go-wordwrap"
	"github.com/spf13/cobra"

	"github.com/envswitch/envswitch/pkg/notify"
	"github.com/envswitch/envswitch/pkg/stores"
)

const descriptionWidth = 72

func newListCommand(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List all configurations",
		Example: `  envswitch list
  envswitch list --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := rt.open(cmd)
			if err != nil {
				return err
			}

			configs, err := rt.manager.List(ctx)
			if err != nil {
				return err
			}
			active, err := rt.manager.GetActive(ctx)
			if err != nil {
				return err
			}

			if jsonOutput {
				return printJSON(cmd.OutOrStdout(), struct {
					Active         string                  `json:"active,omitempty"`
					Configurations []*stores.Configuration `json:"configurations"`
				}{active, masked(rt, configs)})
			}

			if len(configs) == 0 {
				notify.Infof(cmd.ErrOrStderr(), "No configurations yet")
				notify.Hintf(cmd.ErrOrStderr(), "create one with: envswitch set <alias> KEY=VALUE")
				return nil
			}

			rows := make([][]string, 0, len(configs))
			highlight := map[int]bool{}
			for i, cfg := range configs {
				marker := ""
				if cfg.Alias == active {
					marker = "*"
					highlight[i] = true
				}
				rows = append(rows, []string{
					marker,
					cfg.Alias,
					strconv.Itoa(len(cfg.Variables)),
					truncate(cfg.Description, 40),
					cfg.UpdatedAt.Local().Format(timeLayout),
				})
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(),
				renderTable([]string{"", "ALIAS", "VARS", "DESCRIPTION", "UPDATED"}, rows, highlight))
			return err
		},
	}

	return cmd
}

func newShowCommand(rt *runtime) *cobra.Command {
	var reveal bool

	cmd := &cobra.Command{
		Use:   "show <alias>",
		Short: "Show a configuration",
		Long: `Show a configuration's description, timestamps and variables.

Values of variables that look like secrets are masked unless --reveal is
given. Masking only affects display.`,
		Example: `  envswitch show dev
  envswitch show dev --reveal`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := rt.open(cmd)
			if err != nil {
				return err
			}

			cfg, err := rt.manager.Get(ctx, args[0])
			if err != nil {
				return err
			}
			active, err := rt.manager.GetActive(ctx)
			if err != nil {
				return err
			}
			if !reveal {
				cfg = maskConfiguration(rt.masker, cfg)
			}

			if jsonOutput {
				return printJSON(cmd.OutOrStdout(), cfg)
			}

			var b strings.Builder
			title := cfg.Alias
			if cfg.Alias == active {
				title += " (active)"
			}
			b.WriteString(titleStyle.Render(title) + "\n")
			if cfg.Description != "" {
				b.WriteString(wordwrap.WrapString(cfg.Description, descriptionWidth) + "\n")
			}
			b.WriteString("\n")
			b.WriteString(field("Created", cfg.CreatedAt.Local().Format(timeLayout)) + "\n")
			b.WriteString(field("Updated", cfg.UpdatedAt.Local().Format(timeLayout)) + "\n")
			b.WriteString(field("Variables", strconv.Itoa(len(cfg.Variables))) + "\n")
			if len(cfg.Variables) > 0 {
				b.WriteString("\n")
				for _, key := range sortedKeys(cfg.Variables) {
					fmt.Fprintf(&b, "  %s=%s\n", key, cfg.Variables[key])
				}
			}
			_, err = fmt.Fprint(cmd.OutOrStdout(), b.String())
			return err
		},
	}

	cmd.Flags().BoolVar(&reveal, "reveal", false, "show secret-looking values unmasked")

	return cmd
}

func newStatusCommand(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the active configuration and store status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := rt.open(cmd)
			if err != nil {
				return err
			}

			stats, err := rt.manager.Stats(ctx)
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(cmd.OutOrStdout(), stats)
			}

			active := stats.Active
			if active == "" {
				active = "none"
			}
			lastModified := "never"
			if !stats.LastModified.IsZero() {
				lastModified = stats.LastModified.Local().Format(timeLayout)
			}

			lines := []string{
				field("Active", active),
				field("Configurations", strconv.Itoa(stats.Configurations)),
				field("Variables", strconv.Itoa(stats.Variables)),
				field("Backups", strconv.Itoa(stats.Backups)),
				field("Last modified", lastModified),
				field("Store", fmt.Sprintf("%s (%d bytes)", stats.Path, stats.FileSize)),
			}
			if rt.history != nil {
				lines = append(lines, field("History", rt.histPath))
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), strings.Join(lines, "\n"))
			return err
		},
	}

	return cmd
}

// maskConfiguration returns cfg with secret-looking values masked. cfg is a
// copy owned by the caller, so it is changed in place.
func maskConfiguration(m *notify.Masker, cfg *stores.Configuration) *stores.Configuration {
	for key, value := range cfg.Variables {
		cfg.Variables[key] = m.Value(key, value)
	}
	return cfg
}

func masked(rt *runtime, configs []*stores.Configuration) []*stores.Configuration {
	for _, cfg := range configs {
		maskConfiguration(rt.masker, cfg)
	}
	return configs
}
