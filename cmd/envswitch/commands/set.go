package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/envswitch/envswitch/pkg/codec"
	"github.com/envswitch/envswitch/pkg/errdefs"
	"github.com/envswitch/envswitch/pkg/notify"
)

func newSetCommand(rt *runtime) *cobra.Command {
	var (
		description string
		file        string
		replace     bool
	)

	cmd := &cobra.Command{
		Use:   "set <alias> [KEY=VALUE...]",
		Short: "Create or update a configuration",
		Long: `Create a configuration or update an existing one.

Variables are merged into the existing configuration unless --replace is
given. Variables can also be read from a .env, JSON or YAML file; values
given on the command line win over values from the file.`,
		Example: `  # Create or update a configuration
  envswitch set dev DATABASE_URL=postgres://localhost/dev DEBUG=true

  # Describe it
  envswitch set dev -d "Local development"

  # Load variables from a file, replacing what was there
  envswitch set staging --file staging.env --replace`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := rt.open(cmd)
			if err != nil {
				return err
			}
			alias := args[0]

			vars := map[string]string{}
			if file != "" {
				vars, err = readVariablesFile(file, alias)
				if err != nil {
					return err
				}
			}
			assigned, err := parseAssignments(args[1:])
			if err != nil {
				return err
			}
			for k, v := range assigned {
				vars[k] = v
			}
			if len(vars) == 0 && description == "" {
				return fmt.Errorf("nothing to set for %q: give KEY=VALUE pairs, --file or --description", alias)
			}

			cfg, err := rt.manager.Set(ctx, alias, vars, description, replace)
			if err != nil {
				return err
			}

			if jsonOutput {
				return printJSON(cmd.OutOrStdout(), cfg)
			}
			notify.Successf(cmd.ErrOrStderr(), "Configuration '%s' saved (%d variables)", cfg.Alias, len(cfg.Variables))
			return nil
		},
	}

	cmd.Flags().StringVarP(&description, "description", "d", "", "description of the configuration")
	cmd.Flags().StringVarP(&file, "file", "f", "", "read variables from a .env, JSON or YAML file")
	cmd.Flags().BoolVarP(&replace, "replace", "r", false, "replace all variables instead of merging")

	return cmd
}

// readVariablesFile loads the variables of one configuration from path. A
// file holding several configurations must contain alias.
func readVariablesFile(path, alias string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errdefs.Newf(errdefs.KindNotFound, "file %q not found", path)
		}
		return nil, errdefs.Wrap(errdefs.KindIOError, "failed to read variables file", err).
			WithDetail("path", path)
	}

	format, err := codec.DetectFormat(path, data)
	if err != nil {
		return nil, err
	}
	doc, err := codec.Decode(data, format, codec.DecodeOptions{DefaultAlias: alias})
	if err != nil {
		return nil, err
	}

	if cfg, ok := doc.Get(alias); ok {
		return cfg.Variables, nil
	}
	switch aliases := doc.Aliases(); len(aliases) {
	case 0:
		return map[string]string{}, nil
	case 1:
		return doc.Configs[aliases[0]].Variables, nil
	}
	return nil, errdefs.Newf(errdefs.KindUnknownAlias, "file %q holds several configurations but none named %q", path, alias).
		WithAlias(alias)
}
