package commands

import (
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/envswitch/envswitch/pkg/codec"
	"github.com/envswitch/envswitch/pkg/engine"
	"github.com/envswitch/envswitch/pkg/errdefs"
	"github.com/envswitch/envswitch/pkg/notify"
)

func newExportCommand(rt *runtime) *cobra.Command {
	var (
		output   string
		configs  []string
		format   string
		metadata bool
		pretty   bool
	)

	cmd := &cobra.Command{
		Use:   "export [alias...]",
		Short: "Export configurations",
		Long: `Export configurations as JSON, ENV or YAML.

Without --output the export is written to stdout. The format is taken from
--format, then from the output file extension, and defaults to JSON.

An ENV export without --metadata flattens all selected configurations into
one list; when two configurations define the same variable the later one
(alphabetically) wins and a warning names the variable.`,
		Example: `  envswitch export --output my-configs.json
  envswitch export dev prod --format env --output configs.env
  envswitch export --metadata --pretty --output detailed-configs.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := rt.open(cmd)
			if err != nil {
				return err
			}

			opts := engine.ExportOptions{
				Aliases:  append(append([]string(nil), args...), configs...),
				Metadata: metadata,
				Pretty:   pretty,
			}
			if format != "" {
				if opts.Format, err = codec.ParseFormat(format); err != nil {
					return err
				}
			}

			var res *codec.EncodeResult
			if output == "" || output == "-" {
				res, err = rt.exchange.Export(ctx, opts)
				if err == nil {
					_, err = cmd.OutOrStdout().Write(res.Data)
				}
			} else {
				res, err = rt.exchange.ExportToFile(ctx, output, opts)
			}
			if err != nil {
				return err
			}

			errOut := cmd.ErrOrStderr()
			for _, c := range res.Collisions {
				notify.Warningf(errOut, "%s is defined by %s; the value from '%s' was exported",
					c.Key, strings.Join(c.Aliases, ", "), c.Aliases[len(c.Aliases)-1])
			}
			if output != "" && output != "-" {
				notify.Successf(errOut, "Exported %d configurations (%d variables) to %s as %s",
					res.Configurations, res.Variables, output, res.Format)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default: stdout)")
	cmd.Flags().StringSliceVarP(&configs, "configs", "c", nil, "configurations to export, comma-separated (default: all)")
	cmd.Flags().StringVarP(&format, "format", "f", "", "export format: json, env or yaml")
	cmd.Flags().BoolVarP(&metadata, "metadata", "m", false, "include descriptions and timestamps")
	cmd.Flags().BoolVarP(&pretty, "pretty", "p", false, "pretty-print JSON")

	return cmd
}

// importFlags are shared by import and watch.
type importFlags struct {
	format string
	mode   string
	merge  bool
	force  bool
	alias  string
}

func (f *importFlags) register(cmd *cobra.Command, defaultMode string) {
	cmd.Flags().StringVar(&f.format, "format", "", "input format: json, env or yaml (default: detected)")
	cmd.Flags().StringVar(&f.mode, "mode", defaultMode, "conflict handling: reject, merge or force")
	cmd.Flags().BoolVarP(&f.merge, "merge", "m", false, "shorthand for --mode merge")
	cmd.Flags().BoolVarP(&f.force, "force", "f", false, "shorthand for --mode force")
	cmd.Flags().StringVarP(&f.alias, "alias", "a", "", "configuration name for inputs without aliases (default from settings)")
	cmd.MarkFlagsMutuallyExclusive("merge", "force")
}

func (f *importFlags) options(rt *runtime) (engine.ImportOptions, error) {
	var opts engine.ImportOptions
	var err error

	mode := f.mode
	switch {
	case f.merge:
		mode = "merge"
	case f.force:
		mode = "force"
	}
	if opts.Mode, err = engine.ParseImportMode(mode); err != nil {
		return opts, errdefs.Wrap(errdefs.KindFormatError, "invalid --mode", err)
	}
	if f.format != "" {
		if opts.Format, err = codec.ParseFormat(f.format); err != nil {
			return opts, err
		}
	}
	opts.DefaultAlias = f.alias
	if opts.DefaultAlias == "" {
		opts.DefaultAlias = rt.settings.Import.DefaultAlias
	}
	return opts, nil
}

func newImportCommand(rt *runtime) *cobra.Command {
	var (
		flags  importFlags
		dryRun bool
		backup bool
	)

	cmd := &cobra.Command{
		Use:   "import <file|->",
		Short: "Import configurations from a file",
		Long: `Import configurations from a JSON, ENV or YAML file, or from stdin with "-".

The format is detected from the file extension and content. Existing
configurations are left alone and reported as conflicts unless --merge or
--force is given. Configurations that fail validation are reported and
skipped; the rest are imported in a single write. Importing never changes
which configuration is active.`,
		Example: `  envswitch import configs.json
  envswitch import --backup --merge team-configs.json
  envswitch import --dry-run new-configs.yaml
  cat .env | envswitch import - --alias local`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := rt.open(cmd)
			if err != nil {
				return err
			}

			opts, err := flags.options(rt)
			if err != nil {
				return err
			}
			opts.DryRun = dryRun
			opts.BackupFirst = backup

			var result *engine.ImportResult
			if args[0] == "-" {
				data, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return errdefs.Wrap(errdefs.KindIOError, "failed to read stdin", err)
				}
				result, err = rt.exchange.Import(ctx, data, opts)
				if err != nil {
					return err
				}
			} else {
				result, err = rt.exchange.ImportFile(ctx, args[0], opts)
				if err != nil {
					return err
				}
			}

			if jsonOutput {
				return printJSON(cmd.OutOrStdout(), result)
			}
			printImportResult(cmd.ErrOrStderr(), result)
			return nil
		},
	}

	flags.register(cmd, "reject")
	cmd.Flags().BoolVarP(&dryRun, "dry-run", "n", false, "show what would change without writing")
	cmd.Flags().BoolVarP(&backup, "backup", "b", false, "back up the store before importing")

	return cmd
}

func newWatchCommand(rt *runtime) *cobra.Command {
	var (
		flags importFlags
		delay time.Duration
	)

	cmd := &cobra.Command{
		Use:   "watch <file>",
		Short: "Re-import a file whenever it changes",
		Long: `Watch a file and import it every time it is saved. Rapid successive
saves are coalesced. Runs until interrupted.`,
		Example: `  # Keep the "local" configuration in sync with .env
  envswitch watch .env --alias local`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := rt.open(cmd)
			if err != nil {
				return err
			}

			opts, err := flags.options(rt)
			if err != nil {
				return err
			}

			errOut := cmd.ErrOrStderr()
			w := engine.NewWatcher(rt.exchange, delay, rt.base)
			notify.Infof(errOut, "Watching %s (press Ctrl+C to stop)", args[0])
			return w.Watch(ctx, args[0], opts, func(result *engine.ImportResult, err error) {
				if err != nil {
					reportError(errOut, err)
					return
				}
				printImportResult(errOut, result)
			})
		},
	}

	flags.register(cmd, "force")
	cmd.Flags().DurationVar(&delay, "delay", engine.DefaultWatchDelay, "quiet period before importing")

	return cmd
}

func printImportResult(w io.Writer, r *engine.ImportResult) {
	verb := "Imported"
	if r.DryRun {
		verb = "Would import"
	}

	for _, alias := range r.Added {
		notify.Successf(w, "%s '%s' (new)", verb, alias)
	}
	for _, alias := range r.Overwritten {
		notify.Successf(w, "%s '%s' (overwritten)", verb, alias)
	}
	for _, alias := range r.Merged {
		notify.Successf(w, "%s '%s' (merged)", verb, alias)
	}
	for _, alias := range r.Conflicts {
		notify.Warningf(w, "Skipped '%s': it already exists", alias)
	}
	for _, e := range r.Errors {
		notify.Errorf(w, "Skipped '%s': %s", e.Alias, e.Reason)
	}

	if len(r.Conflicts) > 0 {
		notify.Hintf(w, "use --merge or --force to update existing configurations")
	}
	if r.BackupPath != "" {
		notify.Infof(w, "Backup written to %s", r.BackupPath)
	}
	if len(r.Imported)+len(r.Conflicts)+len(r.Errors) == 0 {
		notify.Infof(w, "Nothing to import")
		return
	}
	summary := "Import"
	if r.DryRun {
		summary = "Dry run"
	}
	notify.Infof(w, "%s: %d imported, %d conflicts, %d errors (%s)",
		summary, len(r.Imported), len(r.Conflicts), len(r.Errors), r.Format)
}
