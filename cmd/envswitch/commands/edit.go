package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"

	"github.com/envswitch/envswitch/pkg/engine"
	"github.com/envswitch/envswitch/pkg/errdefs"
	"github.com/envswitch/envswitch/pkg/notify"
	"github.com/envswitch/envswitch/pkg/stores"
)

const editorHelp = `Commands:
  add KEY=VALUE   add a new variable
  set KEY=VALUE   change an existing variable
  del KEY         delete a variable
  desc [TEXT]     replace the description (empty clears it)
  list            show the variables
  save            write the changes and exit
  quit            discard the changes and exit`

func newEditCommand(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "edit <alias>",
		Short: "Edit a configuration interactively",
		Long: `Open an interactive editor to add, change and remove variables of a
configuration. Every step is validated as you type it; nothing is written
until you save. A configuration that does not exist yet is created on save.`,
		Example: `  envswitch edit dev`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := rt.open(cmd)
			if err != nil {
				return err
			}
			alias := args[0]
			if err := rt.manager.Validator().ValidateAlias(alias); err != nil {
				return err
			}

			isNew := false
			current, err := rt.manager.Get(ctx, alias)
			switch {
			case errdefs.IsNotFound(err):
				isNew = true
				current = &stores.Configuration{Alias: alias, Variables: map[string]string{}}
			case err != nil:
				return err
			}

			p, release := newPrompter(cmd)
			defer release()

			ed := &editor{
				manager: rt.manager,
				masker:  rt.masker,
				prompt:  p,
				out:     cmd.ErrOrStderr(),
				draft:   engine.NewDraft(current),
				isNew:   isNew,
			}
			cfg, err := ed.run(ctx)
			if err != nil {
				return err
			}
			if cfg == nil {
				notify.Infof(cmd.ErrOrStderr(), "No changes written")
				return nil
			}
			notify.Successf(cmd.ErrOrStderr(), "Configuration '%s' saved (%d variables)", cfg.Alias, len(cfg.Variables))
			return nil
		},
	}

	return cmd
}

// editor is the interactive loop behind 'edit'. Output goes to out so
// stdout stays untouched.
type editor struct {
	manager *engine.Manager
	masker  *notify.Masker
	prompt  prompter
	out     io.Writer
	draft   *engine.Draft
	isNew   bool
}

// run reads commands until save or quit. It returns the saved
// configuration, or nil when nothing was written.
func (e *editor) run(ctx context.Context) (*stores.Configuration, error) {
	if e.isNew {
		notify.Infof(e.out, "'%s' does not exist yet; it will be created on save", e.draft.Alias)
	}
	fmt.Fprintln(e.out, editorHelp)

	for {
		line, err := e.prompt.Prompt(e.draft.Alias + "> ")
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, liner.ErrPromptAborted) {
				if e.draft.Dirty() {
					notify.Warningf(e.out, "Unsaved changes discarded")
				}
				return nil, nil
			}
			return nil, err
		}

		verb, rest, _ := strings.Cut(strings.TrimSpace(line), " ")
		rest = strings.TrimSpace(rest)

		switch strings.ToLower(verb) {
		case "":
			continue
		case "add":
			e.assign(rest, engine.AddVariable)
		case "set", "edit":
			e.assign(rest, engine.EditVariable)
		case "del", "delete", "rm":
			if rest == "" {
				notify.Errorf(e.out, "usage: del KEY")
				continue
			}
			e.apply(engine.DeleteVariable(rest))
		case "desc", "description":
			if err := e.manager.Validator().ValidateDescription(rest); err != nil {
				notify.Errorf(e.out, "%s", err.Error())
				continue
			}
			e.apply(engine.UpdateDescription(rest))
		case "list", "ls":
			e.list()
		case "help", "?":
			fmt.Fprintln(e.out, editorHelp)
		case "save", "write", "w":
			return e.save(ctx)
		case "quit", "exit", "q":
			if e.draft.Dirty() {
				notify.Warningf(e.out, "Unsaved changes discarded")
			}
			return nil, nil
		default:
			notify.Errorf(e.out, "unknown command %q", verb)
			notify.Hintf(e.out, "type 'help' for the list of commands")
		}
	}
}

// assign parses KEY=VALUE, validates both halves and applies the intent.
func (e *editor) assign(arg string, intent func(key, value string) engine.Intent) {
	key, value, ok := strings.Cut(arg, "=")
	if !ok || key == "" {
		notify.Errorf(e.out, "expected KEY=VALUE")
		return
	}
	v := e.manager.Validator()
	if err := v.ValidateVarName(key); err != nil {
		notify.Errorf(e.out, "%s", err.Error())
		return
	}
	if err := v.ValidateVarValue(value); err != nil {
		notify.Errorf(e.out, "%s", err.Error())
		return
	}
	e.apply(intent(key, value))
}

func (e *editor) apply(in engine.Intent) {
	if err := e.draft.Apply(in); err != nil {
		notify.Errorf(e.out, "%s", err.Error())
		return
	}
	notify.Successf(e.out, "%s", describeIntent(in))
}

func (e *editor) list() {
	if e.draft.Description != "" {
		fmt.Fprintf(e.out, "# %s\n", e.draft.Description)
	}
	if len(e.draft.Variables) == 0 {
		fmt.Fprintln(e.out, "(no variables)")
		return
	}
	for _, key := range sortedKeys(e.draft.Variables) {
		fmt.Fprintf(e.out, "  %s=%s\n", key, e.masker.Value(key, e.draft.Variables[key]))
	}
}

func (e *editor) save(ctx context.Context) (*stores.Configuration, error) {
	if !e.draft.Dirty() {
		return nil, nil
	}
	if e.isNew {
		return e.manager.Create(ctx, e.draft.Alias, e.draft.Variables, e.draft.Description)
	}
	return e.manager.Commit(ctx, e.draft)
}

func describeIntent(in engine.Intent) string {
	switch in.Kind {
	case engine.IntentAddVariable:
		return "added " + in.Key
	case engine.IntentEditVariable:
		return "changed " + in.Key
	case engine.IntentDeleteVariable:
		return "deleted " + in.Key
	case engine.IntentUpdateDescription:
		if in.Value == "" {
			return "description cleared"
		}
		return "description updated"
	default:
		return in.Kind.String()
	}
}
