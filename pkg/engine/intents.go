package engine

import (
	"context"
	"fmt"
	"maps"

	"github.com/envswitch/envswitch/pkg/errdefs"
	"github.com/envswitch/envswitch/pkg/stores"
)

// IntentKind is one editing step of the interactive editor.
type IntentKind int

const (
	IntentAddVariable IntentKind = iota + 1
	IntentEditVariable
	IntentDeleteVariable
	IntentUpdateDescription
)

// String returns the intent name used in history details.
func (k IntentKind) String() string {
	switch k {
	case IntentAddVariable:
		return "add"
	case IntentEditVariable:
		return "edit"
	case IntentDeleteVariable:
		return "delete"
	case IntentUpdateDescription:
		return "description"
	default:
		return fmt.Sprintf("intent(%d)", int(k))
	}
}

// Intent is a single edit. Key is unused for UpdateDescription; Value is
// unused for DeleteVariable.
type Intent struct {
	Kind  IntentKind
	Key   string
	Value string
}

// AddVariable adds a variable that must not exist yet.
func AddVariable(key, value string) Intent {
	return Intent{Kind: IntentAddVariable, Key: key, Value: value}
}

// EditVariable changes the value of an existing variable.
func EditVariable(key, value string) Intent {
	return Intent{Kind: IntentEditVariable, Key: key, Value: value}
}

// DeleteVariable removes an existing variable.
func DeleteVariable(key string) Intent {
	return Intent{Kind: IntentDeleteVariable, Key: key}
}

// UpdateDescription replaces the description; an empty one clears it.
func UpdateDescription(description string) Intent {
	return Intent{Kind: IntentUpdateDescription, Value: description}
}

// Draft is an in-memory copy of a configuration being edited. Each Apply
// checks the intent against the draft, so the editor can report a bad step
// immediately and keep going.
type Draft struct {
	Alias       string
	Variables   map[string]string
	Description string
	intents     []Intent
}

// NewDraft starts editing a copy of cfg.
func NewDraft(cfg *stores.Configuration) *Draft {
	d := &Draft{
		Alias:       cfg.Alias,
		Variables:   maps.Clone(cfg.Variables),
		Description: cfg.Description,
	}
	if d.Variables == nil {
		d.Variables = map[string]string{}
	}
	return d
}

// Apply applies one intent to the draft.
func (d *Draft) Apply(in Intent) error {
	switch in.Kind {
	case IntentAddVariable:
		if _, ok := d.Variables[in.Key]; ok {
			return errdefs.Newf(errdefs.KindAlreadyExists, "variable %q already exists", in.Key).
				WithAlias(d.Alias).
				WithField(in.Key)
		}
		d.Variables[in.Key] = in.Value
	case IntentEditVariable:
		if _, ok := d.Variables[in.Key]; !ok {
			return errdefs.Newf(errdefs.KindNotFound, "variable %q not found", in.Key).
				WithAlias(d.Alias).
				WithField(in.Key)
		}
		d.Variables[in.Key] = in.Value
	case IntentDeleteVariable:
		if _, ok := d.Variables[in.Key]; !ok {
			return errdefs.Newf(errdefs.KindNotFound, "variable %q not found", in.Key).
				WithAlias(d.Alias).
				WithField(in.Key)
		}
		delete(d.Variables, in.Key)
	case IntentUpdateDescription:
		d.Description = in.Value
	default:
		return fmt.Errorf("unknown intent %d", int(in.Kind))
	}
	d.intents = append(d.intents, in)
	return nil
}

// Dirty reports whether any intent was applied.
func (d *Draft) Dirty() bool {
	return len(d.intents) > 0
}

// ApplyIntents applies intents to alias in order and persists the result
// through the same path as Set, in replace mode, with one save. If any
// intent fails nothing is written.
func (m *Manager) ApplyIntents(ctx context.Context, alias string, intents []Intent) (*stores.Configuration, error) {
	current, err := m.Get(ctx, alias)
	if err != nil {
		return nil, err
	}

	draft := NewDraft(current)
	for _, in := range intents {
		if err := draft.Apply(in); err != nil {
			return nil, err
		}
	}
	return m.Commit(ctx, draft)
}

// Commit persists a draft. A draft with no applied intents is not written.
func (m *Manager) Commit(ctx context.Context, draft *Draft) (*stores.Configuration, error) {
	if !draft.Dirty() {
		return m.Get(ctx, draft.Alias)
	}
	doc, err := m.store.Load()
	if err != nil {
		return nil, err
	}
	if _, ok := doc.Get(draft.Alias); !ok {
		return nil, errdefs.NotFound(draft.Alias).WithOperation("edit")
	}
	description := draft.Description
	return m.set(ctx, "edit", draft.Alias, draft.Variables, &description, true)
}
