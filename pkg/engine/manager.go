package engine

import (
	"context"
	"maps"
	"time"

	"github.com/rs/zerolog"

	"github.com/envswitch/envswitch/pkg/config"
	"github.com/envswitch/envswitch/pkg/errdefs"
	"github.com/envswitch/envswitch/pkg/stores"
	"github.com/envswitch/envswitch/pkg/telemetry"
)

// Manager implements CRUD over named configurations. Every mutating call
// loads the document, changes it in memory and saves it once, so a failed
// call leaves the store as it was.
type Manager struct {
	store     Store
	validator *config.Validator
	history   History
	logger    zerolog.Logger
	now       func() time.Time
}

// Option configures a Manager.
type Option func(*Manager)

// WithValidator replaces the default-limits validator.
func WithValidator(v *config.Validator) Option {
	return func(m *Manager) {
		m.validator = v
	}
}

// WithHistory records every committed mutation in h. Recording is best
// effort: failures are logged and never fail the mutation.
func WithHistory(h History) Option {
	return func(m *Manager) {
		m.history = h
	}
}

// WithClock overrides the time source used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// NewManager creates a manager over store.
func NewManager(store Store, logger zerolog.Logger, opts ...Option) *Manager {
	m := &Manager{
		store:     store,
		validator: config.NewValidator(config.DefaultLimits()),
		logger:    logger.With().Str("component", "manager").Logger(),
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Validator returns the validator in use.
func (m *Manager) Validator() *config.Validator {
	return m.validator
}

// Set creates alias or updates it. With replace false the given variables
// are merged over the existing ones; with replace true they replace them.
// A non-empty description replaces the stored one. Everything is validated
// before anything is written.
func (m *Manager) Set(ctx context.Context, alias string, vars map[string]string, description string, replace bool) (*stores.Configuration, error) {
	var desc *string
	if description != "" {
		desc = &description
	}
	return m.set(ctx, "set", alias, vars, desc, replace)
}

// set is the single write path for configuration content. A nil
// description keeps the stored one.
func (m *Manager) set(ctx context.Context, operation, alias string, vars map[string]string, description *string, replace bool) (cfg *stores.Configuration, err error) {
	op := telemetry.StartOperation(ctx, operation, telemetry.AttrAlias.String(alias))
	defer func() { op.End(err) }()

	if err := m.validator.ValidateAlias(alias); err != nil {
		return nil, err
	}

	doc, err := m.store.Load()
	if err != nil {
		return nil, err
	}

	now := m.now()
	existing, exists := doc.Get(alias)

	next := &stores.Configuration{
		Alias:     alias,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if description != nil {
		next.Description = *description
	}
	action := stores.ActionCreate
	if exists {
		action = stores.ActionUpdate
		next.CreatedAt = existing.CreatedAt
		if description == nil {
			next.Description = existing.Description
		}
		if replace {
			next.Variables = maps.Clone(vars)
		} else {
			next.Variables = maps.Clone(existing.Variables)
			maps.Copy(next.Variables, vars)
		}
	} else {
		next.Variables = maps.Clone(vars)
	}
	if next.Variables == nil {
		next.Variables = map[string]string{}
	}

	if err := m.validator.ValidateConfiguration(alias, next.Variables, next.Description); err != nil {
		return nil, err
	}

	doc.Put(next)
	if err := m.commit(op.Ctx, doc, change{
		action: action,
		alias:  alias,
		details: map[string]interface{}{
			"variables": len(vars),
			"replace":   replace,
		},
	}); err != nil {
		return nil, err
	}

	m.logger.Debug().
		Str("alias", alias).
		Str("action", string(action)).
		Int("variables", len(next.Variables)).
		Bool("replace", replace).
		Msg("Configuration saved")

	return next.Clone(), nil
}

// Create stores a new configuration and fails with AlreadyExists if alias
// is taken.
func (m *Manager) Create(ctx context.Context, alias string, vars map[string]string, description string) (*stores.Configuration, error) {
	if err := m.validator.ValidateAlias(alias); err != nil {
		return nil, err
	}
	doc, err := m.store.Load()
	if err != nil {
		return nil, err
	}
	if _, ok := doc.Get(alias); ok {
		return nil, errdefs.AlreadyExists(alias).WithOperation("create")
	}
	return m.set(ctx, "create", alias, vars, &description, true)
}

// Get returns a copy of the configuration stored under alias.
func (m *Manager) Get(ctx context.Context, alias string) (*stores.Configuration, error) {
	doc, err := m.store.Load()
	if err != nil {
		return nil, err
	}
	cfg, ok := doc.Get(alias)
	if !ok {
		return nil, errdefs.NotFound(alias).WithOperation("get")
	}
	return cfg.Clone(), nil
}

// List returns copies of every configuration, alphabetical by alias.
func (m *Manager) List(ctx context.Context) ([]*stores.Configuration, error) {
	doc, err := m.store.Load()
	if err != nil {
		return nil, err
	}
	out := make([]*stores.Configuration, 0, len(doc.Configs))
	for _, alias := range doc.Aliases() {
		out = append(out, doc.Configs[alias].Clone())
	}
	return out, nil
}

// Delete removes alias. If it was the active configuration the active
// pointer is cleared in the same write; the returned bool reports that.
func (m *Manager) Delete(ctx context.Context, alias string) (wasActive bool, err error) {
	op := telemetry.StartOperation(ctx, "delete", telemetry.AttrAlias.String(alias))
	defer func() { op.End(err) }()

	doc, err := m.store.Load()
	if err != nil {
		return false, err
	}
	wasActive = doc.Active() == alias
	if !doc.Remove(alias) {
		return false, errdefs.NotFound(alias).WithOperation("delete")
	}

	if err := m.commit(op.Ctx, doc, change{
		action:  stores.ActionDelete,
		alias:   alias,
		details: map[string]interface{}{"was_active": wasActive},
	}); err != nil {
		return false, err
	}

	m.logger.Debug().Str("alias", alias).Bool("was_active", wasActive).Msg("Configuration deleted")
	return wasActive, nil
}

// SetActive marks alias as the active configuration.
func (m *Manager) SetActive(ctx context.Context, alias string) (err error) {
	op := telemetry.StartOperation(ctx, "activate", telemetry.AttrAlias.String(alias))
	defer func() { op.End(err) }()

	doc, err := m.store.Load()
	if err != nil {
		return err
	}
	if !doc.SetActive(alias) {
		return errdefs.NotFound(alias).WithOperation("activate")
	}
	return m.commit(op.Ctx, doc, change{action: stores.ActionActivate, alias: alias})
}

// GetActive returns the active alias, or "" when none is set.
func (m *Manager) GetActive(ctx context.Context) (string, error) {
	doc, err := m.store.Load()
	if err != nil {
		return "", err
	}
	return doc.Active(), nil
}

// GetActiveConfiguration returns a copy of the active configuration, or nil
// when none is set.
func (m *Manager) GetActiveConfiguration(ctx context.Context) (*stores.Configuration, error) {
	doc, err := m.store.Load()
	if err != nil {
		return nil, err
	}
	active := doc.Active()
	if active == "" {
		return nil, nil
	}
	cfg, _ := doc.Get(active)
	return cfg.Clone(), nil
}

// ClearActive unsets the active configuration and returns a copy of the
// one that was active, or nil. Nothing is written when none was set.
func (m *Manager) ClearActive(ctx context.Context) (prev *stores.Configuration, err error) {
	op := telemetry.StartOperation(ctx, "deactivate")
	defer func() { op.End(err) }()

	doc, err := m.store.Load()
	if err != nil {
		return nil, err
	}
	active := doc.Active()
	if active == "" {
		return nil, nil
	}
	cfg, _ := doc.Get(active)
	prev = cfg.Clone()

	doc.ClearActive()
	if err := m.commit(op.Ctx, doc, change{action: stores.ActionDeactivate, alias: active}); err != nil {
		return nil, err
	}
	return prev, nil
}

// Rename moves a configuration to a new alias. Timestamps are kept and the
// active pointer follows the configuration.
func (m *Manager) Rename(ctx context.Context, oldAlias, newAlias string) (err error) {
	op := telemetry.StartOperation(ctx, "rename", telemetry.AttrAlias.String(oldAlias))
	defer func() { op.End(err) }()

	if err := m.validator.ValidateAlias(newAlias); err != nil {
		return err
	}

	doc, err := m.store.Load()
	if err != nil {
		return err
	}
	cfg, ok := doc.Get(oldAlias)
	if !ok {
		return errdefs.NotFound(oldAlias).WithOperation("rename")
	}
	if oldAlias == newAlias {
		return nil
	}
	if _, taken := doc.Get(newAlias); taken {
		return errdefs.AlreadyExists(newAlias).WithOperation("rename")
	}

	wasActive := doc.Active() == oldAlias
	doc.Remove(oldAlias)
	cfg.Alias = newAlias
	doc.Put(cfg)
	if wasActive {
		doc.SetActive(newAlias)
	}

	return m.commit(op.Ctx, doc, change{
		action:  stores.ActionRename,
		alias:   newAlias,
		details: map[string]interface{}{"from": oldAlias},
	})
}

// Stats summarizes the store.
type Stats struct {
	Configurations int       `json:"configurations"`
	Variables      int       `json:"variables"`
	Active         string    `json:"active,omitempty"`
	Backups        int       `json:"backups"`
	LastModified   time.Time `json:"last_modified"`
	FileSize       int64     `json:"file_size"`
	Path           string    `json:"path"`
}

// Stats returns counts and file information for the store.
func (m *Manager) Stats(ctx context.Context) (*Stats, error) {
	doc, err := m.store.Load()
	if err != nil {
		return nil, err
	}
	backups, err := m.store.ListBackups()
	if err != nil {
		return nil, err
	}

	stats := &Stats{
		Configurations: len(doc.Configs),
		Active:         doc.Active(),
		Backups:        len(backups),
		LastModified:   doc.LastModified,
		FileSize:       m.store.Size(),
		Path:           m.store.Path(),
	}
	for _, cfg := range doc.Configs {
		stats.Variables += len(cfg.Variables)
	}
	return stats, nil
}

// change describes one committed mutation for the audit history.
type change struct {
	action  stores.Action
	alias   string
	details map[string]interface{}
}

// commit saves doc and then records history and metrics. Only the save can
// fail the call.
func (m *Manager) commit(ctx context.Context, doc *stores.Document, changes ...change) error {
	if err := m.store.Save(doc); err != nil {
		return err
	}
	telemetry.MetricsFromContext(ctx).SetConfigurations(len(doc.Configs))

	if m.history == nil {
		return nil
	}
	for _, c := range changes {
		var details interface{}
		if c.details != nil {
			details = c.details
		}
		if err := m.history.Record(ctx, stores.NewHistoryEntry(c.action, c.alias, details)); err != nil {
			m.logger.Warn().
				Err(err).
				Str("alias", c.alias).
				Str("action", string(c.action)).
				Msg("Failed to record history")
		}
	}
	return nil
}
