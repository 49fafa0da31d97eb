package engine

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"os"
	"strings"

	"github.com/rs/zerolog"

	"github.com/envswitch/envswitch/pkg/codec"
	"github.com/envswitch/envswitch/pkg/errdefs"
	"github.com/envswitch/envswitch/pkg/stores"
	"github.com/envswitch/envswitch/pkg/telemetry"
)

// ImportMode decides what happens to a candidate whose alias already exists.
type ImportMode int

const (
	// ModeRejectOnConflict leaves existing aliases untouched and reports
	// them as conflicts.
	ModeRejectOnConflict ImportMode = iota
	// ModeMerge merges candidate variables over the existing ones.
	ModeMerge
	// ModeForce replaces the existing configuration.
	ModeForce
)

// String returns the mode name.
func (m ImportMode) String() string {
	switch m {
	case ModeRejectOnConflict:
		return "reject"
	case ModeMerge:
		return "merge"
	case ModeForce:
		return "force"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// ParseImportMode parses a mode name.
func ParseImportMode(name string) (ImportMode, error) {
	switch strings.ToLower(name) {
	case "", "reject", "skip":
		return ModeRejectOnConflict, nil
	case "merge":
		return ModeMerge, nil
	case "force", "overwrite":
		return ModeForce, nil
	default:
		return 0, fmt.Errorf("unknown import mode %q (want reject, merge or force)", name)
	}
}

// ExportOptions selects what Export writes.
type ExportOptions struct {
	// Aliases restricts the export; empty exports everything.
	Aliases []string
	// Format is the output format. FormatUnknown means JSON for Export and
	// the path extension for ExportToFile.
	Format   codec.Format
	Metadata bool
	Pretty   bool
}

// ImportOptions controls Import.
type ImportOptions struct {
	// Format is an explicit format hint. FormatUnknown means detect.
	Format codec.Format
	// Path is used for extension-based detection only.
	Path        string
	Mode        ImportMode
	DryRun      bool
	BackupFirst bool
	// DefaultAlias names configurations from inputs without alias structure.
	DefaultAlias string
}

// AliasError is a per-alias import failure.
type AliasError struct {
	Alias  string `json:"alias"`
	Reason string `json:"reason"`
	Err    error  `json:"-"`
}

// ImportResult reports what an import did, or would do in a dry run.
type ImportResult struct {
	Format    codec.Format `json:"format"`
	DryRun    bool         `json:"dry_run"`
	Imported  []string     `json:"imported"`
	Conflicts []string     `json:"conflicts"`
	Errors    []AliasError `json:"errors"`
	// Added, Overwritten and Merged partition Imported by what happened.
	Added          []string `json:"added"`
	Overwritten    []string `json:"overwritten"`
	Merged         []string `json:"merged"`
	BackupPath     string   `json:"backup_path,omitempty"`
	BackupsRemoved int      `json:"backups_removed,omitempty"`
}

// Exchange moves configurations in and out of the store through the codec.
type Exchange struct {
	manager     *Manager
	keepBackups int
	logger      zerolog.Logger
}

// NewExchange creates an exchange over m. After each pre-import backup the
// newest keepBackups backups are kept; 0 keeps everything.
func NewExchange(m *Manager, keepBackups int, logger zerolog.Logger) *Exchange {
	return &Exchange{
		manager:     m,
		keepBackups: keepBackups,
		logger:      logger.With().Str("component", "exchange").Logger(),
	}
}

// Export encodes the selected configurations. It never writes the store.
func (e *Exchange) Export(ctx context.Context, opts ExportOptions) (res *codec.EncodeResult, err error) {
	format := opts.Format
	if format == codec.FormatUnknown {
		format = codec.FormatJSON
	}
	op := telemetry.StartOperation(ctx, "export", telemetry.AttrFormat.String(format.String()))
	defer func() { op.End(err) }()

	doc, err := e.manager.store.Load()
	if err != nil {
		return nil, err
	}

	subset := stores.NewDocument()
	if len(opts.Aliases) == 0 {
		for alias, cfg := range doc.Configs {
			subset.Configs[alias] = cfg.Clone()
		}
	} else {
		var missing []string
		for _, alias := range opts.Aliases {
			cfg, ok := doc.Get(alias)
			if !ok {
				missing = append(missing, alias)
				continue
			}
			subset.Configs[alias] = cfg.Clone()
		}
		if len(missing) > 0 {
			return nil, errdefs.Newf(errdefs.KindUnknownAlias, "unknown configuration(s): %s", strings.Join(missing, ", ")).
				WithAlias(missing[0]).
				WithOperation("export").
				WithDetail("missing", missing)
		}
	}
	// Only kept when the active configuration is part of the export.
	subset.SetActive(doc.Active())

	res, err = codec.Encode(subset, format, codec.EncodeOptions{
		Metadata: opts.Metadata,
		Pretty:   opts.Pretty,
	})
	if err != nil {
		return nil, err
	}

	op.SetAttributes(telemetry.AttrCount.Int(res.Configurations))
	e.logger.Debug().
		Str("format", format.String()).
		Int("configurations", res.Configurations).
		Int("variables", res.Variables).
		Int("collisions", len(res.Collisions)).
		Msg("Exported configurations")

	return res, nil
}

// ExportToFile exports to path with owner-only permissions. Without an
// explicit format the extension decides, falling back to JSON.
func (e *Exchange) ExportToFile(ctx context.Context, path string, opts ExportOptions) (*codec.EncodeResult, error) {
	if opts.Format == codec.FormatUnknown {
		opts.Format = codec.FormatFromPath(path)
	}
	res, err := e.Export(ctx, opts)
	if err != nil {
		return nil, err
	}
	if err := stores.WriteFileAtomic(path, res.Data); err != nil {
		return nil, errdefs.Wrap(errdefs.KindIOError, "failed to write export file", err).
			WithOperation("export").
			WithDetail("path", path)
	}
	return res, nil
}

// ImportFile reads path and imports it. The path extension takes part in
// format detection.
func (e *Exchange) ImportFile(ctx context.Context, path string, opts ImportOptions) (*ImportResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, errdefs.Newf(errdefs.KindNotFound, "import file %q not found", path).
				WithOperation("import")
		}
		return nil, errdefs.Wrap(errdefs.KindIOError, "failed to read import file", err).
			WithOperation("import").
			WithDetail("path", path)
	}
	opts.Path = path
	return e.Import(ctx, data, opts)
}

// staged is one candidate accepted for writing.
type staged struct {
	cfg     *stores.Configuration
	outcome string
}

const (
	outcomeAdded       = "added"
	outcomeOverwritten = "overwritten"
	outcomeMerged      = "merged"
)

// Import decodes data and applies it to the store. A decode failure aborts
// with nothing written. Candidates failing validation are reported in
// Errors and skipped; the rest are written in a single save. The active
// configuration is never changed by an import.
func (e *Exchange) Import(ctx context.Context, data []byte, opts ImportOptions) (result *ImportResult, err error) {
	op := telemetry.StartOperation(ctx, "import",
		telemetry.AttrMode.String(opts.Mode.String()),
		telemetry.AttrDryRun.Bool(opts.DryRun),
	)
	defer func() { op.End(err) }()

	format := opts.Format
	if format == codec.FormatUnknown {
		format, err = codec.DetectFormat(opts.Path, data)
		if err != nil {
			return nil, err
		}
	}
	op.SetAttributes(telemetry.AttrFormat.String(format.String()))

	candidates, err := codec.Decode(data, format, codec.DecodeOptions{DefaultAlias: opts.DefaultAlias})
	if err != nil {
		return nil, err
	}

	doc, err := e.manager.store.Load()
	if err != nil {
		return nil, err
	}

	result = &ImportResult{
		Format:      format,
		DryRun:      opts.DryRun,
		Imported:    []string{},
		Conflicts:   []string{},
		Errors:      []AliasError{},
		Added:       []string{},
		Overwritten: []string{},
		Merged:      []string{},
	}

	var plan []staged
	for _, alias := range candidates.Aliases() {
		candidate := candidates.Configs[alias]
		if err := e.manager.validator.ValidateConfiguration(alias, candidate.Variables, candidate.Description); err != nil {
			result.Errors = append(result.Errors, AliasError{Alias: alias, Reason: err.Error(), Err: err})
			continue
		}

		existing, exists := doc.Get(alias)
		switch {
		case !exists:
			plan = append(plan, staged{cfg: e.fresh(candidate, nil), outcome: outcomeAdded})
		case opts.Mode == ModeForce:
			plan = append(plan, staged{cfg: e.fresh(candidate, existing), outcome: outcomeOverwritten})
		case opts.Mode == ModeMerge:
			merged := e.merge(existing, candidate)
			if err := e.manager.validator.ValidateVariableCount(len(merged.Variables)); err != nil {
				result.Errors = append(result.Errors, AliasError{Alias: alias, Reason: err.Error(), Err: err})
				continue
			}
			plan = append(plan, staged{cfg: merged, outcome: outcomeMerged})
		default:
			result.Conflicts = append(result.Conflicts, alias)
		}
	}

	for _, s := range plan {
		result.Imported = append(result.Imported, s.cfg.Alias)
		switch s.outcome {
		case outcomeAdded:
			result.Added = append(result.Added, s.cfg.Alias)
		case outcomeOverwritten:
			result.Overwritten = append(result.Overwritten, s.cfg.Alias)
		case outcomeMerged:
			result.Merged = append(result.Merged, s.cfg.Alias)
		}
	}

	log := e.logger.With().
		Str("format", format.String()).
		Str("mode", opts.Mode.String()).
		Int("imported", len(result.Imported)).
		Int("conflicts", len(result.Conflicts)).
		Int("errors", len(result.Errors)).
		Logger()

	if opts.DryRun {
		log.Debug().Msg("Dry run import computed")
		return result, nil
	}
	if len(plan) == 0 {
		log.Debug().Msg("Nothing to import")
		telemetry.MetricsFromContext(op.Ctx).RecordImportOutcomes(0, len(result.Conflicts), len(result.Errors))
		return result, nil
	}

	if opts.BackupFirst {
		path, err := e.manager.store.Backup()
		if err != nil {
			return nil, err
		}
		result.BackupPath = path
		if path != "" {
			telemetry.MetricsFromContext(op.Ctx).RecordBackup("created", 1)
		}
	}

	changes := make([]change, 0, len(plan))
	for _, s := range plan {
		doc.Put(s.cfg)
		changes = append(changes, change{
			action: stores.ActionImport,
			alias:  s.cfg.Alias,
			details: map[string]interface{}{
				"outcome":   s.outcome,
				"format":    format.String(),
				"variables": len(s.cfg.Variables),
			},
		})
	}
	if err := e.manager.commit(op.Ctx, doc, changes...); err != nil {
		return nil, err
	}
	telemetry.MetricsFromContext(op.Ctx).RecordImportOutcomes(len(result.Imported), len(result.Conflicts), len(result.Errors))

	if result.BackupPath != "" && e.keepBackups > 0 {
		removed, err := e.manager.store.CleanupBackups(e.keepBackups)
		if err != nil {
			// The import is committed; a failed prune only leaves extra files.
			log.Warn().Err(err).Msg("Failed to clean up old backups")
		}
		result.BackupsRemoved = removed
		telemetry.MetricsFromContext(op.Ctx).RecordBackup("removed", removed)
	}

	log.Info().Str("backup", result.BackupPath).Msg("Import committed")
	return result, nil
}

// fresh builds the stored form of a candidate that is added or replaces
// existing. Candidate timestamps are kept when present.
func (e *Exchange) fresh(candidate, existing *stores.Configuration) *stores.Configuration {
	now := e.manager.now()
	cfg := candidate.Clone()
	if cfg.CreatedAt.IsZero() {
		cfg.CreatedAt = now
		if existing != nil {
			cfg.CreatedAt = existing.CreatedAt
		}
	}
	if cfg.UpdatedAt.IsZero() {
		cfg.UpdatedAt = now
	}
	return cfg
}

// merge lays candidate variables over existing ones. The description is
// replaced only when the candidate has one.
func (e *Exchange) merge(existing, candidate *stores.Configuration) *stores.Configuration {
	cfg := existing.Clone()
	maps.Copy(cfg.Variables, candidate.Variables)
	if candidate.Description != "" {
		cfg.Description = candidate.Description
	}
	cfg.UpdatedAt = e.manager.now()
	return cfg
}
