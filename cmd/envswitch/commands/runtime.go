package commands

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/envswitch/envswitch/pkg/config"
	"github.com/envswitch/envswitch/pkg/engine"
	"github.com/envswitch/envswitch/pkg/notify"
	"github.com/envswitch/envswitch/pkg/stores"
	"github.com/envswitch/envswitch/pkg/telemetry"
)

const shutdownTimeout = 5 * time.Second

// runtime is what commands share once the configuration directory is
// known. It is opened by the first command that needs the store.
type runtime struct {
	version string

	paths    config.Paths
	settings *config.Settings
	tel      *telemetry.Telemetry
	base     zerolog.Logger
	logger   zerolog.Logger
	store    *stores.FileStore
	history  *stores.HistoryStore
	histPath string
	manager  *engine.Manager
	exchange *engine.Exchange
	masker   *notify.Masker

	op *telemetry.InstrumentedContext
}

func newRuntime(version string) *runtime {
	return &runtime{version: version, base: zerolog.Nop(), logger: zerolog.Nop()}
}

// open loads settings, starts telemetry and wires the engine. The returned
// context carries telemetry and the command span.
func (rt *runtime) open(cmd *cobra.Command) (context.Context, error) {
	if rt.op != nil {
		return rt.op.Ctx, nil
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	paths, err := config.ResolvePaths(configDir)
	if err != nil {
		return nil, err
	}
	if err := paths.EnsureDir(); err != nil {
		return nil, err
	}
	settings, err := config.LoadSettings(paths.SettingsFile)
	if err != nil {
		return nil, err
	}

	telCfg := telemetry.FromSettings(settings, rt.version)
	telCfg.Logging.Level = telemetry.ResolveLevel(settings.Logging.Level, verbose)
	telCfg.Logging.NoColor = noColor
	tel, err := telemetry.NewTelemetry(telCfg)
	if err != nil {
		return nil, err
	}

	rt.paths = paths
	rt.settings = settings
	rt.tel = tel
	rt.base = tel.Logger.Zerolog()
	rt.logger = tel.Logger.NewComponentLogger("cli").Zerolog()
	rt.store = stores.NewFileStore(paths.StoreFile, rt.base)
	rt.masker = notify.NewMasker(settings.Display.MaskValues, settings.Display.SensitiveKeys)

	ctx = tel.WithContext(ctx)

	opts := []engine.Option{engine.WithValidator(config.NewValidator(settings.Limits))}
	if settings.History.Enabled {
		if h := rt.openHistory(ctx); h != nil {
			rt.history = h
			opts = append(opts, engine.WithHistory(h))
		}
	}
	rt.manager = engine.NewManager(rt.store, rt.base, opts...)
	rt.exchange = engine.NewExchange(rt.manager, settings.Backups.Keep, rt.base)

	rt.op = telemetry.StartOperation(ctx, "command", telemetry.AttrCommand.String(cmd.CommandPath()))
	rt.logger.Debug().
		Str("config_dir", paths.Dir).
		Str("command", cmd.CommandPath()).
		Str("trace_id", telemetry.TraceID(rt.op.Ctx)).
		Msg("Runtime ready")
	return rt.op.Ctx, nil
}

// openHistory opens the audit database. History is optional, so failures
// are logged and nil is returned.
func (rt *runtime) openHistory(ctx context.Context) *stores.HistoryStore {
	path := rt.settings.History.Path
	if path == "" {
		path = rt.paths.HistoryFile
	}
	h, err := stores.NewHistoryStore(path)
	if err == nil {
		err = h.Open(ctx)
	}
	if err != nil {
		rt.logger.Warn().Err(err).Str("path", path).Msg("History disabled for this run")
		return nil
	}
	rt.histPath = path
	return h
}

// close ends the command span and flushes telemetry. It is safe to call
// when open never ran.
func (rt *runtime) close(cmdErr error) {
	if rt.op != nil {
		rt.op.End(cmdErr)
	}
	if rt.history != nil {
		if err := rt.history.Close(); err != nil {
			rt.logger.Warn().Err(err).Msg("Failed to close history store")
		}
	}
	if rt.tel != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := rt.tel.Shutdown(ctx); err != nil {
			rt.logger.Warn().Err(err).Msg("Failed to flush telemetry")
		}
	}
}
