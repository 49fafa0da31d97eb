package engine

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/envswitch/envswitch/pkg/errdefs"
)

// DefaultWatchDelay is how long a file must be quiet before it is imported.
const DefaultWatchDelay = 500 * time.Millisecond

// Watcher re-imports a file whenever it changes.
type Watcher struct {
	exchange *Exchange
	delay    time.Duration
	logger   zerolog.Logger
}

// NewWatcher creates a watcher. delay <= 0 uses DefaultWatchDelay.
func NewWatcher(exchange *Exchange, delay time.Duration, logger zerolog.Logger) *Watcher {
	if delay <= 0 {
		delay = DefaultWatchDelay
	}
	return &Watcher{
		exchange: exchange,
		delay:    delay,
		logger:   logger.With().Str("component", "watcher").Logger(),
	}
}

// Watch blocks until ctx is cancelled, importing path with opts after each
// burst of changes. onImport receives every result. The parent directory
// is watched so editors that save by rename are seen too.
func (w *Watcher) Watch(ctx context.Context, path string, opts ImportOptions, onImport func(*ImportResult, error)) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return errdefs.Wrap(errdefs.KindIOError, "failed to resolve watch path", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errdefs.Wrap(errdefs.KindIOError, "failed to create file watcher", err)
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return errdefs.Wrap(errdefs.KindIOError, "failed to watch directory", err).
			WithDetail("path", filepath.Dir(abs))
	}

	w.logger.Info().Str("path", abs).Dur("delay", w.delay).Msg("Watching file")

	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != abs {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			w.logger.Debug().Str("file", event.Name).Str("op", event.Op.String()).Msg("File changed")

			// Debounce
			if timer != nil {
				timer.Stop()
			}
			timer = time.NewTimer(w.delay)
			fire = timer.C

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn().Err(err).Msg("File watcher error")

		case <-fire:
			fire = nil
			result, err := w.exchange.ImportFile(ctx, abs, opts)
			if err != nil {
				w.logger.Warn().Err(err).Str("path", abs).Msg("Import after change failed")
			}
			if onImport != nil {
				onImport(result, err)
			}
		}
	}
}
