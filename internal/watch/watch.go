// Package watch re-runs a callback whenever a file changes on disk.
package watch

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/hashicorp/go-hclog"
)

// DefaultSettle is how long a file must stay quiet before the callback runs.
const DefaultSettle = 150 * time.Millisecond

// Options configures File.
type Options struct {
	// Settle coalesces bursts of events; zero uses DefaultSettle.
	Settle time.Duration

	// Logger receives event and callback errors; nil discards them.
	Logger hclog.Logger
}

// File calls fn each time path is written or created (including renamed into place),
// until ctx is done. The parent directory is watched so editors that replace
// the file atomically are noticed. Errors from fn are logged, not returned.
func File(ctx context.Context, path string, fn func() error, opts Options) error {
	settle := opts.Settle
	if settle <= 0 {
		settle = DefaultSettle
	}
	logger := opts.Logger
	if logger == nil {
		logger = hclog.NewNullLogger()
	}

	target, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve watch path: %w", err)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer w.Close()

	if err := w.Add(filepath.Dir(target)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(target), err)
	}
	logger.Debug("watching", "path", target)

	timer := time.NewTimer(settle)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target || !ev.Has(fsnotify.Write|fsnotify.Create) {
				continue
			}
			logger.Trace("file event", "op", ev.Op.String())
			timer.Reset(settle)

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			if errors.Is(err, fsnotify.ErrEventOverflow) {
				logger.Warn("watch events dropped", "error", err)
				timer.Reset(settle)
				continue
			}
			return fmt.Errorf("watch %s: %w", target, err)

		case <-timer.C:
			if err := fn(); err != nil {
				logger.Error("watch callback failed", "path", target, "error", err)
			}
		}
	}
}
