// Package confwatch implements live reconfiguration (spec.md §2 item 5):
// watching a graph's root configuration file on disk and feeding parsed
// changes into a running Compound or Component via its SetConfig, with
// exponential-backoff retry on a transient read/parse failure. The
// fsnotify watch loop and its debounce shape are grounded on the teacher's
// internal/driver/watcher.FileWatch; the retry/backoff addition is new,
// needed because a config file mid-write produces a transient parse
// failure that a camera-upload watcher never had to tolerate.
package confwatch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/fsnotify/fsnotify"

	"github.com/pyctools/runtime/internal/runtimelog"
)

// Decoder parses raw file bytes and applies the result to the running
// graph; cmd/pyctoolsd's decoder, for example, reads a JSON child -> leaf
// -> value object and applies it through config.SetRawValue and
// Component.SetConfig. Decoder errors are treated as transient: confwatch
// retries with backoff rather than giving up on one bad read.
type Decoder func(data []byte) error

// Watcher watches one file and re-decodes it on every write, debouncing
// bursts of filesystem events the way editors and atomic-rename writers
// produce them.
type Watcher struct {
	path    string
	decode  Decoder
	logger  runtimelog.Logger
	debounce time.Duration
	backoff  func() backoff.BackOff
}

// New returns a Watcher for path. debounce coalesces a burst of fsnotify
// events (common with editors that write-then-rename) into one decode
// call; a debounce of zero decodes on every individual event.
func New(path string, decode Decoder, logger runtimelog.Logger, debounce time.Duration) *Watcher {
	if logger == nil {
		logger = runtimelog.NewNop()
	}
	return &Watcher{
		path:     path,
		decode:   decode,
		logger:   logger.With(runtimelog.String("confwatch", path)),
		debounce: debounce,
		backoff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 100 * time.Millisecond
			b.MaxInterval = 5 * time.Second
			b.MaxElapsedTime = 0 // retry until ctx cancellation
			return b
		},
	}
}

// Run watches the file until ctx is cancelled. It decodes once immediately
// on entry (so a component starts with the file's current contents), then
// again on every debounced write, retrying a failed decode with
// exponential backoff instead of silently falling back to stale config.
func (w *Watcher) Run(ctx context.Context) error {
	if err := w.decodeWithRetry(ctx); err != nil {
		return err
	}

	dir := filepath.Dir(w.path)
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()
	if err := watcher.Add(dir); err != nil {
		return err
	}

	var pending <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != filepath.Clean(w.path) {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if w.debounce <= 0 {
				if err := w.decodeWithRetry(ctx); err != nil {
					return err
				}
				continue
			}
			timer := time.NewTimer(w.debounce)
			pending = timer.C
		case <-pending:
			pending = nil
			if err := w.decodeWithRetry(ctx); err != nil {
				return err
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", runtimelog.Error(err))
		}
	}
}

// decodeWithRetry reads and decodes the file, retrying on exponential
// backoff until it succeeds or ctx is cancelled. A missing file is not
// retried: it is reported once and left for the next fsnotify event to
// re-trigger, since recreating it is the external actor's job, not ours.
func (w *Watcher) decodeWithRetry(ctx context.Context) error {
	op := func() error {
		data, err := os.ReadFile(w.path)
		if errors.Is(err, os.ErrNotExist) {
			return backoff.Permanent(err)
		}
		if err != nil {
			return err
		}
		return w.decode(data)
	}
	err := backoff.Retry(op, backoff.WithContext(w.backoff(), ctx))
	if err != nil {
		// backoff.Retry hands back a Permanent error already unwrapped.
		if errors.Is(err, os.ErrNotExist) {
			w.logger.Warn("config file missing", runtimelog.Error(err))
			return nil
		}
		if ctx.Err() != nil {
			return nil
		}
		return err
	}
	w.logger.Info("config reloaded")
	return nil
}
