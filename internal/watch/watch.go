// Package watch waits for engine output files to appear on disk.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/vk/scalegrid/internal/ctxlog"
)

const (
	defaultSettle = 500 * time.Millisecond
	defaultTick   = 100 * time.Millisecond
)

// Watcher waits for files to be created and then stay unchanged for a
// settle period, so a file still being written is not reported.
type Watcher struct {
	settle time.Duration
	tick   time.Duration
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithSettle sets how long a file must stay unchanged before it is ready.
func WithSettle(d time.Duration) Option {
	return func(w *Watcher) {
		if d >= 0 {
			w.settle = d
		}
	}
}

// WithTick sets how often pending files are checked against the settle
// period.
func WithTick(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.tick = d
		}
	}
}

// New creates a Watcher.
func New(opts ...Option) *Watcher {
	w := &Watcher{settle: defaultSettle, tick: defaultTick}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Wait blocks until every path is ready or ctx is done. onReady, if not
// nil, is called once per path as soon as it becomes ready. The returned
// slice lists ready paths in the order they became ready; when ctx ends
// first it is returned together with ctx.Err(). The parent directory of
// every path must exist.
func (w *Watcher) Wait(ctx context.Context, paths []string, onReady func(path string)) ([]string, error) {
	logger := ctxlog.FromContext(ctx)

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create file watcher: %w", err)
	}
	defer fsw.Close()

	// lastChange holds the time a pending path was last seen changing; a
	// zero time means the file does not exist yet.
	lastChange := make(map[string]time.Time, len(paths))
	dirs := make(map[string]struct{})
	for _, p := range paths {
		p = filepath.Clean(p)
		lastChange[p] = time.Time{}
		dirs[filepath.Dir(p)] = struct{}{}
	}
	for dir := range dirs {
		if err := fsw.Add(dir); err != nil {
			return nil, fmt.Errorf("watch %s: %w", dir, err)
		}
		logger.Debug("Watching directory.", "dir", dir)
	}

	// Files that already exist use their modification time, so finished
	// output is reported after at most one tick.
	for p := range lastChange {
		info, err := os.Stat(p)
		switch {
		case err == nil:
			lastChange[p] = info.ModTime()
		case !errors.Is(err, fs.ErrNotExist):
			return nil, err
		}
	}

	var ready []string
	markReady := func(p string) {
		delete(lastChange, p)
		ready = append(ready, p)
		logger.Info("Output file ready.", "path", p)
		if onReady != nil {
			onReady(p)
		}
	}

	ticker := time.NewTicker(w.tick)
	defer ticker.Stop()

	for {
		if len(lastChange) == 0 {
			return ready, nil
		}
		select {
		case <-ctx.Done():
			return ready, ctx.Err()

		case event, ok := <-fsw.Events:
			if !ok {
				return ready, errors.New("file watcher closed")
			}
			p := filepath.Clean(event.Name)
			if _, pending := lastChange[p]; !pending {
				continue
			}
			switch {
			case event.Has(fsnotify.Create), event.Has(fsnotify.Write):
				lastChange[p] = time.Now()
			case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
				lastChange[p] = time.Time{}
			}
			logger.Debug("File event.", "path", p, "op", event.Op.String())

		case err, ok := <-fsw.Errors:
			if !ok {
				return ready, errors.New("file watcher closed")
			}
			logger.Warn("File watcher error.", "error", err)

		case now := <-ticker.C:
			for p, changed := range lastChange {
				if changed.IsZero() || now.Sub(changed) < w.settle {
					continue
				}
				if _, err := os.Stat(p); err != nil {
					lastChange[p] = time.Time{}
					continue
				}
				markReady(p)
			}
		}
	}
}
