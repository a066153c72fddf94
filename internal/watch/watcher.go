// Package watch ingests bundles dropped into an inbox directory.
package watch

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/jask/olympiadbot/internal/bundle"
	"github.com/jask/olympiadbot/internal/logger"
	"github.com/jask/olympiadbot/internal/service"
)

// Ingester is the part of service.IngestService the watcher needs.
type Ingester interface {
	IngestPath(ctx context.Context, path string, mode service.Mode) (service.IngestResult, error)
}

const defaultDebounce = 500 * time.Millisecond

// BundleWatcher runs an ingestion for every spreadsheet written into Dir,
// once writes to that file have been quiet for the debounce interval.
type BundleWatcher struct {
	dir      string
	mode     service.Mode
	ingest   Ingester
	debounce time.Duration
	log      *logger.Logger

	// OnResult, when set, is called after every ingestion attempt.
	OnResult func(path string, res service.IngestResult, err error)

	fs      *fsnotify.Watcher
	mu      sync.Mutex
	timers  map[string]*time.Timer
	stopped bool
	wg      sync.WaitGroup
}

// New starts watching dir. debounce <= 0 uses 500ms.
func New(dir string, mode service.Mode, ingest Ingester, debounce time.Duration, log *logger.Logger) (*BundleWatcher, error) {
	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := fs.Add(dir); err != nil {
		_ = fs.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}
	if debounce <= 0 {
		debounce = defaultDebounce
	}
	return &BundleWatcher{
		dir:      dir,
		mode:     mode,
		ingest:   ingest,
		debounce: debounce,
		log:      logger.OrNop(log).With("component", "watch", "dir", dir),
		fs:       fs,
		timers:   make(map[string]*time.Timer),
	}, nil
}

// Run blocks until ctx is done, then waits for in-flight ingestions.
func (w *BundleWatcher) Run(ctx context.Context) error {
	defer w.wg.Wait()
	defer w.stopTimers()
	defer w.fs.Close()

	w.log.Info("watching for bundles", "mode", string(w.mode))
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 || !wanted(event.Name) {
				continue
			}
			w.schedule(ctx, event.Name)
		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("watcher error", "err", err)
		}
	}
}

// wanted skips editor lock files and anything that is not a spreadsheet.
func wanted(path string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") || strings.HasPrefix(base, "~$") {
		return false
	}
	return bundle.IsSpreadsheet(base)
}

func (w *BundleWatcher) schedule(ctx context.Context, path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.timers[path]; ok {
		t.Stop()
	}
	w.timers[path] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.timers, path)
		if w.stopped {
			w.mu.Unlock()
			return
		}
		w.wg.Add(1)
		w.mu.Unlock()
		defer w.wg.Done()

		if ctx.Err() != nil {
			return
		}
		res, err := w.ingest.IngestPath(ctx, path, w.mode)
		if err != nil {
			w.log.Error("inbox ingest failed", "file", path, "err", err)
		} else {
			w.log.Info("inbox ingest done", "file", path, "run_id", res.RunID, "inserted", res.Inserted, "skipped", res.Skipped)
		}
		if w.OnResult != nil {
			w.OnResult(path, res, err)
		}
	})
}

func (w *BundleWatcher) stopTimers() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.stopped = true
	for path, t := range w.timers {
		t.Stop()
		delete(w.timers, path)
	}
}
