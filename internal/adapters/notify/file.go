package notify

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/okian/pinta/internal/domain/model"
	"github.com/okian/pinta/pkg/logger"
)

const relevantOps = fsnotify.Write | fsnotify.Create | fsnotify.Rename | fsnotify.Remove

// FileWatcher reports writes to the ledger file or its SQLite sidecars.
// The parent directory is watched so atomic replaces are seen too.
type FileWatcher struct {
	path  string
	names map[string]struct{}
	sink  Sink
	settings
}

// NewFileWatcher watches path and sends debounced events to sink.
func NewFileWatcher(path string, sink Sink, opts ...Option) *FileWatcher {
	base := filepath.Base(path)
	return &FileWatcher{
		path: filepath.Clean(path),
		names: map[string]struct{}{
			base:          {},
			base + "-wal": {},
			base + "-shm": {},
		},
		sink:     sink,
		settings: newSettings("file-watcher", opts),
	}
}

// Run blocks until ctx is done or the sink closes.
func (w *FileWatcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	dir := filepath.Dir(w.path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	w.logger.Info(ctx, "watching ledger", logger.String("path", w.path), logger.Duration("debounce", w.debounce))

	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()
	pending := false

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !w.relevant(ev) {
				continue
			}
			if pending && !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(w.debounce)
			pending = true
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn(ctx, "watcher error", logger.Error(err))
		case <-timer.C:
			pending = false
			e := model.ChangeEvent{
				ID:      w.newID(),
				Source:  model.ChangeSourceFile,
				Subject: w.path,
				At:      w.now(),
			}
			if !emit(ctx, w.sink, w.logger, e) {
				return nil
			}
		}
	}
}

func (w *FileWatcher) relevant(ev fsnotify.Event) bool {
	if ev.Op&relevantOps == 0 {
		return false
	}
	_, ok := w.names[filepath.Base(ev.Name)]
	return ok
}
