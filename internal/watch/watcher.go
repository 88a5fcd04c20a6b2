package watch

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Event reports a request file that was created or rewritten.
type Event struct {
	Path string
	Time time.Time
}

// Watcher monitors a directory for request files (*.json).
type Watcher struct {
	dir      string
	watcher  *fsnotify.Watcher
	debounce time.Duration
	logger   *zap.Logger
}

// NewWatcher sets up an fsnotify watch on dir.
func NewWatcher(dir string, debounce time.Duration, logger *zap.Logger) (*Watcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if debounce <= 0 {
		debounce = 200 * time.Millisecond
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("watch directory %s: %w", dir, err)
	}
	return &Watcher{dir: dir, watcher: fsw, debounce: debounce, logger: logger}, nil
}

// Watch returns a channel of request file events. Bursts of writes to the
// same file within the debounce window produce one event. The channel is
// closed when ctx is cancelled or the watcher is closed.
func (w *Watcher) Watch(ctx context.Context) <-chan Event {
	out := make(chan Event, 16)

	go func() {
		defer close(out)

		pending := make(map[string]bool)
		timer := time.NewTimer(0)
		if !timer.Stop() {
			<-timer.C
		}
		defer timer.Stop()

		flush := func() bool {
			paths := make([]string, 0, len(pending))
			for p := range pending {
				paths = append(paths, p)
			}
			sort.Strings(paths)
			clear(pending)
			for _, p := range paths {
				select {
				case out <- Event{Path: p, Time: time.Now()}:
				case <-ctx.Done():
					return false
				}
			}
			return true
		}

		for {
			select {
			case <-ctx.Done():
				return

			case ev, ok := <-w.watcher.Events:
				if !ok {
					return
				}
				if !isRequestFile(ev.Name) {
					continue
				}
				if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
					continue
				}
				pending[ev.Name] = true
				timer.Reset(w.debounce)

			case <-timer.C:
				if len(pending) > 0 && !flush() {
					return
				}

			case err, ok := <-w.watcher.Errors:
				if !ok {
					return
				}
				w.logger.Warn("watch error", zap.String("dir", w.dir), zap.Error(err))
			}
		}
	}()

	return out
}

// Close stops watching and cleans up resources.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}

// isRequestFile skips editor temp files and written results.
func isRequestFile(path string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") || strings.Contains(base, ".tmp") {
		return false
	}
	return strings.HasSuffix(base, ".json") && !strings.HasSuffix(base, ".result.json")
}

// ResultPath is where the result for a request file is written.
func ResultPath(outDir, requestPath string) string {
	base := strings.TrimSuffix(filepath.Base(requestPath), ".json")
	return filepath.Join(outDir, base+".result.json")
}
