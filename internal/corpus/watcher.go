package corpus

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"ragchat/internal/logger"
)

// DefaultDebounce groups bursts of file events into one rebuild.
const DefaultDebounce = 500 * time.Millisecond

// Watcher triggers a callback when corpus files in a directory change.
type Watcher struct {
	dir      string
	match    func(rel string) bool
	debounce time.Duration
}

// NewWatcher creates a watcher for dir. match filters events by file name
// relative to dir; nil accepts every file.
func NewWatcher(dir string, match func(rel string) bool, debounce time.Duration) *Watcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Watcher{dir: dir, match: match, debounce: debounce}
}

// Run blocks until ctx is done, calling onChange once per quiet period
// after relevant events. Editors often emit several events per save.
func (w *Watcher) Run(ctx context.Context, onChange func()) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()
	if err := fw.Add(w.dir); err != nil {
		return err
	}
	logger.Info("WATCHER: watching directory %s", w.dir)

	var (
		mu    sync.Mutex
		timer *time.Timer
	)
	defer func() {
		mu.Lock()
		if timer != nil {
			timer.Stop()
		}
		mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			logger.Info("WATCHER: context cancelled, shutting down watcher")
			return nil
		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !w.relevant(event) {
				continue
			}
			logger.Debug("WATCHER: event %s", event)
			mu.Lock()
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(w.debounce, func() {
				if ctx.Err() == nil {
					onChange()
				}
			})
			mu.Unlock()
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			logger.Warn("WATCHER: %v", err)
		}
	}
}

func (w *Watcher) relevant(event fsnotify.Event) bool {
	if event.Op == fsnotify.Chmod {
		return false
	}
	rel, err := filepath.Rel(w.dir, event.Name)
	if err != nil {
		return false
	}
	return w.match == nil || w.match(rel)
}
