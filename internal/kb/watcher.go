package kb

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/moolen/inquest/internal/logging"
)

// ReloadCallback is called when the knowledge base file is successfully
// reloaded. Errors returned by the callback are logged; the watcher keeps
// watching with the previous valid knowledge base.
type ReloadCallback func(kb *KnowledgeBase) error

// WatcherConfig holds configuration for the knowledge base file watcher.
type WatcherConfig struct {
	// FilePath is the path to the knowledge base YAML file to watch.
	FilePath string

	// Debounce coalesces bursts of file change events (editor save sequences
	// typically produce several) into a single reload. Default: 500ms.
	Debounce time.Duration
}

// Watcher watches the knowledge base file and reloads it on change, so KB
// edits take effect for subsequent investigation runs without a restart.
// A run that has already loaded its slice is unaffected; slices are resolved
// once per run.
type Watcher struct {
	config   WatcherConfig
	callback ReloadCallback
	logger   *logging.Logger
	cancel   context.CancelFunc
	stopped  chan struct{}

	mu            sync.Mutex
	debounceTimer *time.Timer
}

// NewWatcher creates a watcher for the given knowledge base file.
func NewWatcher(config WatcherConfig, callback ReloadCallback) (*Watcher, error) {
	if config.FilePath == "" {
		return nil, fmt.Errorf("FilePath cannot be empty")
	}
	if callback == nil {
		return nil, fmt.Errorf("callback cannot be nil")
	}
	if config.Debounce == 0 {
		config.Debounce = 500 * time.Millisecond
	}

	return &Watcher{
		config:   config,
		callback: callback,
		logger:   logging.GetLogger("kb.watcher"),
		stopped:  make(chan struct{}),
	}, nil
}

// Start loads the knowledge base once, invokes the callback with it, then
// watches for changes until the context is cancelled or Stop is called.
// The initial load is fail-fast; reload failures only log.
func (w *Watcher) Start(ctx context.Context) error {
	initial, err := Load(w.config.FilePath)
	if err != nil {
		return fmt.Errorf("failed to load initial knowledge base: %w", err)
	}
	if err := w.callback(initial); err != nil {
		return fmt.Errorf("initial knowledge base callback failed: %w", err)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}

	// Watch the directory, not the file: editors replace files on save and
	// a watch on the old inode would go stale.
	dir := filepath.Dir(w.config.FilePath)
	if err := fw.Add(dir); err != nil {
		_ = fw.Close()
		return fmt.Errorf("failed to watch %q: %w", dir, err)
	}

	watchCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	go w.watchLoop(watchCtx, fw)

	w.logger.Info("watching knowledge base file %s", w.config.FilePath)
	return nil
}

// Stop terminates the watch loop and waits for it to exit.
func (w *Watcher) Stop() {
	if w.cancel != nil {
		w.cancel()
		<-w.stopped
	}
}

func (w *Watcher) watchLoop(ctx context.Context, fw *fsnotify.Watcher) {
	defer close(w.stopped)
	defer fw.Close()

	target := filepath.Clean(w.config.FilePath)

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-fw.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			w.scheduleReload()

		case err, ok := <-fw.Errors:
			if !ok {
				return
			}
			w.logger.Error("knowledge base watcher error: %v", err)
		}
	}
}

// scheduleReload resets the debounce timer; the reload fires once the file
// has been quiet for the debounce period.
func (w *Watcher) scheduleReload() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
	}
	w.debounceTimer = time.AfterFunc(w.config.Debounce, w.reload)
}

func (w *Watcher) reload() {
	kb, err := Load(w.config.FilePath)
	if err != nil {
		w.logger.Error("knowledge base reload failed, keeping previous version: %v", err)
		return
	}
	if err := w.callback(kb); err != nil {
		w.logger.Error("knowledge base reload callback failed: %v", err)
		return
	}
	w.logger.Info("knowledge base reloaded from %s", w.config.FilePath)
}
