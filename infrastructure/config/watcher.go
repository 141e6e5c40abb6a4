package config

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	domainconfig "treeview-ai/domain/config"
)

// Watcher reloads the engine tunables when the config file changes and
// hands them to the registered handlers. An invalid file keeps the current
// tunables.
type Watcher struct {
	path     string
	watcher  *fsnotify.Watcher
	logger   *zap.Logger
	debounce time.Duration

	mu       sync.RWMutex
	current  *domainconfig.DomainConfig
	onChange []func(*domainconfig.DomainConfig)

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewWatcher loads the file once and starts watching its directory, so
// editors that save by rename are picked up too.
func NewWatcher(path string, logger *zap.Logger) (*Watcher, error) {
	current, err := LoadDomain(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load initial config: %w", err)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	if err := fw.Add(filepath.Dir(path)); err != nil {
		fw.Close()
		return nil, fmt.Errorf("failed to watch config directory: %w", err)
	}

	return &Watcher{
		path:     path,
		watcher:  fw,
		logger:   logger,
		debounce: 100 * time.Millisecond,
		current:  current,
		stopCh:   make(chan struct{}),
	}, nil
}

// OnChange registers a handler for reloaded tunables.
func (w *Watcher) OnChange(handler func(*domainconfig.DomainConfig)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onChange = append(w.onChange, handler)
}

// Current returns the last valid tunables.
func (w *Watcher) Current() *domainconfig.DomainConfig {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

// Start begins watching.
func (w *Watcher) Start() {
	w.wg.Add(1)
	go w.watchLoop()
	w.logger.Info("configuration watcher started", zap.String("path", w.path))
}

// Stop stops watching and waits for the loop to exit.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
		w.watcher.Close()
		w.wg.Wait()
		w.logger.Info("configuration watcher stopped")
	})
}

func (w *Watcher) watchLoop() {
	defer w.wg.Done()

	var debounceTimer *time.Timer
	defer func() {
		if debounceTimer != nil {
			debounceTimer.Stop()
		}
	}()

	for {
		select {
		case <-w.stopCh:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != filepath.Base(w.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(w.debounce, w.reload)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("file watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) reload() {
	next, err := LoadDomain(w.path)
	if err != nil {
		w.logger.Error("invalid configuration, keeping current", zap.Error(err))
		return
	}

	w.mu.Lock()
	prev := w.current
	w.current = next
	handlers := append([]func(*domainconfig.DomainConfig){}, w.onChange...)
	w.mu.Unlock()

	w.logger.Info("configuration reloaded",
		zap.String("path", w.path),
		zap.Strings("changes", diff(prev, next)))
	for _, h := range handlers {
		h(next)
	}
}

func diff(prev, next *domainconfig.DomainConfig) []string {
	var changes []string
	if prev.Reconcile.ConnectSideFallback != next.Reconcile.ConnectSideFallback {
		changes = append(changes, fmt.Sprintf("connect_side_fallback: %s -> %s",
			prev.Reconcile.ConnectSideFallback, next.Reconcile.ConnectSideFallback))
	}
	if prev.Highlight != next.Highlight {
		changes = append(changes, fmt.Sprintf("highlight: %v/%v -> %v/%v",
			prev.Highlight.AssistantDuration, prev.Highlight.TraversalStep,
			next.Highlight.AssistantDuration, next.Highlight.TraversalStep))
	}
	if prev.Placement != next.Placement {
		changes = append(changes, "placement")
	}
	return changes
}
