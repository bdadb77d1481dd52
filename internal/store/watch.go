package store

import (
	"context"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"sigil/internal/logging"
)

// CatalogWatcher watches the agent and kit catalog files and hot-reloads them
// into the store when they change. Rapid saves are debounced so an editor
// writing in multiple syscalls triggers a single reload.
type CatalogWatcher struct {
	mu          sync.Mutex
	watcher     *fsnotify.Watcher
	store       *SymbolStore
	agentPath   string
	kitPath     string
	debounceMap map[string]time.Time
	debounceDur time.Duration
	stopCh      chan struct{}
	doneCh      chan struct{}
	running     bool
}

// NewCatalogWatcher creates a watcher over the given catalog files. Either
// path may be empty to skip that catalog.
func NewCatalogWatcher(store *SymbolStore, agentPath, kitPath string) (*CatalogWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &CatalogWatcher{
		watcher:     watcher,
		store:       store,
		agentPath:   agentPath,
		kitPath:     kitPath,
		debounceMap: make(map[string]time.Time),
		debounceDur: 500 * time.Millisecond,
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}, nil
}

// Start begins watching. Non-blocking; the event loop runs in a goroutine
// until Stop is called or the context is cancelled.
func (cw *CatalogWatcher) Start(ctx context.Context) error {
	cw.mu.Lock()
	if cw.running {
		cw.mu.Unlock()
		return nil
	}
	cw.running = true
	cw.mu.Unlock()

	for _, path := range []string{cw.agentPath, cw.kitPath} {
		if path == "" {
			continue
		}
		if err := cw.watcher.Add(path); err != nil {
			logging.Get(logging.CategoryStore).Warn("CatalogWatcher: cannot watch %s: %v", path, err)
		} else {
			logging.Store("CatalogWatcher: watching %s", path)
		}
	}

	go cw.run(ctx)
	return nil
}

// Stop stops the watcher and waits for the event loop to exit.
func (cw *CatalogWatcher) Stop() {
	cw.mu.Lock()
	if !cw.running {
		cw.mu.Unlock()
		return
	}
	cw.running = false
	cw.mu.Unlock()

	close(cw.stopCh)
	<-cw.doneCh

	if err := cw.watcher.Close(); err != nil {
		logging.Get(logging.CategoryStore).Error("CatalogWatcher: error closing watcher: %v", err)
	}
	logging.Store("CatalogWatcher: stopped")
}

func (cw *CatalogWatcher) run(ctx context.Context) {
	defer close(cw.doneCh)

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-cw.stopCh:
			return
		case event, ok := <-cw.watcher.Events:
			if !ok {
				return
			}
			cw.handleEvent(event)
		case err, ok := <-cw.watcher.Errors:
			if !ok {
				return
			}
			logging.Get(logging.CategoryStore).Error("CatalogWatcher error: %v", err)
		case <-ticker.C:
			cw.reloadSettled()
		}
	}
}

func (cw *CatalogWatcher) handleEvent(event fsnotify.Event) {
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
		return
	}
	if event.Name != cw.agentPath && event.Name != cw.kitPath {
		return
	}

	logging.StoreDebug("CatalogWatcher: change detected in %s", event.Name)
	cw.mu.Lock()
	cw.debounceMap[event.Name] = time.Now()
	cw.mu.Unlock()
}

func (cw *CatalogWatcher) reloadSettled() {
	cw.mu.Lock()
	now := time.Now()
	var settled []string
	for path, at := range cw.debounceMap {
		if now.Sub(at) >= cw.debounceDur {
			settled = append(settled, path)
			delete(cw.debounceMap, path)
		}
	}
	cw.mu.Unlock()

	for _, path := range settled {
		switch path {
		case cw.agentPath:
			if n, err := cw.store.LoadAgents(path); err != nil {
				logging.Get(logging.CategoryStore).Error("CatalogWatcher: agent reload failed: %v", err)
			} else {
				logging.Store("CatalogWatcher: reloaded %d agents", n)
			}
		case cw.kitPath:
			if n, err := cw.store.LoadKits(path); err != nil {
				logging.Get(logging.CategoryStore).Error("CatalogWatcher: kit reload failed: %v", err)
			} else {
				logging.Store("CatalogWatcher: reloaded %d kits", n)
			}
		}
	}
}
