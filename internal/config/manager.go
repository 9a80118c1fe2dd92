package config

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
)

// Manager holds the current configuration snapshot and swaps it when the
// backing file changes. Readers call Current once per unit of work so an
// in-flight request keeps the snapshot it started with.
type Manager struct {
	path    string
	current atomic.Pointer[Config]

	mu        sync.Mutex
	callbacks []func(*Config)
	onError   func(error)
}

// NewManager loads path and returns a Manager holding the result.
func NewManager(path string) (*Manager, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	m := &Manager{path: path}
	m.current.Store(cfg)
	return m, nil
}

// NewStaticManager wraps an already parsed Config. Watch is a no-op for it.
func NewStaticManager(cfg *Config) *Manager {
	m := &Manager{}
	m.current.Store(cfg)
	return m
}

// Current returns the active configuration snapshot.
func (m *Manager) Current() *Config {
	return m.current.Load()
}

// OnChange registers a callback invoked with each successfully reloaded config.
func (m *Manager) OnChange(fn func(*Config)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callbacks = append(m.callbacks, fn)
}

// OnError registers a callback for reload failures. Failed reloads keep the
// previous snapshot.
func (m *Manager) OnError(fn func(error)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onError = fn
}

// Reload re-reads the backing file and swaps the snapshot if it validates.
func (m *Manager) Reload() error {
	if m.path == "" {
		return nil
	}
	cfg, err := Load(m.path)
	if err != nil {
		return err
	}
	m.current.Store(cfg)

	m.mu.Lock()
	callbacks := make([]func(*Config), len(m.callbacks))
	copy(callbacks, m.callbacks)
	m.mu.Unlock()
	for _, fn := range callbacks {
		fn(cfg)
	}
	return nil
}

// Watch reloads the configuration whenever the file is written or replaced.
// The directory is watched rather than the file so editors that save via
// rename are picked up. Watch blocks until ctx is cancelled.
func (m *Manager) Watch(ctx context.Context) error {
	if m.path == "" {
		<-ctx.Done()
		return nil
	}
	absPath, err := filepath.Abs(m.path)
	if err != nil {
		return fmt.Errorf("config: resolve %s: %w", m.path, err)
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("config: create watcher: %w", err)
	}
	defer w.Close()
	if err := w.Add(filepath.Dir(absPath)); err != nil {
		return fmt.Errorf("config: watch %s: %w", absPath, err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != absPath {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if err := m.Reload(); err != nil {
				m.reportError(err)
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			m.reportError(fmt.Errorf("config: watcher: %w", err))
		}
	}
}

func (m *Manager) reportError(err error) {
	m.mu.Lock()
	fn := m.onError
	m.mu.Unlock()
	if fn != nil {
		fn(err)
	}
}
