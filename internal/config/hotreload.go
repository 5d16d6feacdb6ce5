package config

import (
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ChangeHandler receives the active config after a change: a reloaded one
// when the config file itself changed, the current one when only corpus
// documents did.
type ChangeHandler func(cfg *Config)

// reloadDebounce coalesces editor save bursts and bulk corpus edits into a
// single handler invocation.
const reloadDebounce = 300 * time.Millisecond

// Watcher keeps a long-lived process current: it watches the config file
// and the resolved memory directory, reloading the config on the former and
// firing handlers on either, so a warm loop can re-chunk after corpus edits
// without polling. When a reload moves memoryDir, the corpus watch follows.
type Watcher struct {
	configPath string
	fs         *fsnotify.Watcher
	stop       chan struct{}

	mu            sync.Mutex
	cfg           *Config
	handlers      []ChangeHandler
	configPending bool
}

// NewWatcher resolves the initial config and prepares a watcher over the
// config file and the config's memory directory.
func NewWatcher(configPath string) (*Watcher, error) {
	cfg, err := Load(configPath)
	if err != nil {
		return nil, err
	}
	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{configPath: configPath, fs: fs, cfg: cfg}, nil
}

// Config returns the currently active config.
func (w *Watcher) Config() *Config {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.cfg
}

// OnChange registers a handler. Handlers run on the debounce goroutine, one
// change burst at a time.
func (w *Watcher) OnChange(handler ChangeHandler) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.handlers = append(w.handlers, handler)
}

// Start begins watching. A missing config file or memory directory is not
// fatal: whichever paths exist are watched.
func (w *Watcher) Start() error {
	if err := w.fs.Add(w.configPath); err != nil {
		slog.Debug("config file not watchable", "path", w.configPath, "error", err)
	}
	if dir := w.Config().MemoryDir; dir != "" {
		if err := w.fs.Add(dir); err != nil {
			slog.Debug("memory dir not watchable", "dir", dir, "error", err)
		}
	}

	w.stop = make(chan struct{})
	go w.loop()

	slog.Info("watching for config and corpus changes",
		"config", w.configPath, "memoryDir", w.Config().MemoryDir)
	return nil
}

// Stop halts the watcher.
func (w *Watcher) Stop() {
	if w.stop != nil {
		close(w.stop)
	}
	w.fs.Close()
}

func (w *Watcher) loop() {
	var debounce *time.Timer

	for {
		select {
		case <-w.stop:
			if debounce != nil {
				debounce.Stop()
			}
			return

		case event, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
				!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
				continue
			}
			// Dot entries are the engine's own hidden state (.state cache
			// flushes, temp files from atomic writes); reacting to those
			// would have every injection re-trigger the corpus handlers.
			if base := filepath.Base(event.Name); strings.HasPrefix(base, ".") && event.Name != w.configPath {
				continue
			}

			w.mu.Lock()
			if event.Name == w.configPath {
				w.configPending = true
			}
			w.mu.Unlock()

			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(reloadDebounce, w.apply)

		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			slog.Error("file watcher error", "error", err)
		}
	}
}

// apply runs once per change burst: reload the config if it was part of the
// burst, re-point the corpus watch if memoryDir moved, then notify.
func (w *Watcher) apply() {
	w.mu.Lock()
	configChanged := w.configPending
	w.configPending = false
	cfg := w.cfg
	handlers := make([]ChangeHandler, len(w.handlers))
	copy(handlers, w.handlers)
	w.mu.Unlock()

	if configChanged {
		next, err := Load(w.configPath)
		if err != nil {
			slog.Error("config reload failed, keeping previous config", "error", err)
		} else {
			if next.MemoryDir != cfg.MemoryDir {
				w.fs.Remove(cfg.MemoryDir)
				if err := w.fs.Add(next.MemoryDir); err != nil {
					slog.Warn("new memory dir not watchable", "dir", next.MemoryDir, "error", err)
				}
				slog.Info("memory dir changed", "from", cfg.MemoryDir, "to", next.MemoryDir)
			}
			w.mu.Lock()
			w.cfg = next
			w.mu.Unlock()
			cfg = next
			slog.Info("config reloaded", "path", w.configPath)
		}
	}

	for _, h := range handlers {
		h(cfg)
	}
}
