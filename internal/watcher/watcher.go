// Package watcher watches a dispatch table file and signals, debounced,
// when it changes.
package watcher

import (
	"crypto/sha256"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/zjrosen/multidispatch/internal/log"
)

// Watcher monitors one file and signals when its content changes. Saves
// that leave the content as it was are not signalled.
type Watcher struct {
	fsWatcher *fsnotify.Watcher
	path      string
	debounce  time.Duration
	onChange  chan struct{}
	done      chan struct{}
	last      [sha256.Size]byte
}

// Config holds watcher configuration options.
type Config struct {
	Path        string
	DebounceDur time.Duration
}

// DefaultConfig returns a 250ms debounce for path.
func DefaultConfig(path string) Config {
	return Config{
		Path:        path,
		DebounceDur: 250 * time.Millisecond,
	}
}

// New creates a watcher for cfg.Path. Nothing is watched until Start.
func New(cfg Config) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating fsnotify watcher: %w", err)
	}

	return &Watcher{
		fsWatcher: fsw,
		path:      filepath.Clean(cfg.Path),
		debounce:  cfg.DebounceDur,
		onChange:  make(chan struct{}, 1),
		done:      make(chan struct{}),
	}, nil
}

// Start watches the file's directory, which keeps working when an editor
// saves by renaming a temp file over the table. The returned channel
// receives one value per settled change.
func (w *Watcher) Start() (<-chan struct{}, error) {
	w.last, _ = w.fingerprint()

	dir := filepath.Dir(w.path)
	if err := w.fsWatcher.Add(dir); err != nil {
		return nil, fmt.Errorf("watching directory %s: %w", dir, err)
	}
	log.Debug(log.CatWatcher, "Watching file", "path", w.path, "debounce", w.debounce)

	go w.loop()
	return w.onChange, nil
}

// Stop terminates the watcher and releases resources.
func (w *Watcher) Stop() error {
	close(w.done)
	return w.fsWatcher.Close()
}

func (w *Watcher) loop() {
	settle := time.NewTimer(w.debounce)
	settle.Stop()
	defer settle.Stop()

	for {
		select {
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Has(fsnotify.Remove) {
				log.Warn(log.CatWatcher, "Table removed", "path", w.path)
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				settle.Reset(w.debounce)
			}

		case <-settle.C:
			w.settled()

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			log.ErrorErr(log.CatWatcher, "Watch error", err, "path", w.path)

		case <-w.done:
			return
		}
	}
}

// settled signals if the content differs from the last signalled content.
func (w *Watcher) settled() {
	sum, err := w.fingerprint()
	if err != nil {
		log.ErrorErr(log.CatWatcher, "Reading table", err, "path", w.path)
		return
	}
	if sum == w.last {
		log.Debug(log.CatWatcher, "Table saved without changes", "path", w.path)
		return
	}
	w.last = sum

	select {
	case w.onChange <- struct{}{}:
	default:
	}
	log.Debug(log.CatWatcher, "Table changed", "path", w.path)
}

func (w *Watcher) fingerprint() ([sha256.Size]byte, error) {
	data, err := os.ReadFile(w.path)
	if err != nil {
		return [sha256.Size]byte{}, err
	}
	return sha256.Sum256(data), nil
}
