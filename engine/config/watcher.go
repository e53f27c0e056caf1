package config

import (
	"errors"
	"path/filepath"
	"sync"
	"time"

	"github.com/Carmen-Shannon/oxy-tiny/common"
	"github.com/fsnotify/fsnotify"
)

// Watcher reloads a configuration file whenever it changes on disk.
type Watcher interface {
	// Current returns the most recently loaded valid configuration.
	Current() Config

	// Close stops watching. Safe to call multiple times.
	//
	// Returns:
	//   - error: an error from closing the file system watcher
	Close() error
}

// watcher implements the Watcher interface.
type watcher struct {
	mu        *sync.Mutex
	path      string
	fs        *fsnotify.Watcher
	onChange  func(Config)
	debounce  time.Duration
	current   Config
	done      chan struct{}
	closeOnce *sync.Once
	closeErr  error
}

var _ Watcher = &watcher{}

// Watch loads path and keeps reloading it when it is written, created or renamed into place.
// The containing directory is watched so editors that replace the file atomically are seen.
// A reload that fails to decode or validate is logged and the previous configuration is kept.
//
// Parameters:
//   - path: a .toml, .yaml or .yml file
//   - onChange: called from the watcher goroutine with every successfully reloaded configuration
//   - options: watcher options
//
// Returns:
//   - Watcher: the running watcher
//   - error: an error if the initial load fails or the directory cannot be watched
func Watch(path string, onChange func(Config), options ...WatcherBuilderOption) (Watcher, error) {
	initial, err := Load(path)
	if err != nil {
		return nil, err
	}
	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		fs.Close()
		return nil, err
	}
	if err := fs.Add(filepath.Dir(abs)); err != nil {
		fs.Close()
		return nil, err
	}

	w := &watcher{
		mu:        &sync.Mutex{},
		path:      abs,
		fs:        fs,
		onChange:  onChange,
		debounce:  50 * time.Millisecond,
		current:   initial,
		done:      make(chan struct{}),
		closeOnce: &sync.Once{},
	}
	for _, opt := range options {
		opt(w)
	}
	go w.run()
	return w, nil
}

func (w *watcher) Current() Config {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.current
}

func (w *watcher) Close() error {
	w.closeOnce.Do(func() {
		close(w.done)
		w.closeErr = w.fs.Close()
	})
	return w.closeErr
}

// run collapses bursts of events for the watched file into one reload per debounce window.
func (w *watcher) run() {
	var timer *time.Timer
	var fire <-chan time.Time
	for {
		select {
		case <-w.done:
			if timer != nil {
				timer.Stop()
			}
			return
		case e, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if filepath.Clean(e.Name) != w.path || !e.Has(fsnotify.Write|fsnotify.Create|fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C
		case <-fire:
			fire = nil
			w.reload()
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			if !errors.Is(err, fsnotify.ErrEventOverflow) {
				common.LogWarn("config watcher error", "path", w.path, "err", err)
			}
		}
	}
}

func (w *watcher) reload() {
	c, err := Load(w.path)
	if err != nil {
		common.LogWarn("config reload failed, keeping previous configuration", "path", w.path, "err", err)
		return
	}
	w.mu.Lock()
	w.current = c
	w.mu.Unlock()
	common.LogInfo("config reloaded", "path", w.path, "lights", len(c.Lights))
	if w.onChange != nil {
		w.onChange(c)
	}
}
