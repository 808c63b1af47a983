package config

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/bryanchriswhite/livejar/internal/logger"
)

// Watcher reloads a Store when its file is edited outside the process.
// The parent directory is watched so editors that replace the file are seen.
type Watcher struct {
	store    *Store
	dispatch func(func())
	debounce time.Duration
	onError  func(error)
	watcher  *fsnotify.Watcher
	ctx      context.Context
	cancel   context.CancelFunc
	done     chan struct{}
	once     sync.Once
}

// WatcherOption configures a Watcher
type WatcherOption func(*Watcher)

// WithDebounce sets how long the file must be quiet before reloading.
// Default is 500ms.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		w.debounce = d
	}
}

// WithErrorHandler sets a callback for reload errors.
// If not set, errors are only logged.
func WithErrorHandler(handler func(error)) WatcherOption {
	return func(w *Watcher) {
		w.onError = handler
	}
}

// NewWatcher creates a watcher for store. dispatch runs the reload; pass the
// control loop's Post so reloads are serialized with every other write.
func NewWatcher(store *Store, dispatch func(func()), opts ...WatcherOption) *Watcher {
	ctx, cancel := context.WithCancel(context.Background())
	w := &Watcher{
		store:    store,
		dispatch: dispatch,
		debounce: 500 * time.Millisecond,
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.dispatch == nil {
		w.dispatch = func(fn func()) { fn() }
	}
	return w
}

// Start begins watching the settings file
func (w *Watcher) Start() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	dir := filepath.Dir(w.store.Path())
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return err
	}
	// Stop waits on done only once watch is running
	w.watcher = watcher

	logger.WithComponent("watcher").Info().
		Str("path", w.store.Path()).
		Dur("debounce", w.debounce).
		Msg("Settings watcher started")
	go w.watch()
	return nil
}

// Stop stops watching and waits for the watch goroutine to exit
func (w *Watcher) Stop() error {
	var err error
	w.once.Do(func() {
		w.cancel()
		if w.watcher != nil {
			err = w.watcher.Close()
			<-w.done
		}
	})
	return err
}

func (w *Watcher) watch() {
	defer close(w.done)
	log := logger.WithComponent("watcher")
	target := filepath.Clean(w.store.Path())

	var timer *time.Timer
	var timerC <-chan time.Time

	for {
		select {
		case <-w.ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			log.Debug().Msg("Settings watcher stopped")
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				log.Debug().Str("op", event.Op.String()).Msg("Settings file change detected")
				if timer != nil {
					timer.Stop()
				}
				timer = time.NewTimer(w.debounce)
				timerC = timer.C
			}

		case <-timerC:
			timerC = nil
			w.dispatch(w.reload)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Error().Err(err).Msg("Settings watcher error")
		}
	}
}

func (w *Watcher) reload() {
	if err := w.store.Reload(); err != nil {
		logger.WithComponent("watcher").Warn().
			Err(err).
			Str("path", w.store.Path()).
			Msg("Failed to reload settings, keeping current values")
		if w.onError != nil {
			w.onError(err)
		}
	}
}
