package storage

import (
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/promptloom/promptloom/errors"
	"github.com/promptloom/promptloom/logger"
)

// ChangeCallback is called after an external change to the storage file
// has settled. Receives the store so it can reload.
type ChangeCallback func(*Store) error

// Watcher watches the storage file for external modification and notifies
// callbacks, debouncing rapid change bursts. Writes made through the store
// itself are marked and ignored so saves never trigger reload loops.
type Watcher struct {
	store          *Store
	watcher        *fsnotify.Watcher
	callbacks      []ChangeCallback
	mu             sync.RWMutex
	debounceTimer  *time.Timer
	debouncePeriod time.Duration
	ownWrite       bool
	ownWriteMu     sync.Mutex
}

// NewWatcher creates a watcher over the store's directory. The directory
// is watched rather than the file, so atomic rename-into-place writes and
// file recreation are still observed.
func NewWatcher(store *Store) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "failed to create fsnotify watcher")
	}
	if err := fsw.Add(store.Dir()); err != nil {
		fsw.Close()
		return nil, errors.Wrapf(err, "failed to watch storage directory %s", store.Dir())
	}

	w := &Watcher{
		store:          store,
		watcher:        fsw,
		debouncePeriod: 500 * time.Millisecond,
	}
	store.SetWatcher(w)
	return w, nil
}

// OnChange registers a callback for external storage changes.
func (w *Watcher) OnChange(callback ChangeCallback) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.callbacks = append(w.callbacks, callback)
}

// MarkOwnWrite marks the next write as coming from the store, so the
// watcher skips it.
func (w *Watcher) MarkOwnWrite() {
	w.ownWriteMu.Lock()
	defer w.ownWriteMu.Unlock()
	w.ownWrite = true
}

func (w *Watcher) checkOwnWrite() bool {
	w.ownWriteMu.Lock()
	defer w.ownWriteMu.Unlock()
	if w.ownWrite {
		w.ownWrite = false
		return true
	}
	return false
}

// Start begins watching in a background goroutine.
func (w *Watcher) Start() {
	go w.watchLoop()
}

func (w *Watcher) watchLoop() {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if !w.isStorageFile(event.Name) {
				continue
			}
			if w.checkOwnWrite() {
				logger.Debugw("Storage watcher ignoring own write",
					logger.FieldFile, event.Name)
				continue
			}
			logger.Infow("Storage watcher detected external change",
				logger.FieldFile, event.Name,
				"op", event.Op.String())
			w.scheduleNotify()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logger.Warnw("Storage watcher error",
				logger.FieldError, err)
		}
	}
}

// isStorageFile filters events down to the storage document itself,
// ignoring temp files and the backups subtree.
func (w *Watcher) isStorageFile(path string) bool {
	base := filepath.Base(path)
	if strings.HasSuffix(base, ".tmp") {
		return false
	}
	return base == defaultFilename
}

// scheduleNotify debounces bursts of events into one notification.
func (w *Watcher) scheduleNotify() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
	}
	w.debounceTimer = time.AfterFunc(w.debouncePeriod, w.notify)
}

func (w *Watcher) notify() {
	w.mu.RLock()
	callbacks := make([]ChangeCallback, len(w.callbacks))
	copy(callbacks, w.callbacks)
	w.mu.RUnlock()

	for _, callback := range callbacks {
		if err := callback(w.store); err != nil {
			logger.Warnw("Storage change callback error",
				logger.FieldError, err)
			// Keep calling the remaining callbacks
		}
	}
}

// Stop stops watching.
func (w *Watcher) Stop() error {
	return w.watcher.Close()
}
