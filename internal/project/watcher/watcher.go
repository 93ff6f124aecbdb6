// Package watcher reports on-disk changes to files the editor imported,
// so the front end can offer a reload when an external tool rewrites the
// STEP file. Events are debounced: editors and exporters tend to write in
// bursts, and one change notice per burst is enough.
package watcher

import (
	"errors"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/carvecad/carve/internal/event"
	"github.com/carvecad/carve/internal/logging"
)

// Errors returned by watcher operations.
var (
	// ErrClosed is returned by calls on a closed watcher.
	ErrClosed = errors.New("watcher closed")
	// ErrNotWatching is returned when unwatching an unknown path.
	ErrNotWatching = errors.New("path not watched")
)

// DefaultDebounce is the quiet period required before a change fires.
const DefaultDebounce = 250 * time.Millisecond

// Watcher tracks individual files. fsnotify watches their parent
// directories, because editors commonly replace files by writing a
// temporary and renaming it over the original; a watch on the file inode
// itself would go dead at the first save.
type Watcher struct {
	fsw      *fsnotify.Watcher
	bus      *event.Bus
	log      *logging.Logger
	debounce time.Duration

	mu      sync.Mutex
	files   map[string]bool // absolute file path -> watched
	dirRefs map[string]int  // directory -> watched files inside it
	pending map[string]*time.Timer
	closed  bool

	closeCh chan struct{}
	wg      sync.WaitGroup
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce sets the quiet period before a change is published.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithLogger sets the logger. Defaults to a discarding logger.
func WithLogger(log *logging.Logger) Option {
	return func(w *Watcher) {
		if log != nil {
			w.log = log.WithComponent("watcher")
		}
	}
}

// New starts a watcher that publishes file changes on the bus.
func New(bus *event.Bus, opts ...Option) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		fsw:      fsw,
		bus:      bus,
		log:      logging.Discard(),
		debounce: DefaultDebounce,
		files:    make(map[string]bool),
		dirRefs:  make(map[string]int),
		pending:  make(map[string]*time.Timer),
		closeCh:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.wg.Add(1)
	go w.loop()
	return w, nil
}

// Watch starts tracking one file. Watching the same file twice is a
// no-op.
func (w *Watcher) Watch(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	dir := filepath.Dir(abs)

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrClosed
	}
	if w.files[abs] {
		return nil
	}
	if w.dirRefs[dir] == 0 {
		if err := w.fsw.Add(dir); err != nil {
			return err
		}
	}
	w.files[abs] = true
	w.dirRefs[dir]++
	w.log.Debug("watching %s", abs)
	return nil
}

// Unwatch stops tracking one file. The directory watch is released when
// its last file goes.
func (w *Watcher) Unwatch(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	dir := filepath.Dir(abs)

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrClosed
	}
	if !w.files[abs] {
		return ErrNotWatching
	}
	delete(w.files, abs)
	if t, ok := w.pending[abs]; ok {
		t.Stop()
		delete(w.pending, abs)
	}
	w.dirRefs[dir]--
	if w.dirRefs[dir] <= 0 {
		delete(w.dirRefs, dir)
		_ = w.fsw.Remove(dir)
	}
	return nil
}

// IsWatching reports whether the file is tracked.
func (w *Watcher) IsWatching(path string) bool {
	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.files[abs]
}

// Close stops the watcher and cancels pending debounce timers.
func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	for path, t := range w.pending {
		t.Stop()
		delete(w.pending, path)
	}
	close(w.closeCh)
	w.mu.Unlock()

	err := w.fsw.Close()
	w.wg.Wait()
	return err
}

func (w *Watcher) loop() {
	defer w.wg.Done()
	for {
		select {
		case <-w.closeCh:
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handle(ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.log.Warn("fsnotify: %v", err)
		}
	}
}

func (w *Watcher) handle(ev fsnotify.Event) {
	if !ev.Op.Has(fsnotify.Write) && !ev.Op.Has(fsnotify.Create) && !ev.Op.Has(fsnotify.Rename) && !ev.Op.Has(fsnotify.Remove) {
		return
	}
	abs, err := filepath.Abs(ev.Name)
	if err != nil {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed || !w.files[abs] {
		return
	}
	if t, ok := w.pending[abs]; ok {
		t.Reset(w.debounce)
		return
	}
	w.pending[abs] = time.AfterFunc(w.debounce, func() {
		w.fire(abs)
	})
}

func (w *Watcher) fire(path string) {
	w.mu.Lock()
	delete(w.pending, path)
	closed := w.closed
	w.mu.Unlock()
	if closed {
		return
	}
	w.log.Info("changed on disk: %s", path)
	w.bus.Publish(event.Event{
		Topic:   event.TopicFileChanged,
		Payload: event.FileChange{Path: path},
		Source:  "watcher",
	})
}
