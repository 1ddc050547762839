package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/conneroisu/tplsync/internal/logging"
)

// EventKind classifies a filesystem change.
type EventKind int

const (
	KindAdded EventKind = iota
	KindChanged
	KindRemoved
)

// String returns the string representation of the EventKind
func (k EventKind) String() string {
	switch k {
	case KindAdded:
		return "added"
	case KindChanged:
		return "changed"
	case KindRemoved:
		return "removed"
	default:
		return "unknown"
	}
}

// Event is one change reported for one path.
type Event struct {
	Kind EventKind
	Path string
}

// Notifier delivers filesystem change events for watched directories.
type Notifier interface {
	Add(dir string) error
	Events() <-chan Event
	Errors() <-chan error
	Close() error
}

// FSNotifier is a Notifier backed by fsnotify. Directories created inside a
// watched directory are watched as well.
type FSNotifier struct {
	watcher *fsnotify.Watcher
	events  chan Event
	errors  chan error
	logger  logging.Logger

	mutex   sync.Mutex
	watched map[string]bool

	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// NewFSNotifier creates a started FSNotifier.
func NewFSNotifier(logger logging.Logger) (*FSNotifier, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logging.Discard()
	}

	n := &FSNotifier{
		watcher: w,
		events:  make(chan Event, 100),
		errors:  make(chan error, 10),
		logger:  logger.WithComponent("notifier"),
		watched: make(map[string]bool),
		done:    make(chan struct{}),
	}
	n.wg.Add(1)
	go n.loop()
	return n, nil
}

// Add watches dir. Adding the same directory twice is a no-op.
func (n *FSNotifier) Add(dir string) error {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return err
	}

	n.mutex.Lock()
	defer n.mutex.Unlock()
	if n.watched[abs] {
		return nil
	}
	if err := n.watcher.Add(abs); err != nil {
		return err
	}
	n.watched[abs] = true
	return nil
}

// Watched returns the number of watched directories.
func (n *FSNotifier) Watched() int {
	n.mutex.Lock()
	defer n.mutex.Unlock()
	return len(n.watched)
}

// Events returns the event channel. It is closed by Close.
func (n *FSNotifier) Events() <-chan Event { return n.events }

// Errors returns the error channel. It is closed by Close.
func (n *FSNotifier) Errors() <-chan error { return n.errors }

// Close stops watching and closes both channels.
func (n *FSNotifier) Close() error {
	var err error
	n.closeOnce.Do(func() {
		close(n.done)
		err = n.watcher.Close()
		n.wg.Wait()
		close(n.events)
		close(n.errors)
	})
	return err
}

func (n *FSNotifier) loop() {
	defer n.wg.Done()
	for {
		select {
		case <-n.done:
			return
		case ev, ok := <-n.watcher.Events:
			if !ok {
				return
			}
			n.handle(ev)
		case err, ok := <-n.watcher.Errors:
			if !ok {
				return
			}
			select {
			case n.errors <- err:
			default:
				n.logger.Warn(context.Background(), err, "Dropped watcher error")
			}
		}
	}
}

func (n *FSNotifier) handle(ev fsnotify.Event) {
	kind, ok := translate(ev.Op)
	if !ok {
		return
	}

	if kind == KindAdded {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			if err := n.Add(ev.Name); err != nil {
				n.logger.Warn(context.Background(), err, "Cannot watch new directory", "dir", ev.Name)
			}
		}
	}
	if kind == KindRemoved {
		n.mutex.Lock()
		delete(n.watched, ev.Name)
		n.mutex.Unlock()
	}

	select {
	case n.events <- Event{Kind: kind, Path: ev.Name}:
	case <-n.done:
	}
}

// translate maps an fsnotify operation to an EventKind.
func translate(op fsnotify.Op) (EventKind, bool) {
	switch {
	case op.Has(fsnotify.Create):
		return KindAdded, true
	case op.Has(fsnotify.Remove), op.Has(fsnotify.Rename):
		return KindRemoved, true
	case op.Has(fsnotify.Write), op.Has(fsnotify.Chmod):
		return KindChanged, true
	default:
		return 0, false
	}
}
