// Package watcher keeps a build directory in step with its template sources.
//
// A SyncWatcher subscribes to every directory that holds an enumerated
// template file, queues the change events it receives and handles them one
// at a time against a filemanager.Manager. Events for paths inside the build
// directory are dropped before they reach the manager so the watcher never
// reacts to its own output.
package watcher

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync/atomic"

	serrors "github.com/conneroisu/tplsync/internal/errors"
	"github.com/conneroisu/tplsync/internal/filemanager"
	"github.com/conneroisu/tplsync/internal/logging"
	"github.com/conneroisu/tplsync/internal/modules"
	"github.com/conneroisu/tplsync/internal/patterns"
)

// State is the watcher's handling state.
type State int32

const (
	// StateIdle means subscribed and waiting for the next event.
	StateIdle State = iota
	// StateHandling means one event is being applied to the build.
	StateHandling
)

// String returns the string representation of the State
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateHandling:
		return "handling"
	default:
		return "unknown"
	}
}

// ignoredNames are never synced.
var ignoredNames = map[string]bool{
	".DS_Store": true,
}

// Syncer is the part of filemanager.Manager the watcher drives.
type Syncer interface {
	SourceDir() string
	InBuild(path string) bool
	Enumerate(flags patterns.Flags) *filemanager.Index
	Tracked(path string) []string
	SyncPath(path string) (bool, error)
	RebuildConfig(path string, flags patterns.Flags) error
	Remove(path string, flags patterns.Flags) error
}

// Options configures a SyncWatcher.
type Options struct {
	Syncer   Syncer
	Notifier Notifier
	Flags    patterns.Flags
	Logger   logging.Logger
	// OnEvent runs once after each handled event, whatever its outcome.
	OnEvent func(kind EventKind, path string)
	// OnReady runs once after the initial subscription with the number of
	// enumerated files.
	OnReady func(files int)
}

// SyncWatcher applies filesystem changes to the build one event at a time.
type SyncWatcher struct {
	syncer   Syncer
	notifier Notifier
	flags    patterns.Flags
	logger   logging.Logger
	handler  *serrors.ErrorHandler
	onEvent  func(EventKind, string)
	onReady  func(int)

	queue   *Queue
	state   atomic.Int32
	running atomic.Bool
}

// New creates a SyncWatcher.
func New(opts Options) (*SyncWatcher, error) {
	if opts.Syncer == nil {
		return nil, errors.New("watcher requires a syncer")
	}
	if opts.Notifier == nil {
		return nil, errors.New("watcher requires a notifier")
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	logger = logger.WithComponent("watcher")

	return &SyncWatcher{
		syncer:   opts.Syncer,
		notifier: opts.Notifier,
		flags:    opts.Flags,
		logger:   logger,
		handler:  serrors.NewErrorHandler(logger),
		onEvent:  opts.OnEvent,
		onReady:  opts.OnReady,
		queue:    NewQueue(),
	}, nil
}

// State returns the current handling state.
func (w *SyncWatcher) State() State {
	return State(w.state.Load())
}

// Run subscribes to the enumerated files and handles events until ctx is
// done. It returns nil on cancellation.
func (w *SyncWatcher) Run(ctx context.Context) error {
	if !w.running.CompareAndSwap(false, true) {
		return errors.New("watcher is already running")
	}
	defer w.running.Store(false)

	ix := w.syncer.Enumerate(w.flags)
	w.subscribe(ctx, ix)
	w.logger.Info(ctx, "Watching for changes", "files", ix.Len())
	if w.onReady != nil {
		w.onReady(ix.Len())
	}

	go w.pump(ctx)

	for {
		ev, err := w.queue.Dequeue(ctx)
		if err != nil {
			w.logger.Info(ctx, "Watcher stopped")
			return nil
		}
		w.dispatch(ctx, ev)
	}
}

// pump moves notifier output into the queue so the notifier never waits on
// event handling.
func (w *SyncWatcher) pump(ctx context.Context) {
	events := w.notifier.Events()
	errs := w.notifier.Errors()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			w.queue.Push(ev)
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			w.logger.Warn(ctx, err, "File watcher error")
		}
	}
}

// subscribe watches the source root, every module root and the directory of
// every enumerated file.
func (w *SyncWatcher) subscribe(ctx context.Context, ix *filemanager.Index) {
	roots := []string{w.syncer.SourceDir()}
	if ix != nil && ix.Modules != nil {
		for _, mod := range ix.Modules.Modules() {
			roots = append(roots, mod.Path)
		}
	}
	for _, root := range roots {
		w.watchTree(ctx, root)
	}
	for _, path := range ix.Paths() {
		w.watch(ctx, filepath.Dir(path))
	}
}

func (w *SyncWatcher) watchTree(ctx context.Context, root string) {
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && (d.Name() == modules.DependencyDir || d.Name() == ".git") {
			return filepath.SkipDir
		}
		if w.syncer.InBuild(path) {
			return filepath.SkipDir
		}
		w.watch(ctx, path)
		return nil
	})
	if err != nil {
		w.logger.Warn(ctx, err, "Cannot walk watch root", "root", root)
	}
}

func (w *SyncWatcher) watch(ctx context.Context, dir string) {
	if w.syncer.InBuild(dir) {
		return
	}
	if err := w.notifier.Add(dir); err != nil {
		w.logger.Warn(ctx, err, "Cannot watch directory", "dir", dir)
	}
}

// guarded reports whether ev must never reach the syncer.
func (w *SyncWatcher) guarded(ev Event) bool {
	return w.syncer.InBuild(ev.Path) || ignoredNames[filepath.Base(ev.Path)]
}

// dispatch handles one event. Guarded events return without entering
// StateHandling and without a callback; events for paths outside the tracked
// set are dropped without a callback.
func (w *SyncWatcher) dispatch(ctx context.Context, ev Event) {
	if w.guarded(ev) {
		w.logger.Debug(ctx, "Ignoring event", "kind", ev.Kind.String(), "path", ev.Path)
		return
	}

	w.state.Store(int32(StateHandling))
	tracked, err := w.handle(ctx, ev)
	w.state.Store(int32(StateIdle))

	if err != nil {
		w.handler.Handle(ctx, err)
	}
	if !tracked {
		w.logger.Debug(ctx, "Ignoring untracked path", "kind", ev.Kind.String(), "path", ev.Path)
		return
	}
	if w.onEvent != nil {
		w.onEvent(ev.Kind, ev.Path)
	}
}

// handle applies ev and reports whether it touched a tracked path.
func (w *SyncWatcher) handle(ctx context.Context, ev Event) (bool, error) {
	w.logger.Debug(ctx, "Handling event", "kind", ev.Kind.String(), "path", ev.Path)

	switch ev.Kind {
	case KindAdded:
		return w.handleAdded(ctx, ev.Path)
	case KindChanged:
		if !w.tracks(ev.Path) {
			return false, nil
		}
		if filepath.Ext(ev.Path) == filemanager.ConfExt {
			return true, w.syncer.RebuildConfig(ev.Path, w.flags)
		}
		_, err := w.syncer.SyncPath(ev.Path)
		return true, err
	case KindRemoved:
		if len(w.syncer.Tracked(ev.Path)) == 0 {
			return false, nil
		}
		return true, w.syncer.Remove(ev.Path, w.flags)
	default:
		return false, nil
	}
}

// handleAdded re-enumerates and syncs the added path. A directory moved or
// copied into the tree arrives as one event, so every tracked file below it
// is synced and its subdirectories are subscribed.
func (w *SyncWatcher) handleAdded(ctx context.Context, path string) (bool, error) {
	w.syncer.Enumerate(w.flags)
	paths := w.syncer.Tracked(path)
	if len(paths) == 0 {
		return false, nil
	}

	if info, err := os.Stat(path); err == nil && info.IsDir() {
		w.watchTree(ctx, path)
	} else {
		w.watch(ctx, filepath.Dir(path))
	}

	collector := serrors.NewCollector()
	for _, p := range paths {
		_, err := w.syncer.SyncPath(p)
		collector.Add(err)
	}
	return true, collector.Join()
}

func (w *SyncWatcher) tracks(path string) bool {
	for _, p := range w.syncer.Tracked(path) {
		if p == path {
			return true
		}
	}
	return false
}

// WatchAndCollect watches manager's sources with an fsnotify-backed notifier
// until ctx is done, calling onEvent after each handled event.
func WatchAndCollect(ctx context.Context, manager *filemanager.Manager, flags patterns.Flags, onEvent func(EventKind, string), logger logging.Logger) error {
	notifier, err := NewFSNotifier(logger)
	if err != nil {
		return serrors.NewIOError(serrors.ErrCodeWatchFailed, "cannot create file watcher", err)
	}
	defer notifier.Close()

	w, err := New(Options{
		Syncer:   manager,
		Notifier: notifier,
		Flags:    flags,
		Logger:   logger,
		OnEvent:  onEvent,
	})
	if err != nil {
		return err
	}
	return w.Run(ctx)
}
