// Package lifecycle implements the file lifecycle tracker (spec.md §4.5):
// it consumes events from an external filesystem watcher and reflects each
// one as a single logical transition on a files.Manager.
package lifecycle

import (
	"context"
	"log/slog"

	"github.com/fsnotify/fsnotify"
)

// Op enumerates the lifecycle transitions the tracker recognizes.
type Op int

const (
	OpUpdate Op = iota
	OpDelete
	OpRename
)

// WatchEvent is a single filesystem change, translated from the underlying
// watcher's native event model.
type WatchEvent struct {
	Op      Op
	Path    string
	NewPath string // set only for OpRename
}

// Watcher is the external collaborator contract spec.md §1 calls out as
// out-of-scope for this core: anything that can deliver a stream of
// WatchEvent is acceptable. Tracker depends only on this interface.
type Watcher interface {
	Events() <-chan WatchEvent
	Errors() <-chan error
	Add(path string) error
	Close() error
}

// FSNotifyWatcher adapts *fsnotify.Watcher into Watcher. fsnotify reports
// renames as a Rename on the old name immediately followed by a Create on
// the new name (on every platform this pack's examples target); this is
// the one piece of behavior genuinely specific to fsnotify's semantics, so
// it is isolated here rather than leaking into the tracker.
type FSNotifyWatcher struct {
	inner  *fsnotify.Watcher
	events chan WatchEvent
	errors chan error

	pendingRename string
}

// NewFSNotifyWatcher wraps a freshly created fsnotify.Watcher and starts its
// translation loop.
func NewFSNotifyWatcher() (*FSNotifyWatcher, error) {
	inner, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &FSNotifyWatcher{
		inner:  inner,
		events: make(chan WatchEvent, 64),
		errors: make(chan error, 8),
	}
	go w.loop()
	return w, nil
}

func (w *FSNotifyWatcher) Events() <-chan WatchEvent { return w.events }
func (w *FSNotifyWatcher) Errors() <-chan error      { return w.errors }

func (w *FSNotifyWatcher) Add(path string) error {
	return w.inner.Add(path)
}

func (w *FSNotifyWatcher) Close() error {
	return w.inner.Close()
}

func (w *FSNotifyWatcher) loop() {
	for {
		select {
		case ev, ok := <-w.inner.Events:
			if !ok {
				close(w.events)
				return
			}
			w.translate(ev)
		case err, ok := <-w.inner.Errors:
			if !ok {
				continue
			}
			w.errors <- err
		}
	}
}

func (w *FSNotifyWatcher) translate(ev fsnotify.Event) {
	switch {
	case ev.Op&fsnotify.Rename != 0:
		// Hold the rename until the paired Create for the new name arrives.
		w.pendingRename = ev.Name
	case ev.Op&fsnotify.Create != 0:
		if w.pendingRename != "" {
			w.events <- WatchEvent{Op: OpRename, Path: w.pendingRename, NewPath: ev.Name}
			w.pendingRename = ""
			return
		}
		w.events <- WatchEvent{Op: OpUpdate, Path: ev.Name}
	case ev.Op&fsnotify.Write != 0:
		w.events <- WatchEvent{Op: OpUpdate, Path: ev.Name}
	case ev.Op&fsnotify.Remove != 0:
		w.events <- WatchEvent{Op: OpDelete, Path: ev.Name}
	}
}

// target is the subset of files.Manager the tracker depends on, kept
// minimal and unexported-facing so lifecycle never imports the files
// package's full surface.
type target interface {
	OnWatchUpdate(ctx context.Context, path string)
	OnWatchDelete(ctx context.Context, path string)
	OnWatchRename(ctx context.Context, oldPath, newPath string)
}

// Tracker drains a Watcher and reflects every event onto a files.Manager.
type Tracker struct {
	watcher Watcher
	target  target
	done    chan struct{}
}

// NewTracker starts consuming w's events in a background goroutine,
// dispatching each to target's matching OnWatch* hook.
func NewTracker(w Watcher, t target) *Tracker {
	tr := &Tracker{watcher: w, target: t, done: make(chan struct{})}
	go tr.run()
	return tr
}

func (t *Tracker) run() {
	ctx := context.Background()
	for {
		select {
		case ev, ok := <-t.watcher.Events():
			if !ok {
				return
			}
			switch ev.Op {
			case OpUpdate:
				t.target.OnWatchUpdate(ctx, ev.Path)
			case OpDelete:
				t.target.OnWatchDelete(ctx, ev.Path)
			case OpRename:
				t.target.OnWatchRename(ctx, ev.Path, ev.NewPath)
			}
		case err, ok := <-t.watcher.Errors():
			if !ok {
				continue
			}
			slog.Warn("cachify: watcher error", "error", err)
		case <-t.done:
			return
		}
	}
}

// Stop ends the tracker's consume loop without closing the underlying Watcher.
func (t *Tracker) Stop() {
	close(t.done)
}
