package logstream

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"vawter.tech/stopper"
)

// File appends to a log file. When the file is renamed or removed, as log
// rotation does, it is reopened at the same path.
type File struct {
	path    string
	watcher *fsnotify.Watcher
	tasks   *stopper.Context

	mu     sync.Mutex
	f      *os.File
	closed bool
}

// OpenFile opens path for appending, creating it and its directory if
// needed, and starts watching it for rotation.
func OpenFile(path string) (*File, error) {
	path = filepath.Clean(path)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}

	f, err := openAppend(path)
	if err != nil {
		return nil, err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("watch log file: %w", err)
	}
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		_ = watcher.Close()
		_ = f.Close()
		return nil, fmt.Errorf("watch log file: %w", err)
	}

	lf := &File{
		path:    path,
		watcher: watcher,
		tasks:   stopper.WithContext(context.Background()),
		f:       f,
	}
	lf.tasks.Defer(func() { _ = watcher.Close() })
	lf.tasks.Go(lf.watch)
	return lf, nil
}

func openAppend(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return f, nil
}

// Path returns the file's path.
func (lf *File) Path() string {
	return lf.path
}

// Write implements io.Writer.
func (lf *File) Write(p []byte) (int, error) {
	lf.mu.Lock()
	defer lf.mu.Unlock()

	if lf.closed {
		return 0, os.ErrClosed
	}
	return lf.f.Write(p)
}

// Reopen closes the current file and opens path again.
func (lf *File) Reopen() error {
	lf.mu.Lock()
	defer lf.mu.Unlock()

	if lf.closed {
		return os.ErrClosed
	}
	f, err := openAppend(lf.path)
	if err != nil {
		return err
	}
	old := lf.f
	lf.f = f
	return old.Close()
}

// Close stops watching and closes the file.
func (lf *File) Close() error {
	lf.mu.Lock()
	if lf.closed {
		lf.mu.Unlock()
		return nil
	}
	lf.closed = true
	lf.mu.Unlock()

	lf.tasks.Stop(0)
	_ = lf.tasks.Wait()
	return lf.f.Close()
}

func (lf *File) watch(ctx *stopper.Context) error {
	for !ctx.IsStopping() {
		select {
		case <-ctx.Stopping():
			return nil

		case event, ok := <-lf.watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != lf.path {
				continue
			}
			if event.Op&(fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			// A failed reopen keeps writing to the rotated file.
			_ = lf.Reopen()

		case _, ok := <-lf.watcher.Errors:
			if !ok {
				return nil
			}
		}
	}
	return nil
}
