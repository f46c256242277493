//go:build linux || darwin

package procmgr

import (
	"bytes"
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"vawter.tech/stopper"
)

// tailer reads complete lines appended to a file. A trailing partial line
// is held back until its newline arrives.
type tailer struct {
	path    string
	file    *os.File
	offset  int64
	partial []byte
	buf     []byte
}

func (t *tailer) close() {
	if t.file != nil {
		_ = t.file.Close()
		t.file = nil
	}
	t.offset = 0
	t.partial = nil
}

// replaced reports whether path now names a different file than the one
// held open
func (t *tailer) replaced() bool {
	if t.file == nil {
		return false
	}
	held, err := t.file.Stat()
	if err != nil {
		return true
	}
	current, err := os.Stat(t.path)
	if err != nil {
		return true
	}
	return !os.SameFile(held, current)
}

// drain emits every complete line written since the last call. It returns
// false once send refuses an event.
func (t *tailer) drain(send func(FollowEvent) bool) bool {
	if t.file == nil {
		f, err := os.Open(t.path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return true
			}
			return send(FollowEvent{Err: err})
		}
		t.file = f
	}

	// Truncated underneath us; start over.
	if info, err := t.file.Stat(); err == nil && info.Size() < t.offset {
		t.offset = 0
		t.partial = nil
	}

	if t.buf == nil {
		t.buf = make([]byte, 32*1024)
	}

	for {
		n, err := t.file.ReadAt(t.buf, t.offset)
		if n > 0 {
			t.offset += int64(n)
			t.partial = append(t.partial, t.buf[:n]...)
			for {
				i := bytes.IndexByte(t.partial, '\n')
				if i < 0 {
					break
				}
				line := string(t.partial[:i])
				t.partial = t.partial[i+1:]
				if !send(FollowEvent{Line: line}) {
					return false
				}
			}
			t.partial = append([]byte(nil), t.partial...)
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return true
			}
			return send(FollowEvent{Err: err})
		}
	}
}

// Follow tails the file at path, emitting each complete line as it is
// appended. Lines already in the file are emitted first. The file does not
// have to exist yet, and a truncated or recreated file is read again from
// the start. The returned cleanup function stops following and closes the
// channel.
func Follow(ctx context.Context, path string) (<-chan FollowEvent, FollowCleanupFunc, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, nil, &OpError{Op: OpFollow, Name: path, Err: err}
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, nil, &OpError{Op: OpFollow, Name: absPath, Err: err}
	}

	if err := watcher.Add(filepath.Dir(absPath)); err != nil {
		_ = watcher.Close()
		return nil, nil, &OpError{Op: OpFollow, Name: absPath, Err: err}
	}

	ch := make(chan FollowEvent, 64)

	// Create stopper context for managing goroutine lifecycle
	sctx := stopper.WithContext(ctx)

	// Register watcher cleanup with stopper
	sctx.Defer(func() {
		_ = watcher.Close()
		close(ch)
	})

	cleanup := func() error {
		sctx.Stop(100 * time.Millisecond)
		return sctx.Wait()
	}

	t := &tailer{path: absPath}

	sctx.Go(func(sctx *stopper.Context) error {
		defer t.close()

		send := func(ev FollowEvent) bool {
			select {
			case ch <- ev:
				return true
			case <-sctx.Stopping():
				return false
			case <-sctx.Done():
				return false
			}
		}

		if !t.drain(send) {
			return nil
		}

		for !sctx.IsStopping() {
			select {
			case <-sctx.Stopping():
				return nil

			case <-sctx.Done():
				return nil

			case event, ok := <-watcher.Events:
				if !ok {
					return nil
				}
				if event.Name != absPath {
					continue
				}
				if event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
					t.close()
					continue
				}
				if event.Has(fsnotify.Create) && t.replaced() {
					t.close()
				}
				if !t.drain(send) {
					return nil
				}

			case err, ok := <-watcher.Errors:
				if !ok {
					return nil
				}
				if err != nil && !send(FollowEvent{Err: err}) {
					return nil
				}
			}
		}
		return nil
	})

	return ch, cleanup, nil
}

// FollowOutput tails the file sink of a managed process
func (s *Supervisor) FollowOutput(ctx context.Context, pid int) (<-chan FollowEvent, FollowCleanupFunc, error) {
	info, ok := s.Lookup(pid)
	if !ok {
		return nil, nil, &OpError{Op: OpFollow, PID: pid, Err: ErrNotFound}
	}
	if !info.Routing.File {
		return nil, nil, &OpError{Op: OpFollow, PID: pid, Name: info.Name, Err: ErrNoFilePath}
	}
	return Follow(ctx, info.Routing.Path)
}
