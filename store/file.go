package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

const (
	defaultLockRetry = 10 * time.Millisecond
	documentFileMode = 0o600
)

// FileBackend stores the document as a JSON file. An advisory lock on
// "<path>.lock" excludes writers in other processes, and writes replace the
// file by rename so a reader never sees a partial document.
type FileBackend struct {
	path       string
	lock       *flock.Flock
	retryDelay time.Duration
}

// NewFileBackend returns a backend for the JSON document at path.
func NewFileBackend(path string) *FileBackend {
	return &FileBackend{
		path:       path,
		lock:       flock.New(path + ".lock"),
		retryDelay: defaultLockRetry,
	}
}

// Path returns the document path.
func (f *FileBackend) Path() string { return f.path }

func (f *FileBackend) Init(ctx context.Context) error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return fmt.Errorf("create store directory: %w", err)
	}

	return f.withLock(ctx, func() error {
		_, err := os.Stat(f.path)
		if err == nil {
			return nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return err
		}
		return f.write(NewDocument())
	})
}

func (f *FileBackend) Load(ctx context.Context) (*Document, error) {
	locked, err := f.lock.TryRLockContext(ctx, f.retryDelay)
	if err != nil {
		return nil, fmt.Errorf("acquire read lock: %w", err)
	}
	if !locked {
		return nil, errors.New("acquire read lock: not acquired")
	}
	defer f.lock.Unlock()

	return f.read()
}

func (f *FileBackend) Apply(ctx context.Context, fn ApplyFunc) error {
	return f.withLock(ctx, func() error {
		doc, err := f.read()
		if err != nil {
			return err
		}

		changed, fnErr := fn(doc)
		if changed {
			if err := f.write(doc); err != nil {
				return err
			}
		}
		return fnErr
	})
}

func (f *FileBackend) Close() error {
	return f.lock.Close()
}

func (f *FileBackend) withLock(ctx context.Context, fn func() error) error {
	locked, err := f.lock.TryLockContext(ctx, f.retryDelay)
	if err != nil {
		return fmt.Errorf("acquire write lock: %w", err)
	}
	if !locked {
		return errors.New("acquire write lock: not acquired")
	}
	defer f.lock.Unlock()

	return fn()
}

// read treats a missing file as an empty document; the next write recreates it.
func (f *FileBackend) read() (*Document, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return NewDocument(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read document: %w", err)
	}
	return Decode(data)
}

func (f *FileBackend) write(doc *Document) error {
	data, err := doc.Encode()
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(f.path), filepath.Base(f.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp document: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp document: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp document: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp document: %w", err)
	}
	if err := os.Chmod(tmpName, documentFileMode); err != nil {
		return fmt.Errorf("chmod temp document: %w", err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		return fmt.Errorf("replace document: %w", err)
	}
	return nil
}
