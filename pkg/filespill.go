// Package pkg provides utilities shared by the grafter commands.
package pkg

import (
	"encoding/gob"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

// FileSpill is an append-only, gob-encoded journal of T kept on disk so that
// a generation's steps never have to be held in memory until they are flushed.
type FileSpill[T any] interface {
	Len() uint64
	Path() string
	Append(item T) error
	AppendBatch(items []T) error
	Get(index uint64) (T, error)
	Range(f func(index uint64, item T) error) error
	// Reset truncates the journal so it can be refilled.
	Reset() error
	// Close closes and deletes the backing file.
	Close() error
}

type fileSpillImpl[T any] struct {
	path    string
	file    *os.File
	encoder *gob.Encoder
	mu      sync.Mutex
	length  uint64
}

// Append implements FileSpill.
func (f *fileSpillImpl[T]) Append(item T) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.file == nil {
		return fmt.Errorf("filespill %s is closed", f.path)
	}

	if err := f.encoder.Encode(item); err != nil {
		slog.Error("failed to encode item", "path", f.path, "index", f.length, "error", err)
		return fmt.Errorf("failed to encode item: %w", err)
	}

	f.length++

	return nil
}

// Path implements FileSpill.
func (f *fileSpillImpl[T]) Path() string {
	return f.path
}

// AppendBatch implements FileSpill.
func (f *fileSpillImpl[T]) AppendBatch(items []T) error {
	for _, item := range items {
		if err := f.Append(item); err != nil {
			return err
		}
	}

	return nil
}

// Reset implements FileSpill.
func (f *fileSpillImpl[T]) Reset() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.file == nil {
		return fmt.Errorf("filespill %s is closed", f.path)
	}

	if err := f.file.Truncate(0); err != nil {
		slog.Error("failed to truncate file", "path", f.path, "error", err)
		return fmt.Errorf("failed to truncate file: %w", err)
	}

	if _, err := f.file.Seek(0, 0); err != nil {
		return fmt.Errorf("failed to rewind file: %w", err)
	}

	// gob streams carry type definitions once; a fresh stream needs a fresh encoder.
	f.encoder = gob.NewEncoder(f.file)
	f.length = 0

	return nil
}

// Close implements FileSpill.
func (f *fileSpillImpl[T]) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.file == nil {
		return nil
	}

	if err := f.file.Close(); err != nil {
		slog.Error("failed to close file", "path", f.path, "error", err)
		return err
	}

	f.file = nil

	if err := os.Remove(f.path); err != nil && !os.IsNotExist(err) {
		slog.Error("failed to remove file", "path", f.path, "error", err)
		return err
	}

	slog.Debug("closed filespill", "path", f.path, "length", f.length)

	return nil
}

// Get implements FileSpill.
func (f *fileSpillImpl[T]) Get(index uint64) (T, error) {
	var zero T

	f.mu.Lock()
	defer f.mu.Unlock()

	if index >= f.length {
		return zero, fmt.Errorf("index %d out of bounds (length %d)", index, f.length)
	}

	var found T

	err := f.decode(index+1, func(i uint64, item T) error {
		if i == index {
			found = item
		}

		return nil
	})
	if err != nil {
		return zero, err
	}

	return found, nil
}

// Len implements FileSpill.
func (f *fileSpillImpl[T]) Len() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.length
}

// Range implements FileSpill.
func (f *fileSpillImpl[T]) Range(fn func(index uint64, item T) error) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.decode(f.length, fn)
}

// decode reads the first n items. Each item is decoded into a fresh value
// because gob leaves fields that were zero when encoded untouched.
func (f *fileSpillImpl[T]) decode(n uint64, fn func(index uint64, item T) error) error {
	file, err := os.Open(f.path)
	if err != nil {
		slog.Error("failed to open file", "path", f.path, "error", err)
		return fmt.Errorf("failed to open file: %w", err)
	}

	defer func() {
		if err := file.Close(); err != nil {
			slog.Error("failed to close file", "path", f.path, "error", err)
		}
	}()

	decoder := gob.NewDecoder(file)

	for i := range n {
		var item T
		if err := decoder.Decode(&item); err != nil {
			slog.Error("failed to decode item", "path", f.path, "index", i, "error", err)
			return fmt.Errorf("failed to decode item at index %d: %w", i, err)
		}

		if err := fn(i, item); err != nil {
			return err
		}
	}

	return nil
}

// NewFileSpill creates a FileSpill for items of type T in dir, or in a
// grafter directory under the system temp dir when dir is empty.
func NewFileSpill[T any](dir string) (FileSpill[T], error) {
	if dir == "" {
		dir = filepath.Join(os.TempDir(), "grafter-journal")
	}

	if err := os.MkdirAll(dir, 0o750); err != nil {
		slog.Error("failed to create journal directory", "path", dir, "error", err)
		return nil, fmt.Errorf("failed to create journal directory: %w", err)
	}

	file, err := os.CreateTemp(dir, "spill-*.gob")
	if err != nil {
		slog.Error("failed to create temp file", "path", dir, "error", err)
		return nil, fmt.Errorf("failed to create temp file: %w", err)
	}

	slog.Debug("created filespill", "path", file.Name())

	return &fileSpillImpl[T]{
		path:    file.Name(),
		file:    file,
		encoder: gob.NewEncoder(file),
	}, nil
}
