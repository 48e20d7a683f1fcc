// Package store persists the effect state document between runs.
package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrNotFound is returned by Load when nothing has been saved yet.
var ErrNotFound = errors.New("no saved state")

type Store interface {
	Load(ctx context.Context) ([]byte, error)
	// Save stores doc. Implementations skip the write when doc equals what
	// is already stored.
	Save(ctx context.Context, doc []byte) error
	// SetAside moves the stored document out of the way, keeping it for
	// inspection, so that a state which could not be read is never
	// overwritten. Load then reports ErrNotFound.
	SetAside(ctx context.Context) error
	Close() error
}

// Open returns the backend named by kind ("file" or "sqlite") at path.
func Open(kind, path string) (Store, error) {
	switch kind {
	case "", "file":
		return NewFile(path), nil
	case "sqlite":
		return OpenSQLite(path)
	default:
		return nil, fmt.Errorf("unknown state backend %q", kind)
	}
}

// File keeps the document in a single JSON file. It reads the file back
// before writing so an unchanged state never touches the SD card.
type File struct {
	Path string
}

func NewFile(path string) *File { return &File{Path: path} }

func (f *File) Load(context.Context) ([]byte, error) {
	b, err := os.ReadFile(f.Path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	return b, err
}

func (f *File) Save(_ context.Context, doc []byte) error {
	if cur, err := os.ReadFile(f.Path); err == nil && bytes.Equal(cur, doc) {
		return nil
	}
	tmp, err := os.CreateTemp(filepath.Dir(f.Path), ".state-*")
	if err != nil {
		return fmt.Errorf("save state: %w", err)
	}
	if _, err := tmp.Write(doc); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("save state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("save state: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.Path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("save state: %w", err)
	}
	return nil
}

// SetAside renames the file to <path>.bad, replacing an older one.
func (f *File) SetAside(context.Context) error {
	if err := os.Rename(f.Path, f.Path+".bad"); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("set aside state: %w", err)
	}
	return nil
}

func (f *File) Close() error { return nil }
