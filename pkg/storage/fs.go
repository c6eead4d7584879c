package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

const fileExt = ".json"

// FSOption configures an FS backend.
type FSOption func(*FS)

// WithFSLogger attaches a logger used by Watch.
func WithFSLogger(logger zerolog.Logger) FSOption {
	return func(f *FS) {
		f.logger = logger
	}
}

// FS stores one <name>.json file per form in a directory.
type FS struct {
	dir    string
	logger zerolog.Logger
}

var _ Backend = (*FS)(nil)

// NewFS returns a backend rooted at dir, creating it when missing.
func NewFS(dir string, options ...FSOption) (*FS, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("storage: directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("storage: create directory: %w", err)
	}
	f := &FS{dir: dir, logger: zerolog.Nop()}
	for _, opt := range options {
		if opt != nil {
			opt(f)
		}
	}
	return f, nil
}

// Dir returns the root directory.
func (f *FS) Dir() string { return f.dir }

func (f *FS) path(name string) (string, error) {
	if err := ValidateName(name); err != nil {
		return "", err
	}
	return filepath.Join(f.dir, name+fileExt), nil
}

// Save writes data atomically: a temp file in the same directory is renamed
// over the target.
func (f *FS) Save(ctx context.Context, name string, data []byte) error {
	target, err := f.path(name)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(f.dir, "."+name+".*.tmp")
	if err != nil {
		return fmt.Errorf("storage: create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("storage: write %s: %w", name, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("storage: sync %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("storage: close %s: %w", name, err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		return fmt.Errorf("storage: replace %s: %w", name, err)
	}
	return nil
}

// Load reads the document stored under name.
func (f *FS) Load(ctx context.Context, name string) ([]byte, error) {
	target, err := f.path(name)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(target)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("storage: read %s: %w", name, err)
	}
	return data, nil
}

// List returns stored forms sorted by name.
func (f *FS) List(ctx context.Context) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	dirEntries, err := os.ReadDir(f.dir)
	if err != nil {
		return nil, fmt.Errorf("storage: list: %w", err)
	}
	var out []Entry
	for _, de := range dirEntries {
		if de.IsDir() || !strings.HasSuffix(de.Name(), fileExt) {
			continue
		}
		name := strings.TrimSuffix(de.Name(), fileExt)
		if ValidateName(name) != nil {
			continue
		}
		info, err := de.Info()
		if err != nil {
			continue
		}
		out = append(out, Entry{Name: name, UpdatedAt: info.ModTime().UTC(), Size: info.Size()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Delete removes the document stored under name.
func (f *FS) Delete(ctx context.Context, name string) error {
	target, err := f.path(name)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.Remove(target); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %q", ErrNotFound, name)
		}
		return fmt.Errorf("storage: delete %s: %w", name, err)
	}
	return nil
}

// Close is a no-op for the filesystem backend.
func (f *FS) Close() error { return nil }

// Watch calls fn each time the file for name is written or re-created by
// someone else, until ctx is cancelled. The directory is watched rather than
// the file so editors that save via rename are picked up. Watch returns once
// the watcher is running; the returned channel is closed when it stops.
func (f *FS) Watch(ctx context.Context, name string, fn func(name string)) (<-chan struct{}, error) {
	target, err := f.path(name)
	if err != nil {
		return nil, err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("storage: create watcher: %w", err)
	}
	if err := watcher.Add(f.dir); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("storage: watch directory: %w", err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != filepath.Clean(target) {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				f.logger.Debug().
					Str("event", event.Op.String()).
					Str("form", name).
					Msg("stored form changed")
				fn(name)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				f.logger.Error().Err(err).Str("form", name).Msg("form watcher error")
			}
		}
	}()

	f.logger.Debug().Str("form", name).Str("dir", f.dir).Msg("watching stored form")
	return done, nil
}
