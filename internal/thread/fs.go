package thread

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const snapshotExt = ".json"

// FileSystemStore implements Store with one JSON file per thread
type FileSystemStore struct {
	dir string // The directory thread files live in
}

var _ Store = (*FileSystemStore)(nil)

// NewFileSystemStore creates a file system store rooted at dir, creating the directory if needed
func NewFileSystemStore(dir string) (*FileSystemStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create threads directory: %w", err)
	}
	return &FileSystemStore{dir: dir}, nil
}

func (fs *FileSystemStore) path(id string) string {
	return filepath.Join(fs.dir, id+snapshotExt)
}

func (fs *FileSystemStore) Get(ctx context.Context, id string) (*Snapshot, error) {
	if err := ValidateID(id); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b, err := os.ReadFile(fs.path(id))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	} else if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	var snap Snapshot
	if err := json.Unmarshal(b, &snap); err != nil {
		return nil, fmt.Errorf("failed to unmarshal thread %s: %w", id, err)
	}
	return &snap, nil
}

// Put writes the snapshot to a temporary file and renames it into place, so readers never see a partial file
func (fs *FileSystemStore) Put(ctx context.Context, snap Snapshot) error {
	if err := ValidateID(snap.ThreadID); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	b, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal thread: %w", err)
	}

	tmp, err := os.CreateTemp(fs.dir, snap.ThreadID+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close file: %w", err)
	}
	if err := os.Rename(tmp.Name(), fs.path(snap.ThreadID)); err != nil {
		return fmt.Errorf("failed to move file into place: %w", err)
	}
	return nil
}

func (fs *FileSystemStore) Delete(ctx context.Context, id string) error {
	if err := ValidateID(id); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	err := os.Remove(fs.path(id))
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	} else if err != nil {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}

func (fs *FileSystemStore) List(ctx context.Context) ([]Info, error) {
	entries, err := os.ReadDir(fs.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read threads directory: %w", err)
	}
	infos := []Info{}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, snapshotExt) {
			continue
		}
		id := strings.TrimSuffix(name, snapshotExt)
		if ValidateID(id) != nil {
			continue
		}
		snap, err := fs.Get(ctx, id)
		if errors.Is(err, ErrNotFound) {
			// Deleted since the directory was read
			continue
		} else if err != nil {
			return nil, err
		}
		infos = append(infos, snap.Info())
	}
	sortInfos(infos)
	return infos, nil
}
