// Package archive stores copies of posted videos before local cleanup.
package archive

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"autopost-go/internal/agent"
)

// FileSystemArchive keeps archived videos as plain files under a root
// directory.
type FileSystemArchive struct {
	name string
	root string
}

var _ agent.Archiver = (*FileSystemArchive)(nil)

// NewFileSystemArchive creates a filesystem archive rooted at the given path.
func NewFileSystemArchive(name, root string) (*FileSystemArchive, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create archive directory: %w", err)
	}
	return &FileSystemArchive{name: name, root: root}, nil
}

// Put stores one video. The write is atomic (temp file + rename) and verifies
// the expected size, so a crash never leaves a truncated archive entry.
// Storing the same name again overwrites the previous copy.
func (a *FileSystemArchive) Put(name string, r io.Reader, size int64) error {
	destPath := filepath.Join(a.root, filepath.Base(name))

	tmpFile, err := os.CreateTemp(a.root, ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	written, err := io.Copy(tmpFile, r)
	if err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to write data: %w", err)
	}

	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if written != size {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", size, written)
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	success = true
	return nil
}
