package archive

import (
	"fmt"
	"io"
	"path/filepath"
	"sync"

	"autopost-go/internal/agent"
)

// MemoryArchive keeps archived videos in memory. Test use only.
type MemoryArchive struct {
	mu      sync.Mutex
	objects map[string][]byte
}

var _ agent.Archiver = (*MemoryArchive)(nil)

func NewMemoryArchive() *MemoryArchive {
	return &MemoryArchive{objects: make(map[string][]byte)}
}

func (a *MemoryArchive) Put(name string, r io.Reader, size int64) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("failed to read data: %w", err)
	}
	if int64(len(data)) != size {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", size, len(data))
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.objects[filepath.Base(name)] = data
	return nil
}

// Get returns a stored object, or nil if absent.
func (a *MemoryArchive) Get(name string) []byte {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.objects[name]
}

// Len returns the number of stored objects.
func (a *MemoryArchive) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.objects)
}
