package archive

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"autopost-go/internal/config"
)

func TestFileSystemArchive_Put(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	a, err := NewFileSystemArchive("posted", root)
	if err != nil {
		t.Fatalf("NewFileSystemArchive() error = %v", err)
	}

	data := []byte("video bytes")
	if err := a.Put("clip.mp4", bytes.NewReader(data), int64(len(data))); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	got, err := os.ReadFile(filepath.Join(root, "clip.mp4"))
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Errorf("stored %q, want %q", got, data)
	}
}

func TestFileSystemArchive_SizeMismatch(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	a, err := NewFileSystemArchive("posted", root)
	if err != nil {
		t.Fatalf("NewFileSystemArchive() error = %v", err)
	}

	err = a.Put("clip.mp4", strings.NewReader("short"), 100)
	if err == nil {
		t.Fatal("Put() with wrong size should fail")
	}

	// No partial file or temp leftovers.
	entries, err := os.ReadDir(root)
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("archive dir has %d leftover entries, want 0", len(entries))
	}
}

func TestFileSystemArchive_Overwrite(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	a, err := NewFileSystemArchive("posted", root)
	if err != nil {
		t.Fatalf("NewFileSystemArchive() error = %v", err)
	}

	if err := a.Put("clip.mp4", strings.NewReader("v1"), 2); err != nil {
		t.Fatalf("first Put() error = %v", err)
	}
	if err := a.Put("clip.mp4", strings.NewReader("v2!"), 3); err != nil {
		t.Fatalf("second Put() error = %v", err)
	}

	got, _ := os.ReadFile(filepath.Join(root, "clip.mp4"))
	if string(got) != "v2!" {
		t.Errorf("stored %q, want %q", got, "v2!")
	}
}

func TestMemoryArchive_Put(t *testing.T) {
	t.Parallel()
	a := NewMemoryArchive()

	if err := a.Put("/tmp/downloads/clip.mp4", strings.NewReader("data"), 4); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if got := a.Get("clip.mp4"); string(got) != "data" {
		t.Errorf("Get() = %q, want %q (stored under the base name)", got, "data")
	}
	if a.Len() != 1 {
		t.Errorf("Len() = %d, want 1", a.Len())
	}

	if err := a.Put("clip.mp4", strings.NewReader("x"), 99); err == nil {
		t.Error("Put() with wrong size should fail")
	}
}

func TestNewArchiverFromConfig(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("none disables archiving", func(t *testing.T) {
		a, err := NewArchiverFromConfig(ctx, config.ArchiveConfig{Type: "none"})
		if err != nil {
			t.Fatalf("NewArchiverFromConfig() error = %v", err)
		}
		if a != nil {
			t.Errorf("archiver = %T, want nil", a)
		}
	})

	t.Run("empty type also disables", func(t *testing.T) {
		a, err := NewArchiverFromConfig(ctx, config.ArchiveConfig{})
		if err != nil {
			t.Fatalf("NewArchiverFromConfig() error = %v", err)
		}
		if a != nil {
			t.Errorf("archiver = %T, want nil", a)
		}
	})

	t.Run("filesystem requires root", func(t *testing.T) {
		if _, err := NewArchiverFromConfig(ctx, config.ArchiveConfig{Type: "filesystem"}); err == nil {
			t.Error("filesystem without fs_archive_root should fail")
		}
	})

	t.Run("s3 requires bucket", func(t *testing.T) {
		if _, err := NewArchiverFromConfig(ctx, config.ArchiveConfig{Type: "s3"}); err == nil {
			t.Error("s3 without bucket should fail")
		}
	})

	t.Run("unknown type", func(t *testing.T) {
		if _, err := NewArchiverFromConfig(ctx, config.ArchiveConfig{Type: "tape"}); err == nil {
			t.Error("unknown type should fail")
		}
	})
}
