package sink

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestOpenCreatesAndWritesAtOffset(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.bin")

	f, err := Open(path, 0)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := f.Write([]byte("hello")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if f.Offset() != 5 {
		t.Fatalf("offset = %d, want 5", f.Offset())
	}
	if err := f.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	// Reopen mid-file: existing bytes before the offset must survive.
	f, err = Open(path, 3)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if _, err := f.Write([]byte("p!")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !bytes.Equal(got, []byte("help!")) {
		t.Fatalf("content = %q, want %q", got, "help!")
	}
}

func TestSeekPastEndLeavesHole(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sparse.bin")
	f, err := Open(path, 0)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer f.Close()

	if err := f.Seek(4); err != nil {
		t.Fatalf("Seek: %v", err)
	}
	if _, err := f.Write([]byte{0xff}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Size() != 5 {
		t.Fatalf("size = %d, want 5", info.Size())
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	f, err := Open(filepath.Join(t.TempDir(), "x"), 0)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("first Close: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}

func TestStorageErrors(t *testing.T) {
	t.Run("missing directory", func(t *testing.T) {
		_, err := Open(filepath.Join(t.TempDir(), "nope", "x"), 0)
		if !errors.Is(err, ErrStorage) {
			t.Fatalf("expected ErrStorage, got %v", err)
		}
	})

	t.Run("negative offset", func(t *testing.T) {
		_, err := Open(filepath.Join(t.TempDir(), "x"), -1)
		if !errors.Is(err, ErrStorage) {
			t.Fatalf("expected ErrStorage, got %v", err)
		}
	})

	t.Run("write after close", func(t *testing.T) {
		f, err := Open(filepath.Join(t.TempDir(), "x"), 0)
		if err != nil {
			t.Fatalf("Open: %v", err)
		}
		_ = f.Close()
		if _, err := f.Write([]byte("x")); !errors.Is(err, ErrStorage) {
			t.Fatalf("expected ErrStorage, got %v", err)
		}
	})
}
