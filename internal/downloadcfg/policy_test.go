package downloadcfg

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestParseCollisionPolicy(t *testing.T) {
	tests := map[string]CollisionPolicy{
		"":          CollisionError,
		"error":     CollisionError,
		"overwrite": CollisionOverwrite,
		" Rename ":  CollisionRename,
		"clobber":   CollisionError,
		"OVERWRITE": CollisionOverwrite,
	}
	for in, want := range tests {
		if got := ParseCollisionPolicy(in); got != want {
			t.Errorf("ParseCollisionPolicy(%q) = %q, want %q", in, got, want)
		}
	}
	if CollisionPolicy("clobber").Valid() {
		t.Fatalf("clobber should not be valid")
	}
}

func TestResolveTarget(t *testing.T) {
	dir := t.TempDir()
	write := func(name string) {
		t.Helper()
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}

	t.Run("free name", func(t *testing.T) {
		for _, p := range []CollisionPolicy{CollisionError, CollisionOverwrite, CollisionRename} {
			got, err := ResolveTarget(dir, "new.bin", p)
			if err != nil || got != "new.bin" {
				t.Fatalf("%s: got %q err %v", p, got, err)
			}
		}
	})

	t.Run("error", func(t *testing.T) {
		write("a.iso")
		if _, err := ResolveTarget(dir, "a.iso", CollisionError); !errors.Is(err, ErrTargetExists) {
			t.Fatalf("expected ErrTargetExists got %v", err)
		}
	})

	t.Run("rename", func(t *testing.T) {
		write("b.tar.gz")
		write("b.tar (1).gz")
		got, err := ResolveTarget(dir, "b.tar.gz", CollisionRename)
		if err != nil {
			t.Fatalf("rename: %v", err)
		}
		if got != "b.tar (2).gz" {
			t.Fatalf("got %q", got)
		}
	})

	t.Run("overwrite removes existing", func(t *testing.T) {
		write("c.bin")
		got, err := ResolveTarget(dir, "c.bin", CollisionOverwrite)
		if err != nil || got != "c.bin" {
			t.Fatalf("got %q err %v", got, err)
		}
		if _, err := os.Stat(filepath.Join(dir, "c.bin")); !errors.Is(err, os.ErrNotExist) {
			t.Fatalf("expected file removed, stat err %v", err)
		}
	})
}
