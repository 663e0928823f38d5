package downloadcfg

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// CollisionPolicy defines how to handle existing target files.
// Values: "error" | "overwrite" | "rename".
type CollisionPolicy string

const (
	CollisionError     CollisionPolicy = "error"
	CollisionOverwrite CollisionPolicy = "overwrite"
	CollisionRename    CollisionPolicy = "rename"
)

// ErrTargetExists is returned by ResolveTarget under CollisionError.
var ErrTargetExists = errors.New("target file already exists")

// maxRenames bounds the "name (N).ext" search.
const maxRenames = 1000

// ParseCollisionPolicy converts a string to a CollisionPolicy with default.
func ParseCollisionPolicy(s string) CollisionPolicy {
	switch CollisionPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case CollisionOverwrite:
		return CollisionOverwrite
	case CollisionRename:
		return CollisionRename
	default:
		return CollisionError
	}
}

// Valid reports whether p is one of the known policies.
func (p CollisionPolicy) Valid() bool {
	switch p {
	case CollisionError, CollisionOverwrite, CollisionRename:
		return true
	}
	return false
}

// ResolveTarget picks the file name to download into dir. Under overwrite the
// existing file is removed, because a resumable session appends at its own
// offset and never truncates. Under rename the first free "name (N).ext" is
// returned.
func ResolveTarget(dir, name string, policy CollisionPolicy) (string, error) {
	p := filepath.Join(dir, name)
	exists, err := fileExists(p)
	if err != nil || !exists {
		return name, err
	}
	switch policy {
	case CollisionOverwrite:
		if err := os.Remove(p); err != nil {
			return "", fmt.Errorf("overwrite %s: %w", p, err)
		}
		return name, nil
	case CollisionRename:
		ext := filepath.Ext(name)
		stem := strings.TrimSuffix(name, ext)
		for i := 1; i <= maxRenames; i++ {
			candidate := fmt.Sprintf("%s (%d)%s", stem, i, ext)
			exists, err := fileExists(filepath.Join(dir, candidate))
			if err != nil {
				return "", err
			}
			if !exists {
				return candidate, nil
			}
		}
		return "", fmt.Errorf("%w: no free name for %s", ErrTargetExists, name)
	default:
		return "", fmt.Errorf("%w: %s", ErrTargetExists, p)
	}
}

func fileExists(p string) (bool, error) {
	_, err := os.Stat(p)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, os.ErrNotExist):
		return false, nil
	default:
		return false, err
	}
}
