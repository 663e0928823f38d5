package httpdl

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tinoosan/fetchd/internal/data"
	"github.com/tinoosan/fetchd/internal/reqid"
)

// Delete cancels the session, waits for its worker and forgets it. With
// deleteFiles the local file is removed; a file that was never created is
// not an error. Deleting an unknown download only touches the file system.
func (a *Adapter) Delete(ctx context.Context, dl *data.Download, deleteFiles bool) error {
	a.mu.RLock()
	e, ok := a.entries[dl.ID]
	a.mu.RUnlock()

	log := reqid.Logger(ctx, a.log).With("download_id", dl.ID)

	if ok {
		// The entry stays registered until its worker has returned.
		if s := e.session(); s != nil {
			s.Cancel()
			if err := s.Wait(ctx); err != nil {
				log.Warn("worker still running", "err", err)
				return err
			}
		}
		a.mu.Lock()
		if a.entries[dl.ID] == e {
			delete(a.entries, dl.ID)
		}
		a.mu.Unlock()
		e.closeWatchers()
	}

	if !deleteFiles {
		log.Info("download forgotten")
		return nil
	}

	p, err := safeTarget(dl)
	if err != nil {
		return err
	}
	if err := a.fs.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Error("remove file", "path", p, "err", err)
		return err
	}
	log.Info("download deleted", "path", p)
	return nil
}

func targetFile(dl *data.Download) string {
	return filepath.Join(dl.TargetPath, dl.Name)
}

// safeTarget returns the local file of dl, refusing names that escape the
// target directory.
func safeTarget(dl *data.Download) (string, error) {
	if dl.Name == "" {
		return "", fmt.Errorf("refusing to delete: download %s has no file name", dl.ID)
	}
	base := filepath.Clean(dl.TargetPath)
	p := filepath.Clean(targetFile(dl))
	if p == base || filepath.Dir(p) != base || strings.ContainsAny(dl.Name, `/\`) {
		return "", fmt.Errorf("refusing to delete outside base: %s", p)
	}
	return p, nil
}
