package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/tinoosan/fetchd/internal/data"
	"github.com/tinoosan/fetchd/internal/downloadcfg"
	"github.com/tinoosan/fetchd/internal/downloader"
	"github.com/tinoosan/fetchd/internal/fp"
	"github.com/tinoosan/fetchd/internal/repo"
	"github.com/tinoosan/fetchd/internal/reqid"
	"github.com/tinoosan/fetchd/internal/session"
)

type Download interface {
	List(ctx context.Context) (data.Downloads, error)
	Get(ctx context.Context, id string) (*data.Download, error)
	// Add registers and starts a download. An identical URL and target
	// already known returns the existing record with created false.
	Add(ctx context.Context, d *data.Download) (dl *data.Download, created bool, err error)
	UpdateDesiredStatus(ctx context.Context, id string, status data.DownloadStatus) (*data.Download, error)
	Delete(ctx context.Context, id string, deleteFiles bool) error
}

var (
	AllowedStatuses = map[data.DownloadStatus]bool{
		data.StatusDownloading: true,
		data.StatusPaused:      true,
		data.StatusCancelled:   true,
	}
)

// Options configures the download service.
type Options struct {
	// Dir is used when a request carries no target path.
	Dir    string
	Policy downloadcfg.CollisionPolicy
	Logger *slog.Logger
}

type download struct {
	repo   repo.DownloadRepo
	dlr    downloader.Downloader
	dir    string
	policy downloadcfg.CollisionPolicy
	log    *slog.Logger
}

func NewDownload(repo repo.DownloadRepo, dlr downloader.Downloader, opts Options) Download {
	ds := &download{
		repo:   repo,
		dlr:    dlr,
		dir:    opts.Dir,
		policy: opts.Policy,
		log:    opts.Logger,
	}
	if !ds.policy.Valid() {
		ds.policy = downloadcfg.CollisionError
	}
	if ds.log == nil {
		ds.log = slog.Default()
	}
	return ds
}

func (ds *download) List(ctx context.Context) (data.Downloads, error) {
	return ds.repo.List(ctx)
}

func (ds *download) Get(ctx context.Context, id string) (*data.Download, error) {
	return ds.repo.Get(ctx, id)
}

// ValidateURL accepts absolute http and https URLs with a host.
func ValidateURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "", data.ErrInvalidURL
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		return raw, nil
	default:
		return "", data.ErrInvalidURL
	}
}

func (ds *download) Add(ctx context.Context, d *data.Download) (*data.Download, bool, error) {
	log := reqid.Logger(ctx, ds.log)

	rawURL, err := ValidateURL(d.URL)
	if err != nil {
		return nil, false, err
	}
	target := strings.TrimSpace(d.TargetPath)
	if target == "" {
		target = ds.dir
	}
	if target == "" {
		target = "."
	}
	target = filepath.Clean(target)

	fprint := fp.Fingerprint(rawURL, target)
	if existing, err := ds.findByFingerprint(ctx, fprint); err != nil {
		return nil, false, err
	} else if existing != nil {
		log.Info("duplicate add", "id", existing.ID, "url", rawURL)
		return existing, false, nil
	}

	name, err := downloadcfg.ResolveTarget(target, session.FileName(rawURL), ds.policy)
	if err != nil {
		return nil, false, err
	}

	rec := &data.Download{
		URL:           rawURL,
		Name:          name,
		TargetPath:    target,
		Status:        data.StatusDownloading,
		DesiredStatus: data.StatusDownloading,
		Size:          data.SizeUnknown,
		CreatedAt:     time.Now(),
	}
	saved, created, err := ds.repo.AddWithFingerprint(ctx, rec, fprint)
	if err != nil || !created {
		return saved, false, err
	}

	if err := ds.dlr.Start(ctx, saved); err != nil {
		log.Error("start download", "id", saved.ID, "err", err)
		_, _ = ds.repo.Update(ctx, saved.ID, func(dl *data.Download) error {
			dl.Status = data.StatusError
			dl.Error = err.Error()
			return nil
		})
		return nil, false, err
	}
	log.Info("download added", "id", saved.ID, "url", rawURL, "path", filepath.Join(target, name))
	return saved, true, nil
}

func (ds *download) findByFingerprint(ctx context.Context, fprint string) (*data.Download, error) {
	list, err := ds.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	for _, dl := range list {
		if fp.Fingerprint(dl.URL, dl.TargetPath) == fprint {
			return dl, nil
		}
	}
	return nil, nil
}

func (ds *download) UpdateDesiredStatus(ctx context.Context, id string, status data.DownloadStatus) (*data.Download, error) {
	if !AllowedStatuses[status] {
		return nil, data.ErrBadStatus
	}
	d, err := ds.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	var derr error
	switch status {
	case data.StatusDownloading:
		derr = ds.dlr.Resume(ctx, d)
		if errors.Is(derr, downloader.ErrNotFound) && !d.Status.Terminal() {
			// The session never started, e.g. Start failed on Add.
			derr = ds.dlr.Start(ctx, d)
		}
	case data.StatusPaused:
		derr = ds.dlr.Pause(ctx, d)
	case data.StatusCancelled:
		derr = ds.dlr.Cancel(ctx, d)
	}
	switch {
	case errors.Is(derr, downloader.ErrIllegalTransition):
		return nil, fmt.Errorf("%w: %s to %s", data.ErrTransition, d.Status, status)
	case errors.Is(derr, downloader.ErrNotFound):
		return nil, fmt.Errorf("%w: %s to %s", data.ErrTransition, d.Status, status)
	case derr != nil:
		return nil, derr
	}

	updated, err := ds.repo.Update(ctx, id, func(dl *data.Download) error {
		dl.DesiredStatus = status
		if !dl.Status.Terminal() {
			dl.Status = status
		}
		if status != data.StatusCancelled {
			dl.Error = ""
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	reqid.Logger(ctx, ds.log).Info("desired status updated", "id", id, "desired", status, "status", updated.Status)
	return updated, nil
}

func (ds *download) Delete(ctx context.Context, id string, deleteFiles bool) error {
	d, err := ds.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := ds.dlr.Delete(ctx, d, deleteFiles); err != nil {
		return err
	}
	if err := ds.repo.Delete(ctx, id); err != nil {
		return err
	}
	reqid.Logger(ctx, ds.log).Info("download deleted", "id", id, "delete_files", deleteFiles)
	return nil
}
