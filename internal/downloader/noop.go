package downloader

import (
	"context"
	"log/slog"

	"github.com/tinoosan/fetchd/internal/data"
)

type noopDownloader struct {
	log *slog.Logger
}

// NewNoopDownloader returns a Downloader that only logs the calls it receives.
// It backs handler and router tests that never move bytes.
func NewNoopDownloader(log *slog.Logger) Downloader {
	if log == nil {
		log = slog.Default()
	}
	return &noopDownloader{log: log}
}

func (d *noopDownloader) Start(ctx context.Context, dl *data.Download) error {
	d.log.Debug("noop: start", "id", dl.ID)
	return nil
}

func (d *noopDownloader) Pause(ctx context.Context, dl *data.Download) error {
	d.log.Debug("noop: pause", "id", dl.ID)
	return nil
}

func (d *noopDownloader) Resume(ctx context.Context, dl *data.Download) error {
	d.log.Debug("noop: resume", "id", dl.ID)
	return nil
}

func (d *noopDownloader) Cancel(ctx context.Context, dl *data.Download) error {
	d.log.Debug("noop: cancel", "id", dl.ID)
	return nil
}

func (d *noopDownloader) Delete(ctx context.Context, dl *data.Download, deleteFiles bool) error {
	d.log.Debug("noop: delete", "id", dl.ID, "delete_files", deleteFiles)
	return nil
}

func (d *noopDownloader) Ping(ctx context.Context) error { return nil }
