package downloader

import (
	"context"
	"errors"

	"github.com/tinoosan/fetchd/internal/data"
)

var (
	// ErrNotFound is returned when the downloader cannot locate a download by ID.
	ErrNotFound = errors.New("downloader not found")
	// ErrIllegalTransition is returned when a command is not allowed from the
	// download's current state.
	ErrIllegalTransition = errors.New("illegal state transition")
)

// Downloader defines the operations required to manage a download's lifecycle.
type Downloader interface {
	Start(ctx context.Context, d *data.Download) error
	Pause(ctx context.Context, d *data.Download) error
	Resume(ctx context.Context, d *data.Download) error
	Cancel(ctx context.Context, d *data.Download) error
	// Delete cancels any active transfer and forgets the download. When
	// deleteFiles is true the local file is removed as well. It must be
	// idempotent.
	Delete(ctx context.Context, d *data.Download, deleteFiles bool) error
	// Ping reports whether the downloader can accept new work.
	Ping(ctx context.Context) error
}

// Status is the live view of a single download held by the downloader.
type Status struct {
	ID          string              `json:"id"`
	Status      data.DownloadStatus `json:"status"`
	Size        int64               `json:"size"`
	Transferred int64               `json:"transferred"`
	Error       string              `json:"error,omitempty"`
}

// Watcher is implemented by downloaders that can stream live status.
type Watcher interface {
	// Watch returns a channel that receives a signal whenever the download
	// changes. Signals coalesce; callers read the current value with Status.
	// stop must be called to release the subscription.
	Watch(id string) (updates <-chan struct{}, stop func(), err error)
	Status(id string) (Status, error)
}
