package repo

import (
	"context"

	"github.com/tinoosan/fetchd/internal/data"
)

type DownloadRepo interface {
	DownloadReader
	DownloadWriter
}

type DownloadReader interface {
	List(ctx context.Context) (data.Downloads, error)
	Get(ctx context.Context, id string) (*data.Download, error)
}

type DownloadWriter interface {
	Add(ctx context.Context, download *data.Download) (*data.Download, error)
	// AddWithFingerprint inserts d unless a record with the same fingerprint
	// exists, in which case the existing record is returned and created is false.
	AddWithFingerprint(ctx context.Context, d *data.Download, fprint string) (dl *data.Download, created bool, err error)
	// Update applies mutate to the stored record atomically and returns the result.
	Update(ctx context.Context, id string, mutate func(*data.Download) error) (*data.Download, error)
	Delete(ctx context.Context, id string) error
}
