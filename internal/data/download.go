package data

import (
	"encoding/json"
	"errors"
	"io"
	"time"
)

// Download is the service-level record of one download session.
type Download struct {
	ID            string         `json:"id"`
	URL           string         `json:"url"`
	Name          string         `json:"name"`
	TargetPath    string         `json:"targetPath"`
	Status        DownloadStatus `json:"status"`
	DesiredStatus DownloadStatus `json:"desiredStatus,omitempty"`
	Size          int64          `json:"size"`
	Transferred   int64          `json:"transferred"`
	Error         string         `json:"error,omitempty"`
	CreatedAt     time.Time      `json:"createdAt"`
}

type Downloads []*Download
type DownloadStatus string

const (
	StatusDownloading DownloadStatus = "Downloading"
	StatusPaused      DownloadStatus = "Paused"
	StatusComplete    DownloadStatus = "Complete"
	StatusCancelled   DownloadStatus = "Cancelled"
	StatusError       DownloadStatus = "Error"
)

// SizeUnknown is the Size of a download before the server declared one.
const SizeUnknown int64 = -1

var (
	ErrNotFound   = errors.New("download not found")
	ErrBadStatus  = errors.New("invalid status")
	ErrInvalidURL = errors.New("invalid url: an absolute http(s) url is required")
	ErrTransition = errors.New("status change not allowed from current status")
)

// Terminal reports whether the status can no longer change.
func (s DownloadStatus) Terminal() bool {
	return s == StatusComplete || s == StatusCancelled
}

// Percent returns the completed percentage, or false while the size is unknown.
func (d *Download) Percent() (float64, bool) {
	if d.Size <= 0 {
		return 0, false
	}
	return float64(d.Transferred) / float64(d.Size) * 100, true
}

func (d *Downloads) ToJSON(w io.Writer) error { return json.NewEncoder(w).Encode(d) }

func (d *Download) ToJSON(w io.Writer) error { return json.NewEncoder(w).Encode(d) }

func (d *Download) FromJSON(r io.Reader) error { return json.NewDecoder(r).Decode(d) }

// Clone returns a copy that shares no mutable state with d.
func (d *Download) Clone() *Download {
	if d == nil {
		return nil
	}
	c := *d
	return &c
}

// Clone returns a deep copy of the list.
func (ds Downloads) Clone() Downloads {
	out := make(Downloads, len(ds))
	for i, d := range ds {
		out[i] = d.Clone()
	}
	return out
}
