package v1

import "errors"

var (
	ErrDownloadCtx       = errors.New("download missing in context")
	ErrDesiredStatus     = errors.New("desired status missing in context")
	ErrDesiredStatusJSON = errors.New("desired status is required")
	ErrURLRequired       = errors.New("url is required")
	ErrContentType       = errors.New("Content-Type must be application/json")
	ErrNoWatcher         = errors.New("downloader does not stream events")
)
