package reconciler

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/tinoosan/fetchd/internal/data"
	"github.com/tinoosan/fetchd/internal/downloader"
	"github.com/tinoosan/fetchd/internal/metrics"
	"github.com/tinoosan/fetchd/internal/repo"
)

// Reconciler consumes downloader events and updates repository state.
type Reconciler struct {
	repo   repo.DownloadRepo
	events <-chan downloader.Event
	log    *slog.Logger
	ctx    context.Context
	cancel context.CancelFunc

	stop chan struct{}
	wg   sync.WaitGroup
}

// New creates a Reconciler that processes downloader events and mutates the
// repository accordingly.
func New(log *slog.Logger, repo repo.DownloadRepo, events <-chan downloader.Event) *Reconciler {
	if log == nil {
		log = slog.Default()
	}
	return &Reconciler{repo: repo, events: events, log: log, ctx: context.Background()}
}

// Run starts the reconciliation loop.
func (r *Reconciler) Run() {
	r.stop = make(chan struct{})
	r.ctx, r.cancel = context.WithCancel(r.ctx)
	// Tag this run with a stable operation_id for easier correlation.
	r.log = r.log.With("operation_id", uuid.NewString())
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		for {
			select {
			case <-r.stop:
				return
			case e, ok := <-r.events:
				if !ok {
					return
				}
				r.handle(e)
			}
		}
	}()
}

// Stop terminates the reconciliation loop after draining events that are
// already queued.
func (r *Reconciler) Stop() {
	if r.stop == nil {
		return
	}
	close(r.stop)
	r.wg.Wait()
	for {
		select {
		case e, ok := <-r.events:
			if !ok {
				r.cancel()
				return
			}
			r.handle(e)
		default:
			r.cancel()
			return
		}
	}
}

func statusFor(t downloader.EventType) (data.DownloadStatus, bool) {
	switch t {
	case downloader.EventStart:
		return data.StatusDownloading, true
	case downloader.EventPaused:
		return data.StatusPaused, true
	case downloader.EventCancelled:
		return data.StatusCancelled, true
	case downloader.EventComplete:
		return data.StatusComplete, true
	case downloader.EventFailed:
		return data.StatusError, true
	}
	return "", false
}

func (r *Reconciler) handle(e downloader.Event) {
	// Record event type for observability
	metrics.DownloadEvents.WithLabelValues(strings.ToLower(string(e.Type))).Inc()

	status, isState := statusFor(e.Type)
	if !isState && e.Type != downloader.EventProgress {
		r.log.Warn("unknown event type", "id", e.ID, "type", e.Type)
		return
	}
	if !isState && e.Progress == nil {
		return
	}

	var stale bool
	_, err := r.repo.Update(r.ctx, e.ID, func(dl *data.Download) error {
		// Nothing moves a download out of a terminal status.
		if dl.Status.Terminal() {
			stale = true
			return nil
		}
		if e.Progress != nil {
			dl.Transferred = e.Progress.Completed
			dl.Size = e.Progress.Total
		}
		if !isState {
			return nil
		}
		dl.Status = status
		if status == data.StatusError {
			dl.Error = e.Err
		} else {
			dl.Error = ""
		}
		return nil
	})
	switch {
	case errors.Is(err, data.ErrNotFound):
		r.log.Debug("event for deleted download", "id", e.ID, "type", e.Type)
		return
	case err != nil:
		r.log.Error("update", "id", e.ID, "type", e.Type, "err", err)
		return
	case stale:
		r.log.Info("ignoring event after terminal status", "id", e.ID, "type", e.Type)
		return
	}

	if isState {
		r.log.Info("reconciled event", "id", e.ID, "type", e.Type, "status", status)
	} else {
		r.log.Debug("progress event", "id", e.ID, "completed", e.Progress.Completed, "total", e.Progress.Total)
	}
}
