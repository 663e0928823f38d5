package httpdl

import (
	"sync"

	"github.com/tinoosan/fetchd/internal/data"
	"github.com/tinoosan/fetchd/internal/downloader"
	"github.com/tinoosan/fetchd/internal/metrics"
	"github.com/tinoosan/fetchd/internal/session"
)

// entry tracks one session and the last values reported for it.
type entry struct {
	id string

	mu       sync.Mutex
	sess     *session.Session
	last     session.State
	seen     int64
	size     int64
	watchers map[int]chan struct{}
	nextW    int
}

func newEntry(id string) *entry {
	return &entry{
		id:       id,
		last:     session.Downloading,
		size:     session.UnknownSize,
		watchers: make(map[int]chan struct{}),
	}
}

func (e *entry) session() *session.Session {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sess
}

// changed is the session observer. It diffs the current snapshot against
// what was last reported and emits at most one event.
func (a *Adapter) changed(e *entry) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.sess == nil {
		return
	}
	snap := e.sess.Snapshot()

	if d := snap.Transferred - e.seen; d > 0 {
		metrics.BytesTransferred.Add(float64(d))
	}
	progressed := snap.Transferred != e.seen || snap.Size != e.size
	e.seen, e.size = snap.Transferred, snap.Size
	prog := &downloader.Progress{Completed: snap.Transferred, Total: snap.Size}

	switch {
	case snap.State != e.last:
		from := e.last
		e.last = snap.State
		if from == session.Downloading {
			metrics.ActiveDownloads.Dec()
		}
		if snap.State == session.Downloading {
			metrics.ActiveDownloads.Inc()
		}
		ev := downloader.Event{ID: e.id, Type: eventType(snap.State), Progress: prog}
		if snap.State == session.Error && snap.Err != nil {
			ev.Err = snap.Err.Error()
			metrics.WorkerFailures.WithLabelValues(session.Kind(snap.Err)).Inc()
		}
		a.report(ev)
	case progressed:
		a.report(downloader.Event{ID: e.id, Type: downloader.EventProgress, Progress: prog})
	default:
		return
	}

	for _, ch := range e.watchers {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// Watch subscribes to changes of the download. The channel receives one
// signal immediately and is closed when the download is deleted.
func (a *Adapter) Watch(id string) (<-chan struct{}, func(), error) {
	a.mu.RLock()
	e, ok := a.entries[id]
	a.mu.RUnlock()
	if !ok {
		return nil, nil, downloader.ErrNotFound
	}
	ch := make(chan struct{}, 1)
	ch <- struct{}{}

	e.mu.Lock()
	if e.watchers == nil {
		e.mu.Unlock()
		return nil, nil, downloader.ErrNotFound
	}
	key := e.nextW
	e.nextW++
	e.watchers[key] = ch
	e.mu.Unlock()

	stop := func() {
		e.mu.Lock()
		delete(e.watchers, key)
		e.mu.Unlock()
	}
	return ch, stop, nil
}

// closeWatchers ends every Watch of e. Later Watch calls fail.
func (e *entry) closeWatchers() {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, ch := range e.watchers {
		close(ch)
	}
	e.watchers = nil
}

func (a *Adapter) Status(id string) (downloader.Status, error) {
	s, err := a.session(id)
	if err != nil {
		return downloader.Status{}, err
	}
	snap := s.Snapshot()
	st := downloader.Status{
		ID:          id,
		Status:      DownloadStatus(snap.State),
		Size:        snap.Size,
		Transferred: snap.Transferred,
	}
	if snap.Err != nil {
		st.Error = snap.Err.Error()
	}
	return st, nil
}

// DownloadStatus maps a session state to the API status.
func DownloadStatus(s session.State) data.DownloadStatus {
	switch s {
	case session.Paused:
		return data.StatusPaused
	case session.Complete:
		return data.StatusComplete
	case session.Cancelled:
		return data.StatusCancelled
	case session.Error:
		return data.StatusError
	default:
		return data.StatusDownloading
	}
}

func eventType(s session.State) downloader.EventType {
	switch s {
	case session.Paused:
		return downloader.EventPaused
	case session.Complete:
		return downloader.EventComplete
	case session.Cancelled:
		return downloader.EventCancelled
	case session.Error:
		return downloader.EventFailed
	default:
		return downloader.EventStart
	}
}
