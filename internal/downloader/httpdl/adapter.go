package httpdl

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/tinoosan/fetchd/internal/data"
	"github.com/tinoosan/fetchd/internal/downloader"
	"github.com/tinoosan/fetchd/internal/metrics"
	"github.com/tinoosan/fetchd/internal/session"
)

type fsOps interface {
	Remove(string) error
}

type osFS struct{}

func (osFS) Remove(p string) error { return os.Remove(p) }

// Options configures an Adapter.
type Options struct {
	// Dir is the download root. Ping checks that it is writable.
	Dir       string
	ChunkSize int
	Fetcher   session.Fetcher
	Logger    *slog.Logger
}

// Adapter implements the Downloader interface by running one session per
// download in this process.
type Adapter struct {
	rep     downloader.Reporter
	log     *slog.Logger
	fetcher session.Fetcher
	chunk   int
	dir     string
	fs      fsOps

	// ctx bounds the network I/O of every session; Shutdown cancels it.
	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.RWMutex
	entries map[string]*entry
}

// NewAdapter creates an Adapter that reports events through rep.
func NewAdapter(rep downloader.Reporter, opts Options) *Adapter {
	ctx, cancel := context.WithCancel(context.Background())
	a := &Adapter{
		rep:     rep,
		log:     slog.Default(),
		fetcher: opts.Fetcher,
		chunk:   opts.ChunkSize,
		dir:     opts.Dir,
		fs:      osFS{},
		ctx:     ctx,
		cancel:  cancel,
		entries: make(map[string]*entry),
	}
	if opts.Logger != nil {
		a.log = opts.Logger
	}
	return a
}

var _ downloader.Downloader = (*Adapter)(nil)
var _ downloader.Watcher = (*Adapter)(nil)

// Start creates the session for dl and begins transferring immediately.
// Starting an ID that is already tracked is a no-op.
func (a *Adapter) Start(ctx context.Context, dl *data.Download) error {
	a.mu.Lock()
	if _, ok := a.entries[dl.ID]; ok {
		a.mu.Unlock()
		return nil
	}
	e := newEntry(dl.ID)
	a.entries[dl.ID] = e
	a.mu.Unlock()

	opts := []session.Option{
		session.WithPath(targetFile(dl)),
		session.WithChunkSize(a.chunk),
		session.WithLogger(a.log.With("download_id", dl.ID)),
		session.WithObserver(session.ObserverFunc(func() { a.changed(e) })),
	}
	if a.fetcher != nil {
		opts = append(opts, session.WithFetcher(a.fetcher))
	}

	// Hold e.mu until Start is reported so worker notifications queue behind it.
	e.mu.Lock()
	e.sess = session.New(a.ctx, dl.URL, opts...)
	metrics.ActiveDownloads.Inc()
	a.report(downloader.Event{ID: dl.ID, Type: downloader.EventStart, Progress: &downloader.Progress{Total: session.UnknownSize}})
	e.mu.Unlock()

	a.log.Info("download started", "download_id", dl.ID, "url", dl.URL, "path", e.sess.Path())
	a.changed(e)
	return nil
}

// Pause stops the transfer at the next chunk boundary. Pausing a paused
// download succeeds without effect.
func (a *Adapter) Pause(ctx context.Context, dl *data.Download) error {
	s, err := a.session(dl.ID)
	if err != nil {
		return err
	}
	if s.Pause() || s.Status() == session.Paused {
		return nil
	}
	return fmt.Errorf("%w: pause from %s", downloader.ErrIllegalTransition, s.Status())
}

// Resume continues a paused or failed download from its current offset.
func (a *Adapter) Resume(ctx context.Context, dl *data.Download) error {
	s, err := a.session(dl.ID)
	if err != nil {
		return err
	}
	if s.Resume() || s.Status() == session.Downloading {
		return nil
	}
	return fmt.Errorf("%w: resume from %s", downloader.ErrIllegalTransition, s.Status())
}

func (a *Adapter) Cancel(ctx context.Context, dl *data.Download) error {
	s, err := a.session(dl.ID)
	if err != nil {
		return err
	}
	if s.Cancel() || s.Status() == session.Cancelled {
		return nil
	}
	return fmt.Errorf("%w: cancel from %s", downloader.ErrIllegalTransition, s.Status())
}

// Ping checks that the download root exists and accepts new files.
func (a *Adapter) Ping(ctx context.Context) error {
	dir := a.dir
	if dir == "" {
		dir = "."
	}
	fi, err := os.Stat(dir)
	if err != nil {
		return err
	}
	if !fi.IsDir() {
		return fmt.Errorf("download dir %s is not a directory", dir)
	}
	f, err := os.CreateTemp(dir, ".fetchd-ping-*")
	if err != nil {
		return err
	}
	name := f.Name()
	_ = f.Close()
	return a.fs.Remove(name)
}

// Shutdown pauses every running session, aborts in-flight requests and
// waits for the workers to return or ctx to end.
func (a *Adapter) Shutdown(ctx context.Context) error {
	a.mu.RLock()
	sessions := make([]*session.Session, 0, len(a.entries))
	for _, e := range a.entries {
		if s := e.session(); s != nil {
			sessions = append(sessions, s)
		}
	}
	a.mu.RUnlock()

	for _, s := range sessions {
		s.Pause()
	}
	a.cancel()
	for _, s := range sessions {
		if err := s.Wait(ctx); err != nil {
			return err
		}
	}
	a.log.Info("downloader stopped", "sessions", len(sessions))
	return nil
}

func (a *Adapter) session(id string) (*session.Session, error) {
	a.mu.RLock()
	e, ok := a.entries[id]
	a.mu.RUnlock()
	if !ok {
		return nil, downloader.ErrNotFound
	}
	s := e.session()
	if s == nil {
		return nil, downloader.ErrNotFound
	}
	return s, nil
}

func (a *Adapter) report(e downloader.Event) {
	if a.rep != nil {
		a.rep.Report(e)
	}
}
