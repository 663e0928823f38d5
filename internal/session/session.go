package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/tinoosan/fetchd/internal/fetch"
	"github.com/tinoosan/fetchd/internal/sink"
)

// ErrStream wraps read failures on the response body, including a body that
// ends before the declared size was reached.
var ErrStream = errors.New("session: stream failed")

const (
	// DefaultChunkSize bounds a single read/write of the worker loop.
	DefaultChunkSize = 1024
	// UnknownSize is reported by Size until the first successful response.
	UnknownSize int64 = -1
)

// Fetcher opens a stream of a resource starting at offset.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string, offset int64) (*fetch.Response, error)
}

// OpenFunc opens local storage for contiguous writes starting at offset.
type OpenFunc func(path string, offset int64) (io.WriteCloser, error)

func openFile(path string, offset int64) (io.WriteCloser, error) {
	f, err := sink.Open(path, offset)
	if err != nil {
		return nil, err
	}
	return f, nil
}

// Option customises a Session at construction.
type Option func(*Session)

// WithDir places the local file, named after the URL, in dir.
func WithDir(dir string) Option {
	return func(s *Session) { s.dir = dir }
}

// WithPath sets the exact local file path, overriding WithDir.
func WithPath(p string) Option {
	return func(s *Session) { s.path = p }
}

// WithChunkSize sets the maximum bytes moved per loop iteration.
func WithChunkSize(n int) Option {
	return func(s *Session) {
		if n > 0 {
			s.chunk = n
		}
	}
}

func WithFetcher(f Fetcher) Option {
	return func(s *Session) { s.fetcher = f }
}

func WithStorage(open OpenFunc) Option {
	return func(s *Session) { s.open = open }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.log = l
		}
	}
}

// WithObserver subscribes o before the worker starts, so it sees every
// notification including the first one.
func WithObserver(o Observer) Option {
	return func(s *Session) { s.pub.Subscribe(o) }
}

// Snapshot is a consistent view of a session at one instant.
type Snapshot struct {
	URL         string
	Path        string
	Size        int64
	Transferred int64
	State       State
	Err         error
}

// Percent returns transferred/size*100, or false while the size is unknown.
func (s Snapshot) Percent() (float64, bool) {
	return percent(s.Transferred, s.Size)
}

func percent(done, total int64) (float64, bool) {
	if total <= 0 {
		return 0, false
	}
	return float64(done) / float64(total) * 100, true
}

// Session downloads one URL to one local file and can be paused, resumed and
// cancelled from any goroutine. At most one worker runs at a time.
type Session struct {
	url     string
	dir     string
	path    string
	chunk   int
	fetcher Fetcher
	open    OpenFunc
	log     *slog.Logger
	ctx     context.Context

	pub Publisher

	// Written only while holding mu so Snapshot is consistent; read freely.
	total       atomic.Int64
	transferred atomic.Int64

	mu       sync.Mutex
	state    State
	err      error
	gen      uint64
	worker   chan struct{}
	terminal chan struct{}
}

// New creates a session for rawURL in the Downloading state and starts its
// worker immediately. ctx bounds every network operation of the session;
// pausing or cancelling does not cancel it.
func New(ctx context.Context, rawURL string, opts ...Option) *Session {
	if ctx == nil {
		ctx = context.Background()
	}
	s := &Session{
		url:      rawURL,
		chunk:    DefaultChunkSize,
		open:     openFile,
		log:      slog.Default(),
		ctx:      ctx,
		state:    Downloading,
		terminal: make(chan struct{}),
	}
	s.total.Store(UnknownSize)
	for _, opt := range opts {
		opt(s)
	}
	if s.fetcher == nil {
		s.fetcher = fetch.NewClient(fetch.Options{})
	}
	if s.path == "" {
		s.path = filepath.Join(s.dir, FileName(rawURL))
	}
	s.log = s.log.With("url", rawURL)

	s.mu.Lock()
	s.spawnLocked()
	s.mu.Unlock()
	return s
}

// FileName returns the last path segment of rawURL, or "download" when the
// URL has no usable segment.
func FileName(rawURL string) string {
	p := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		p = u.Path
	}
	name := path.Base(p)
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		name = name[i+1:]
	}
	switch name {
	case "", ".", "..", "/":
		return "download"
	}
	return name
}

func (s *Session) URL() string  { return s.url }
func (s *Session) Path() string { return s.path }

// Size returns the declared total size, or UnknownSize.
func (s *Session) Size() int64 { return s.total.Load() }

// Transferred returns the number of bytes written so far.
func (s *Session) Transferred() int64 { return s.transferred.Load() }

func (s *Session) Status() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Err returns the failure that moved the session to Error. It is cleared by
// a successful Resume.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Progress returns the completed percentage, or false while the size is unknown.
func (s *Session) Progress() (float64, bool) {
	return s.Snapshot().Percent()
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		URL:         s.url,
		Path:        s.path,
		Size:        s.total.Load(),
		Transferred: s.transferred.Load(),
		State:       s.state,
		Err:         s.err,
	}
}

func (s *Session) Subscribe(o Observer) Subscription { return s.pub.Subscribe(o) }

func (s *Session) Unsubscribe(id Subscription) bool { return s.pub.Unsubscribe(id) }

// Pause stops transfer at the next chunk boundary. It reports whether the
// state changed; outside Downloading it is a no-op.
func (s *Session) Pause() bool { return s.command(TriggerPause) }

// Resume starts a new worker from the current offset. Legal from Paused and
// Error; a no-op otherwise. The new worker does not touch the network or the
// file until the previous worker has returned.
func (s *Session) Resume() bool { return s.command(TriggerResume) }

// Cancel ends the session permanently. No bytes are written after it returns.
func (s *Session) Cancel() bool { return s.command(TriggerCancel) }

// Wait blocks until the most recently started worker has returned or ctx is done.
func (s *Session) Wait(ctx context.Context) error {
	s.mu.Lock()
	done := s.worker
	s.mu.Unlock()
	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Done is closed once the session reaches Complete or Cancelled.
func (s *Session) Done() <-chan struct{} { return s.terminal }

func (s *Session) command(t Trigger) bool {
	s.mu.Lock()
	from := s.state
	to, ok := Next(from, t)
	if !ok {
		s.mu.Unlock()
		s.log.Debug("ignoring command", "command", t.String(), "state", from.String())
		return false
	}
	s.setLocked(to)
	if t == TriggerResume {
		s.err = nil
		s.spawnLocked()
	}
	s.mu.Unlock()

	s.log.Info("state changed", "command", t.String(), "from", from.String(), "to", to.String(), "offset", s.transferred.Load())
	s.pub.Publish()
	return true
}

func (s *Session) setLocked(to State) {
	s.state = to
	if to.Terminal() {
		close(s.terminal)
	}
}

// spawnLocked starts the worker for a new Downloading period. The goroutine
// first waits for its predecessor, so two workers never write concurrently.
func (s *Session) spawnLocked() {
	s.gen++
	gen := s.gen
	prev := s.worker
	done := make(chan struct{})
	s.worker = done
	go func() {
		defer close(done)
		if prev != nil {
			<-prev
		}
		s.run(gen)
	}()
}

// active reports whether worker gen is still the current worker and the
// session is still Downloading.
func (s *Session) active(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen == gen && s.state == Downloading
}

// fire applies a worker-originated trigger if worker gen still owns the session.
func (s *Session) fire(gen uint64, t Trigger, cause error) bool {
	s.mu.Lock()
	if s.gen != gen {
		s.mu.Unlock()
		return false
	}
	from := s.state
	to, ok := Next(from, t)
	if !ok {
		s.mu.Unlock()
		return false
	}
	s.setLocked(to)
	if cause != nil {
		s.err = cause
	}
	s.mu.Unlock()
	s.pub.Publish()
	return true
}

func (s *Session) fail(gen uint64, log *slog.Logger, err error) {
	if !s.fire(gen, TriggerFail, err) {
		log.Debug("failure after state change ignored", "err", err)
		return
	}
	log.Error("download failed", "kind", Kind(err), "offset", s.transferred.Load(), "err", err)
}

func (s *Session) recordTotal(total int64) error {
	s.mu.Lock()
	cur := s.total.Load()
	if cur == UnknownSize {
		s.total.Store(total)
		s.mu.Unlock()
		s.pub.Publish()
		return nil
	}
	s.mu.Unlock()
	if cur != total {
		return fmt.Errorf("%w: declared size changed from %d to %d", fetch.ErrSize, cur, total)
	}
	return nil
}

// commit writes p at the current offset if worker gen may still write. The
// write happens under mu so nothing lands after Pause or Cancel returns.
func (s *Session) commit(gen uint64, w io.Writer, p []byte) (n int, ok bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen || s.state != Downloading {
		return 0, false, nil
	}
	n, err = w.Write(p)
	if n > 0 {
		s.transferred.Add(int64(n))
	}
	return n, true, err
}

func (s *Session) run(gen uint64) {
	if !s.active(gen) {
		return
	}
	log := s.log.With("worker", gen)
	offset := s.transferred.Load()
	log.Debug("worker started", "offset", offset)

	// A pause that landed after the last chunk leaves nothing to request.
	if total := s.total.Load(); total != UnknownSize && offset >= total {
		if s.fire(gen, TriggerFinish, nil) {
			log.Info("download complete", "size", total, "path", s.path)
		}
		return
	}

	resp, err := s.fetcher.Fetch(s.ctx, s.url, offset)
	if err != nil {
		s.fail(gen, log, err)
		return
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			log.Debug("close stream", "err", err)
		}
	}()

	if err := s.recordTotal(resp.Total); err != nil {
		s.fail(gen, log, err)
		return
	}
	total := s.total.Load()

	w, err := s.open(s.path, offset)
	if err != nil {
		s.fail(gen, log, err)
		return
	}
	defer func() {
		if err := w.Close(); err != nil {
			log.Warn("close file", "path", s.path, "err", err)
		}
	}()

	buf := make([]byte, s.chunk)
	for s.active(gen) {
		remaining := total - s.transferred.Load()
		if remaining <= 0 {
			break
		}
		n := min(int64(len(buf)), remaining)

		read, rerr := resp.Body.Read(buf[:n])
		if read > 0 {
			written, ok, werr := s.commit(gen, w, buf[:read])
			if !ok {
				break
			}
			if written > 0 {
				s.pub.Publish()
			}
			if werr != nil {
				s.fail(gen, log, werr)
				return
			}
		}
		if errors.Is(rerr, io.EOF) {
			break
		}
		if rerr != nil {
			s.fail(gen, log, fmt.Errorf("%w: %v", ErrStream, rerr))
			return
		}
	}

	if !s.active(gen) {
		log.Debug("worker stopped", "offset", s.transferred.Load())
		return
	}
	if got := s.transferred.Load(); got < total {
		s.fail(gen, log, fmt.Errorf("%w: stream ended at %d of %d bytes", ErrStream, got, total))
		return
	}
	if s.fire(gen, TriggerFinish, nil) {
		log.Info("download complete", "size", total, "path", s.path)
	}
}

// Kind classifies a worker failure for logs and metrics.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, fetch.ErrSize):
		return "size"
	case errors.Is(err, fetch.ErrConnection):
		return "connection"
	case errors.Is(err, sink.ErrStorage):
		return "storage"
	case errors.Is(err, ErrStream):
		return "stream"
	default:
		return "unknown"
	}
}
