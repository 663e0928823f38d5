// Package sink writes downloaded chunks into a local file at explicit offsets.
package sink

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
)

// ErrStorage wraps every local open, seek, write or close failure.
var ErrStorage = errors.New("sink: storage failure")

// File is a local file opened for random-offset writes. Writes are
// contiguous: each Write lands at the current offset and advances it.
type File struct {
	path string
	f    *os.File
	off  int64

	closeOnce sync.Once
	closeErr  error
}

// Open opens path for read/write, creating it if needed, and positions the
// write offset at offset. Existing content is never truncated.
func Open(path string, offset int64) (*File, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", ErrStorage, path, err)
	}
	sf := &File{path: path, f: f}
	if err := sf.Seek(offset); err != nil {
		_ = f.Close()
		return nil, err
	}
	return sf, nil
}

// Seek moves the write offset.
func (s *File) Seek(offset int64) error {
	if offset < 0 {
		return fmt.Errorf("%w: seek %s: negative offset %d", ErrStorage, s.path, offset)
	}
	if _, err := s.f.Seek(offset, io.SeekStart); err != nil {
		return fmt.Errorf("%w: seek %s: %v", ErrStorage, s.path, err)
	}
	s.off = offset
	return nil
}

// Write writes p at the current offset and advances it by the bytes written.
func (s *File) Write(p []byte) (int, error) {
	at := s.off
	n, err := s.f.WriteAt(p, at)
	s.off += int64(n)
	if err != nil {
		return n, fmt.Errorf("%w: write %s at %d: %v", ErrStorage, s.path, at, err)
	}
	return n, nil
}

// Offset reports where the next Write lands.
func (s *File) Offset() int64 { return s.off }

// Path returns the file path.
func (s *File) Path() string { return s.path }

// Close syncs and releases the handle. It is idempotent; later calls return
// the first result.
func (s *File) Close() error {
	s.closeOnce.Do(func() {
		syncErr := s.f.Sync()
		if err := s.f.Close(); err != nil {
			s.closeErr = fmt.Errorf("%w: close %s: %v", ErrStorage, s.path, err)
			return
		}
		if syncErr != nil {
			s.closeErr = fmt.Errorf("%w: sync %s: %v", ErrStorage, s.path, syncErr)
		}
	})
	return s.closeErr
}
