package fetch

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"
)

func testPayload(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i % 251)
	}
	return b
}

func rangeServer(t *testing.T, payload []byte) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.ServeContent(w, r, "blob.bin", time.Time{}, bytes.NewReader(payload))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestFetch(t *testing.T) {
	payload := testPayload(10000)
	srv := rangeServer(t, payload)
	c := NewClient(Options{})

	tests := []struct {
		name   string
		offset int64
	}{
		{"from start", 0},
		{"from middle", 4096},
		{"last byte", 9999},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := c.Fetch(context.Background(), srv.URL+"/blob.bin", tt.offset)
			if err != nil {
				t.Fatalf("Fetch: %v", err)
			}
			defer resp.Body.Close()
			if resp.Total != int64(len(payload)) {
				t.Fatalf("total = %d, want %d", resp.Total, len(payload))
			}
			if resp.Offset != tt.offset {
				t.Fatalf("offset = %d, want %d", resp.Offset, tt.offset)
			}
			got, err := io.ReadAll(resp.Body)
			if err != nil {
				t.Fatalf("read body: %v", err)
			}
			if !bytes.Equal(got, payload[tt.offset:]) {
				t.Fatalf("body mismatch: got %d bytes, want %d", len(got), len(payload)-int(tt.offset))
			}
		})
	}
}

func TestFetchSendsOpenEndedRange(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("Range")
		w.Header().Set("Content-Range", "bytes 123-199/200")
		w.Header().Set("Content-Length", "77")
		w.WriteHeader(http.StatusPartialContent)
		_, _ = w.Write(make([]byte, 77))
	}))
	defer srv.Close()

	resp, err := NewClient(Options{}).Fetch(context.Background(), srv.URL+"/f", 123)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	_ = resp.Body.Close()
	if got != "bytes=123-" {
		t.Fatalf("Range header = %q, want %q", got, "bytes=123-")
	}
	if resp.Total != 200 {
		t.Fatalf("total = %d, want 200", resp.Total)
	}
}

func TestFetchFailures(t *testing.T) {
	tests := []struct {
		name    string
		offset  int64
		handler http.HandlerFunc
		wantErr error
	}{
		{
			name:   "not found",
			offset: 0,
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.NotFound(w, r)
			},
			wantErr: ErrConnection,
		},
		{
			name:   "server error",
			offset: 0,
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
			},
			wantErr: ErrConnection,
		},
		{
			name:   "missing length",
			offset: 0,
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
				_, _ = w.Write([]byte("streamed"))
				w.(http.Flusher).Flush()
				_, _ = w.Write([]byte(" without length"))
			},
			wantErr: ErrSize,
		},
		{
			name:   "empty resource",
			offset: 0,
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Length", "0")
				w.WriteHeader(http.StatusOK)
			},
			wantErr: ErrSize,
		},
		{
			name:   "range ignored",
			offset: 10,
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Length", strconv.Itoa(100))
				w.WriteHeader(http.StatusOK)
				_, _ = w.Write(make([]byte, 100))
			},
			wantErr: ErrConnection,
		},
		{
			name:   "range mismatch",
			offset: 10,
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Range", "bytes 0-99/100")
				w.Header().Set("Content-Length", "100")
				w.WriteHeader(http.StatusPartialContent)
				_, _ = w.Write(make([]byte, 100))
			},
			wantErr: ErrConnection,
		},
		{
			name:   "garbled content range",
			offset: 0,
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Range", "bytes nonsense")
				w.WriteHeader(http.StatusPartialContent)
			},
			wantErr: ErrSize,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			resp, err := NewClient(Options{}).Fetch(context.Background(), srv.URL+"/f", tt.offset)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
			if resp != nil {
				t.Fatalf("expected nil response on failure")
			}
		})
	}
}

func TestFetchTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL + "/f"
	srv.Close()

	_, err := NewClient(Options{}).Fetch(context.Background(), url, 0)
	if !errors.Is(err, ErrConnection) {
		t.Fatalf("expected ErrConnection, got %v", err)
	}
}

func TestParseContentRange(t *testing.T) {
	tests := []struct {
		in                string
		start, end, total int64
		wantErr           bool
	}{
		{"bytes 0-99/100", 0, 99, 100, false},
		{"bytes 4096-9999/10000", 4096, 9999, 10000, false},
		{"bytes 10-20/*", 10, 20, -1, false},
		{"bytes 10-20", 0, 0, 0, true},
		{"items 0-1/2", 0, 0, 0, true},
		{"bytes a-1/2", 0, 0, 0, true},
		{"bytes 5-1/10", 0, 0, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			start, end, total, err := ParseContentRange(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if start != tt.start || end != tt.end || total != tt.total {
				t.Fatalf("got %d-%d/%d, want %d-%d/%d", start, end, total, tt.start, tt.end, tt.total)
			}
		})
	}
}
