package v1_test

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	internaldata "github.com/tinoosan/fetchd/internal/data"
	"github.com/tinoosan/fetchd/internal/downloader"
	"github.com/tinoosan/fetchd/internal/downloader/httpdl"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

func TestStreamEventsUntilComplete(t *testing.T) {
	body := bytes.Repeat([]byte("fetchd"), 1000)
	files := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.ServeContent(w, r, "f.bin", time.Time{}, bytes.NewReader(body))
	}))
	defer files.Close()

	events := make(chan downloader.Event, 1024)
	adapter := httpdl.NewAdapter(downloader.NewChanReporter(events), httpdl.Options{ChunkSize: 512, Logger: discard()})
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = adapter.Shutdown(ctx)
	}()

	h, _ := setupWith(t, adapter)
	api := httptest.NewServer(h)
	defer api.Close()

	rr := do(t, h, http.MethodPost, "/v1/downloads", `{"url":"`+files.URL+`/f.bin"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create status=%d: %s", rr.Code, rr.Body.String())
	}
	var created internaldata.Download
	if err := created.FromJSON(rr.Body); err != nil {
		t.Fatalf("decode: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	wsURL := "ws" + strings.TrimPrefix(api.URL, "http") + "/v1/downloads/" + created.ID + "/events"
	c, _, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{
		HTTPHeader: http.Header{"Authorization": []string{"Bearer " + testToken}},
	})
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer c.Close(websocket.StatusNormalClosure, "")

	var last downloader.Status
	for {
		var st downloader.Status
		err := wsjson.Read(ctx, c, &st)
		if err != nil {
			if websocket.CloseStatus(err) == websocket.StatusNormalClosure {
				break
			}
			t.Fatalf("read: %v", err)
		}
		if st.Transferred < last.Transferred {
			t.Fatalf("progress went backwards: %d after %d", st.Transferred, last.Transferred)
		}
		last = st
	}
	if last.Status != internaldata.StatusComplete || last.Transferred != int64(len(body)) || last.Size != int64(len(body)) {
		t.Fatalf("last status = %+v", last)
	}
}

func TestStreamEventsUnknownDownload(t *testing.T) {
	adapter := httpdl.NewAdapter(nil, httpdl.Options{Logger: discard()})
	h, _ := setupWith(t, adapter)
	api := httptest.NewServer(h)
	defer api.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, resp, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(api.URL, "http")+"/v1/downloads/nope/events", &websocket.DialOptions{
		HTTPHeader: http.Header{"Authorization": []string{"Bearer " + testToken}},
	})
	if err == nil {
		t.Fatalf("expected dial to fail")
	}
	if resp == nil || resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 response, got %v (%v)", resp, errors.Unwrap(err))
	}
}
