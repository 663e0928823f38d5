package v1

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/tinoosan/fetchd/internal/downloader"
	"github.com/tinoosan/fetchd/internal/reqid"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

const wsWriteTimeout = 5 * time.Second

// StreamEvents upgrades to a WebSocket and sends the live status of one
// download after every change. Bursts of changes coalesce into one message.
// The connection is closed once a terminal status was sent or the download
// is deleted.
func (dh *DownloadHandler) StreamEvents(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if dh.watcher == nil {
		markErr(w, ErrNoWatcher)
		http.Error(w, ErrNoWatcher.Error(), http.StatusNotImplemented)
		return
	}
	if _, err := dh.svc.Get(r.Context(), id); err != nil {
		dh.writeErr(w, r, err)
		return
	}
	updates, stop, err := dh.watcher.Watch(id)
	if errors.Is(err, downloader.ErrNotFound) {
		markErr(w, err)
		http.Error(w, "download has no live session", http.StatusConflict)
		return
	}
	if err != nil {
		dh.writeErr(w, r, err)
		return
	}
	defer stop()

	c, err := websocket.Accept(w, r, nil)
	if err != nil {
		markErr(w, err)
		return
	}
	defer c.Close(websocket.StatusInternalError, "")

	log := reqid.Logger(r.Context(), dh.l).With("download_id", id)
	// Incoming frames are not expected; CloseRead handles pings and the peer's close.
	ctx := c.CloseRead(r.Context())
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-updates:
			if !ok {
				c.Close(websocket.StatusNormalClosure, "download deleted")
				return
			}
			st, err := dh.watcher.Status(id)
			if err != nil {
				c.Close(websocket.StatusNormalClosure, "download deleted")
				return
			}
			if err := writeStatus(ctx, c, st); err != nil {
				log.Debug("websocket write", "err", err)
				return
			}
			if st.Status.Terminal() {
				c.Close(websocket.StatusNormalClosure, string(st.Status))
				return
			}
		}
	}
}

func writeStatus(ctx context.Context, c *websocket.Conn, st downloader.Status) error {
	ctx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
	defer cancel()
	return wsjson.Write(ctx, c, st)
}
