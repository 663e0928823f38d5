package v1

import (
	"bufio"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/tinoosan/fetchd/internal/data"
	"github.com/tinoosan/fetchd/internal/downloadcfg"
	"github.com/tinoosan/fetchd/internal/downloader"
	"github.com/tinoosan/fetchd/internal/reqid"
	"github.com/tinoosan/fetchd/internal/service"
)

// DownloadHandler serves the /v1/downloads resource.
type DownloadHandler struct {
	l       *slog.Logger
	svc     service.Download
	watcher downloader.Watcher
}

type addBody struct {
	URL        string `json:"url"`
	TargetPath string `json:"targetPath,omitempty"`
}

type patchBody struct {
	DesiredStatus string `json:"desiredStatus"`
}

type rwLogger struct {
	http.ResponseWriter
	status int
	bytes  int
	err    error
}

func (w *rwLogger) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *rwLogger) SetErr(err error) {
	w.err = err
}

func (w *rwLogger) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}

	n, err := w.ResponseWriter.Write(b)
	w.bytes += n
	return n, err
}

// Hijack lets the WebSocket upgrade pass through the access log.
func (w *rwLogger) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer %T does not support hijacking", w.ResponseWriter)
	}
	w.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

func (w *rwLogger) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

type errorSetter interface {
	SetErr(error)
}

func markErr(w http.ResponseWriter, err error) {
	if es, ok := w.(errorSetter); ok {
		es.SetErr(err)
	}
}

// context keys
type ctxKeyDownload struct{}
type ctxKeyPatch struct{}

// NewDownloadHandler builds the handler. watcher may be nil, in which case
// the events stream answers 501.
func NewDownloadHandler(l *slog.Logger, svc service.Download, watcher downloader.Watcher) *DownloadHandler {
	return &DownloadHandler{l: l, svc: svc, watcher: watcher}
}

func (dh *DownloadHandler) GetDownloads(w http.ResponseWriter, r *http.Request) {
	dls, err := dh.svc.List(r.Context())
	if err != nil {
		markErr(w, err)
		http.Error(w, "failed to list downloads", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, &dls)
}

func (dh *DownloadHandler) GetDownload(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	dl, err := dh.svc.Get(r.Context(), id)
	if err != nil {
		dh.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dl)
}

func (dh *DownloadHandler) AddDownload(w http.ResponseWriter, r *http.Request) {
	body, ok := r.Context().Value(ctxKeyDownload{}).(addBody)
	if !ok {
		markErr(w, ErrDownloadCtx)
		http.Error(w, ErrDownloadCtx.Error(), http.StatusInternalServerError)
		return
	}

	dl, created, err := dh.svc.Add(r.Context(), &data.Download{URL: body.URL, TargetPath: body.TargetPath})
	if err != nil {
		dh.writeErr(w, r, err)
		return
	}
	status := http.StatusCreated
	if !created {
		status = http.StatusOK
	}
	w.Header().Set("Location", "/v1/downloads/"+dl.ID)
	writeJSON(w, status, dl)
}

func (dh *DownloadHandler) UpdateDownload(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	body, ok := r.Context().Value(ctxKeyPatch{}).(patchBody)
	if !ok || body.DesiredStatus == "" {
		markErr(w, ErrDesiredStatus)
		http.Error(w, ErrDesiredStatus.Error(), http.StatusInternalServerError)
		return
	}

	updated, err := dh.svc.UpdateDesiredStatus(r.Context(), id, data.DownloadStatus(body.DesiredStatus))
	if err != nil {
		dh.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (dh *DownloadHandler) DeleteDownload(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	deleteFiles := r.URL.Query().Get("deleteFiles") == "true"
	if err := dh.svc.Delete(r.Context(), id, deleteFiles); err != nil {
		dh.writeErr(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// writeErr maps service errors to HTTP status codes.
func (dh *DownloadHandler) writeErr(w http.ResponseWriter, r *http.Request, err error) {
	markErr(w, err)
	switch {
	case errors.Is(err, data.ErrNotFound):
		http.Error(w, "Not found", http.StatusNotFound)
	case errors.Is(err, data.ErrBadStatus):
		http.Error(w, "Invalid desiredStatus (allowed: Downloading|Paused|Cancelled)", http.StatusBadRequest)
	case errors.Is(err, data.ErrInvalidURL):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, data.ErrTransition):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, downloadcfg.ErrTargetExists):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		reqid.Logger(r.Context(), dh.l).Error("request failed", "path", r.URL.Path, "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}
