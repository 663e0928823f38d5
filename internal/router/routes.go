package router

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	v1 "github.com/tinoosan/fetchd/api/v1"
	"github.com/tinoosan/fetchd/internal/auth"
	"github.com/tinoosan/fetchd/internal/downloader"
	"github.com/tinoosan/fetchd/internal/service"
)

const readyTimeout = 2 * time.Second

// New sets up the application routes and required middleware. Probes and
// metrics are public; everything under /v1 requires token.
func New(logger *slog.Logger, downloadSvc service.Download, dlr downloader.Downloader, token string) *mux.Router {
	r := mux.NewRouter()

	watcher, _ := dlr.(downloader.Watcher)
	downloadHandler := v1.NewDownloadHandler(logger, downloadSvc, watcher)

	r.Use(v1.RequestID)
	r.Use(downloadHandler.Log)

	r.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("ok")); err != nil {
			logger.Error("write healthz response", "err", err)
		}
	}).Methods("GET")

	r.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
		defer cancel()
		if err := dlr.Ping(ctx); err != nil {
			logger.Warn("not ready", "err", err)
			http.Error(w, "not ready", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	}).Methods("GET")

	r.Handle("/metrics", promhttp.Handler()).Methods("GET")

	api := r.PathPrefix("/v1").Subrouter()
	api.Use(auth.Middleware(token))

	// GETs
	get := api.Methods("GET").Subrouter()
	get.HandleFunc("/downloads", downloadHandler.GetDownloads)
	get.HandleFunc("/downloads/{id}", downloadHandler.GetDownload)
	get.HandleFunc("/downloads/{id}/events", downloadHandler.StreamEvents)

	// POSTs
	post := api.Methods("POST").Subrouter()
	post.HandleFunc("/downloads", downloadHandler.AddDownload)
	post.Use(v1.MiddlewareDownloadValidation)

	// PATCHes
	patch := api.Methods("PATCH").Subrouter()
	patch.HandleFunc("/downloads/{id}", downloadHandler.UpdateDownload)
	patch.Use(v1.MiddlewarePatchDesired)

	// DELETEs
	del := api.Methods("DELETE").Subrouter()
	del.HandleFunc("/downloads/{id}", downloadHandler.DeleteDownload)

	return r
}
