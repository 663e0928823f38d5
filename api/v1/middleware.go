package v1

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/tinoosan/fetchd/internal/reqid"
)

func MiddlewareDownloadValidation(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body addBody
		if err := decodeJSONStrict(w, r, &body, maxBodyBytes, "application/json"); err != nil {
			markErr(w, err)
			if errors.Is(err, ErrContentType) {
				http.Error(w, err.Error(), http.StatusUnsupportedMediaType)
				return
			}
			http.Error(w, "invalid JSON: "+err.Error(), http.StatusBadRequest)
			return
		}
		if strings.TrimSpace(body.URL) == "" {
			markErr(w, ErrURLRequired)
			http.Error(w, ErrURLRequired.Error(), http.StatusBadRequest)
			return
		}

		ctx := context.WithValue(r.Context(), ctxKeyDownload{}, body)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func MiddlewarePatchDesired(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body patchBody
		if err := decodeJSONStrict(w, r, &body, maxBodyBytes, "application/json"); err != nil {
			markErr(w, err)
			if errors.Is(err, ErrContentType) {
				http.Error(w, err.Error(), http.StatusUnsupportedMediaType)
				return
			}
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		if body.DesiredStatus == "" {
			markErr(w, ErrDesiredStatusJSON)
			http.Error(w, ErrDesiredStatusJSON.Error(), http.StatusBadRequest)
			return
		}

		ctx := context.WithValue(r.Context(), ctxKeyPatch{}, body)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Log writes one access log line per request.
func (dh *DownloadHandler) Log(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		startTime := time.Now()
		rw := &rwLogger{ResponseWriter: w}
		next.ServeHTTP(rw, r)
		if rw.status == 0 {
			rw.status = http.StatusOK
		}
		l := reqid.Logger(r.Context(), dh.l)
		attrs := []any{
			"method", r.Method,
			"url", r.URL.Path,
			"status", rw.status,
			"remote", r.RemoteAddr,
			"ua", r.UserAgent(),
			"dur_ms", time.Since(startTime).Milliseconds(),
			"bytes", rw.bytes,
		}
		if rw.err != nil {
			l.Error(rw.err.Error(), attrs...)
			return
		}
		l.Info("", attrs...)
	})
}
