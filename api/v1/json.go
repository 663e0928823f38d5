package v1

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"
)

const maxBodyBytes = 1 << 20

// decodeJSONStrict validates optional Content-Type, enforces a max body size,
// and decodes JSON into dst while disallowing unknown fields. It returns
// ErrContentType when the Content-Type header is present but not acceptable.
func decodeJSONStrict(w http.ResponseWriter, r *http.Request, dst any, maxBytes int64, contentTypePrefix string) error {
	if ct := r.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(ct, contentTypePrefix) {
		return ErrContentType
	}
	// Limit body to prevent abuse.
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func writeJSON(w http.ResponseWriter, status int, v interface{ ToJSON(w io.Writer) error }) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := v.ToJSON(w); err != nil {
		markErr(w, err)
	}
}
