package fp

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"path/filepath"
	"strings"
)

// NormalizeURL trims whitespace, lowercases scheme and host and drops the
// fragment, which never reaches the server.
func NormalizeURL(s string) string {
	s = strings.TrimSpace(s)
	u, err := url.Parse(s)
	if err != nil {
		return s
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	u.RawFragment = ""
	return u.String()
}

// NormalizeTargetPath trims whitespace and cleans the path using filepath.Clean.
// Case is preserved; Unix file systems are case-sensitive.
func NormalizeTargetPath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return p
	}
	return filepath.Clean(p)
}

// Fingerprint computes a stable hex-encoded SHA-256 over the normalized
// URL and target directory. It identifies duplicate add requests.
func Fingerprint(rawURL, targetPath string) string {
	nu := NormalizeURL(rawURL)
	nt := NormalizeTargetPath(targetPath)
	h := sha256.New()
	h.Write([]byte(nu))
	h.Write([]byte{0})
	h.Write([]byte(nt))
	return hex.EncodeToString(h.Sum(nil))
}
