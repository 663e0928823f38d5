// Package fetch opens HTTP range requests for resumable downloads.
//
// A Client asks for bytes from an offset to the end of the resource using
// "Range: bytes=<offset>-" and returns the streaming body together with the
// declared size of the whole resource. Nothing is buffered beyond what the
// caller reads.
//
// The declared size comes from Content-Range on 206 responses and from
// Content-Length on 200 responses to a request at offset zero. A 200 answer
// to a request at a non-zero offset means the server ignored the range and is
// reported as ErrConnection.
package fetch
