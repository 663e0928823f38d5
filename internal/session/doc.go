// Package session runs one resumable HTTP download.
//
// A Session is created in the Downloading state and starts a worker at once.
// The worker opens a range request at the current offset, writes bounded
// chunks to the local file and publishes a payload-free notification after
// every chunk and every state change. Observers read current values back
// through the accessors.
//
// Pause, Resume and Cancel may be called from any goroutine. They are
// cooperative: the worker notices a new state between chunks, so a read that
// is blocked on a stalled connection is not interrupted. Only the context
// passed to New aborts in-flight network I/O.
package session
