package sse

import (
	"bufio"
	"errors"
	"fmt"
	"net/http"
)

// errWriteTimeout is returned by writeWithTimeout when a connection's
// transport write does not complete within sendTimeout.
var errWriteTimeout = errors.New("sse: write timed out")

// Event name constants: the closed namespace of events the Hub emits,
// per spec.md §4.F.
const (
	EventConnected        = "connected"
	EventAuthSuccess      = "auth_success"
	EventError            = "error"
	EventClose            = "close"
	EventSyncProgress     = "sync_progress"
	EventDetectionUpdates = "detection_updates"
	EventFinancialEvents  = "financial_events"
	EventNotifications    = "notifications"
)

// httpConnection adapts an http.ResponseWriter/http.Flusher pair into
// a Connection, writing frames in the standard text/event-stream wire
// format (id:/event:/data: lines terminated by a blank line).
type httpConnection struct {
	w       *bufio.Writer
	flusher http.Flusher
}

// NewHTTPConnection wraps an HTTP response writer for SSE delivery.
// Returns an error if the writer does not support flushing, since
// streaming is impossible without it.
func NewHTTPConnection(w http.ResponseWriter) (Connection, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, errors.New("sse: response writer does not support flushing")
	}
	return &httpConnection{w: bufio.NewWriter(w), flusher: flusher}, nil
}

func (c *httpConnection) Write(f Frame) error {
	if len(f.Data) == 0 && f.Event == "" && f.ID == "" {
		return nil
	}
	if f.Event == "" && f.ID == "" {
		// Heartbeat/comment frame: Data already carries the full
		// ": heartbeat\n\n" comment line.
		if _, err := c.w.Write(f.Data); err != nil {
			return err
		}
		c.flusher.Flush()
		return c.w.Flush()
	}

	if f.ID != "" {
		if _, err := fmt.Fprintf(c.w, "id: %s\n", f.ID); err != nil {
			return err
		}
	}
	if f.Event != "" {
		if _, err := fmt.Fprintf(c.w, "event: %s\n", f.Event); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintf(c.w, "data: %s\n\n", f.Data); err != nil {
		return err
	}
	c.flusher.Flush()
	return c.w.Flush()
}
