// Package sse encodes server-sent events.
package sse

import (
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Event is one server-sent event. An empty Name sends an unnamed message.
type Event struct {
	Name string
	Data string
}

// Write encodes ev to w without flushing. Multi-line data becomes one data line per line.
func Write(w io.Writer, ev Event) error {
	if ev.Name != "" {
		if _, err := fmt.Fprintf(w, "event: %s\n", ev.Name); err != nil {
			return err
		}
	}
	for _, line := range strings.Split(ev.Data, "\n") {
		if _, err := fmt.Fprintf(w, "data: %s\n", line); err != nil {
			return err
		}
	}
	_, err := io.WriteString(w, "\n")
	return err
}

// Flush sends everything written so far, if w supports it.
func Flush(w io.Writer) {
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}

// WriteEvent writes ev and flushes it together with any pending events.
func WriteEvent(w io.Writer, ev Event) error {
	if err := Write(w, ev); err != nil {
		return err
	}
	Flush(w)
	return nil
}

// SetHeaders prepares an HTTP response for streaming.
func SetHeaders(h http.Header) {
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
}
