// Package streaming frames server-sent events for the chat endpoint and
// parses them back for clients and tests.
package streaming

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
)

// ErrFlushUnsupported is returned when the response writer cannot flush.
var ErrFlushUnsupported = errors.New("streaming: response writer does not support flushing")

// Event is one server-sent event.
type Event struct {
	Event string `json:"event,omitempty"`
	Data  string `json:"data"`
	ID    string `json:"id,omitempty"`
	Retry int    `json:"retry,omitempty"` // milliseconds
}

// Writer writes events to an HTTP response, flushing after each one. It is
// safe for concurrent use.
type Writer struct {
	mu sync.Mutex
	w  http.ResponseWriter
	f  http.Flusher
}

// NewWriter sets the event-stream headers and commits the response status.
func NewWriter(w http.ResponseWriter) (*Writer, error) {
	f, ok := w.(http.Flusher)
	if !ok {
		return nil, ErrFlushUnsupported
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream; charset=utf-8")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	f.Flush()

	return &Writer{w: w, f: f}, nil
}

// Send writes e and flushes it.
func (sw *Writer) Send(e Event) error {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	if _, err := sw.w.Write(Encode(e)); err != nil {
		return fmt.Errorf("streaming: write event: %w", err)
	}
	sw.f.Flush()
	return nil
}

// SendJSON sends v marshalled as the data of an event named event.
func (sw *Writer) SendJSON(event string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("streaming: marshal %s: %w", event, err)
	}
	return sw.Send(Event{Event: event, Data: string(b)})
}

// Comment writes a comment line, used as a keep-alive.
func (sw *Writer) Comment(text string) error {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	if _, err := fmt.Fprintf(sw.w, ": %s\n\n", text); err != nil {
		return fmt.Errorf("streaming: write comment: %w", err)
	}
	sw.f.Flush()
	return nil
}

// Encode renders e in wire format. Multi-line data becomes one data field per
// line.
func Encode(e Event) []byte {
	var b bytes.Buffer
	if e.ID != "" {
		b.WriteString("id: " + e.ID + "\n")
	}
	if e.Event != "" {
		b.WriteString("event: " + e.Event + "\n")
	}
	if e.Retry > 0 {
		b.WriteString("retry: " + strconv.Itoa(e.Retry) + "\n")
	}
	data := strings.ReplaceAll(e.Data, "\r\n", "\n")
	for _, line := range strings.Split(data, "\n") {
		b.WriteString("data: " + line + "\n")
	}
	b.WriteString("\n")
	return b.Bytes()
}

// ParseEvents parses an event stream. Comments and unknown fields are
// skipped; a trailing event without a blank line is still returned.
func ParseEvents(data []byte) []Event {
	if len(data) == 0 {
		return nil
	}

	var (
		events    []Event
		current   Event
		dataLines []string
		seen      bool
	)
	flush := func() {
		if seen {
			current.Data = strings.Join(dataLines, "\n")
			events = append(events, current)
		}
		current, dataLines, seen = Event{}, nil, false
	}

	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSuffix(scanner.Text(), "\r")
		if line == "" {
			flush()
			continue
		}
		if strings.HasPrefix(line, ":") {
			continue
		}

		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")

		switch field {
		case "event":
			current.Event, seen = value, true
		case "data":
			dataLines, seen = append(dataLines, value), true
		case "id":
			current.ID, seen = value, true
		case "retry":
			if n, err := strconv.Atoi(value); err == nil && n >= 0 {
				current.Retry = n
			}
		}
	}
	flush()

	return events
}
