// Package sse implements a minimal client for server-sent event streams:
// one JSON payload per event, no custom framing.
package sse

import (
	"bufio"
	"bytes"
	"io"
	"log"
	"strings"
	"sync"
)

// Event is one message received on a stream. Data holds the raw JSON payload.
type Event struct {
	Data []byte
}

// Subscription is an explicit handle over one open stream. Events are
// delivered in server-emission order on Events(); the channel is closed when
// the stream ends for any reason. There is no auto-reconnect.
type Subscription struct {
	body   io.ReadCloser
	events chan Event

	stopOnce sync.Once
	done     chan struct{}
}

// Subscribe starts reading events from body. The subscription takes ownership
// of body and closes it when stopped or when the stream fails.
func Subscribe(name string, body io.ReadCloser) *Subscription {
	sub := &Subscription{
		body:   body,
		events: make(chan Event, 16),
		done:   make(chan struct{}),
	}
	go sub.readLoop(name)
	return sub
}

// Events returns the channel carrying incoming events. Closed on stream end.
func (s *Subscription) Events() <-chan Event {
	return s.events
}

// Stop closes the stream. Safe to call more than once and after the stream
// has already failed.
func (s *Subscription) Stop() {
	s.stopOnce.Do(func() {
		close(s.done)
		s.body.Close()
	})
}

func (s *Subscription) readLoop(name string) {
	defer close(s.events)
	defer s.Stop()

	scanner := bufio.NewScanner(s.body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var data bytes.Buffer
	for scanner.Scan() {
		line := scanner.Text()

		// A blank line dispatches the accumulated event.
		if line == "" {
			if data.Len() > 0 {
				payload := make([]byte, data.Len())
				copy(payload, data.Bytes())
				data.Reset()
				select {
				case s.events <- Event{Data: payload}:
				case <-s.done:
					return
				}
			}
			continue
		}

		if strings.HasPrefix(line, ":") {
			// Comment / keep-alive line.
			continue
		}
		if value, ok := strings.CutPrefix(line, "data:"); ok {
			if data.Len() > 0 {
				data.WriteByte('\n')
			}
			data.WriteString(strings.TrimPrefix(value, " "))
		}
		// Other fields (event:, id:, retry:) are not used by this backend.
	}

	if err := scanner.Err(); err != nil {
		select {
		case <-s.done:
			// Stopped locally, the read error is expected.
		default:
			log.Printf("SSE: %s stream closed: %v", name, err)
		}
	}
}
