package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	// sseRingBufferSize bounds the events kept for Last-Event-ID replay.
	sseRingBufferSize = 1000
	sseClientBuffer   = 64
	sseKeepalive      = 15 * time.Second
)

type sseEvent struct {
	ID    uint64
	Topic string
	Data  []byte
}

func (e *sseEvent) writeTo(w io.Writer) {
	fmt.Fprintf(w, "id:%d\nevent:%s\ndata:%s\n\n", e.ID, e.Topic, e.Data)
}

type sseClient struct {
	topics []string
	ch     chan *sseEvent
}

func (c *sseClient) wants(topic string) bool {
	if len(c.topics) == 0 {
		return true
	}
	for _, p := range c.topics {
		if matchTopicPattern(p, topic) {
			return true
		}
	}
	return false
}

// sseHub is the events.Publisher behind GET /v1/events/stream. Every
// domain event gets the next sequence number, lands in a fixed ring for
// reconnecting readers, and goes to each live client whose filter matches.
// A client that falls behind loses events rather than stalling writers.
type sseHub struct {
	mu      sync.Mutex
	seq     uint64
	ring    []sseEvent // oldest first once full, rotated by head
	head    int
	clients map[*sseClient]struct{}
}

func newSSEHub() *sseHub {
	return &sseHub{
		ring:    make([]sseEvent, 0, sseRingBufferSize),
		clients: make(map[*sseClient]struct{}),
	}
}

func (h *sseHub) Publish(_ context.Context, topic string, event any) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", topic, err)
	}
	h.broadcast(topic, data)
	return nil
}

func (h *sseHub) Close() error { return nil }

func (h *sseHub) broadcast(topic string, data []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.seq++
	evt := sseEvent{ID: h.seq, Topic: topic, Data: data}
	if len(h.ring) < sseRingBufferSize {
		h.ring = append(h.ring, evt)
	} else {
		h.ring[h.head] = evt
		h.head = (h.head + 1) % sseRingBufferSize
	}

	for c := range h.clients {
		if !c.wants(topic) {
			continue
		}
		select {
		case c.ch <- &evt:
		default:
		}
	}
}

func (h *sseHub) subscribe(topics []string) *sseClient {
	c := &sseClient{topics: topics, ch: make(chan *sseEvent, sseClientBuffer)}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	return c
}

func (h *sseHub) unsubscribe(c *sseClient) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
}

// eventsSince returns the retained events after lastID, oldest first.
// Events that have rotated out of the ring are gone.
func (h *sseHub) eventsSince(lastID uint64) []*sseEvent {
	h.mu.Lock()
	defer h.mu.Unlock()

	var out []*sseEvent
	n := len(h.ring)
	for i := range n {
		evt := h.ring[(h.head+i)%n]
		if evt.ID > lastID {
			out = append(out, &evt)
		}
	}
	return out
}

// matchTopicPattern matches dot-separated topics the way NATS subjects do:
// "*" is exactly one segment and a trailing ">" is one or more.
func matchTopicPattern(pattern, topic string) bool {
	if pattern == topic {
		return true
	}
	pat := strings.Split(pattern, ".")
	seg := strings.Split(topic, ".")
	for i, p := range pat {
		if p == ">" {
			return i < len(seg)
		}
		if i >= len(seg) || (p != "*" && p != seg[i]) {
			return false
		}
	}
	return len(pat) == len(seg)
}

func parseTopics(q string) []string {
	var topics []string
	for _, t := range strings.Split(q, ",") {
		if t = strings.TrimSpace(t); t != "" {
			topics = append(topics, t)
		}
	}
	return topics
}

// handleEventStream serves GET /v1/events/stream. ?topics= takes a comma
// list of patterns; Last-Event-ID replays what the ring still holds.
func (s *NewsServer) handleEventStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	client := s.sseHub.subscribe(parseTopics(r.URL.Query().Get("topics")))
	defer s.sseHub.unsubscribe(client)

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	if last, err := strconv.ParseUint(r.Header.Get("Last-Event-ID"), 10, 64); err == nil {
		for _, evt := range s.sseHub.eventsSince(last) {
			if client.wants(evt.Topic) {
				evt.writeTo(w)
			}
		}
	}
	flusher.Flush()

	keepalive := time.NewTicker(sseKeepalive)
	defer keepalive.Stop()
	for {
		select {
		case <-r.Context().Done():
			return
		case evt := <-client.ch:
			evt.writeTo(w)
		case <-keepalive.C:
			io.WriteString(w, ":keepalive\n\n")
		}
		flusher.Flush()
	}
}
