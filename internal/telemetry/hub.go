// Package telemetry collects diagnostic events from the transmit path and
// fans them out to subscribers and HTTP clients. The sink block reports
// lifecycle events here; advisory hardware failures stay on the logger.
package telemetry

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/eapache/queue"
)

const defaultHistoryLimit = 500

// Event is one diagnostic entry from the transmit path.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	Level     string    `json:"level"`
	Message   string    `json:"message"`
}

// Reporter captures diagnostic events.
type Reporter interface {
	LogEvent(level, message string)
}

// Hub stores bounded event history and fans out live updates to subscribers.
type Hub struct {
	mu           sync.RWMutex
	history      *queue.Queue
	historyLimit int
	subscribers  map[chan Event]struct{}
}

// NewHub builds a hub keeping at most historyLimit events; non-positive
// limits fall back to the default.
func NewHub(historyLimit int) *Hub {
	if historyLimit <= 0 {
		historyLimit = defaultHistoryLimit
	}
	return &Hub{
		history:      queue.New(),
		historyLimit: historyLimit,
		subscribers:  make(map[chan Event]struct{}),
	}
}

// LogEvent implements Reporter and records a new event.
func (h *Hub) LogEvent(level, message string) {
	ev := Event{Timestamp: time.Now(), Level: level, Message: message}

	h.mu.Lock()
	h.history.Add(ev)
	for h.history.Length() > h.historyLimit {
		h.history.Remove()
	}
	for ch := range h.subscribers {
		select {
		case ch <- ev:
		default:
		}
	}
	h.mu.Unlock()
}

// History returns a copy of the stored events, oldest first.
func (h *Hub) History() []Event {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]Event, 0, h.history.Length())
	for i := 0; i < h.history.Length(); i++ {
		out = append(out, h.history.Get(i).(Event))
	}
	return out
}

// Subscribe registers a listener for live events. The returned cancel func
// must be called exactly once.
func (h *Hub) Subscribe() (chan Event, func()) {
	ch := make(chan Event, 16)
	h.mu.Lock()
	h.subscribers[ch] = struct{}{}
	h.mu.Unlock()
	cancel := func() {
		h.mu.Lock()
		delete(h.subscribers, ch)
		close(ch)
		h.mu.Unlock()
	}
	return ch, cancel
}

// MultiReporter fans out events to multiple destinations.
type MultiReporter []Reporter

// LogEvent forwards the event to each configured reporter.
func (m MultiReporter) LogEvent(level, message string) {
	for _, r := range m {
		if r != nil {
			r.LogEvent(level, message)
		}
	}
}

func (h *Hub) handleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(h.History())
}

func (h *Hub) handleLive(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch, cancel := h.Subscribe()
	defer cancel()

	// Replay existing history for immediate display.
	for _, ev := range h.History() {
		writeSSE(w, ev)
	}
	flusher.Flush()

	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return
			}
			writeSSE(w, ev)
			flusher.Flush()
		case <-r.Context().Done():
			return
		}
	}
}

func writeSSE(w http.ResponseWriter, ev Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "data: %s\n\n", payload)
}
