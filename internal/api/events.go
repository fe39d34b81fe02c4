package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/hlog"
	"github.com/snarg/voice2txt/internal/transcribe"
)

const (
	replaySize       = 256
	subscriberBuffer = 64
)

// sseEvent is one encoded runner event with its stream id.
type sseEvent struct {
	ID   uint64
	Type string
	Data []byte
}

// EventHub fans runner events out to SSE subscribers and keeps a short
// history for Last-Event-ID replay.
type EventHub struct {
	mu     sync.Mutex
	nextID uint64
	recent []sseEvent
	subs   map[chan sseEvent]struct{}
}

func NewEventHub() *EventHub {
	return &EventHub{subs: make(map[chan sseEvent]struct{})}
}

// Publish records e and delivers it to every subscriber. A subscriber whose
// buffer is full misses the event rather than stalling the runner.
func (h *EventHub) Publish(e transcribe.Event) {
	data, err := json.Marshal(e)
	if err != nil {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	ev := sseEvent{ID: h.nextID, Type: e.Type, Data: data}
	h.recent = append(h.recent, ev)
	if len(h.recent) > replaySize {
		h.recent = h.recent[len(h.recent)-replaySize:]
	}
	for ch := range h.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// subscribe returns a channel of new events plus the events after lastID.
func (h *EventHub) subscribe(lastID uint64) (chan sseEvent, []sseEvent, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	var replay []sseEvent
	if lastID > 0 {
		for _, ev := range h.recent {
			if ev.ID > lastID {
				replay = append(replay, ev)
			}
		}
	}

	ch := make(chan sseEvent, subscriberBuffer)
	h.subs[ch] = struct{}{}
	cancel := func() {
		h.mu.Lock()
		delete(h.subs, ch)
		h.mu.Unlock()
	}
	return ch, replay, cancel
}

type EventsHandler struct {
	hub       *EventHub
	keepalive time.Duration
}

func NewEventsHandler(hub *EventHub) *EventsHandler {
	return &EventsHandler{hub: hub, keepalive: 15 * time.Second}
}

// StreamEvents opens an SSE connection and pushes runner events.
func (h *EventsHandler) StreamEvents(w http.ResponseWriter, r *http.Request) {
	if h.hub == nil {
		WriteError(w, http.StatusServiceUnavailable, "event streaming not available")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		WriteError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	var lastID uint64
	if v := r.Header.Get("Last-Event-ID"); v != "" {
		lastID, _ = strconv.ParseUint(v, 10, 64)
	}

	// Subscribe before the headers go out so no event falls in between.
	ch, replay, cancel := h.hub.subscribe(lastID)
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	for _, ev := range replay {
		writeSSE(w, ev)
	}
	flusher.Flush()

	keepalive := time.NewTicker(h.keepalive)
	defer keepalive.Stop()

	log := hlog.FromRequest(r)
	log.Info().Msg("SSE client connected")

	for {
		select {
		case <-r.Context().Done():
			log.Info().Msg("SSE client disconnected")
			return
		case ev := <-ch:
			writeSSE(w, ev)
			flusher.Flush()
		case <-keepalive.C:
			fmt.Fprint(w, ": keepalive\n\n")
			flusher.Flush()
		}
	}
}

func writeSSE(w http.ResponseWriter, ev sseEvent) {
	fmt.Fprintf(w, "id: %d\nevent: %s\ndata: %s\n\n", ev.ID, ev.Type, ev.Data)
}

// Routes registers event routes on the given router.
func (h *EventsHandler) Routes(r chi.Router) {
	r.Get("/events/stream", h.StreamEvents)
}
