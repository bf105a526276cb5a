package http

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/aretw0/topograph/internal/logging"
)

// StreamManager fans committed changes out to the SSE subscribers of a channel.
type StreamManager struct {
	mu          sync.RWMutex
	subscribers map[string]map[chan<- string]struct{} // ChannelID -> Set of Channels
	logger      *slog.Logger
}

func NewStreamManager() *StreamManager {
	return &StreamManager{
		subscribers: make(map[string]map[chan<- string]struct{}),
		logger:      logging.NewNop(),
	}
}

func (sm *StreamManager) Subscribe(channelID string) (chan string, func()) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	ch := make(chan string, 10)
	if _, ok := sm.subscribers[channelID]; !ok {
		sm.subscribers[channelID] = make(map[chan<- string]struct{})
	}
	sm.subscribers[channelID][ch] = struct{}{}

	return ch, func() {
		sm.mu.Lock()
		defer sm.mu.Unlock()
		if subs, ok := sm.subscribers[channelID]; ok {
			delete(subs, ch)
			close(ch)
			if len(subs) == 0 {
				delete(sm.subscribers, channelID)
			}
		}
	}
}

func (sm *StreamManager) Broadcast(channelID string, msg string) {
	if msg == "" {
		return
	}
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	subs, ok := sm.subscribers[channelID]
	if !ok {
		return
	}
	sm.logger.Debug("Broadcasting change", "channel_id", channelID, "subscribers", len(subs), "payload_size", len(msg))
	for ch := range subs {
		select {
		case ch <- msg:
		default:
			// Slow client.
			sm.logger.Warn("SSE: Client buffer full, dropping message", "channel_id", channelID)
		}
	}
}

// SubscribeEvents handles GET /channels/{channelID}/events (SSE).
// The optional "watch" query parameter filters by entity: node, edge or diagram.
// An edge watch also receives node events that touched edges, such as the
// incident edges removed by a node delete.
func (s *Server) SubscribeEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		s.logger.Error("SubscribeEvents: Streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	channelID := chi.URLParam(r, "channelID")
	s.logger.Info("SSE: Subscribing to channel changes", "channel_id", channelID)

	ch, cancel := s.Streams.Subscribe(channelID)
	defer cancel()

	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()

	var watch []string
	if raw := r.URL.Query().Get("watch"); raw != "" {
		for _, field := range strings.Split(raw, ",") {
			watch = append(watch, strings.TrimSpace(field))
		}
	}

	for {
		select {
		case <-r.Context().Done():
			s.logger.Info("SSE Client Disconnected", "channel_id", channelID)
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			if len(watch) > 0 && !matches(msg, watch) {
				continue
			}
			fmt.Fprintf(w, "data: %s\n\n", msg)
			flusher.Flush()
		}
	}
}

func matches(msg string, watch []string) bool {
	var ev struct {
		Type    string            `json:"type"`
		Node    json.RawMessage   `json:"node"`
		Edge    json.RawMessage   `json:"edge"`
		Edges   []json.RawMessage `json:"edges"`
		Removed []string          `json:"removed"`
	}
	if err := json.Unmarshal([]byte(msg), &ev); err != nil {
		return true
	}
	for _, field := range watch {
		switch field {
		case "node":
			if len(ev.Node) > 0 {
				return true
			}
		case "edge":
			// Node mutations carry the edges they relabelled or removed.
			if len(ev.Edge) > 0 || len(ev.Edges) > 0 || len(ev.Removed) > 0 {
				return true
			}
		case "diagram":
			if ev.Type == "diagram_saved" {
				return true
			}
		}
	}
	return false
}
