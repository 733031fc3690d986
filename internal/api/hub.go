package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/kalambet/reqchat/internal/session"
)

const (
	sendBuffer   = 32
	writeTimeout = 5 * time.Second
)

// conn is one websocket subscribed to a session.
type conn struct {
	ws   *websocket.Conn
	send chan []byte
}

// Hub fans session events out to websocket subscribers. It implements
// session.Publisher; Publish never blocks and drops events for clients whose
// buffer is full.
type Hub struct {
	mu   sync.RWMutex
	subs map[string]map[*conn]struct{}
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[*conn]struct{})}
}

// Publish queues ev for every subscriber of sessionID.
func (h *Hub) Publish(sessionID string, ev session.Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		slog.Error("websocket marshal failed", "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.subs[sessionID] {
		select {
		case c.send <- data:
		default:
			slog.Debug("dropping event for slow websocket client", "session", sessionID, "type", ev.Type)
		}
	}
}

// ConnectionCount returns the number of subscribers of sessionID.
func (h *Hub) ConnectionCount(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[sessionID])
}

func (h *Hub) add(sessionID string, c *conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subs[sessionID] == nil {
		h.subs[sessionID] = make(map[*conn]struct{})
	}
	h.subs[sessionID][c] = struct{}{}
}

func (h *Hub) remove(sessionID string, c *conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.subs[sessionID], c)
	if len(h.subs[sessionID]) == 0 {
		delete(h.subs, sessionID)
	}
}

// serve streams events for sessionID until the client disconnects. The
// current snapshot is sent first.
func (h *Hub) serve(w http.ResponseWriter, r *http.Request, s *session.Session) {
	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		slog.Error("websocket accept failed", "error", err)
		return
	}
	defer ws.Close(websocket.StatusNormalClosure, "")

	c := &conn{ws: ws, send: make(chan []byte, sendBuffer)}
	h.add(s.ID(), c)
	defer h.remove(s.ID(), c)
	slog.Debug("websocket connected", "session", s.ID(), "remote", r.RemoteAddr)

	// CloseRead consumes control frames and cancels ctx once the peer goes away.
	ctx := ws.CloseRead(r.Context())

	initial, err := json.Marshal(session.Event{Type: session.EventState, Payload: s.Snapshot()})
	if err == nil {
		c.send <- initial
	}

	for {
		select {
		case <-ctx.Done():
			slog.Debug("websocket disconnected", "session", s.ID())
			return
		case data := <-c.send:
			if err := write(ctx, ws, data); err != nil {
				slog.Debug("websocket write failed", "session", s.ID(), "error", err)
				return
			}
		}
	}
}

func write(ctx context.Context, ws *websocket.Conn, data []byte) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return ws.Write(ctx, websocket.MessageText, data)
}

func handleEvents(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if deps.Hub == nil {
			httpError(w, http.StatusNotFound, "not_found_error", "event stream is disabled")
			return
		}
		s, ok := loadSession(deps, w, r)
		if !ok {
			return
		}
		deps.Hub.serve(w, r, s)
	}
}
