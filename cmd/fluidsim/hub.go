package main

import (
	_ "embed"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

//go:embed index.html
var indexHTML []byte

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// pointerMessage is a drag reported by a browser client, in normalized
// surface coordinates with y pointing up.
type pointerMessage struct {
	X  float64 `json:"x"`
	Y  float64 `json:"y"`
	DX float64 `json:"dx"`
	DY float64 `json:"dy"`
}

// hub fans encoded frames out to websocket clients and collects their
// pointer input.
type hub struct {
	log *slog.Logger

	mu      sync.RWMutex
	clients map[*websocket.Conn]*sync.Mutex

	input chan pointerMessage
}

func newHub(log *slog.Logger) *hub {
	return &hub{
		log:     log,
		clients: make(map[*websocket.Conn]*sync.Mutex),
		input:   make(chan pointerMessage, 64),
	}
}

func (h *hub) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write(indexHTML)
	})
	mux.HandleFunc("/ws", h.serveWS)
	return mux
}

// Clients returns the number of connected clients.
func (h *hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *hub) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("fluidsim: websocket upgrade", "err", err)
		return
	}
	defer conn.Close()

	h.mu.Lock()
	h.clients[conn] = &sync.Mutex{}
	h.mu.Unlock()
	h.log.Info("fluidsim: client connected", "remote", r.RemoteAddr)
	defer func() {
		h.mu.Lock()
		delete(h.clients, conn)
		h.mu.Unlock()
		h.log.Info("fluidsim: client disconnected", "remote", r.RemoteAddr)
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var msg pointerMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			h.log.Debug("fluidsim: bad pointer message", "err", err)
			continue
		}
		select {
		case h.input <- msg:
		default:
		}
	}
}

// Broadcast sends one binary frame to every client. Clients that fail the
// write are dropped.
func (h *hub) Broadcast(frame []byte) {
	var failed []*websocket.Conn
	h.mu.RLock()
	for conn, mu := range h.clients {
		mu.Lock()
		err := conn.WriteMessage(websocket.BinaryMessage, frame)
		mu.Unlock()
		if err != nil {
			h.log.Debug("fluidsim: websocket write", "err", err)
			failed = append(failed, conn)
		}
	}
	h.mu.RUnlock()

	if len(failed) == 0 {
		return
	}
	h.mu.Lock()
	for _, conn := range failed {
		conn.Close()
		delete(h.clients, conn)
	}
	h.mu.Unlock()
}

// Pending drains queued pointer input without blocking.
func (h *hub) Pending() []pointerMessage {
	var out []pointerMessage
	for {
		select {
		case msg := <-h.input:
			out = append(out, msg)
		default:
			return out
		}
	}
}
