package sync

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const writeTimeout = 2 * time.Second

// Hub fans events out to TCP subscribers (every event) and websocket
// subscribers (events they own).
type Hub struct {
	log *zap.Logger

	mu        sync.Mutex
	clients   map[net.Conn]struct{}
	wsClients map[*websocket.Conn]string
}

type Stats struct {
	TCPClients int `json:"tcp_clients"`
	WSClients  int `json:"ws_clients"`
}

func NewHub(log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{
		log:       log,
		clients:   make(map[net.Conn]struct{}),
		wsClients: make(map[*websocket.Conn]string),
	}
}

func (h *Hub) Add(conn net.Conn) {
	h.mu.Lock()
	h.clients[conn] = struct{}{}
	h.mu.Unlock()
}

func (h *Hub) Remove(conn net.Conn) {
	h.mu.Lock()
	delete(h.clients, conn)
	h.mu.Unlock()
	_ = conn.Close()
}

// AddWS subscribes ws to the events of userID.
func (h *Hub) AddWS(ws *websocket.Conn, userID string) {
	h.mu.Lock()
	h.wsClients[ws] = userID
	h.mu.Unlock()
}

func (h *Hub) RemoveWS(ws *websocket.Conn) {
	h.mu.Lock()
	delete(h.wsClients, ws)
	h.mu.Unlock()
	_ = ws.Close()
}

func (h *Hub) BroadcastJSON(v any) {
	b, err := json.Marshal(v)
	if err != nil {
		h.log.Warn("broadcast marshal failed", zap.Error(err))
		return
	}
	b = append(b, '\n')

	owner := ""
	if o, ok := v.(Owned); ok {
		owner = o.OwnerID()
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for c := range h.clients {
		_ = c.SetWriteDeadline(time.Now().Add(writeTimeout))
		w := bufio.NewWriter(c)
		if _, err := w.Write(b); err != nil {
			h.dropTCP(c, err)
			continue
		}
		if err := w.Flush(); err != nil {
			h.dropTCP(c, err)
			continue
		}
	}

	for ws, userID := range h.wsClients {
		if owner != "" && userID != owner {
			continue
		}
		_ = ws.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := ws.WriteMessage(websocket.TextMessage, b); err != nil {
			h.log.Debug("ws client dropped", zap.String("user", userID), zap.Error(err))
			_ = ws.Close()
			delete(h.wsClients, ws)
		}
	}
}

// dropTCP must be called with mu held.
func (h *Hub) dropTCP(c net.Conn, err error) {
	h.log.Debug("tcp client dropped", zap.Stringer("remote", c.RemoteAddr()), zap.Error(err))
	_ = c.Close()
	delete(h.clients, c)
}

func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) Stats() Stats {
	h.mu.Lock()
	defer h.mu.Unlock()
	return Stats{
		TCPClients: len(h.clients),
		WSClients:  len(h.wsClients),
	}
}

// CloseAll disconnects every subscriber.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		_ = c.Close()
		delete(h.clients, c)
	}
	for ws := range h.wsClients {
		_ = ws.Close()
		delete(h.wsClients, ws)
	}
}

// Welcome greets a connection that is about to be added; the client
// count includes it.
func (h *Hub) Welcome(conn net.Conn) {
	msg := fmt.Sprintf("{\"type\":\"welcome\",\"message\":\"connected\",\"clients\":%d}\n", h.Count()+1)
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	_, _ = conn.Write([]byte(msg))
}
