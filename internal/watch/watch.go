// Package watch pushes pipeline progress snapshots to websocket
// subscribers, so a UI can follow a run without polling the process.
package watch

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"testforge/internal/pipeline"
)

const (
	writeWait = 10 * time.Second
	pongWait  = 60 * time.Second
	pingEvery = (pongWait * 9) / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		return true
	},
}

// Hub fans progress snapshots out to connected clients. Publish is safe
// to call from the pipeline goroutine; slow clients drop updates rather
// than back-pressuring the run.
type Hub struct {
	log *zap.Logger

	mu   sync.Mutex
	subs map[chan pipeline.Progress]struct{}
	last *pipeline.Progress
}

func NewHub(log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{
		log:  log,
		subs: make(map[chan pipeline.Progress]struct{}),
	}
}

// Publish records the snapshot and forwards it to every subscriber.
// It is the pipeline.WithNotify callback.
func (h *Hub) Publish(p pipeline.Progress) {
	h.mu.Lock()
	h.last = &p
	for ch := range h.subs {
		select {
		case ch <- p:
		default:
			// subscriber is behind; it will catch up on the next update
		}
	}
	h.mu.Unlock()
}

func (h *Hub) subscribe() (chan pipeline.Progress, *pipeline.Progress) {
	ch := make(chan pipeline.Progress, 16)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	last := h.last
	h.mu.Unlock()
	return ch, last
}

func (h *Hub) unsubscribe(ch chan pipeline.Progress) {
	h.mu.Lock()
	delete(h.subs, ch)
	h.mu.Unlock()
}

// ServeHTTP upgrades the connection and streams snapshots, starting with
// the latest one so a client joining mid-run sees current state
// immediately.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	if err := conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		return
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	// Reader goroutine only services control frames and detects close.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ch, last := h.subscribe()
	defer h.unsubscribe(ch)

	if last != nil {
		if err := writeJSON(conn, *last); err != nil {
			return
		}
	}

	ticker := time.NewTicker(pingEvery)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case p := <-ch:
			if err := writeJSON(conn, p); err != nil {
				return
			}
		case <-ticker.C:
			if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func writeJSON(conn *websocket.Conn, p pipeline.Progress) error {
	if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return conn.WriteJSON(p)
}

// Serve runs the hub on addr until the server fails. It is started as a
// background goroutine by the CLI when --watch-addr is set.
func (h *Hub) Serve(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/ws", h)
	h.log.Info("watch: serving progress websocket", zap.String("addr", addr))
	return http.ListenAndServe(addr, mux)
}
