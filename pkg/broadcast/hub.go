package broadcast

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/harunnryd/cleanline/pkg/errorsx"
	"github.com/harunnryd/cleanline/pkg/logging"
	"github.com/harunnryd/cleanline/pkg/metrics"
)

const writeWait = 10 * time.Second

// Conn is the subset of *websocket.Conn the hub needs.
type Conn interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// Sink receives every broadcast record in addition to socket observers.
// Publish must not block.
type Sink interface {
	Publish(rec EventRecord, payload []byte)
	Close() error
}

type Hub struct {
	mu        sync.Mutex
	observers map[string]*observer
	sinks     []Sink
	buffer    int
	obs       metrics.Observer
	log       *slog.Logger
}

func NewHub(buffer int, obs metrics.Observer, log *slog.Logger, sinks ...Sink) *Hub {
	if buffer <= 0 {
		buffer = 64
	}
	if obs == nil {
		obs = metrics.NoopObserver{}
	}
	return &Hub{
		observers: make(map[string]*observer),
		sinks:     sinks,
		buffer:    buffer,
		obs:       obs,
		log:       logging.NewComponentLogger(log, "broadcast"),
	}
}

// Register adds a connected observer and returns its id. The hub owns conn
// from here on and closes it when the peer goes away.
func (h *Hub) Register(conn Conn) string {
	o := &observer{
		id:     uuid.NewString(),
		conn:   conn,
		sendCh: make(chan []byte, h.buffer),
	}
	h.mu.Lock()
	h.observers[o.id] = o
	count := len(h.observers)
	h.mu.Unlock()
	h.log.Info("observer_connected", "observer_id", o.id, "observers", count)
	go h.writeLoop(o)
	go h.readLoop(o)
	return o.id
}

// Broadcast delivers rec to every connected observer without waiting on any
// of them. Observers with a full queue miss this record.
func (h *Hub) Broadcast(rec EventRecord) {
	if h == nil {
		return
	}
	payload, err := json.Marshal(rec)
	if err != nil {
		h.log.Error("broadcast_marshal_failed", "reason", string(errorsx.ReasonBroadcast), "error", err)
		return
	}
	h.mu.Lock()
	targets := make([]*observer, 0, len(h.observers))
	for _, o := range h.observers {
		targets = append(targets, o)
	}
	h.mu.Unlock()

	delivered := 0
	for _, o := range targets {
		if o.enqueue(payload) {
			delivered++
			continue
		}
		metrics.Record(h.obs, metrics.EventBroadcastDropped, 1, map[string]string{"type": rec.Type})
	}
	for _, s := range h.sinks {
		s.Publish(rec, payload)
	}
	metrics.Record(h.obs, metrics.EventBroadcast, float64(delivered), map[string]string{
		"type":    rec.Type,
		"channel": rec.Channel,
	})
}

// Count returns the number of connected observers.
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.observers)
}

// Close disconnects all observers and closes the sinks.
func (h *Hub) Close() error {
	h.mu.Lock()
	list := h.observers
	h.observers = make(map[string]*observer)
	h.mu.Unlock()
	for _, o := range list {
		o.close()
	}
	var firstErr error
	for _, s := range h.sinks {
		if err := s.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (h *Hub) remove(id string) {
	h.mu.Lock()
	o := h.observers[id]
	delete(h.observers, id)
	h.mu.Unlock()
	if o != nil {
		o.close()
		h.log.Info("observer_disconnected", "observer_id", id)
	}
}

func (h *Hub) writeLoop(o *observer) {
	for msg := range o.sendCh {
		_ = o.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := o.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			h.remove(o.id)
			return
		}
	}
}

// readLoop discards client messages; its only job is noticing disconnects.
func (h *Hub) readLoop(o *observer) {
	for {
		if _, _, err := o.conn.ReadMessage(); err != nil {
			h.remove(o.id)
			return
		}
	}
}

type observer struct {
	id     string
	conn   Conn
	sendCh chan []byte
	mu     sync.Mutex
	closed bool
}

func (o *observer) enqueue(b []byte) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return false
	}
	select {
	case o.sendCh <- b:
		return true
	default:
		return false
	}
}

func (o *observer) close() {
	o.mu.Lock()
	if !o.closed {
		o.closed = true
		close(o.sendCh)
	}
	o.mu.Unlock()
	_ = o.conn.Close()
}
