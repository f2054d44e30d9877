package websocket

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/dom/blueming-client/internal/events"
)

const busBuffer = 64

// Subscriber is the part of the event bus the hub listens on.
type Subscriber interface {
	Subscribe(buffer int, topics ...events.Topic) (<-chan events.Event, func())
}

// Hub pushes bus events to every connected UI.
type Hub struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	events     <-chan events.Event
	cancel     func()
	stop       chan struct{}
	stopOnce   sync.Once
	done       chan struct{} // closed when Run() exits
	stopped    bool
	seq        uint64
	logger     *slog.Logger
	mu         sync.RWMutex
}

// NewHub subscribes to bus immediately so nothing published between
// construction and Run is lost.
func NewHub(bus Subscriber, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	ch, cancel := bus.Subscribe(busBuffer, ForwardedTopics()...)
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		events:     ch,
		cancel:     cancel,
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
		logger:     logger,
	}
}

func (h *Hub) Run() {
	defer close(h.done)

	for {
		select {
		case <-h.stop:
			h.cancel()
			h.mu.Lock()
			h.stopped = true
			for client := range h.clients {
				client.Close()
			}
			h.clients = make(map[*Client]bool)
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			if !h.stopped {
				h.clients[client] = true
			}
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				client.Close()
			}
			h.mu.Unlock()

		case evt, ok := <-h.events:
			if !ok {
				// Bus closed; keep serving registrations until Stop.
				h.events = nil
				continue
			}
			h.broadcast(evt)
		}
	}
}

func (h *Hub) broadcast(evt events.Event) {
	msg, err := MessageFromEvent(evt)
	if err != nil {
		h.logger.Error("[hub.broadcast] failed to build message",
			slog.String("topic", string(evt.Topic)),
			slog.String("error", err.Error()),
		)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.seq++
	msg.Seq = h.seq
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("[hub.broadcast] failed to marshal message", slog.String("error", err.Error()))
		return
	}
	for client := range h.clients {
		if !client.trySend(data) {
			h.logger.Warn("[hub.broadcast] client buffer full, message dropped",
				slog.String("client_id", client.id),
				slog.String("type", string(msg.Type)),
			)
		}
	}
}

// Stop shuts the hub down and closes every client. It blocks until Run
// has returned.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() {
		close(h.stop)
	})
	<-h.done
}

func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
		client.Close()
	}
}

// Unregister safely unregisters a client, handling the case where the hub may be stopped.
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
