package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"redline-be/internal/pkg/logger"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	ErrClientGone = errors.New("client left")
	ErrClientSlow = errors.New("client send buffer full")
)

// RoomChannel carries room frames between instances.
const RoomChannel = "room_events"

type clusterFrame struct {
	Instance string `json:"instance"`
	Room     string `json:"room"`
	Origin   string `json:"origin"`
	Type     int    `json:"type"`
	Message  []byte `json:"message"`
}

type Hub struct {
	// Room -> connected clients of this instance
	rooms map[string]map[*Client]bool

	register   chan *Client
	unregister chan *Client

	mu sync.RWMutex

	// Redis connection for cross-instance fan-out, optional
	rdb        *redis.Client
	instanceID string
	subscribed chan struct{}

	logger logger.ILogger
}

func NewHub(rdb *redis.Client, log logger.ILogger) *Hub {
	return &Hub{
		rooms:      make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		rdb:        rdb,
		instanceID: uuid.NewString(),
		subscribed: make(chan struct{}),
		logger:     log,
	}
}

func (h *Hub) Run(ctx context.Context) {
	if h.rdb != nil {
		go h.subscribeToRedis(ctx)
	} else {
		close(h.subscribed)
	}

	for {
		select {
		case <-ctx.Done():
			return

		case client := <-h.register:
			h.mu.Lock()
			if h.rooms[client.Room] == nil {
				h.rooms[client.Room] = make(map[*Client]bool)
			}
			h.rooms[client.Room][client] = true
			h.mu.Unlock()
			h.logger.Info("Hub", "Client joined room", map[string]interface{}{"room": client.Room, "user_id": client.UserID, "client_id": client.ID})

		case client := <-h.unregister:
			h.mu.Lock()
			if clients, ok := h.rooms[client.Room]; ok && clients[client] {
				delete(clients, client)
				close(client.Send)
				if len(clients) == 0 {
					delete(h.rooms, client.Room)
				}
				h.logger.Info("Hub", "Client left room", map[string]interface{}{"room": client.Room, "user_id": client.UserID, "client_id": client.ID})
			}
			h.mu.Unlock()
		}
	}
}

// Subscribed is closed once cross-instance delivery is live.
func (h *Hub) Subscribed() <-chan struct{} {
	return h.subscribed
}

func (h *Hub) Register(c *Client) {
	h.register <- c
}

func (h *Hub) Unregister(c *Client) {
	h.unregister <- c
}

// Clients returns how many local clients are in room.
func (h *Hub) Clients(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

// Broadcast sends a frame to every client in room except the one whose ID is
// origin, here and on every other instance.
func (h *Hub) Broadcast(room string, messageType int, data []byte, origin string) {
	h.deliver(room, Frame{Type: messageType, Data: data}, origin)

	if h.rdb == nil {
		return
	}
	payload, err := json.Marshal(clusterFrame{
		Instance: h.instanceID,
		Room:     room,
		Origin:   origin,
		Type:     messageType,
		Message:  data,
	})
	if err != nil {
		return
	}
	if err := h.rdb.Publish(context.Background(), RoomChannel, payload).Err(); err != nil {
		h.logger.Warn("Hub", "Redis publish failed", map[string]interface{}{"room": room, "error": err.Error()})
	}
}

// BroadcastJSON marshals v and sends it as a text frame.
func (h *Hub) BroadcastJSON(room string, v interface{}, origin string) {
	data, err := json.Marshal(v)
	if err != nil {
		h.logger.Error("Hub", "Failed to marshal frame", map[string]interface{}{"room": room, "error": err.Error()})
		return
	}
	h.Broadcast(room, TextMessage, data, origin)
}

// SendTo queues a frame for a single client of this instance. A client whose
// buffer is full is dropped, the same as in a room broadcast.
func (h *Hub) SendTo(c *Client, messageType int, data []byte) error {
	h.mu.RLock()
	if !h.rooms[c.Room][c] {
		h.mu.RUnlock()
		return ErrClientGone
	}
	select {
	case c.Send <- Frame{Type: messageType, Data: data}:
		h.mu.RUnlock()
		return nil
	default:
	}
	h.mu.RUnlock()

	h.logger.Warn("Hub", "Client Send buffer full, dropping client", map[string]interface{}{"room": c.Room, "client_id": c.ID})
	go h.Unregister(c)
	return ErrClientSlow
}

func (h *Hub) deliver(room string, frame Frame, origin string) {
	var slow []*Client

	h.mu.RLock()
	for client := range h.rooms[room] {
		if client.ID == origin {
			continue
		}
		select {
		case client.Send <- frame:
		default:
			slow = append(slow, client)
		}
	}
	h.mu.RUnlock()

	for _, client := range slow {
		h.logger.Warn("Hub", "Client Send buffer full, dropping client", map[string]interface{}{"room": room, "client_id": client.ID})
		go h.Unregister(client)
	}
}

func (h *Hub) subscribeToRedis(ctx context.Context) {
	pubsub := h.rdb.Subscribe(ctx, RoomChannel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		h.logger.Error("Hub", "Redis subscribe failed", map[string]interface{}{"error": err.Error()})
		close(h.subscribed)
		return
	}
	close(h.subscribed)

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var frame clusterFrame
			if err := json.Unmarshal([]byte(msg.Payload), &frame); err != nil {
				h.logger.Warn("Hub", "Redis msg parse error", map[string]interface{}{"error": err.Error()})
				continue
			}
			if frame.Instance == h.instanceID {
				continue
			}
			h.deliver(frame.Room, Frame{Type: frame.Type, Data: frame.Message}, frame.Origin)
		}
	}
}
