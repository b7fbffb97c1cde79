package stream

import (
	"context"
	"encoding/json"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const (
	channelPrefix = "recording:"
	channelSuffix = ":broadcast"
)

// Envelope is the frame pushed to every websocket watching a session.
type Envelope struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id"`
	Data      any    `json:"data"`
}

type Hub struct {
	origin  string
	redis   *redis.Client
	clients map[string]map[*Client]struct{}
	mu      sync.RWMutex
	log     *logrus.Entry
}

type Client struct {
	SessionID string
	Send      chan []byte
}

func NewHub(redisClient *redis.Client) *Hub {
	h := &Hub{
		origin:  uuid.NewString(),
		redis:   redisClient,
		clients: map[string]map[*Client]struct{}{},
		log:     logrus.WithField("component", "stream_hub"),
	}

	if redisClient != nil {
		go h.subscribeRedis()
	}
	return h
}

func (h *Hub) Register(sessionID string) *Client {
	client := &Client{
		SessionID: sessionID,
		Send:      make(chan []byte, 64),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[sessionID] == nil {
		h.clients[sessionID] = map[*Client]struct{}{}
	}
	h.clients[sessionID][client] = struct{}{}
	return client
}

func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if sessionClients, ok := h.clients[client.SessionID]; ok {
		delete(sessionClients, client)
		if len(sessionClients) == 0 {
			delete(h.clients, client.SessionID)
		}
	}
	close(client.Send)
}

// Watchers reports how many local sockets follow sessionID.
func (h *Hub) Watchers(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[sessionID])
}

// Publish wraps data in an Envelope and broadcasts it.
func (h *Hub) Publish(sessionID, kind string, data any) {
	payload, err := json.Marshal(Envelope{Type: kind, SessionID: sessionID, Data: data})
	if err != nil {
		h.log.WithError(err).WithField("type", kind).Error("encode stream envelope")
		return
	}
	h.Broadcast(sessionID, payload)
}

// Broadcast delivers to local sockets and, with redis configured, to other
// instances. Slow sockets drop frames rather than block the caller.
func (h *Hub) Broadcast(sessionID string, payload []byte) {
	h.deliver(sessionID, payload)

	if h.redis != nil {
		frame := append([]byte(h.origin+"|"), payload...)
		err := h.redis.Publish(context.Background(), redisChannel(sessionID), frame).Err()
		if err != nil {
			h.log.WithError(err).WithField("session_id", sessionID).Warn("redis publish failed")
		}
	}
}

func (h *Hub) deliver(sessionID string, payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients[sessionID] {
		select {
		case client.Send <- payload:
		default:
		}
	}
}

func (h *Hub) subscribeRedis() {
	ctx := context.Background()
	pubsub := h.redis.PSubscribe(ctx, channelPrefix+"*"+channelSuffix)
	defer pubsub.Close()

	for msg := range pubsub.Channel() {
		origin, payload, ok := strings.Cut(msg.Payload, "|")
		// frames from this instance were delivered locally already
		if !ok || origin == h.origin {
			continue
		}
		h.deliver(sessionIDFromChannel(msg.Channel), []byte(payload))
	}
}

func redisChannel(sessionID string) string {
	return channelPrefix + sessionID + channelSuffix
}

func sessionIDFromChannel(ch string) string {
	if len(ch) <= len(channelPrefix)+len(channelSuffix) ||
		!strings.HasPrefix(ch, channelPrefix) || !strings.HasSuffix(ch, channelSuffix) {
		return ""
	}
	return ch[len(channelPrefix) : len(ch)-len(channelSuffix)]
}
