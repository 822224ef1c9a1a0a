package rpc

import (
	"encoding/json"
	"sync"

	"hongeet.dev/backend/internal/utils"
	"hongeet.dev/backend/pkg/jsonrpc"
)

// Hub tracks connected WebSocket clients and their topic subscriptions.
type Hub struct {
	clients map[*Client]struct{}
	topics  map[string]map[*Client]struct{}
	mutex   sync.RWMutex
	logger  *utils.Logger
}

// NewHub creates a new hub.
func NewHub(logger *utils.Logger) *Hub {
	return &Hub{
		clients: make(map[*Client]struct{}),
		topics:  make(map[string]map[*Client]struct{}),
		logger:  logger.Named("hub"),
	}
}

func (h *Hub) register(c *Client) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	h.clients[c] = struct{}{}
}

func (h *Hub) unregister(c *Client) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	delete(h.clients, c)
	for topic, subs := range h.topics {
		delete(subs, c)
		if len(subs) == 0 {
			delete(h.topics, topic)
		}
	}
}

func (h *Hub) subscribe(c *Client, topic string) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if _, ok := h.clients[c]; !ok {
		return
	}
	subs, ok := h.topics[topic]
	if !ok {
		subs = make(map[*Client]struct{})
		h.topics[topic] = subs
	}
	subs[c] = struct{}{}
}

// Publish sends a notification to every subscriber of topic and returns how many were reached.
func (h *Hub) Publish(topic, method string, params any) int {
	h.mutex.RLock()
	subs := make([]*Client, 0, len(h.topics[topic]))
	for c := range h.topics[topic] {
		subs = append(subs, c)
	}
	h.mutex.RUnlock()

	if len(subs) == 0 {
		return 0
	}

	req, err := jsonrpc.NewNotification(method, params)
	if err != nil {
		h.logger.Error("Failed to build notification", err, "method", method)
		return 0
	}
	message, err := json.Marshal(req)
	if err != nil {
		h.logger.Error("Failed to encode notification", err, "method", method)
		return 0
	}

	sent := 0
	for _, c := range subs {
		if c.enqueue(message) {
			sent++
		}
	}
	return sent
}

// Drop removes every subscription to topic.
func (h *Hub) Drop(topic string) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	delete(h.topics, topic)
}

// Count returns the number of connected clients.
func (h *Hub) Count() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

// closeAll disconnects every client.
func (h *Hub) closeAll() {
	h.mutex.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mutex.RUnlock()

	for _, c := range clients {
		c.close()
	}
}
