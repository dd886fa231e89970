package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/wordforge/challenge-service/internal/domain"
)

// Message types
const (
	MessageTypeLeaderboardUpdate = "leaderboard_update"
	MessageTypeChallengeCreated  = "challenge_created"
	MessageTypeSubscribe         = "subscribe"
	MessageTypeUnsubscribe       = "unsubscribe"
	MessageTypePing              = "ping"
	MessageTypePong              = "pong"
	MessageTypeError             = "error"
)

// Message represents a WebSocket message
type Message struct {
	Type        string    `json:"type"`
	ChallengeID string    `json:"challenge_id,omitempty"`
	Data        any       `json:"data,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// LeaderboardUpdate contains the daily board state for broadcast
type LeaderboardUpdate struct {
	ChallengeID  int64                `json:"challenge_id"`
	Entries      []domain.RankedEntry `json:"entries"`
	TotalPlayers int64                `json:"total_players"`
}

// Hub maintains the set of active clients and broadcasts messages.
// Clients subscribe per challenge for board updates; challenge_created
// announcements go to everyone.
type Hub struct {
	// Registered clients by challenge ID
	clients map[string]map[*Client]bool

	// All connected clients
	allClients map[*Client]bool

	register    chan *Client
	unregister  chan *Client
	broadcast   chan *Message
	subscribe   chan *subscriptionRequest
	unsubscribe chan *subscriptionRequest

	mu     sync.RWMutex
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

type subscriptionRequest struct {
	client      *Client
	challengeID string
}

// NewHub creates a new Hub
func NewHub(logger *slog.Logger) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		clients:     make(map[string]map[*Client]bool),
		allClients:  make(map[*Client]bool),
		register:    make(chan *Client),
		unregister:  make(chan *Client),
		broadcast:   make(chan *Message, 256),
		subscribe:   make(chan *subscriptionRequest, 64),
		unsubscribe: make(chan *subscriptionRequest, 64),
		logger:      logger,
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Run starts the hub's main loop
func (h *Hub) Run() {
	h.logger.Info("websocket hub started")
	for {
		select {
		case <-h.ctx.Done():
			h.logger.Info("websocket hub stopping")
			return

		case client := <-h.register:
			h.mu.Lock()
			h.allClients[client] = true
			h.mu.Unlock()
			h.logger.Debug("client registered", "client_id", client.id)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.allClients[client]; ok {
				delete(h.allClients, client)
				for chID, clients := range h.clients {
					if _, ok := clients[client]; ok {
						delete(clients, client)
						if len(clients) == 0 {
							delete(h.clients, chID)
						}
					}
				}
				close(client.send)
			}
			h.mu.Unlock()
			h.logger.Debug("client unregistered", "client_id", client.id)

		case req := <-h.subscribe:
			h.mu.Lock()
			if _, ok := h.clients[req.challengeID]; !ok {
				h.clients[req.challengeID] = make(map[*Client]bool)
			}
			h.clients[req.challengeID][req.client] = true
			h.mu.Unlock()
			h.logger.Debug("client subscribed", "client_id", req.client.id, "challenge_id", req.challengeID)

		case req := <-h.unsubscribe:
			h.mu.Lock()
			if clients, ok := h.clients[req.challengeID]; ok {
				delete(clients, req.client)
				if len(clients) == 0 {
					delete(h.clients, req.challengeID)
				}
			}
			h.mu.Unlock()
			h.logger.Debug("client unsubscribed", "client_id", req.client.id, "challenge_id", req.challengeID)

		case message := <-h.broadcast:
			h.broadcastMessage(message)
		}
	}
}

// Stop stops the hub
func (h *Hub) Stop() {
	h.cancel()
}

// broadcastMessage sends a message to subscribed clients, or to everyone
// when the message carries no challenge ID.
func (h *Hub) broadcastMessage(message *Message) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	data, err := json.Marshal(message)
	if err != nil {
		h.logger.Error("failed to marshal message", "error", err)
		return
	}

	if message.ChallengeID != "" {
		if clients, ok := h.clients[message.ChallengeID]; ok {
			for client := range clients {
				select {
				case client.send <- data:
				default:
					h.logger.Warn("client buffer full, skipping", "client_id", client.id)
				}
			}
		}
		return
	}

	for client := range h.allClients {
		select {
		case client.send <- data:
		default:
			h.logger.Warn("client buffer full, skipping", "client_id", client.id)
		}
	}
}

// BroadcastLeaderboardUpdate pushes the current daily board to clients
// watching a challenge.
func (h *Hub) BroadcastLeaderboardUpdate(challengeID int64, entries []domain.RankedEntry, totalPlayers int64) {
	message := &Message{
		Type:        MessageTypeLeaderboardUpdate,
		ChallengeID: strconv.FormatInt(challengeID, 10),
		Data: LeaderboardUpdate{
			ChallengeID:  challengeID,
			Entries:      entries,
			TotalPlayers: totalPlayers,
		},
		Timestamp: time.Now(),
	}

	select {
	case h.broadcast <- message:
	default:
		h.logger.Warn("broadcast channel full, dropping message")
	}
}

// BroadcastChallengeCreated announces a freshly created challenge to all
// connected clients.
func (h *Hub) BroadcastChallengeCreated(challenge *domain.Challenge) {
	message := &Message{
		Type:      MessageTypeChallengeCreated,
		Data:      challenge,
		Timestamp: time.Now(),
	}

	select {
	case h.broadcast <- message:
	default:
		h.logger.Warn("broadcast channel full, dropping message")
	}
}

// Register adds a client to the hub
func (h *Hub) Register(client *Client) {
	h.register <- client
}

// Unregister removes a client from the hub
func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

// Subscribe adds a client to a challenge subscription
func (h *Hub) Subscribe(client *Client, challengeID string) {
	h.subscribe <- &subscriptionRequest{
		client:      client,
		challengeID: challengeID,
	}
}

// Unsubscribe removes a client from a challenge subscription
func (h *Hub) Unsubscribe(client *Client, challengeID string) {
	h.unsubscribe <- &subscriptionRequest{
		client:      client,
		challengeID: challengeID,
	}
}

// GetTotalConnections returns the total number of connected clients
func (h *Hub) GetTotalConnections() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.allClients)
}
