package realtime

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// Event types pushed to dashboards.
const (
	EventPlayerCreated = "player.created"
	EventTeamCreated   = "team.created"
	EventMatchesSaved  = "matches.saved"
)

// Message defines the shape of our real-time data.
type Message struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

type client struct {
	userID int64
	ch     chan []byte
}

// Broker is the central hub for managing SSE client connections.
// Every connection gets its own id, so one user may follow the dashboard
// from several tabs.
type Broker struct {
	clients map[string]*client
	mu      sync.RWMutex
	logger  *slog.Logger
}

// NewBroker creates a new Broker instance.
func NewBroker(logger *slog.Logger) *Broker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Broker{
		clients: make(map[string]*client),
		logger:  logger,
	}
}

// AddClient registers a new connection for the user and returns its id and
// the channel its messages arrive on.
func (b *Broker) AddClient(userID int64) (string, <-chan []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := uuid.NewString()
	c := &client{userID: userID, ch: make(chan []byte, 10)}
	b.clients[id] = c
	b.logger.Debug("SSE client connected", "client", id, "user", userID)
	return id, c.ch
}

// RemoveClient unregisters a connection and closes its channel.
func (b *Broker) RemoveClient(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if c, ok := b.clients[id]; ok {
		delete(b.clients, id)
		close(c.ch)
		b.logger.Debug("SSE client disconnected", "client", id, "user", c.userID)
	}
}

// ClientCount reports the number of open connections.
func (b *Broker) ClientCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}

// Broadcast sends a message to every connected client. A client whose
// buffer is full misses the message rather than blocking the caller.
func (b *Broker) Broadcast(message Message) {
	jsonMsg, err := json.Marshal(message)
	if err != nil {
		b.logger.Error("could not marshal SSE message", "type", message.Type, "error", err)
		return
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	for id, c := range b.clients {
		select {
		case c.ch <- jsonMsg:
		default:
			b.logger.Warn("SSE channel is full, dropping message", "client", id, "type", message.Type)
		}
	}
}
