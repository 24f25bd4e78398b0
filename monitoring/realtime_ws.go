// Package monitoring streams training progress to websocket clients and
// keeps per-dataset counters.
package monitoring

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"marginperceptron/logging"
	"marginperceptron/ml"
)

// MessageType identifies the payload of a Message.
type MessageType string

const (
	TrainingUpdate MessageType = "training_update"
	GuessShrink    MessageType = "guess_shrink"
	TrainingDone   MessageType = "training_done"
)

// Message is the envelope sent to clients.
type Message struct {
	Type      MessageType     `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
	ID        string          `json:"id"`
}

// TrainingEvent is the payload of every training message.
type TrainingEvent struct {
	RunID   string   `json:"run_id"`
	Dataset string   `json:"dataset"`
	Event   ml.Event `json:"event"`
	State   string   `json:"state"`
}

// ClientMessage subscribes a client to one dataset. A client without
// subscriptions receives every dataset.
type ClientMessage struct {
	Type  string `json:"type"` // subscribe, unsubscribe
	Topic string `json:"topic"`
}

type outbound struct {
	topic   string
	payload []byte
}

// Client is one websocket connection.
type Client struct {
	conn     *websocket.Conn
	send     chan []byte
	clientID string

	mu            sync.RWMutex
	subscriptions map[string]bool
}

func (c *Client) wants(topic string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.subscriptions) == 0 || c.subscriptions[topic]
}

// Hub fans messages out to connected clients.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan outbound
	register   chan *Client
	unregister chan *Client
	mu         sync.RWMutex
	upgrader   websocket.Upgrader
	ctx        context.Context
	cancel     context.CancelFunc
	logger     *logging.Logger
}

// NewHub creates a hub; call Start to run it.
func NewHub() *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan outbound, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		upgrader: websocket.Upgrader{
			CheckOrigin:     func(r *http.Request) bool { return true },
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		ctx:    ctx,
		cancel: cancel,
		logger: logging.GetLogger(logging.MODULE_MONITOR),
	}
}

// Start runs the hub loop until Stop is called.
func (h *Hub) Start() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			total := len(h.clients)
			h.mu.Unlock()
			h.logger.Infow("client connected", "client", client.clientID, "total", total)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			total := len(h.clients)
			h.mu.Unlock()
			h.logger.Infow("client disconnected", "client", client.clientID, "total", total)

		case msg := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				if !client.wants(msg.topic) {
					continue
				}
				select {
				case client.send <- msg.payload:
				default:
					close(client.send)
					delete(h.clients, client)
				}
			}
			h.mu.Unlock()

		case <-h.ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			h.mu.Unlock()
			return
		}
	}
}

// Stop shuts the hub down and disconnects every client.
func (h *Hub) Stop() {
	h.cancel()
}

// ClientCount returns the number of registered clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// HandleWebSocket upgrades the request and registers the connection.
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warnw("websocket upgrade failed", "error", err)
		return
	}

	client := &Client{
		conn:          conn,
		send:          make(chan []byte, 256),
		clientID:      uuid.NewString(),
		subscriptions: make(map[string]bool),
	}
	if topic := r.URL.Query().Get("dataset"); topic != "" {
		client.subscriptions[topic] = true
	}

	select {
	case h.register <- client:
	case <-h.ctx.Done():
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump(h)
}

// Publish queues a message for every client subscribed to topic. Messages
// are dropped when the queue is full so that training never blocks.
func (h *Hub) Publish(topic string, msgType MessageType, data interface{}) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}
	msg, err := json.Marshal(Message{
		Type:      msgType,
		Timestamp: time.Now(),
		Data:      payload,
		ID:        uuid.NewString(),
	})
	if err != nil {
		return err
	}
	select {
	case h.broadcast <- outbound{topic: topic, payload: msg}:
	default:
		h.logger.Warnw("broadcast queue is full, dropping message", "topic", topic)
	}
	return nil
}

// Observer returns an ml.Observer that publishes the events of one run.
func (h *Hub) Observer(runID, dataset string) ml.Observer {
	return ml.ObserverFunc(func(e ml.Event) {
		msgType := TrainingUpdate
		state := ml.StateScanning
		switch e.Kind {
		case ml.EventShrink:
			msgType = GuessShrink
		case ml.EventConverged:
			msgType, state = TrainingDone, ml.StateConverged
		case ml.EventAborted:
			msgType, state = TrainingDone, ml.StateAborted
		}
		err := h.Publish(dataset, msgType, TrainingEvent{
			RunID:   runID,
			Dataset: dataset,
			Event:   e,
			State:   state.String(),
		})
		if err != nil {
			h.logger.Warnw("publish training event failed", "run", runID, "error", err)
		}
	})
}

func (c *Client) writePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) readPump(h *Hub) {
	defer func() {
		select {
		case h.unregister <- c:
		case <-h.ctx.Done():
		}
		c.conn.Close()
	}()

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Warnw("websocket read error", "client", c.clientID, "error", err)
			}
			return
		}
		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		c.mu.Lock()
		switch msg.Type {
		case "subscribe":
			c.subscriptions[msg.Topic] = true
		case "unsubscribe":
			delete(c.subscriptions, msg.Topic)
		}
		c.mu.Unlock()
	}
}
