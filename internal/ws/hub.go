// Package ws pushes live plant state to WebSocket subscribers: the per-tick
// plant_update aggregate to every client, and an initial_state snapshot to
// equipment-scoped subscriptions on connect.
package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/steelstack/millwatch/internal/models"
	"github.com/steelstack/millwatch/internal/state"
)

const (
	// writeTimeout is the deadline for a single write to a client.
	writeTimeout = 10 * time.Second

	// pongWait is how long to wait for a pong response before treating the
	// connection as dead.
	pongWait = 60 * time.Second

	// pingPeriod controls how often the server sends WebSocket ping frames.
	// Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// sendBufSize is the per-client outgoing message buffer depth.
	sendBufSize = 16
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// Allow all origins: the dashboard is served from a different port.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// PlantUpdate is the aggregate message broadcast once per simulation tick.
type PlantUpdate struct {
	Type           string    `json:"type"`
	Timestamp      time.Time `json:"timestamp"`
	HighRiskCount  int       `json:"high_risk_count"`
	TotalEquipment int       `json:"total_equipment"`
}

// initialState is sent to an equipment subscription on connect so the client
// renders without waiting for the next tick.
type initialState struct {
	Type        string                `json:"type"`
	EquipID     string                `json:"equip_id"`
	Status      string                `json:"status"`
	HealthScore int                   `json:"health_score"`
	Probability float64               `json:"failure_probability"`
	Readings    models.SensorReadings `json:"readings"`
}

// Hub tracks WebSocket clients and their equipment subscriptions. Broadcasts
// are non-blocking: a client whose send buffer is full is disconnected rather
// than allowed to stall the simulation tick.
type Hub struct {
	log   *slog.Logger
	store *state.Store

	mu        sync.RWMutex
	clients   map[*client]struct{}
	equipment map[string]map[*client]struct{}
}

// client represents one connected WebSocket client.
type client struct {
	conn        *websocket.Conn
	send        chan []byte
	equipmentID string
}

// NewHub creates a Hub that resolves initial_state snapshots from st.
func NewHub(log *slog.Logger, st *state.Store) *Hub {
	return &Hub{
		log:       log,
		store:     st,
		clients:   make(map[*client]struct{}),
		equipment: make(map[string]map[*client]struct{}),
	}
}

// Run blocks until ctx is cancelled, then closes all active connections.
// Broadcasting is driven externally by the simulation loop.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()
	h.closeAll()
}

// ServePlant upgrades a plant-wide subscription. Blocks until the connection
// closes.
func (h *Hub) ServePlant(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, "")
}

// ServeEquipment upgrades an equipment-scoped subscription and sends the
// unit's initial_state first. An unknown id still connects; it simply gets
// no initial snapshot. Blocks until the connection closes.
func (h *Hub) ServeEquipment(w http.ResponseWriter, r *http.Request, equipmentID string) {
	h.serve(w, r, equipmentID)
}

func (h *Hub) serve(w http.ResponseWriter, r *http.Request, equipmentID string) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// upgrader has already written the error response.
		return
	}

	c := &client{
		conn:        conn,
		send:        make(chan []byte, sendBufSize),
		equipmentID: equipmentID,
	}
	h.register(c)
	defer h.unregister(c)

	if equipmentID != "" {
		if eq, ok := h.store.Get(equipmentID); ok {
			if data, err := json.Marshal(initialState{
				Type:        "initial_state",
				EquipID:     eq.ID,
				Status:      eq.Status,
				HealthScore: eq.Risk.HealthScore,
				Probability: eq.Risk.Probability,
				Readings:    eq.Readings,
			}); err == nil {
				select {
				case c.send <- data:
				default:
				}
			}
		}
	}

	go c.writePump()
	c.readPump() // blocks until connection closes
}

// BroadcastPlantUpdate fans the tick aggregate out to every connected client.
func (h *Hub) BroadcastPlantUpdate(update PlantUpdate) {
	update.Type = "plant_update"
	data, err := json.Marshal(update)
	if err != nil {
		return
	}

	h.mu.RLock()
	targets := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		select {
		case c.send <- data:
		default:
			// Client's outgoing buffer is full: disconnect it.
			h.unregister(c)
		}
	}
}

// Stats reports the connection count and the number of equipment ids with at
// least one subscriber.
func (h *Hub) Stats() (connections, subscriptions int) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients), len(h.equipment)
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	if c.equipmentID != "" {
		subs := h.equipment[c.equipmentID]
		if subs == nil {
			subs = make(map[*client]struct{})
			h.equipment[c.equipmentID] = subs
		}
		subs[c] = struct{}{}
	}
	total := len(h.clients)
	h.mu.Unlock()
	h.log.Debug("ws client connected", "total", total, "equipment_id", c.equipmentID)
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	if c.equipmentID != "" {
		if subs, ok := h.equipment[c.equipmentID]; ok {
			delete(subs, c)
			if len(subs) == 0 {
				delete(h.equipment, c.equipmentID)
			}
		}
	}
	total := len(h.clients)
	h.mu.Unlock()
	h.log.Debug("ws client disconnected", "total", total)
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		close(c.send)
		delete(h.clients, c)
	}
	h.equipment = make(map[string]map[*client]struct{})
}

// writePump drains the client's send channel and forwards messages to the
// WebSocket connection. It also sends periodic ping frames. Runs in its own
// goroutine per client.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if !ok {
				// Channel was closed (hub is shutting down or client removed).
				c.conn.WriteMessage(websocket.CloseMessage, []byte{}) //nolint:errcheck
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump reads frames from the connection to process control messages
// (pong, close) and detect disconnects. Blocks until the connection closes.
func (c *client) readPump() {
	defer c.conn.Close()
	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			break
		}
	}
}
