package gateway

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// MessageSink receives everything the transport produces: raw command
// bytes and disconnect notices, both tagged with the stable
// per-connection id. The session implements it.
type MessageSink interface {
	HandleMessage(connID string, data []byte)
	HandleDisconnect(connID string)
}

// ConnectionManager owns every live WebSocket connection. Sends are
// fire-and-forget writes into per-connection buffered channels, so
// ordering is preserved per destination and a slow consumer is
// dropped rather than allowed to stall the session.
type ConnectionManager struct {
	connections map[string]*Connection
	mu          sync.RWMutex

	upgrader websocket.Upgrader
	config   ConnectionConfig
	sink     MessageSink
}

// Connection represents one client channel.
type Connection struct {
	ID      string
	Conn    *websocket.Conn
	Send    chan []byte
	Manager *ConnectionManager

	ConnectedAt time.Time
}

// ConnectionConfig holds transport tuning knobs.
type ConnectionConfig struct {
	WriteTimeout   time.Duration
	ReadTimeout    time.Duration
	PingInterval   time.Duration
	MaxMessageSize int64
	SendBuffer     int
	CheckOrigin    func(r *http.Request) bool
}

// DefaultConnectionConfig returns the tuning used when the config
// file does not override it.
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		WriteTimeout:   10 * time.Second,
		ReadTimeout:    60 * time.Second,
		PingInterval:   30 * time.Second,
		MaxMessageSize: 4096,
		SendBuffer:     256,
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}
}

func NewConnectionManager(config ConnectionConfig) *ConnectionManager {
	return &ConnectionManager{
		connections: make(map[string]*Connection),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     config.CheckOrigin,
		},
		config: config,
	}
}

// SetSink wires the consumer of inbound traffic. Must be called
// before the manager accepts its first connection.
func (cm *ConnectionManager) SetSink(sink MessageSink) {
	cm.sink = sink
}

// UpgradeConnection upgrades an HTTP request to a WebSocket and
// starts its read/write pumps. The assigned connection id is the
// stable identifier every other component uses for this channel.
func (cm *ConnectionManager) UpgradeConnection(w http.ResponseWriter, r *http.Request) (string, error) {
	conn, err := cm.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return "", fmt.Errorf("upgrade connection: %w", err)
	}

	connection := &Connection{
		ID:          uuid.New().String(),
		Conn:        conn,
		Send:        make(chan []byte, cm.config.SendBuffer),
		Manager:     cm,
		ConnectedAt: time.Now(),
	}

	cm.mu.Lock()
	cm.connections[connection.ID] = connection
	total := len(cm.connections)
	cm.mu.Unlock()

	go connection.writePump()
	go connection.readPump()

	log.Info().
		Str("connection_id", connection.ID).
		Str("remote_addr", r.RemoteAddr).
		Int("total_connections", total).
		Msg("websocket connection established")

	return connection.ID, nil
}

// Broadcast sends an event to every live connection.
func (cm *ConnectionManager) Broadcast(evt Event) {
	data, err := json.Marshal(evt)
	if err != nil {
		log.Error().Err(err).Str("event_type", string(evt.Type)).Msg("failed to marshal broadcast event")
		return
	}

	cm.mu.RLock()
	targets := make([]*Connection, 0, len(cm.connections))
	for _, conn := range cm.connections {
		targets = append(targets, conn)
	}
	cm.mu.RUnlock()

	for _, conn := range targets {
		cm.deliver(conn, data)
	}
}

// SendTo sends an event to a single connection. Unknown ids are a
// no-op; the target may have disconnected between lookup and send.
func (cm *ConnectionManager) SendTo(connID string, evt Event) {
	cm.mu.RLock()
	conn, ok := cm.connections[connID]
	cm.mu.RUnlock()
	if !ok {
		return
	}

	data, err := json.Marshal(evt)
	if err != nil {
		log.Error().Err(err).Str("event_type", string(evt.Type)).Msg("failed to marshal event")
		return
	}
	cm.deliver(conn, data)
}

// CloseConnection force-closes a connection, used by the kick path.
// The read pump notices the close and reports the disconnect through
// the sink like any other drop.
func (cm *ConnectionManager) CloseConnection(connID string) {
	cm.mu.RLock()
	conn, ok := cm.connections[connID]
	cm.mu.RUnlock()
	if !ok {
		return
	}
	log.Info().Str("connection_id", connID).Msg("force-closing connection")
	conn.Conn.Close()
}

// ConnectionCount returns the number of live connections.
func (cm *ConnectionManager) ConnectionCount() int {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return len(cm.connections)
}

func (cm *ConnectionManager) deliver(conn *Connection, data []byte) {
	select {
	case conn.Send <- data:
	default:
		log.Warn().
			Str("connection_id", conn.ID).
			Msg("send buffer full, closing connection")
		cm.unregister(conn)
		conn.Conn.Close()
	}
}

func (cm *ConnectionManager) unregister(conn *Connection) {
	cm.mu.Lock()
	_, exists := cm.connections[conn.ID]
	if exists {
		delete(cm.connections, conn.ID)
		close(conn.Send)
	}
	cm.mu.Unlock()

	if exists {
		log.Info().Str("connection_id", conn.ID).Msg("connection unregistered")
	}
}

// writePump drains the send channel onto the wire and keeps the
// connection alive with pings.
func (c *Connection) writePump() {
	ticker := time.NewTicker(c.Manager.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Debug().Err(err).Str("connection_id", c.ID).Msg("write failed")
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Debug().Err(err).Str("connection_id", c.ID).Msg("ping failed")
				return
			}
		}
	}
}

// readPump reads client commands and hands them to the sink. It exits
// on any read error, which covers both normal closes and kicks.
func (c *Connection) readPump() {
	defer func() {
		c.Manager.unregister(c)
		c.Conn.Close()
		c.Manager.sink.HandleDisconnect(c.ID)
	}()

	c.Conn.SetReadLimit(c.Manager.config.MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				log.Debug().Err(err).Str("connection_id", c.ID).Msg("unexpected websocket close")
			}
			return
		}
		c.Manager.sink.HandleMessage(c.ID, message)
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	}
}
