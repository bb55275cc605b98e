package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/crismap/server/internal/render"
)

const (
	// Supported WebSocket protocol versions
	ProtocolVersion1 = "crismap-v1"

	// Default ping interval (30 seconds)
	defaultPingInterval = 30 * time.Second

	// Pong wait timeout (60 seconds)
	pongWait = 60 * time.Second

	// Write timeout (10 seconds)
	writeTimeout = 10 * time.Second

	sendBuffer = 64
)

// Message types sent to clients
const (
	MessageScene = "scene"
	MessagePong  = "pong"
	MessageError = "error"
)

// WebSocketMessage represents a WebSocket message
type WebSocketMessage struct {
	Type string          `json:"type"`
	ID   string          `json:"id,omitempty"`
	Data json.RawMessage `json:"data,omitempty"`
}

// WebSocketError represents an error message sent over WebSocket
type WebSocketError struct {
	Type    string `json:"type"`
	ID      string `json:"id,omitempty"`
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// ScenePayload is the data of a scene message
type ScenePayload struct {
	Visible bool              `json:"visible"`
	Scene   render.SceneState `json:"scene"`
}

type sceneClient struct {
	conn    *websocket.Conn
	version string
	send    chan []byte
	hub     *SceneHub
	closed  bool // guarded by hub.mu
}

// SceneHub pushes the rendered membrane scene to every connected map client.
// Clients get the full scene when they connect and again after every resync.
type SceneHub struct {
	clients    map[*sceneClient]bool
	broadcast  chan []byte
	register   chan *sceneClient
	unregister chan *sceneClient
	done       chan struct{}
	stopOnce   sync.Once
	mu         sync.RWMutex

	scene    *render.Scene
	sync     *render.Sync
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

// NewSceneHub creates a hub serving the given scene. sync may be nil, in which case
// the scene is reported as visible.
func NewSceneHub(scene *render.Scene, renderSync *render.Sync, allowedOrigins []string, logger *zap.Logger) *SceneHub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SceneHub{
		clients:    make(map[*sceneClient]bool),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *sceneClient),
		unregister: make(chan *sceneClient),
		done:       make(chan struct{}),
		scene:      scene,
		sync:       renderSync,
		logger:     logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return originAllowed(r.Header.Get("Origin"), allowedOrigins)
			},
		},
	}
}

// Run starts the hub's main loop. It returns when ctx is done, closing every client.
func (h *SceneHub) Run(ctx context.Context) {
	defer h.stop()
	for {
		select {
		case <-ctx.Done():
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			h.logger.Debug("WebSocket client registered", zap.String("version", client.version))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				client.close()
			}
			h.mu.Unlock()
			h.logger.Debug("WebSocket client unregistered")

		case message := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					// Slow client, drop it
					client.close()
					delete(h.clients, client)
				}
			}
			h.mu.Unlock()
		}
	}
}

func (h *SceneHub) stop() {
	h.stopOnce.Do(func() {
		close(h.done)
		h.mu.Lock()
		for client := range h.clients {
			client.close()
			delete(h.clients, client)
		}
		h.mu.Unlock()
	})
}

// Broadcast queues a message for every connected client
func (h *SceneHub) Broadcast(message []byte) {
	select {
	case h.broadcast <- message:
	case <-h.done:
	}
}

// BroadcastScene sends the current scene to every connected client
func (h *SceneHub) BroadcastScene() {
	message, err := h.sceneMessage("")
	if err != nil {
		h.logger.Error("Failed to marshal scene", zap.Error(err))
		return
	}
	h.Broadcast(message)
}

// ClientCount returns the number of connected clients
func (h *SceneHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Payload returns the scene as it is pushed to clients
func (h *SceneHub) Payload() ScenePayload {
	payload := ScenePayload{Visible: true, Scene: h.scene.State()}
	if h.sync != nil {
		payload.Visible = h.sync.Visible()
	}
	return payload
}

func (h *SceneHub) sceneMessage(id string) ([]byte, error) {
	data, err := json.Marshal(h.Payload())
	if err != nil {
		return nil, err
	}
	return json.Marshal(WebSocketMessage{Type: MessageScene, ID: id, Data: data})
}

// HandleWebSocket handles WebSocket connection upgrades
func (h *SceneHub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	requestedVersions := r.Header.Get("Sec-WebSocket-Protocol")
	selectedVersion := negotiateVersion(requestedVersions)
	if selectedVersion == "" {
		h.logger.Warn("WebSocket version negotiation failed", zap.String("requested", requestedVersions))
		http.Error(w, "Unsupported protocol version", http.StatusBadRequest)
		return
	}

	var responseHeaders http.Header
	if requestedVersions != "" {
		responseHeaders = http.Header{}
		responseHeaders.Set("Sec-WebSocket-Protocol", selectedVersion)
	}

	conn, err := h.upgrader.Upgrade(w, r, responseHeaders)
	if err != nil {
		// Upgrade already answered the request
		h.logger.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}

	client := &sceneClient{
		conn:    conn,
		version: selectedVersion,
		send:    make(chan []byte, sendBuffer),
		hub:     h,
	}

	// Queue the initial scene before the client can receive broadcasts
	if message, err := h.sceneMessage(""); err == nil {
		client.send <- message
	} else {
		h.logger.Error("Failed to marshal scene", zap.Error(err))
	}

	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

// negotiateVersion selects the highest supported protocol version
func negotiateVersion(requested string) string {
	if requested == "" {
		// Default to v1 if no version specified
		return ProtocolVersion1
	}

	requestedVersions := strings.Split(requested, ",")
	for i := range requestedVersions {
		requestedVersions[i] = strings.TrimSpace(requestedVersions[i])
	}

	// Supported versions in order (highest first)
	supportedVersions := []string{ProtocolVersion1}

	for _, supported := range supportedVersions {
		for _, candidate := range requestedVersions {
			if candidate == supported {
				return supported
			}
		}
	}

	return ""
}

// readPump handles incoming messages from the WebSocket connection
func (c *sceneClient) readPump() {
	logger := c.hub.logger
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(64 << 10)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		logger.Debug("Failed to set read deadline", zap.Error(err))
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, messageBytes, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Warn("WebSocket error", zap.Error(err))
			}
			return
		}

		var msg WebSocketMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			c.sendError("", "Invalid message format", "InvalidMessageFormat")
			continue
		}

		c.handleMessage(&msg)
	}
}

// writePump handles outgoing messages to the WebSocket connection.
// Each message goes out in its own frame.
func (c *sceneClient) writePump() {
	ticker := time.NewTicker(defaultPingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
				return
			}
			if !ok {
				// The hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage routes client messages
func (c *sceneClient) handleMessage(msg *WebSocketMessage) {
	switch msg.Type {
	case "ping":
		c.reply(WebSocketMessage{Type: MessagePong, ID: msg.ID})
	case "get_scene":
		message, err := c.hub.sceneMessage(msg.ID)
		if err != nil {
			c.sendError(msg.ID, "Scene unavailable", "InternalError")
			return
		}
		c.queue(message)
	default:
		c.sendError(msg.ID, "Unknown message type", "UnknownMessageType")
	}
}

func (c *sceneClient) reply(msg WebSocketMessage) {
	messageBytes, err := json.Marshal(msg)
	if err != nil {
		c.hub.logger.Error("Failed to marshal reply", zap.Error(err))
		return
	}
	c.queue(messageBytes)
}

// sendError sends an error message to the client
func (c *sceneClient) sendError(id, errorMsg, code string) {
	messageBytes, err := json.Marshal(WebSocketError{
		Type:    MessageError,
		ID:      id,
		Error:   errorMsg,
		Message: errorMsg,
		Code:    code,
	})
	if err != nil {
		c.hub.logger.Error("Failed to marshal error message", zap.Error(err))
		return
	}
	c.queue(messageBytes)
}

// close must be called with hub.mu held for writing
func (c *sceneClient) close() {
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// queue hands a message to the write pump without blocking the read loop
func (c *sceneClient) queue(message []byte) {
	c.hub.mu.RLock()
	defer c.hub.mu.RUnlock()
	if c.closed {
		return
	}
	select {
	case c.send <- message:
	default:
		c.hub.logger.Debug("Dropping message for slow client")
	}
}
