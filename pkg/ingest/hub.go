// Package ingest accepts WebSocket connections from remote camera agents
// and hands their frames to the rest of the service.
package ingest

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/williamjhyland/gemini-vision-service/pkg/protocol"
)

// AgentConnection represents a connected camera agent
type AgentConnection struct {
	ID        string
	Conn      *websocket.Conn
	Connected time.Time
	LastSeen  time.Time

	mu sync.Mutex
}

// Send sends a message to the agent
func (a *AgentConnection) Send(msg *protocol.Message) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	data, err := msg.Bytes()
	if err != nil {
		return err
	}

	return a.Conn.WriteMessage(websocket.TextMessage, data)
}

// Hub manages WebSocket connections from camera agents
type Hub struct {
	mu     sync.RWMutex
	agents map[string]*AgentConnection
	logger *slog.Logger

	onFrame func(agentID string, frame *protocol.FrameData)

	// Stats
	messagesReceived atomic.Uint64
	messagesSent     atomic.Uint64
	framesReceived   atomic.Uint64
}

// NewHub creates a new agent hub
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		agents: make(map[string]*AgentConnection),
		logger: logger,
	}
}

// OnFrame sets the callback for incoming camera frames
func (h *Hub) OnFrame(callback func(agentID string, frame *protocol.FrameData)) {
	h.mu.Lock()
	h.onFrame = callback
	h.mu.Unlock()
}

// RegisterRoutes registers WebSocket routes on a Fiber app
func (h *Hub) RegisterRoutes(app *fiber.App) {
	// WebSocket upgrade middleware
	app.Use("/ws/agent", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			c.Locals("allowed", true)
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	// Agent connection endpoint
	app.Get("/ws/agent", websocket.New(h.handleAgent))
	app.Get("/ws/agent/:id", websocket.New(h.handleAgent))
}

// handleAgent handles an agent WebSocket connection
func (h *Hub) handleAgent(c *websocket.Conn) {
	// Get agent ID from path or generate one
	agentID := c.Params("id")
	if agentID == "" {
		agentID = uuid.NewString()
	}

	agent := &AgentConnection{
		ID:        agentID,
		Conn:      c,
		Connected: time.Now(),
		LastSeen:  time.Now(),
	}

	// Register agent
	h.mu.Lock()
	h.agents[agentID] = agent
	agentCount := len(h.agents)
	h.mu.Unlock()
	agentGauge.Set(float64(agentCount))

	h.logger.Info("agent connected", "agent", agentID, "total", agentCount)

	defer func() {
		h.mu.Lock()
		delete(h.agents, agentID)
		agentCount := len(h.agents)
		h.mu.Unlock()
		agentGauge.Set(float64(agentCount))

		h.logger.Info("agent disconnected", "agent", agentID, "total", agentCount)
	}()

	// Read loop
	for {
		_, data, err := c.ReadMessage()
		if err != nil {
			h.logger.Debug("agent read failed", "agent", agentID, "error", err)
			return
		}

		agent.mu.Lock()
		agent.LastSeen = time.Now()
		agent.mu.Unlock()

		h.messagesReceived.Add(1)
		messageCounter.Inc()
		h.handleMessage(agentID, data)
	}
}

// handleMessage processes an incoming message from an agent
func (h *Hub) handleMessage(agentID string, data []byte) {
	msg, err := protocol.ParseMessage(data)
	if err != nil {
		h.logger.Warn("unparseable agent message", "agent", agentID, "error", err)
		return
	}

	h.mu.RLock()
	frameCb := h.onFrame
	h.mu.RUnlock()

	switch msg.Type {
	case protocol.TypeFrame:
		h.framesReceived.Add(1)
		frameCounter.Inc()
		if frameCb != nil {
			frame, err := msg.GetFrameData()
			if err != nil {
				h.logger.Warn("bad frame payload", "agent", agentID, "error", err)
				return
			}
			frameCb(agentID, frame)
		}

	case protocol.TypePing:
		// Respond with pong
		h.SendPong(agentID, msg.Timestamp)
	}
}

// SendPong sends a pong response to an agent
func (h *Hub) SendPong(agentID string, pingTS int64) error {
	msg, err := protocol.NewPongMessage("", pingTS, time.Now().UnixMilli())
	if err != nil {
		return err
	}
	return h.sendToAgent(agentID, msg)
}

// sendToAgent sends a message to a specific agent
func (h *Hub) sendToAgent(agentID string, msg *protocol.Message) error {
	h.mu.RLock()
	agent, ok := h.agents[agentID]
	h.mu.RUnlock()

	if !ok {
		return fiber.NewError(fiber.StatusNotFound, "agent not connected")
	}

	h.messagesSent.Add(1)
	return agent.Send(msg)
}

// GetAgent returns an agent connection by ID
func (h *Hub) GetAgent(agentID string) *AgentConnection {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.agents[agentID]
}

// AgentCount returns the number of connected agents
func (h *Hub) AgentCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.agents)
}

// Stats contains hub statistics
type Stats struct {
	AgentCount       int    `json:"agent_count"`
	MessagesReceived uint64 `json:"messages_received"`
	MessagesSent     uint64 `json:"messages_sent"`
	FramesReceived   uint64 `json:"frames_received"`
}

// GetStats returns hub statistics
func (h *Hub) GetStats() Stats {
	return Stats{
		AgentCount:       h.AgentCount(),
		MessagesReceived: h.messagesReceived.Load(),
		MessagesSent:     h.messagesSent.Load(),
		FramesReceived:   h.framesReceived.Load(),
	}
}

// AgentInfo contains info about a connected agent
type AgentInfo struct {
	ID        string    `json:"id"`
	Connected time.Time `json:"connected"`
	LastSeen  time.Time `json:"last_seen"`
}

// GetAgentInfos returns info about all connected agents
func (h *Hub) GetAgentInfos() []AgentInfo {
	h.mu.RLock()
	defer h.mu.RUnlock()

	infos := make([]AgentInfo, 0, len(h.agents))
	for _, a := range h.agents {
		a.mu.Lock()
		infos = append(infos, AgentInfo{
			ID:        a.ID,
			Connected: a.Connected,
			LastSeen:  a.LastSeen,
		})
		a.mu.Unlock()
	}
	return infos
}

// RegisterAPIRoutes registers API routes for agent visibility
func (h *Hub) RegisterAPIRoutes(api fiber.Router) {
	agents := api.Group("/agents")

	// List connected agents
	agents.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"agents": h.GetAgentInfos(),
			"count":  h.AgentCount(),
		})
	})

	// Get hub stats
	agents.Get("/stats", func(c *fiber.Ctx) error {
		return c.JSON(h.GetStats())
	})
}
