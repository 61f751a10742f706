package handler

import (
	"virtualrag-be/internal/constant"
	"virtualrag-be/internal/dto"
	"virtualrag-be/internal/pkg/logger"
	"virtualrag-be/internal/service"
	internalWS "virtualrag-be/internal/websocket"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

type ChatHandler struct {
	hub            *internalWS.Hub
	sessionDeps    internalWS.SessionDeps
	health         service.IHealthService
	maxMessageSize int64
	logger         logger.ILogger
}

func NewChatHandler(
	hub *internalWS.Hub,
	sessionDeps internalWS.SessionDeps,
	health service.IHealthService,
	maxMessageSize int64,
	log logger.ILogger,
) *ChatHandler {
	return &ChatHandler{
		hub:            hub,
		sessionDeps:    sessionDeps,
		health:         health,
		maxMessageSize: maxMessageSize,
		logger:         log,
	}
}

// ServeWs upgrades the request and runs the session protocol on it.
// Authentication happens in-band with the first auth frame.
func (h *ChatHandler) ServeWs(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		remote := c.IP()
		return websocket.New(func(conn *websocket.Conn) {
			h.logger.Info("ChatHandler", "Starting WebSocket session", map[string]interface{}{"remote": remote})
			internalWS.ServeWs(h.hub, conn, h.sessionDeps, h.maxMessageSize)
			h.logger.Info("ChatHandler", "WebSocket session ended", map[string]interface{}{"remote": remote})
		})(c)
	}
	return fiber.ErrUpgradeRequired
}

func (h *ChatHandler) Status(c *fiber.Ctx) error {
	return c.JSON(dto.StatusResponse{
		Status:  "online",
		Message: constant.MessageServerOnline,
	})
}

func (h *ChatHandler) Health(c *fiber.Ctx) error {
	return c.JSON(h.health.Health(c.UserContext()))
}

func (h *ChatHandler) Stats(c *fiber.Ctx) error {
	return c.JSON(h.health.Stats(c.UserContext()))
}

// RegisterRoutes registers the chat routes.
func (h *ChatHandler) RegisterRoutes(router fiber.Router) {
	router.Get("/", h.Status)
	router.Get("/health", h.Health)
	router.Get("/stats", h.Stats)

	// WebSocket
	router.Get("/ws", h.ServeWs)
}
