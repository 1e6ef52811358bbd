// Package api provides HTTP handlers for the relay.
package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/xiaot623/hitl-relay/chatclient"
	"github.com/xiaot623/hitl-relay/config"
	"github.com/xiaot623/hitl-relay/directory"
	"github.com/xiaot623/hitl-relay/linkcode"
	"github.com/xiaot623/hitl-relay/policy"
	"github.com/xiaot623/hitl-relay/routing"
	"github.com/xiaot623/hitl-relay/store"
)

// Handler handles HTTP requests.
type Handler struct {
	store        store.Store
	strategy     routing.Strategy
	directory    directory.Directory
	codes        linkcode.Store
	chatClient   *chatclient.Client
	policyEngine *policy.Engine
	notifier     *Notifier
	config       *config.Config
}

// NewHandler creates a new handler.
func NewHandler(s store.Store, strategy routing.Strategy, dir directory.Directory, codes linkcode.Store, chatClient *chatclient.Client, policyEngine *policy.Engine, cfg *config.Config) *Handler {
	return &Handler{
		store:        s,
		strategy:     strategy,
		directory:    dir,
		codes:        codes,
		chatClient:   chatClient,
		policyEngine: policyEngine,
		notifier:     NewNotifier(),
		config:       cfg,
	}
}

// RegisterRoutes registers routes with the echo server. The agent-facing API
// sits behind the auth middleware; the webhook and health endpoints do not.
func (h *Handler) RegisterRoutes(e *echo.Echo, authMiddleware echo.MiddlewareFunc) {
	// Agent-facing API
	v1 := e.Group("/v1", authMiddleware)
	v1.POST("/questions", h.PostQuestion)
	v1.GET("/sessions/:session_id/replies", h.PollReplies)
	v1.DELETE("/sessions/:session_id/question", h.CancelQuestion)
	v1.POST("/links", h.CompleteLink)

	// Chat-provider webhook
	e.POST("/webhook/chat", h.ChatWebhook)

	e.GET("/health", h.Health)
}

// Health returns health status.
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":  "healthy",
		"version": "0.1.0",
	})
}
