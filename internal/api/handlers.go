package api

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"chatrelay/internal/models"
	"chatrelay/internal/service/history"
	"chatrelay/internal/worker"
)

// streamTimeout caps one provider exchange.
const streamTimeout = 2 * time.Minute

// CompletionEngine produces the streamed reply for one exchange.
type CompletionEngine interface {
	StreamChat(ctx context.Context, prevHistory []models.Message, input string, onFragment func(string) error) (string, error)
}

// Handler wires HTTP routes to the history service and the completion
// engine, with exchanges scheduled through a session-fair dispatcher.
type Handler struct {
	history    *history.Service
	engine     CompletionEngine
	dispatcher *worker.Dispatcher
	logger     *slog.Logger
}

// NewHandler constructs a Handler instance.
func NewHandler(historyService *history.Service, engine CompletionEngine, cfg worker.DispatcherConfig, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		history:    historyService,
		engine:     engine,
		dispatcher: worker.NewDispatcher(cfg),
		logger:     logger,
	}
}

// RegisterRoutes attaches all HTTP routes to the router.
func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.GET("/health", h.health)
	router.POST("/session", h.createSession)
	router.GET("/sessions", h.listSessions)
	router.GET("/session/:id/history", h.getHistory)
	router.DELETE("/session/:id", h.deleteSession)
	router.POST("/chat", h.chat)
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) createSession(c *gin.Context) {
	session, err := h.history.CreateSession(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"session_id": session.ID})
}

func (h *Handler) listSessions(c *gin.Context) {
	ids, err := h.history.ListSessions(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"sessions": ids})
}

func (h *Handler) getHistory(c *gin.Context) {
	sessionID := c.Param("id")
	// An unknown session is an empty history, never an error.
	messages, err := h.history.ForSession(sessionID).Messages(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"session_id": sessionID,
		"messages":   messages,
	})
}

func (h *Handler) deleteSession(c *gin.Context) {
	sessionID := c.Param("id")
	if err := h.history.DeleteSession(c.Request.Context(), sessionID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "cleared", "session_id": sessionID})
}

type chatRequest struct {
	SessionID   string `json:"session_id"`
	UserMessage string `json:"user_message"`
}

// chat streams one exchange as a text/plain body: validate, load history,
// relay fragments as they arrive, then persist the user message followed by
// the full reply. A provider failure shows up inline as an [ERROR] fragment
// and the exchange still persists; a client disconnect skips persistence.
func (h *Handler) chat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	userMessage := strings.TrimSpace(req.UserMessage)
	if userMessage == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_message cannot be empty."})
		return
	}
	sessionID := strings.TrimSpace(req.SessionID)
	if sessionID == "" {
		sessionID = "default"
	}

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "streaming not supported"})
		return
	}

	sessionHistory := h.history.ForSession(sessionID)
	prevHistory, err := sessionHistory.Messages(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	reqCtx := c.Request.Context()
	streamCtx, cancel := context.WithTimeout(reqCtx, streamTimeout)
	defer cancel()

	var (
		fullReply string
		streamErr error
	)
	done := make(chan struct{})
	run := func() {
		defer close(done)
		c.Writer.Header().Set("Content-Type", "text/plain; charset=utf-8")
		c.Writer.Header().Set("Cache-Control", "no-cache")
		c.Writer.Header().Set("X-Accel-Buffering", "no")
		c.Status(http.StatusOK)
		fullReply, streamErr = h.engine.StreamChat(streamCtx, prevHistory, userMessage, func(fragment string) error {
			if _, err := io.WriteString(c.Writer, fragment); err != nil {
				return err
			}
			flusher.Flush()
			return nil
		})
	}
	if err := h.dispatcher.Submit(sessionID, run); err != nil {
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "server is busy, please retry"})
		return
	}
	<-done

	if streamErr != nil || reqCtx.Err() != nil {
		h.logger.Warn("client gone mid-stream, skipping persistence",
			"session_id", sessionID, "error", streamErr)
		return
	}

	// User first, then assistant: read-back must always show a question
	// before its answer, even when the reply carries a failure marker.
	if _, err := sessionHistory.Append(reqCtx, models.RoleUser, userMessage); err != nil {
		h.logger.Error("persist user message", "session_id", sessionID, "error", err)
		return
	}
	if _, err := sessionHistory.Append(reqCtx, models.RoleAssistant, fullReply); err != nil {
		h.logger.Error("persist assistant reply", "session_id", sessionID, "error", err)
	}
}
