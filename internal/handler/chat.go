package handler

import (
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"estatechat/internal/model"
	"estatechat/internal/service"
)

// exitWords end a chat session politely instead of going to the classifier
var exitWords = map[string]bool{"exit": true, "quit": true, "bye": true, "goodbye": true}

const goodbyeMessage = "Goodbye! Feel free to come back whenever you're looking for a property."

// ChatHandler handles conversational HTTP requests
type ChatHandler struct {
	sessions       *service.SessionManager
	promptTemplate string
	log            *zap.Logger
}

// NewChatHandler creates a chat handler. The classification prompt template
// is loaded once from promptPath at startup.
func NewChatHandler(sessions *service.SessionManager, promptPath string, log *zap.Logger) (*ChatHandler, error) {
	template, err := os.ReadFile(promptPath)
	if err != nil {
		return nil, err
	}
	return &ChatHandler{
		sessions:       sessions,
		promptTemplate: string(template),
		log:            log,
	}, nil
}

// Chat handles POST /api/v1/chat
func (h *ChatHandler) Chat(c *gin.Context) {
	var req model.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	sessionID, conv, err := h.sessions.Acquire(req.SessionID)
	if err != nil {
		h.log.Error("failed to acquire session", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to start session"})
		return
	}

	start := time.Now()

	if exitWords[strings.ToLower(strings.TrimSpace(req.Message))] {
		c.JSON(http.StatusOK, model.ChatResponse{
			SessionID: sessionID,
			Reply:     goodbyeMessage,
			Took:      time.Since(start).Milliseconds(),
		})
		return
	}

	reply, err := conv.Respond(c.Request.Context(), req.Message, h.promptTemplate)
	if err != nil {
		h.log.Error("turn failed", zap.String("session_id", sessionID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Chat failed: " + err.Error()})
		return
	}

	c.JSON(http.StatusOK, model.ChatResponse{
		SessionID: sessionID,
		Reply:     reply,
		Took:      time.Since(start).Milliseconds(),
	})
}

// History handles GET /api/v1/sessions/:id/history
func (h *ChatHandler) History(c *gin.Context) {
	sessionID := c.Param("id")

	conv, ok := h.sessions.Lookup(sessionID)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Unknown session: " + sessionID})
		return
	}

	turns, err := conv.History(c.Request.Context())
	if err != nil {
		h.log.Error("failed to read history", zap.String("session_id", sessionID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read history"})
		return
	}

	c.JSON(http.StatusOK, model.HistoryResponse{
		SessionID: sessionID,
		Turns:     turns,
	})
}
