package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/ammachi-ai/backend/internal/service"
)

type ChatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"sessionId"`
	Language  string `json:"language"`
}

// ChatHandler serves the farming assistant. Apart from an empty message it
// never fails: the keyword fallback always has an answer.
type ChatHandler struct {
	chat       *service.ChatService
	reconciler *service.Reconciler
}

func NewChatHandler(chat *service.ChatService, reconciler *service.Reconciler) *ChatHandler {
	return &ChatHandler{chat: chat, reconciler: reconciler}
}

func (h *ChatHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.POST("/chatbot/chat", h.Chat)
}

func (h *ChatHandler) Chat(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Message) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Message is required"})
		return
	}

	reply := h.chat.Chat(c.Request.Context(), req.Message, req.SessionID, req.Language)

	if key, ok := currentUserKey(c); ok {
		h.reconciler.RecordQuestion(c.Request.Context(), key)
	}

	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"reply":    reply.Reply,
		"source":   reply.Source,
		"language": reply.Language,
	})
}
