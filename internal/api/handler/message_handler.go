package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/wagate/wagate/internal/pkg/response"
	"github.com/wagate/wagate/internal/service/messaging"
)

type MessageHandler struct {
	svc *messaging.Service
	log *zap.Logger
}

func NewMessageHandler(svc *messaging.Service, log *zap.Logger) *MessageHandler {
	return &MessageHandler{svc: svc, log: log}
}

func (h *MessageHandler) Register(r *gin.RouterGroup) {
	r.POST("/sessions/:id/messages/text", h.SendText)
	r.POST("/sessions/:id/messages/media", h.SendMedia)
	r.POST("/sessions/:id/messages/voice", h.SendVoiceNote)
	r.POST("/sessions/:id/messages/react", h.React)
	r.GET("/sessions/:id/contacts", h.Contacts)
	r.GET("/sessions/:id/chats/:chatId/messages", h.ChatHistory)
}

type sendTextRequest struct {
	To   string `json:"to" binding:"required"`
	Body string `json:"body" binding:"required"`
}

type sendMediaRequest struct {
	To       string `json:"to" binding:"required"`
	MimeType string `json:"mimeType" binding:"required"`
	Data     string `json:"data" binding:"required"`
	Caption  string `json:"caption"`
	FileName string `json:"fileName"`
}

type sendVoiceRequest struct {
	To       string `json:"to" binding:"required"`
	MimeType string `json:"mimeType"`
	Data     string `json:"data" binding:"required"`
}

type reactRequest struct {
	ChatID    string `json:"chatId" binding:"required"`
	MessageID string `json:"messageId" binding:"required"`
	Emoji     string `json:"emoji" binding:"required"`
}

func (h *MessageHandler) SendText(c *gin.Context) {
	var req sendTextRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid payload: "+err.Error())
		return
	}

	id, err := h.svc.SendText(c.Request.Context(), c.Param("id"), req.To, req.Body)
	if err != nil {
		h.log.Warn("send text failed", zap.String("session_id", c.Param("id")), zap.Error(err))
		response.Error(c, statusForError(err), err.Error())
		return
	}
	response.Success(c, http.StatusOK, gin.H{"messageId": id})
}

func (h *MessageHandler) SendMedia(c *gin.Context) {
	var req sendMediaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid payload: "+err.Error())
		return
	}

	id, err := h.svc.SendMedia(c.Request.Context(), c.Param("id"), req.To, req.MimeType, req.Data, req.Caption, req.FileName)
	if err != nil {
		h.log.Warn("send media failed", zap.String("session_id", c.Param("id")), zap.Error(err))
		response.Error(c, statusForError(err), err.Error())
		return
	}
	response.Success(c, http.StatusOK, gin.H{"messageId": id})
}

func (h *MessageHandler) SendVoiceNote(c *gin.Context) {
	var req sendVoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid payload: "+err.Error())
		return
	}

	id, err := h.svc.SendVoiceNote(c.Request.Context(), c.Param("id"), req.To, req.MimeType, req.Data)
	if err != nil {
		h.log.Warn("send voice note failed", zap.String("session_id", c.Param("id")), zap.Error(err))
		response.Error(c, statusForError(err), err.Error())
		return
	}
	response.Success(c, http.StatusOK, gin.H{"messageId": id})
}

func (h *MessageHandler) React(c *gin.Context) {
	var req reactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid payload: "+err.Error())
		return
	}

	if err := h.svc.React(c.Request.Context(), c.Param("id"), req.ChatID, req.MessageID, req.Emoji); err != nil {
		response.Error(c, statusForError(err), err.Error())
		return
	}
	response.Success(c, http.StatusOK, gin.H{"reacted": true})
}

func (h *MessageHandler) Contacts(c *gin.Context) {
	contacts, err := h.svc.Contacts(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, statusForError(err), err.Error())
		return
	}
	response.Success(c, http.StatusOK, contacts)
}

func (h *MessageHandler) ChatHistory(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			response.Error(c, http.StatusBadRequest, "limit must be an integer")
			return
		}
		limit = parsed
	}

	msgs, err := h.svc.ChatHistory(c.Request.Context(), c.Param("id"), c.Param("chatId"), limit)
	if err != nil {
		response.Error(c, statusForError(err), err.Error())
		return
	}
	response.Success(c, http.StatusOK, msgs)
}
