package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/wagate/wagate/internal/pkg/response"
	"github.com/wagate/wagate/internal/session"
)

type SessionHandler struct {
	manager *session.Manager
	log     *zap.Logger
}

func NewSessionHandler(manager *session.Manager, log *zap.Logger) *SessionHandler {
	return &SessionHandler{manager: manager, log: log}
}

func (h *SessionHandler) Register(r *gin.RouterGroup) {
	r.POST("/sessions", h.Create)
	r.GET("/sessions", h.List)
	r.GET("/sessions/:id/status", h.Status)
	r.GET("/sessions/:id/qr", h.QR)
	r.PUT("/sessions/:id/webhook", h.UpdateWebhook)
	r.DELETE("/sessions/:id", h.Delete)
}

type createSessionRequest struct {
	ID         string `json:"id" binding:"required"`
	WebhookURL string `json:"webhookUrl"`
}

type updateWebhookRequest struct {
	WebhookURL string `json:"webhookUrl"`
}

func (h *SessionHandler) Create(c *gin.Context) {
	var req createSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid payload: "+err.Error())
		return
	}
	if !validWebhookField(req.WebhookURL) {
		response.Error(c, http.StatusBadRequest, "webhookUrl must contain http(s) destinations")
		return
	}

	if err := h.manager.AddSession(c.Request.Context(), req.ID, req.WebhookURL); err != nil {
		h.log.Warn("session create failed", zap.String("session_id", req.ID), zap.Error(err))
		response.Error(c, statusForError(err), err.Error())
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"id": req.ID})
}

func (h *SessionHandler) List(c *gin.Context) {
	response.Success(c, http.StatusOK, h.manager.Sessions())
}

func (h *SessionHandler) Status(c *gin.Context) {
	state, err := h.manager.Status(c.Param("id"))
	if err != nil {
		response.Error(c, statusForError(err), err.Error())
		return
	}
	response.Success(c, http.StatusOK, gin.H{"state": state})
}

func (h *SessionHandler) QR(c *gin.Context) {
	artifact, err := h.manager.QR(c.Param("id"))
	if err != nil {
		response.Error(c, statusForError(err), err.Error())
		return
	}
	response.Success(c, http.StatusOK, artifact)
}

func (h *SessionHandler) UpdateWebhook(c *gin.Context) {
	var req updateWebhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid payload: "+err.Error())
		return
	}
	if !validWebhookField(req.WebhookURL) {
		response.Error(c, http.StatusBadRequest, "webhookUrl must contain http(s) destinations")
		return
	}

	client, err := h.manager.UpdateWebhook(c.Request.Context(), c.Param("id"), req.WebhookURL)
	if err != nil {
		response.Error(c, statusForError(err), err.Error())
		return
	}
	response.Success(c, http.StatusOK, client)
}

func (h *SessionHandler) Delete(c *gin.Context) {
	if err := h.manager.RemoveSession(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, statusForError(err), err.Error())
		return
	}
	response.Success(c, http.StatusOK, gin.H{"removed": true})
}

// validWebhookField accepts an empty field or a delimiter-separated list of
// http(s) URLs.
func validWebhookField(raw string) bool {
	if raw == "" {
		return true
	}
	for _, part := range strings.Split(raw, "|") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if !strings.HasPrefix(part, "http://") && !strings.HasPrefix(part, "https://") {
			return false
		}
	}
	return true
}
