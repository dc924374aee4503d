package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/thereayou/ritual-union/internal/handlers/dto"
	"github.com/thereayou/ritual-union/internal/models"
	"github.com/thereayou/ritual-union/internal/services"
	"github.com/thereayou/ritual-union/internal/websocket"
	"github.com/thereayou/ritual-union/pkg/response"
)

type SessionHandler struct {
	svc *services.BodyDoublingService
	hub *websocket.Hub
}

func NewSessionHandler(svc *services.BodyDoublingService, hub *websocket.Hub) *SessionHandler {
	return &SessionHandler{svc: svc, hub: hub}
}

// ListSessions returns every active session, newest first.
func (h *SessionHandler) ListSessions(c *gin.Context) {
	sessions, err := h.svc.ListActiveSessions(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, gin.H{"sessions": dto.NewSessionListResponse(sessions)})
}

func (h *SessionHandler) CreateSession(c *gin.Context) {
	var req dto.CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeValidation, err.Error())
		return
	}

	maxParticipants := models.DefaultParticipants
	if req.MaxParticipants != nil {
		maxParticipants = *req.MaxParticipants
	}

	session, err := h.svc.CreateSession(c.Request.Context(), currentUserID(c), req.Name, maxParticipants)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Created(c, dto.NewSessionResponse(session))
}

// GetSession returns the session with its participants and the number of
// live feeds attached to it.
func (h *SessionHandler) GetSession(c *gin.Context) {
	id, ok := sessionIDParam(c)
	if !ok {
		return
	}

	session, err := h.svc.GetSession(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	resp := dto.NewSessionResponse(session)
	watchers := h.hub.Count(id)
	resp.Watchers = &watchers
	response.Success(c, resp)
}

func (h *SessionHandler) DeleteSession(c *gin.Context) {
	id, ok := sessionIDParam(c)
	if !ok {
		return
	}
	if err := h.svc.DeleteSession(c.Request.Context(), currentUserID(c), id); err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, gin.H{"id": id, "deleted": true})
}

func (h *SessionHandler) JoinSession(c *gin.Context) {
	id, ok := sessionIDParam(c)
	if !ok {
		return
	}
	p, err := h.svc.JoinSession(c.Request.Context(), currentUserID(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, services.NewParticipantView(p))
}

// LeaveSession marks the caller offline in the session.
func (h *SessionHandler) LeaveSession(c *gin.Context) {
	id, ok := sessionIDParam(c)
	if !ok {
		return
	}
	p, err := h.svc.LeaveSession(c.Request.Context(), currentUserID(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, services.NewParticipantView(p))
}

// EndSession closes the session. Only the owner may call it.
func (h *SessionHandler) EndSession(c *gin.Context) {
	id, ok := sessionIDParam(c)
	if !ok {
		return
	}
	session, err := h.svc.EndSession(c.Request.Context(), currentUserID(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, dto.EndSessionResponse{ID: session.ID, EndedAt: *session.EndedAt})
}

func (h *SessionHandler) UpdateStatus(c *gin.Context) {
	id, ok := sessionIDParam(c)
	if !ok {
		return
	}

	var req dto.StatusPayload
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeValidation, err.Error())
		return
	}

	p, err := h.svc.UpdateParticipantStatus(c.Request.Context(), currentUserID(c), id,
		models.ParticipantStatus(req.Status), req.CurrentActivity)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, services.NewParticipantView(p))
}
