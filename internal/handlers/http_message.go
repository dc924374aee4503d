package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/thereayou/ritual-union/internal/handlers/dto"
	"github.com/thereayou/ritual-union/internal/models"
	"github.com/thereayou/ritual-union/internal/services"
	"github.com/thereayou/ritual-union/pkg/response"
)

type HTTPMessageHandler struct {
	svc *services.BodyDoublingService
}

func NewHTTPMessageHandler(svc *services.BodyDoublingService) *HTTPMessageHandler {
	return &HTTPMessageHandler{svc: svc}
}

// PostMessage appends a chat or encouragement message to the session.
// Readers pick it up through the live feed.
func (h *HTTPMessageHandler) PostMessage(c *gin.Context) {
	id, ok := sessionIDParam(c)
	if !ok {
		return
	}

	var req dto.MessagePayload
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeValidation, err.Error())
		return
	}

	msg, err := h.svc.PostMessage(c.Request.Context(), currentUserID(c), id, req.Body, models.MessageKind(req.Kind))
	if err != nil {
		respondError(c, err)
		return
	}
	response.Created(c, services.NewMessageView(msg))
}
