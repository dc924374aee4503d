package handlers

import (
	"context"
	"encoding/json"

	"github.com/thereayou/ritual-union/internal/handlers/dto"
	"github.com/thereayou/ritual-union/internal/models"
	"github.com/thereayou/ritual-union/internal/services"
	"github.com/thereayou/ritual-union/internal/websocket"
	"github.com/thereayou/ritual-union/pkg/log"
	"github.com/thereayou/ritual-union/pkg/response"
)

// MessageHandler applies frames a participant sends over the feed socket.
// Accepted changes reach every reader through the feed itself, so only
// failures are answered.
type MessageHandler struct {
	svc *services.BodyDoublingService
}

func NewMessageHandler(svc *services.BodyDoublingService) *MessageHandler {
	return &MessageHandler{svc: svc}
}

func (h *MessageHandler) HandleMessage(ctx context.Context, client *websocket.Client, frame *websocket.Frame) error {
	var err error
	switch frame.Type {
	case websocket.TypeMessage:
		err = h.handleTextMessage(ctx, client, frame)
	case websocket.TypeStatus:
		err = h.handleStatus(ctx, client, frame)
	default:
		l := log.Ctx(ctx)
		l.Debug().Str("frame_type", string(frame.Type)).Msg("unknown frame type")
		err = websocket.ErrInvalidMessage
	}

	if err != nil {
		_, code := errorStatus(err)
		msg := err.Error()
		if code == response.CodeInternal {
			msg = "internal server error"
		}
		if sendErr := client.SendError(code, msg); sendErr != nil {
			return sendErr
		}
	}
	return err
}

func (h *MessageHandler) handleTextMessage(ctx context.Context, client *websocket.Client, frame *websocket.Frame) error {
	var payload dto.MessagePayload
	if err := json.Unmarshal(frame.Data, &payload); err != nil {
		return websocket.ErrInvalidMessage
	}

	_, err := h.svc.PostMessage(ctx, client.UserID, client.SessionID, payload.Body, models.MessageKind(payload.Kind))
	return err
}

func (h *MessageHandler) handleStatus(ctx context.Context, client *websocket.Client, frame *websocket.Frame) error {
	var payload dto.StatusPayload
	if err := json.Unmarshal(frame.Data, &payload); err != nil {
		return websocket.ErrInvalidMessage
	}

	_, err := h.svc.UpdateParticipantStatus(ctx, client.UserID, client.SessionID,
		models.ParticipantStatus(payload.Status), payload.CurrentActivity)
	return err
}
