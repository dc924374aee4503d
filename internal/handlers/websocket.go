package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/thereayou/ritual-union/internal/services"
	ws "github.com/thereayou/ritual-union/internal/websocket"
	"github.com/thereayou/ritual-union/pkg/log"
	"github.com/thereayou/ritual-union/pkg/response"
)

// FeedHandler serves live session feeds over WebSocket and Server-Sent
// Events.
type FeedHandler struct {
	svc       *services.BodyDoublingService
	publisher *services.FeedPublisher
	hub       *ws.Hub
	messages  *MessageHandler
	upgrader  websocket.Upgrader
}

func NewFeedHandler(svc *services.BodyDoublingService, publisher *services.FeedPublisher, hub *ws.Hub, messages *MessageHandler) *FeedHandler {
	return &FeedHandler{
		svc:       svc,
		publisher: publisher,
		hub:       hub,
		messages:  messages,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				// TODO: check against the web client's origin once it is configurable
				return true
			},
		},
	}
}

// HandleWebSocket streams snapshots as frames and accepts message and
// status frames from the participant.
func (h *FeedHandler) HandleWebSocket(c *gin.Context) {
	sessionID, ok := h.resolveSession(c)
	if !ok {
		return
	}
	userID := currentUserID(c)

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		l := log.Ctx(c.Request.Context())
		l.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}

	sub, ctx, err := h.hub.Attach(c.Request.Context(), sessionID, userID)
	if err != nil {
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server is shutting down"))
		conn.Close()
		return
	}
	defer h.hub.Detach(sub)

	client := ws.NewClient(conn, userID, sessionID)
	writeDone := make(chan struct{})
	go func() {
		defer close(writeDone)
		client.WritePump(ctx)
	}()
	go client.ReadPump(ctx, h.messages, sub.Cancel)

	err = h.publisher.Subscribe(ctx, sessionID, func(snap services.Snapshot) error {
		return client.SendFrame(ws.TypeSnapshot, snap)
	})
	switch {
	case err == nil:
		client.SendFrame(ws.TypeEnd, nil)
	case errors.Is(err, context.Canceled):
	default:
		code, msg := streamError(c, err)
		client.SendError(code, msg)
	}

	client.Close()
	<-writeDone
}

// HandleSSE streams snapshots as Server-Sent Events until the session ends
// or the client goes away.
func (h *FeedHandler) HandleSSE(c *gin.Context) {
	sessionID, ok := h.resolveSession(c)
	if !ok {
		return
	}

	sub, ctx, err := h.hub.Attach(c.Request.Context(), sessionID, currentUserID(c))
	if err != nil {
		response.Error(c, http.StatusServiceUnavailable, response.CodeUnavailable, "server is shutting down")
		return
	}
	defer h.hub.Detach(sub)

	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	err = h.publisher.Subscribe(ctx, sessionID, func(snap services.Snapshot) error {
		c.SSEvent(string(ws.TypeSnapshot), snap)
		c.Writer.Flush()
		return nil
	})
	switch {
	case err == nil:
		c.SSEvent(string(ws.TypeEnd), gin.H{"session_id": sessionID})
	case errors.Is(err, context.Canceled):
		return
	default:
		code, msg := streamError(c, err)
		c.SSEvent(string(ws.TypeError), response.ErrorInfo{Code: code, Message: msg})
	}
	c.Writer.Flush()
}

// resolveSession answers with a plain HTTP error before any stream is
// opened when the session id is bad or unknown.
func (h *FeedHandler) resolveSession(c *gin.Context) (uint, bool) {
	id, ok := sessionIDParam(c)
	if !ok {
		return 0, false
	}
	if _, err := h.svc.GetSession(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return 0, false
	}
	return id, true
}

func streamError(c *gin.Context, err error) (string, string) {
	status, code := errorStatus(err)
	if status == http.StatusInternalServerError {
		l := log.Ctx(c.Request.Context())
		l.Error().Err(err).Msg("live feed failed")
		return code, "internal server error"
	}
	return code, err.Error()
}
