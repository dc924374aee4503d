package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/thereayou/ritual-union/pkg/log"
)

const (
	// Время ожидания записи
	writeWait = 10 * time.Second

	// Время ожидания pong от клиента
	pongWait = 60 * time.Second

	pingPeriod = (pongWait * 9) / 10

	maxMessageSize = 4 * 1024

	sendBuffer = 64
)

// FrameType names a feed frame.
type FrameType string

const (
	// Server to client.
	TypeSnapshot FrameType = "snapshot"
	TypeEnd      FrameType = "end"
	TypeError    FrameType = "error"

	// Client to server.
	TypeMessage FrameType = "message"
	TypeStatus  FrameType = "status"
	TypePing    FrameType = "ping"
	TypePong    FrameType = "pong"
)

type Frame struct {
	Type      FrameType       `json:"type"`
	SessionID uint            `json:"session_id,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ClientMessageHandler acts on frames the client sends over its feed.
type ClientMessageHandler interface {
	HandleMessage(ctx context.Context, client *Client, frame *Frame) error
}

// Client is the WebSocket end of one session feed.
type Client struct {
	ID        uuid.UUID
	UserID    uint
	SessionID uint
	Conn      *websocket.Conn

	send   chan []byte
	mu     sync.Mutex
	closed bool
}

func NewClient(conn *websocket.Conn, userID, sessionID uint) *Client {
	return &Client{
		ID:        uuid.New(),
		UserID:    userID,
		SessionID: sessionID,
		Conn:      conn,
		send:      make(chan []byte, sendBuffer),
	}
}

// ReadPump reads client frames until the connection fails, then calls
// onClose. It must run in its own goroutine.
func (c *Client) ReadPump(ctx context.Context, handler ClientMessageHandler, onClose func()) {
	defer onClose()

	l := log.Ctx(ctx)

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var frame Frame
		if err := c.Conn.ReadJSON(&frame); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				l.Warn().Err(err).Str("client_id", c.ID.String()).Msg("websocket read failed")
			}
			return
		}

		switch frame.Type {
		case TypePong:
			continue
		case TypePing:
			_ = c.SendFrame(TypePong, nil)
			continue
		}

		if handler == nil {
			continue
		}
		if err := handler.HandleMessage(ctx, c, &frame); err != nil {
			l.Debug().Err(err).Str("frame_type", string(frame.Type)).Msg("client frame rejected")
		}
	}
}

// WritePump writes queued frames and keeps the connection alive with pings.
// It returns after Close once every queued frame has been written.
func (c *Client) WritePump(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	l := log.Ctx(ctx)
	for {
		select {
		case message, ok := <-c.send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				l.Debug().Err(err).Str("client_id", c.ID.String()).Msg("websocket write failed")
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// SendFrame queues a frame for the client. A full queue means the client
// is not keeping up and the frame is refused.
func (c *Client) SendFrame(frameType FrameType, data interface{}) error {
	frame := Frame{
		Type:      frameType,
		SessionID: c.SessionID,
		Timestamp: time.Now(),
	}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return err
		}
		frame.Data = raw
	}

	msg, err := json.Marshal(frame)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClientClosed
	}
	select {
	case c.send <- msg:
		return nil
	default:
		return ErrClientQueueFull
	}
}

func (c *Client) SendError(code, message string) error {
	return c.SendFrame(TypeError, ErrorPayload{Code: code, Message: message})
}

// Close stops accepting frames. WritePump flushes what is queued and then
// closes the connection.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}
