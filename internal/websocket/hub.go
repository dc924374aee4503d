package websocket

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/thereayou/ritual-union/pkg/log"
)

const statsInterval = 30 * time.Second

// Subscription is one live feed attached to a session.
type Subscription struct {
	ID        uuid.UUID
	SessionID uint
	UserID    uint
	StartedAt time.Time

	cancel context.CancelFunc
}

// Cancel stops the feed without detaching it.
func (s *Subscription) Cancel() {
	s.cancel()
}

// Hub keeps track of every live feed in the process so they can be counted
// per session and cancelled together on shutdown.
type Hub struct {
	// Подписки по сессиям
	sessions map[uint]map[uuid.UUID]*Subscription

	register   chan *Subscription
	unregister chan *Subscription

	mu sync.RWMutex

	ctx    context.Context
	cancel context.CancelFunc
}

func NewHub() *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		sessions:   make(map[uint]map[uuid.UUID]*Subscription),
		register:   make(chan *Subscription),
		unregister: make(chan *Subscription),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Run processes registrations until ctx is done or Stop is called, then
// cancels every remaining subscription.
func (h *Hub) Run(ctx context.Context) error {
	ticker := time.NewTicker(statsInterval)
	defer ticker.Stop()
	defer h.cancelAll()

	l := log.Ctx(ctx)
	for {
		select {
		case <-ctx.Done():
			h.cancel()
			return nil
		case <-h.ctx.Done():
			return nil

		case sub := <-h.register:
			h.add(sub)

		case sub := <-h.unregister:
			h.remove(sub)
			l.Debug().
				Uint(log.FieldSessionID, sub.SessionID).
				Uint(log.FieldUserID, sub.UserID).
				Dur("duration", time.Since(sub.StartedAt)).
				Msg("feed detached")

		case <-ticker.C:
			l.Debug().Int("feeds", h.Total()).Msg("live feed stats")
		}
	}
}

// Stop cancels every subscription and makes further Attach calls fail.
func (h *Hub) Stop() {
	h.cancel()
	h.cancelAll()
}

// Attach registers a feed for the session. The returned context is
// cancelled when the feed is detached or the hub stops.
func (h *Hub) Attach(parent context.Context, sessionID, userID uint) (*Subscription, context.Context, error) {
	ctx, cancel := context.WithCancel(parent)
	sub := &Subscription{
		ID:        uuid.New(),
		SessionID: sessionID,
		UserID:    userID,
		StartedAt: time.Now(),
		cancel:    cancel,
	}

	select {
	case h.register <- sub:
		return sub, ctx, nil
	case <-h.ctx.Done():
		cancel()
		return nil, nil, ErrHubStopped
	case <-parent.Done():
		cancel()
		return nil, nil, parent.Err()
	}
}

// Detach cancels the subscription and forgets it.
func (h *Hub) Detach(sub *Subscription) {
	sub.cancel()
	select {
	case h.unregister <- sub:
	case <-h.ctx.Done():
	}
}

func (h *Hub) add(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.sessions[sub.SessionID]; !ok {
		h.sessions[sub.SessionID] = make(map[uuid.UUID]*Subscription)
	}
	h.sessions[sub.SessionID][sub.ID] = sub
}

func (h *Hub) remove(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if subs, ok := h.sessions[sub.SessionID]; ok {
		delete(subs, sub.ID)
		if len(subs) == 0 {
			delete(h.sessions, sub.SessionID)
		}
	}
}

func (h *Hub) cancelAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for id, subs := range h.sessions {
		for _, sub := range subs {
			sub.cancel()
		}
		delete(h.sessions, id)
	}
}

// Count returns the number of live feeds on the session.
func (h *Hub) Count(sessionID uint) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions[sessionID])
}

// Total returns the number of live feeds across all sessions.
func (h *Hub) Total() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	n := 0
	for _, subs := range h.sessions {
		n += len(subs)
	}
	return n
}
