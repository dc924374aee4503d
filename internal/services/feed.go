package services

import (
	"context"
	"errors"
	"time"

	"github.com/thereayou/ritual-union/internal/database"
	"github.com/thereayou/ritual-union/internal/models"
	"github.com/thereayou/ritual-union/pkg/log"
)

const DefaultPollInterval = 2 * time.Second

type SessionSummary struct {
	ID              uint       `json:"id"`
	Name            string     `json:"name"`
	OwnerID         uint       `json:"owner_id"`
	MaxParticipants int        `json:"max_participants"`
	StartedAt       time.Time  `json:"started_at"`
	EndedAt         *time.Time `json:"ended_at"`
}

type ParticipantView struct {
	ID              uint                     `json:"id"`
	UserID          uint                     `json:"user_id"`
	UserName        string                   `json:"user_name"`
	Status          models.ParticipantStatus `json:"status"`
	CurrentActivity string                   `json:"current_activity"`
	LastActiveAt    time.Time                `json:"last_active_at"`
}

type MessageView struct {
	ID        uint               `json:"id"`
	SessionID uint               `json:"session_id"`
	UserID    uint               `json:"user_id"`
	UserName  string             `json:"user_name"`
	Body      string             `json:"body"`
	Kind      models.MessageKind `json:"kind"`
	CreatedAt time.Time          `json:"created_at"`
}

// Snapshot is one live feed event: the session, every participant, and the
// messages posted since the previous snapshot.
type Snapshot struct {
	Session      SessionSummary    `json:"session"`
	Participants []ParticipantView `json:"participants"`
	NewMessages  []MessageView     `json:"new_messages"`
}

func NewSessionSummary(s *models.Session) SessionSummary {
	return SessionSummary{
		ID:              s.ID,
		Name:            s.Name,
		OwnerID:         s.OwnerID,
		MaxParticipants: s.MaxParticipants,
		StartedAt:       s.StartedAt,
		EndedAt:         s.EndedAt,
	}
}

func NewParticipantView(p *models.Participant) ParticipantView {
	return ParticipantView{
		ID:              p.ID,
		UserID:          p.UserID,
		UserName:        p.User.Name,
		Status:          p.Status,
		CurrentActivity: p.CurrentActivity,
		LastActiveAt:    p.LastActiveAt,
	}
}

func NewParticipantViews(ps []models.Participant) []ParticipantView {
	views := make([]ParticipantView, len(ps))
	for i := range ps {
		views[i] = NewParticipantView(&ps[i])
	}
	return views
}

func NewMessageView(m *models.Message) MessageView {
	return MessageView{
		ID:        m.ID,
		SessionID: m.SessionID,
		UserID:    m.UserID,
		UserName:  m.User.Name,
		Body:      m.Body,
		Kind:      m.Kind,
		CreatedAt: m.CreatedAt,
	}
}

// FeedPublisher streams session snapshots to one subscriber at a time by
// polling the store. Each Subscribe call keeps its own watermark.
type FeedPublisher struct {
	store    SessionStore
	notifier Notifier
	interval time.Duration
	now      func() time.Time
}

func NewFeedPublisher(store SessionStore, notifier Notifier, interval time.Duration) *FeedPublisher {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if notifier == nil {
		notifier = NewLocalNotifier()
	}
	return &FeedPublisher{
		store:    store,
		notifier: notifier,
		interval: interval,
		now:      time.Now,
	}
}

type feedCursor struct {
	lastMessageID uint
	checkpoint    time.Time
}

// Subscribe polls the session and calls emit with every snapshot that has
// new messages or participant activity since the previous one. It returns
// nil after the final snapshot of an ended session, ErrNotFound when
// the session disappears, the context error on cancellation, or the first
// error returned by emit.
func (p *FeedPublisher) Subscribe(ctx context.Context, sessionID uint, emit func(Snapshot) error) error {
	l := log.Ctx(ctx)

	nudges, release := p.notifier.Subscribe(ctx, sessionID)
	defer release()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	cur := feedCursor{checkpoint: p.now()}
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		snap, ended, err := p.poll(ctx, sessionID, &cur)
		switch {
		case errors.Is(err, ErrNotFound):
			return err
		case err != nil:
			if ctx.Err() != nil {
				return ctx.Err()
			}
			l.Warn().Err(err).Uint(log.FieldSessionID, sessionID).Msg("feed poll failed")
		default:
			if snap != nil {
				if err := emit(*snap); err != nil {
					return err
				}
			}
			if ended {
				return nil
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		case <-nudges:
		}
	}
}

// poll runs one fetch cycle. It returns a nil snapshot when nothing changed
// and the session is still active.
func (p *FeedPublisher) poll(ctx context.Context, sessionID uint, cur *feedCursor) (*Snapshot, bool, error) {
	started := p.now()

	session, err := p.store.GetSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, false, ErrNotFound
		}
		return nil, false, err
	}

	messages, err := p.store.MessagesAfter(ctx, sessionID, cur.lastMessageID)
	if err != nil {
		return nil, false, err
	}

	changed := false
	for i := range session.Participants {
		if session.Participants[i].LastActiveAt.After(cur.checkpoint) {
			changed = true
			break
		}
	}

	// The poll that observes the end always produces a final snapshot so
	// subscribers learn endedAt before the stream closes.
	if len(messages) == 0 && !changed && !session.IsEnded() {
		return nil, false, nil
	}

	snap := &Snapshot{
		Session:      NewSessionSummary(session),
		Participants: NewParticipantViews(session.Participants),
		NewMessages:  make([]MessageView, len(messages)),
	}
	for i := range messages {
		snap.NewMessages[i] = NewMessageView(&messages[i])
	}

	if len(messages) > 0 {
		cur.lastMessageID = messages[len(messages)-1].ID
	}
	cur.checkpoint = started
	return snap, session.IsEnded(), nil
}
