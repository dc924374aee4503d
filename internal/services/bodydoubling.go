package services

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/thereayou/ritual-union/internal/audit"
	"github.com/thereayou/ritual-union/internal/database"
	"github.com/thereayou/ritual-union/internal/models"
	"github.com/thereayou/ritual-union/pkg/log"
)

const (
	MaxSessionNameLength = 100
	MaxActivityLength    = 100
	MaxMessageLength     = 500

	ownerActivity  = "Getting started"
	joinerActivity = "Just joined"
)

// BodyDoublingService owns the session lifecycle and session messaging.
// Every mutation of a session runs under the store's per-session lock.
type BodyDoublingService struct {
	store    SessionStore
	notifier Notifier
	now      func() time.Time
}

func NewBodyDoublingService(store SessionStore, notifier Notifier) *BodyDoublingService {
	if notifier == nil {
		notifier = NewLocalNotifier()
	}
	return &BodyDoublingService{
		store:    store,
		notifier: notifier,
		now:      time.Now,
	}
}

// CreateSession creates a session and registers the owner as its first
// participant.
func (s *BodyDoublingService) CreateSession(ctx context.Context, ownerID uint, name string, maxParticipants int) (*models.Session, error) {
	name = strings.TrimSpace(name)
	if name == "" || utf8.RuneCountInString(name) > MaxSessionNameLength {
		return nil, validationError("name must be 1-%d characters", MaxSessionNameLength)
	}
	if maxParticipants < models.MinParticipants || maxParticipants > models.MaxParticipants {
		return nil, validationError("max participants must be between %d and %d", models.MinParticipants, models.MaxParticipants)
	}

	now := s.now()
	session := &models.Session{
		Name:            name,
		OwnerID:         ownerID,
		MaxParticipants: maxParticipants,
		StartedAt:       now,
		Participants: []models.Participant{{
			UserID:          ownerID,
			Status:          models.StatusFocusing,
			CurrentActivity: ownerActivity,
			LastActiveAt:    now,
			JoinedAt:        now,
		}},
	}

	if err := s.store.CreateSession(ctx, session); err != nil {
		return nil, err
	}

	audit.Log(ctx, audit.ActionCreateSession, ownerID, session.ID, "body doubling session created")
	return session, nil
}

func (s *BodyDoublingService) GetSession(ctx context.Context, sessionID uint) (*models.Session, error) {
	session, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, mapStoreError(err)
	}
	return session, nil
}

func (s *BodyDoublingService) ListActiveSessions(ctx context.Context) ([]models.Session, error) {
	return s.store.ListActiveSessions(ctx)
}

// JoinSession adds the user to the session. A user who is already a
// participant only has lastActiveAt refreshed; their status is kept.
func (s *BodyDoublingService) JoinSession(ctx context.Context, userID, sessionID uint) (*models.Participant, error) {
	var participant *models.Participant
	var rejoined bool

	err := s.store.InSession(ctx, sessionID, func(tx database.SessionTx) error {
		if tx.Session().IsEnded() {
			return ErrSessionClosed
		}

		now := s.now()
		existing, err := tx.FindParticipant(userID)
		switch {
		case err == nil:
			existing.LastActiveAt = now
			if err := tx.SaveParticipant(existing); err != nil {
				return err
			}
			participant, rejoined = existing, true
			return nil
		case !errors.Is(err, database.ErrNotFound):
			return err
		}

		count, err := tx.CountParticipants()
		if err != nil {
			return err
		}
		if count >= tx.Session().MaxParticipants {
			return ErrSessionFull
		}

		p := &models.Participant{
			UserID:          userID,
			Status:          models.StatusFocusing,
			CurrentActivity: joinerActivity,
			LastActiveAt:    now,
			JoinedAt:        now,
		}
		if err := tx.CreateParticipant(p); err != nil {
			return err
		}
		participant = p
		return nil
	})
	if err != nil {
		return nil, mapStoreError(err)
	}

	s.notifier.Notify(ctx, sessionID)
	if rejoined {
		l := log.Ctx(ctx)
		l.Debug().Uint(log.FieldSessionID, sessionID).Uint(log.FieldUserID, userID).Msg("participant rejoined")
	} else {
		audit.Log(ctx, audit.ActionJoinSession, userID, sessionID, "participant joined")
	}
	return participant, nil
}

// UpdateParticipantStatus sets the caller's status and, when activity is
// non-nil, their activity label.
func (s *BodyDoublingService) UpdateParticipantStatus(ctx context.Context, userID, sessionID uint, status models.ParticipantStatus, activity *string) (*models.Participant, error) {
	if !status.Valid() {
		return nil, validationError("unknown status %q", status)
	}
	if activity != nil && utf8.RuneCountInString(*activity) > MaxActivityLength {
		return nil, validationError("activity must be at most %d characters", MaxActivityLength)
	}

	var participant *models.Participant
	err := s.store.InSession(ctx, sessionID, func(tx database.SessionTx) error {
		if tx.Session().IsEnded() {
			return ErrSessionClosed
		}

		p, err := tx.FindParticipant(userID)
		if err != nil {
			return err
		}

		p.Status = status
		if activity != nil {
			p.CurrentActivity = *activity
		}
		p.LastActiveAt = s.now()
		if err := tx.SaveParticipant(p); err != nil {
			return err
		}
		participant = p
		return nil
	})
	if err != nil {
		return nil, mapStoreError(err)
	}

	s.notifier.Notify(ctx, sessionID)
	return participant, nil
}

// LeaveSession marks the caller offline. The participant row is kept for
// history and the user may join again later.
func (s *BodyDoublingService) LeaveSession(ctx context.Context, userID, sessionID uint) (*models.Participant, error) {
	p, err := s.UpdateParticipantStatus(ctx, userID, sessionID, models.StatusOffline, nil)
	if err != nil {
		return nil, err
	}
	audit.Log(ctx, audit.ActionLeaveSession, userID, sessionID, "participant left")
	return p, nil
}

// PostMessage appends a message to the session. The author must be a
// participant of an active session.
func (s *BodyDoublingService) PostMessage(ctx context.Context, userID, sessionID uint, body string, kind models.MessageKind) (*models.Message, error) {
	if kind == "" {
		kind = models.KindChat
	}
	if !kind.Valid() {
		return nil, validationError("unknown message kind %q", kind)
	}
	if n := utf8.RuneCountInString(body); n < 1 || n > MaxMessageLength {
		return nil, validationError("message must be 1-%d characters", MaxMessageLength)
	}

	var message *models.Message
	err := s.store.InSession(ctx, sessionID, func(tx database.SessionTx) error {
		if tx.Session().IsEnded() {
			return ErrSessionClosed
		}
		if _, err := tx.FindParticipant(userID); err != nil {
			return err
		}

		m := &models.Message{
			UserID:    userID,
			Body:      body,
			Kind:      kind,
			CreatedAt: s.now(),
		}
		if err := tx.CreateMessage(m); err != nil {
			return err
		}
		message = m
		return nil
	})
	if err != nil {
		return nil, mapStoreError(err)
	}

	s.notifier.Notify(ctx, sessionID)
	return message, nil
}

// EndSession closes the session. Only its owner may do so.
func (s *BodyDoublingService) EndSession(ctx context.Context, userID, sessionID uint) (*models.Session, error) {
	var ended *models.Session
	err := s.store.InSession(ctx, sessionID, func(tx database.SessionTx) error {
		session := tx.Session()
		if session.OwnerID != userID {
			return ErrForbidden
		}
		if session.IsEnded() {
			return ErrSessionClosed
		}
		if err := tx.EndSession(s.now()); err != nil {
			return err
		}
		ended = session
		return nil
	})
	if err != nil {
		return nil, mapStoreError(err)
	}

	s.notifier.Notify(ctx, sessionID)
	audit.Log(ctx, audit.ActionEndSession, userID, sessionID, "body doubling session ended")
	return ended, nil
}

// DeleteSession removes the session with its participants and messages.
// Only its owner may do so.
func (s *BodyDoublingService) DeleteSession(ctx context.Context, userID, sessionID uint) error {
	session, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return mapStoreError(err)
	}
	if session.OwnerID != userID {
		return ErrForbidden
	}

	if err := s.store.DeleteSession(ctx, sessionID); err != nil {
		return mapStoreError(err)
	}

	s.notifier.Notify(ctx, sessionID)
	audit.Log(ctx, audit.ActionDeleteSession, userID, sessionID, "body doubling session deleted")
	return nil
}

func mapStoreError(err error) error {
	switch {
	case errors.Is(err, database.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, database.ErrAlreadyExists):
		return ErrConflict
	}
	return err
}
