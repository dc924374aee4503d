package database

import (
	"context"
	"time"

	"github.com/thereayou/ritual-union/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SessionTx is the view of a single session available while its row is
// locked. All methods run inside the same transaction.
type SessionTx interface {
	Session() *models.Session
	FindParticipant(userID uint) (*models.Participant, error)
	CountParticipants() (int, error)
	CreateParticipant(p *models.Participant) error
	SaveParticipant(p *models.Participant) error
	CreateMessage(m *models.Message) error
	EndSession(at time.Time) error
}

// CreateSession inserts the session together with its initial participants.
func (d *Database) CreateSession(ctx context.Context, session *models.Session) error {
	return d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Owner").Create(session).Error; err != nil {
			return err
		}
		return tx.Preload("Participants.User").First(session, session.ID).Error
	})
}

func (d *Database) GetSession(ctx context.Context, id uint) (*models.Session, error) {
	var session models.Session
	err := d.db.WithContext(ctx).
		Preload("Participants", func(db *gorm.DB) *gorm.DB { return db.Order("participants.id ASC") }).
		Preload("Participants.User").
		First(&session, id).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &session, nil
}

func (d *Database) ListActiveSessions(ctx context.Context) ([]models.Session, error) {
	var sessions []models.Session
	err := d.db.WithContext(ctx).
		Where("ended_at IS NULL").
		Order("started_at DESC").
		Order("id DESC").
		Preload("Participants", func(db *gorm.DB) *gorm.DB { return db.Order("participants.id ASC") }).
		Preload("Participants.User").
		Find(&sessions).Error
	return sessions, err
}

// DeleteSession removes the session with its participants and messages.
func (d *Database) DeleteSession(ctx context.Context, id uint) error {
	return d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var session models.Session
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&session, id).Error; err != nil {
			return notFound(err)
		}
		if err := tx.Delete(&models.Message{}, "session_id = ?", id).Error; err != nil {
			return err
		}
		if err := tx.Delete(&models.Participant{}, "session_id = ?", id).Error; err != nil {
			return err
		}
		return tx.Delete(&session).Error
	})
}

// InSession runs fn in a transaction holding a row lock on the session, so
// concurrent callers for the same session are serialized.
func (d *Database) InSession(ctx context.Context, id uint, fn func(tx SessionTx) error) error {
	return d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var session models.Session
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&session, id).Error; err != nil {
			return notFound(err)
		}
		return fn(&sessionTx{tx: tx, session: &session})
	})
}

type sessionTx struct {
	tx      *gorm.DB
	session *models.Session
}

func (s *sessionTx) Session() *models.Session {
	return s.session
}

func (s *sessionTx) FindParticipant(userID uint) (*models.Participant, error) {
	var p models.Participant
	err := s.tx.Preload("User").
		Where("session_id = ? AND user_id = ?", s.session.ID, userID).
		First(&p).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

func (s *sessionTx) CountParticipants() (int, error) {
	var n int64
	err := s.tx.Model(&models.Participant{}).Where("session_id = ?", s.session.ID).Count(&n).Error
	return int(n), err
}

func (s *sessionTx) CreateParticipant(p *models.Participant) error {
	p.SessionID = s.session.ID
	if err := s.tx.Omit("User").Create(p).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrAlreadyExists
		}
		return err
	}
	return s.tx.Preload("User").First(p, p.ID).Error
}

func (s *sessionTx) SaveParticipant(p *models.Participant) error {
	return s.tx.Model(p).Select("status", "current_activity", "last_active_at").Updates(p).Error
}

func (s *sessionTx) CreateMessage(m *models.Message) error {
	m.SessionID = s.session.ID
	if err := s.tx.Omit("User").Create(m).Error; err != nil {
		return err
	}
	return s.tx.Preload("User").First(m, m.ID).Error
}

func (s *sessionTx) EndSession(at time.Time) error {
	if err := s.tx.Model(s.session).Update("ended_at", at).Error; err != nil {
		return err
	}
	s.session.EndedAt = &at
	return nil
}
