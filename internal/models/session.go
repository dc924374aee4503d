package models

import "time"

const (
	MinParticipants     = 2
	MaxParticipants     = 20
	DefaultParticipants = 10
)

// Session is a body-doubling co-working session. A nil EndedAt means the
// session is still active.
type Session struct {
	ID              uint       `gorm:"primaryKey"`
	Name            string     `gorm:"size:100;not null"`
	OwnerID         uint       `gorm:"not null;index"`
	MaxParticipants int        `gorm:"not null;default:10"`
	StartedAt       time.Time  `gorm:"not null;index"`
	EndedAt         *time.Time `gorm:"index"`

	// Связи
	Owner        User          `gorm:"foreignKey:OwnerID"`
	Participants []Participant `gorm:"foreignKey:SessionID;constraint:OnDelete:CASCADE"`
	Messages     []Message     `gorm:"foreignKey:SessionID;constraint:OnDelete:CASCADE"`
}

func (s *Session) IsEnded() bool {
	return s.EndedAt != nil
}
