package models

import "time"

type ParticipantStatus string

const (
	StatusFocusing ParticipantStatus = "focusing"
	StatusOnBreak  ParticipantStatus = "on_break"
	StatusOffline  ParticipantStatus = "offline"
)

func (s ParticipantStatus) Valid() bool {
	switch s {
	case StatusFocusing, StatusOnBreak, StatusOffline:
		return true
	}
	return false
}

type Participant struct {
	ID              uint              `gorm:"primaryKey"`
	SessionID       uint              `gorm:"not null;uniqueIndex:idx_participant_session_user"`
	UserID          uint              `gorm:"not null;uniqueIndex:idx_participant_session_user"`
	Status          ParticipantStatus `gorm:"size:16;not null;default:'focusing'"`
	CurrentActivity string            `gorm:"size:100"`
	LastActiveAt    time.Time         `gorm:"not null"`
	JoinedAt        time.Time

	User User `gorm:"foreignKey:UserID"`
}
