package models

import "time"

type MessageKind string

const (
	KindChat          MessageKind = "chat"
	KindEncouragement MessageKind = "encouragement"
	KindSystem        MessageKind = "system"
)

func (k MessageKind) Valid() bool {
	switch k {
	case KindChat, KindEncouragement, KindSystem:
		return true
	}
	return false
}

// Message ids come from an auto-increment key, so they grow strictly in
// insert order. Live feeds use the id as their watermark.
type Message struct {
	ID        uint        `gorm:"primaryKey;autoIncrement"`
	SessionID uint        `gorm:"not null;index:idx_message_session_id"`
	UserID    uint        `gorm:"not null"`
	Body      string      `gorm:"not null;size:500"`
	Kind      MessageKind `gorm:"size:16;not null;default:'chat'"`
	CreatedAt time.Time

	User User `gorm:"foreignKey:UserID"`
}
