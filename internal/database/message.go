package database

import (
	"context"

	"github.com/thereayou/ritual-union/internal/models"
)

// MessagesAfter returns the session's messages with id > afterID in id order.
func (d *Database) MessagesAfter(ctx context.Context, sessionID, afterID uint) ([]models.Message, error) {
	var messages []models.Message
	err := d.db.WithContext(ctx).
		Where("session_id = ? AND id > ?", sessionID, afterID).
		Order("id ASC").
		Preload("User").
		Find(&messages).Error
	return messages, err
}
