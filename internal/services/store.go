package services

import (
	"context"

	"github.com/thereayou/ritual-union/internal/database"
	"github.com/thereayou/ritual-union/internal/models"
)

// SessionStore is the persistence contract of the body-doubling core.
// *database.Database implements it.
type SessionStore interface {
	CreateSession(ctx context.Context, session *models.Session) error
	GetSession(ctx context.Context, id uint) (*models.Session, error)
	ListActiveSessions(ctx context.Context) ([]models.Session, error)
	DeleteSession(ctx context.Context, id uint) error
	InSession(ctx context.Context, id uint, fn func(tx database.SessionTx) error) error
	MessagesAfter(ctx context.Context, sessionID, afterID uint) ([]models.Message, error)
}

// UserStore backs the account operations.
type UserStore interface {
	SaveUser(ctx context.Context, user *models.User) error
	GetUser(ctx context.Context, id uint) (*models.User, error)
	FindUserByEmail(ctx context.Context, email string) (*models.User, error)
	UpdateLastSeen(ctx context.Context, id uint) error
}

var (
	_ SessionStore = (*database.Database)(nil)
	_ UserStore    = (*database.Database)(nil)
)
