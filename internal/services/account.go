package services

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"

	"github.com/thereayou/ritual-union/internal/audit"
	"github.com/thereayou/ritual-union/internal/database"
	"github.com/thereayou/ritual-union/internal/models"
	"github.com/thereayou/ritual-union/pkg/log"
)

const (
	MaxUserNameLength = 50
	MinPasswordLength = 8
)

// TokenIssuer signs and revokes bearer tokens.
type TokenIssuer interface {
	Generate(userID uint) (string, error)
	Revoke(ctx context.Context, token string) error
}

// AccountService registers users and hands out bearer tokens.
type AccountService struct {
	users  UserStore
	tokens TokenIssuer
	cost   int
}

func NewAccountService(users UserStore, tokens TokenIssuer) *AccountService {
	return &AccountService{users: users, tokens: tokens, cost: bcrypt.DefaultCost}
}

func (s *AccountService) Register(ctx context.Context, name, email, password string) (*models.User, error) {
	name = strings.TrimSpace(name)
	email = strings.ToLower(strings.TrimSpace(email))

	if name == "" || utf8.RuneCountInString(name) > MaxUserNameLength {
		return nil, validationError("name must be 1-%d characters", MaxUserNameLength)
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, validationError("invalid email address")
	}
	if len(password) < MinPasswordLength {
		return nil, validationError("password must be at least %d characters", MinPasswordLength)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		Name:         name,
		Email:        email,
		PasswordHash: string(hash),
		CreatedAt:    time.Now(),
	}
	if err := s.users.SaveUser(ctx, user); err != nil {
		return nil, mapStoreError(err)
	}

	audit.Log(ctx, audit.ActionRegister, user.ID, 0, "user registered")
	return user, nil
}

// Login checks the credentials and returns a fresh token.
func (s *AccountService) Login(ctx context.Context, email, password string) (string, *models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	user, err := s.users.FindUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return "", nil, ErrUnauthorized
		}
		return "", nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", nil, ErrUnauthorized
	}

	if err := s.users.UpdateLastSeen(ctx, user.ID); err != nil {
		l := log.Ctx(ctx)
		l.Warn().Err(err).Uint(log.FieldUserID, user.ID).Msg("update last seen")
	}

	token, err := s.tokens.Generate(user.ID)
	if err != nil {
		return "", nil, err
	}
	return token, user, nil
}

func (s *AccountService) Logout(ctx context.Context, userID uint, token string) error {
	if err := s.tokens.Revoke(ctx, token); err != nil {
		return err
	}
	audit.Log(ctx, audit.ActionLogout, userID, 0, "token revoked")
	return nil
}

func (s *AccountService) Me(ctx context.Context, userID uint) (*models.User, error) {
	user, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return nil, mapStoreError(err)
	}
	return user, nil
}
