package dto

import (
	"time"

	"github.com/thereayou/ritual-union/internal/models"
	"github.com/thereayou/ritual-union/internal/services"
)

type CreateSessionRequest struct {
	Name            string `json:"name" binding:"required"`
	MaxParticipants *int   `json:"max_participants"`
}

// SessionResponse is a session with its roster.
type SessionResponse struct {
	services.SessionSummary
	ParticipantCount int                        `json:"participant_count"`
	Participants     []services.ParticipantView `json:"participants"`
	Watchers         *int                       `json:"watchers,omitempty"`
}

func NewSessionResponse(s *models.Session) SessionResponse {
	return SessionResponse{
		SessionSummary:   services.NewSessionSummary(s),
		ParticipantCount: len(s.Participants),
		Participants:     services.NewParticipantViews(s.Participants),
	}
}

func NewSessionListResponse(sessions []models.Session) []SessionResponse {
	out := make([]SessionResponse, len(sessions))
	for i := range sessions {
		out[i] = NewSessionResponse(&sessions[i])
	}
	return out
}

type EndSessionResponse struct {
	ID      uint      `json:"id"`
	EndedAt time.Time `json:"ended_at"`
}
