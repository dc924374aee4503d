package dto

// MessagePayload is the body of a posted message, over HTTP or a feed
// WebSocket frame.
type MessagePayload struct {
	Body string `json:"body" binding:"required"`
	Kind string `json:"kind,omitempty"` // chat, encouragement, system
}

// StatusPayload updates the caller's participant status.
type StatusPayload struct {
	Status          string  `json:"status" binding:"required"`
	CurrentActivity *string `json:"current_activity"`
}
