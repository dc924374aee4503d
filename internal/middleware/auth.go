package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/thereayou/ritual-union/pkg/auth"
	"github.com/thereayou/ritual-union/pkg/log"
	"github.com/thereayou/ritual-union/pkg/response"
)

const (
	UserIDKey = log.ContextUserIDKey
	TokenKey  = "token"
)

// AuthMiddleware requires a bearer token in the Authorization header.
func AuthMiddleware(authn auth.Authenticator) gin.HandlerFunc {
	return authenticate(authn, auth.ExtractTokenFromHeader)
}

// StreamAuthMiddleware also accepts ?token=, since browsers cannot set
// headers on WebSocket and EventSource requests.
func StreamAuthMiddleware(authn auth.Authenticator) gin.HandlerFunc {
	return authenticate(authn, auth.ExtractToken)
}

func authenticate(authn auth.Authenticator, extract func(*http.Request) (string, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := extract(c.Request)
		if err != nil {
			abortUnauthorized(c, "missing or invalid token")
			return
		}

		userID, err := authn.Authenticate(c.Request.Context(), token)
		if err != nil {
			switch {
			case errors.Is(err, auth.ErrRevokedToken):
				abortUnauthorized(c, "token is revoked")
			case errors.Is(err, auth.ErrInvalidToken), errors.Is(err, auth.ErrMissingToken):
				abortUnauthorized(c, "invalid token")
			default:
				l := log.Ctx(c.Request.Context())
				l.Error().Err(err).Msg("authenticate request")
				abortUnauthorized(c, "could not verify token")
			}
			return
		}

		c.Set(UserIDKey, userID)
		c.Set(TokenKey, token)
		c.Next()
	}
}

func abortUnauthorized(c *gin.Context, msg string) {
	response.Abort(c, http.StatusUnauthorized, response.CodeUnauthorized, msg)
}

// UserID returns the authenticated caller's id.
func UserID(c *gin.Context) (uint, bool) {
	v, ok := c.Get(UserIDKey)
	if !ok {
		return 0, false
	}
	id, ok := v.(uint)
	return id, ok
}
