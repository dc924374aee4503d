package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/thereayou/ritual-union/internal/middleware"
	"github.com/thereayou/ritual-union/internal/services"
	"github.com/thereayou/ritual-union/internal/websocket"
	"github.com/thereayou/ritual-union/pkg/log"
	"github.com/thereayou/ritual-union/pkg/response"
)

// errorStatus maps a service error to its HTTP status and error code.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, services.ErrValidation):
		return http.StatusBadRequest, response.CodeValidation
	case errors.Is(err, services.ErrUnauthorized):
		return http.StatusUnauthorized, response.CodeUnauthorized
	case errors.Is(err, services.ErrForbidden):
		return http.StatusForbidden, response.CodeForbidden
	case errors.Is(err, services.ErrNotFound):
		return http.StatusNotFound, response.CodeNotFound
	case errors.Is(err, services.ErrSessionClosed):
		return http.StatusConflict, response.CodeSessionClosed
	case errors.Is(err, services.ErrSessionFull):
		return http.StatusConflict, response.CodeSessionFull
	case errors.Is(err, services.ErrConflict):
		return http.StatusConflict, response.CodeConflict
	case errors.Is(err, websocket.ErrInvalidMessage):
		return http.StatusBadRequest, response.CodeBadRequest
	}
	return http.StatusInternalServerError, response.CodeInternal
}

func respondError(c *gin.Context, err error) {
	status, code := errorStatus(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		l := log.Ctx(c.Request.Context())
		l.Error().Err(err).Msg("request failed")
		_ = c.Error(err)
		msg = "internal server error"
	}
	response.Error(c, status, code, msg)
}

func currentUserID(c *gin.Context) uint {
	id, _ := middleware.UserID(c)
	return id
}

func sessionIDParam(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		response.BadRequest(c, "invalid session id")
		return 0, false
	}
	return uint(id), true
}
