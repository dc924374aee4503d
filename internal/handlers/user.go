package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/thereayou/ritual-union/internal/services"
	"github.com/thereayou/ritual-union/pkg/response"
)

type UserHandler struct {
	accounts *services.AccountService
}

func NewUserHandler(accounts *services.AccountService) *UserHandler {
	return &UserHandler{accounts: accounts}
}

// GetMe returns the authenticated user.
func (h *UserHandler) GetMe(c *gin.Context) {
	user, err := h.accounts.Me(c.Request.Context(), currentUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, userInfo(user))
}
