package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/thereayou/ritual-union/internal/handlers/dto"
	"github.com/thereayou/ritual-union/internal/middleware"
	"github.com/thereayou/ritual-union/internal/models"
	"github.com/thereayou/ritual-union/internal/services"
	"github.com/thereayou/ritual-union/pkg/response"
)

type AuthHandler struct {
	accounts *services.AccountService
	tokenTTL time.Duration
}

func NewAuthHandler(accounts *services.AccountService, tokenTTL time.Duration) *AuthHandler {
	return &AuthHandler{accounts: accounts, tokenTTL: tokenTTL}
}

func (h *AuthHandler) Register(c *gin.Context) {
	var req dto.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeValidation, err.Error())
		return
	}

	user, err := h.accounts.Register(c.Request.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		respondError(c, err)
		return
	}

	response.Created(c, userInfo(user))
}

// Login issues a bearer token.
func (h *AuthHandler) Login(c *gin.Context) {
	var req dto.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeValidation, err.Error())
		return
	}

	token, user, err := h.accounts.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, dto.TokenResponse{
		Token:     token,
		ExpiresAt: time.Now().Add(h.tokenTTL),
		User:      userInfo(user),
	})
}

// Logout revokes the caller's token until it expires.
func (h *AuthHandler) Logout(c *gin.Context) {
	token := c.GetString(middleware.TokenKey)
	if err := h.accounts.Logout(c.Request.Context(), currentUserID(c), token); err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, gin.H{"message": "logged out"})
}

func userInfo(u *models.User) dto.UserInfo {
	return dto.UserInfo{
		ID:         u.ID,
		Name:       u.Name,
		Email:      u.Email,
		CreatedAt:  u.CreatedAt,
		LastSeenAt: u.LastSeenAt,
	}
}
