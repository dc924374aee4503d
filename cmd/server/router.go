package main

import (
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/thereayou/ritual-union/internal/handlers"
	"github.com/thereayou/ritual-union/internal/middleware"
	"github.com/thereayou/ritual-union/pkg/auth"
	"github.com/thereayou/ritual-union/pkg/log"
)

type Handlers struct {
	Auth    *handlers.AuthHandler
	User    *handlers.UserHandler
	Session *handlers.SessionHandler
	Message *handlers.HTTPMessageHandler
	Feed    *handlers.FeedHandler
	Health  *handlers.HealthHandler
	AuthN   auth.Authenticator
	Logger  zerolog.Logger
}

func NewRouter(h Handlers) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), log.GinMiddleware(h.Logger))

	r.GET("/health", h.Health.Check)

	// Auth endpoints
	authGroup := r.Group("/auth")
	{
		authGroup.POST("/register", h.Auth.Register)
		authGroup.POST("/login", h.Auth.Login)
		authGroup.POST("/logout", middleware.AuthMiddleware(h.AuthN), h.Auth.Logout)
	}

	// API endpoints
	api := r.Group("/api/v1")
	api.Use(middleware.AuthMiddleware(h.AuthN))
	{
		api.GET("/me", h.User.GetMe)

		api.GET("/sessions", h.Session.ListSessions)
		api.POST("/sessions", h.Session.CreateSession)
		api.GET("/sessions/:id", h.Session.GetSession)
		api.DELETE("/sessions/:id", h.Session.DeleteSession)
		api.POST("/sessions/:id/join", h.Session.JoinSession)
		api.POST("/sessions/:id/leave", h.Session.LeaveSession)
		api.POST("/sessions/:id/end", h.Session.EndSession)
		api.PUT("/sessions/:id/status", h.Session.UpdateStatus)
		api.POST("/sessions/:id/messages", h.Message.PostMessage)
	}

	// Feeds accept ?token= as well
	feed := r.Group("/api/v1/sessions/:id/feed")
	feed.Use(middleware.StreamAuthMiddleware(h.AuthN))
	{
		feed.GET("", h.Feed.HandleSSE)
		feed.GET("/ws", h.Feed.HandleWebSocket)
	}

	return r
}
