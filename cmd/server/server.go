package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"golang.org/x/sync/errgroup"

	"github.com/thereayou/ritual-union/internal/config"
	"github.com/thereayou/ritual-union/internal/database"
	"github.com/thereayou/ritual-union/internal/handlers"
	"github.com/thereayou/ritual-union/internal/pubsub"
	"github.com/thereayou/ritual-union/internal/services"
	"github.com/thereayou/ritual-union/internal/websocket"
	"github.com/thereayou/ritual-union/pkg/auth"
	"github.com/thereayou/ritual-union/pkg/log"
)

type Server struct {
	cfg    *config.Config
	Router *gin.Engine
	DB     *database.Database
	Redis  *redis.Client
	Hub    *websocket.Hub
}

func NewServer(ctx context.Context, cfg *config.Config) (*Server, error) {
	l := log.Ctx(ctx)

	db, err := database.Open(cfg.DatabaseConfig())
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}
	l.Info().Str("driver", cfg.Database.Driver).Msg("database connected")

	var (
		rdb       *redis.Client
		blacklist auth.Blacklist    = auth.NewMemoryBlacklist()
		notifier  services.Notifier = services.NewLocalNotifier()
	)
	if cfg.Redis.URL != "" {
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
		}
		rdb = redis.NewClient(opts)
		if err := rdb.Ping(ctx).Err(); err != nil {
			db.Close()
			return nil, fmt.Errorf("redis: %w", err)
		}
		blacklist = auth.NewRedisBlacklist(rdb)
		notifier = pubsub.NewRedisNotifier(rdb)
		l.Info().Msg("redis connected")
	} else {
		l.Warn().Msg("REDIS_URL is not set, token revocation and feed nudges stay in process")
	}

	jwtMgr := auth.NewJWTManager(cfg.JWT.Secret, cfg.JWT.TTL)
	authn := auth.NewTokenAuthenticator(jwtMgr, blacklist)

	accounts := services.NewAccountService(db, authn)
	sessions := services.NewBodyDoublingService(db, notifier)
	publisher := services.NewFeedPublisher(db, notifier, cfg.Feed.PollInterval)
	hub := websocket.NewHub()

	h := Handlers{
		Auth:    handlers.NewAuthHandler(accounts, cfg.JWT.TTL),
		User:    handlers.NewUserHandler(accounts),
		Session: handlers.NewSessionHandler(sessions, hub),
		Message: handlers.NewHTTPMessageHandler(sessions),
		Feed:    handlers.NewFeedHandler(sessions, publisher, hub, handlers.NewMessageHandler(sessions)),
		Health:  handlers.NewHealthHandler(db, rdb),
		AuthN:   authn,
		Logger:  log.L(),
	}

	return &Server{
		cfg:    cfg,
		Router: NewRouter(h),
		DB:     db,
		Redis:  rdb,
		Hub:    hub,
	}, nil
}

// Run serves HTTP and the feed hub until ctx is cancelled, then shuts both
// down within the configured timeout.
func (s *Server) Run(ctx context.Context) error {
	l := log.Ctx(ctx)

	srv := &http.Server{
		Addr:    s.cfg.Addr(),
		Handler: s.Router,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return s.Hub.Run(gctx)
	})

	g.Go(func() error {
		l.Info().Str("addr", srv.Addr).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		l.Info().Msg("shutting down")

		// Live feeds never finish on their own, so they are cancelled
		// before the server waits for in-flight requests.
		s.Hub.Stop()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	err := g.Wait()
	s.close()
	return err
}

func (s *Server) close() {
	logger := log.L()
	if err := s.DB.Close(); err != nil {
		logger.Warn().Err(err).Msg("close database")
	}
	if s.Redis != nil {
		if err := s.Redis.Close(); err != nil {
			logger.Warn().Err(err).Msg("close redis")
		}
	}
}
