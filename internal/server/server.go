package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shieldline/siteapi/config"
	"github.com/shieldline/siteapi/internal/db"
	"github.com/shieldline/siteapi/internal/mq"
	"github.com/shieldline/siteapi/internal/ratelimit"
	"github.com/shieldline/siteapi/internal/services"
	"github.com/shieldline/siteapi/internal/storage"
	"github.com/shieldline/siteapi/internal/store"
)

const (
	shutdownTimeout     = 15 * time.Second
	sessionPurgeEvery   = time.Hour
	sessionPurgeTimeout = 30 * time.Second
)

// Server wraps the HTTP server and router.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	db         *db.DB
	backend    mq.Backend
	limits     ratelimit.Store
	auth       *services.AuthService
	logger     *slog.Logger

	stop     context.CancelFunc
	stopped  chan struct{}
	shutdown sync.Once
}

// New opens the database, storage, messaging and rate limit backends and
// builds the router.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	dbConn, err := db.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}

	objects, err := storage.Open(ctx, cfg)
	if err != nil {
		_ = dbConn.Close()
		return nil, fmt.Errorf("open storage: %w", err)
	}

	backend, err := mq.Open(ctx, cfg.Messaging)
	if err != nil {
		_ = dbConn.Close()
		return nil, fmt.Errorf("open messaging: %w", err)
	}

	limits, err := openLimitStore(ctx, cfg.Redis, logger)
	if err != nil {
		_ = backend.Close()
		_ = dbConn.Close()
		return nil, fmt.Errorf("open rate limit store: %w", err)
	}

	userRepo := store.NewUserRepository(dbConn)
	sessionRepo := store.NewSessionRepository(dbConn)
	roleRepo := store.NewRoleRepository(dbConn)
	blogRepo := store.NewBlogRepository(dbConn)
	consultationRepo := store.NewConsultationRepository(dbConn)
	contactRepo := store.NewContactRepository(dbConn)
	activityRepo := store.NewActivityRepository(dbConn)

	tokens := services.NewTokenIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	activity := services.NewActivityService(activityRepo, logger)
	perms := services.NewPermissionService(roleRepo)
	auth := services.NewAuthService(userRepo, sessionRepo, tokens, activity, cfg.Auth, logger)

	deps := Dependencies{
		Auth:     auth,
		Perms:    perms,
		Activity: activity,
		Users:    services.NewUserService(userRepo, roleRepo, perms),
		Roles:    services.NewRoleService(roleRepo),
		Blog:     services.NewBlogService(blogRepo, logger),
		Leads: services.NewLeadService(
			consultationRepo,
			contactRepo,
			userRepo,
			mq.NewNotifier(backend, cfg.Messaging.LeadChannel, logger),
		),
		Uploads: services.NewUploadService(objects, cfg.Upload.MaxBytes),
		Stats:   services.NewStatsService(blogRepo, consultationRepo, contactRepo, userRepo),
		Limiter: ratelimit.NewLimiter(limits, logger),
		DB:      dbConn,
	}

	if created, err := deps.Roles.EnsureDefaults(ctx); err != nil {
		logger.Warn("ensure default roles", "error", err)
	} else if created > 0 {
		logger.Info("created default roles", "count", created)
	}

	router := NewRouter(cfg, logger, deps)

	port := cfg.ServerPort
	if port == 0 {
		port = 8080
	}

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return &Server{
		httpServer: httpServer,
		router:     router,
		db:         dbConn,
		backend:    backend,
		limits:     limits,
		auth:       auth,
		logger:     logger,
	}, nil
}

func openLimitStore(ctx context.Context, cfg config.RedisConfig, logger *slog.Logger) (ratelimit.Store, error) {
	if cfg.URL == "" {
		logger.Info("rate limits kept in memory")
		return ratelimit.NewMemoryStore(), nil
	}
	rs, err := ratelimit.NewRedisStore(ctx, cfg.URL, cfg.KeyPrefix)
	if err != nil {
		return nil, err
	}
	logger.Info("rate limits kept in redis")
	return rs, nil
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start runs the HTTP server and the expired session purge until Shutdown
// is called. It returns nil after a graceful shutdown.
func (s *Server) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.stop = cancel
	s.stopped = make(chan struct{})
	go func() {
		defer close(s.stopped)
		s.purgeSessions(ctx)
	}()

	s.logger.Info("http server listening", "addr", s.httpServer.Addr)
	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests and closes the backends.
func (s *Server) Shutdown() error {
	var err error
	s.shutdown.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		err = s.httpServer.Shutdown(ctx)
		if s.stop != nil {
			s.stop()
			<-s.stopped
		}
		if s.backend != nil {
			_ = s.backend.Close()
		}
		if c, ok := s.limits.(io.Closer); ok {
			_ = c.Close()
		}
		if s.db != nil {
			_ = s.db.Close()
		}
	})
	return err
}

func (s *Server) purgeSessions(ctx context.Context) {
	ticker := time.NewTicker(sessionPurgeEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			purgeCtx, cancel := context.WithTimeout(ctx, sessionPurgeTimeout)
			n, err := s.auth.PurgeExpiredSessions(purgeCtx)
			cancel()
			if err != nil {
				s.logger.Error("purge expired sessions", "error", err)
				continue
			}
			if n > 0 {
				s.logger.Info("purged expired sessions", "count", n)
			}
		}
	}
}
