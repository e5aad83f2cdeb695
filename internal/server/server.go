package server

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/garba-app/apiserver/config"
	"github.com/garba-app/apiserver/internal/db"
	"github.com/garba-app/apiserver/internal/events"
	"github.com/garba-app/apiserver/internal/handlers"
	"github.com/garba-app/apiserver/internal/services"
	"github.com/garba-app/apiserver/internal/storage"
	"github.com/garba-app/apiserver/internal/store"
)

// Server wraps the HTTP server and its shared resources.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	db         *sql.DB
	publisher  *events.Publisher
}

// New constructs a Server with all dependencies wired.
func New(ctx context.Context, cfg config.Config) (*Server, error) {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	dbConn, err := db.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}

	objectStorage, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		_ = dbConn.Close()
		return nil, err
	}
	if err := objectStorage.EnsureBucket(ctx); err != nil {
		_ = dbConn.Close()
		return nil, err
	}

	publisher, err := events.New(ctx, cfg.Events)
	if err != nil {
		_ = dbConn.Close()
		return nil, err
	}

	tokens, err := services.NewTokenService(cfg.JWT.Secret, cfg.JWT.TokenTTL)
	if err != nil {
		_ = dbConn.Close()
		return nil, err
	}

	userRepo := store.NewUserRepository(dbConn)
	imageRepo := store.NewImageRepository(dbConn)

	imageService := services.NewImageService(imageRepo, objectStorage, logger)

	var eventPublisher services.EventPublisher
	if publisher != nil {
		eventPublisher = publisher
	}
	userService := services.NewUserService(userRepo, imageService, tokens, eventPublisher, logger)

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		middleware.Logger,
		middleware.Timeout(60*time.Second),
	)
	router.Get("/healthz", handlers.Healthz)
	router.Route("/api/users", func(r chi.Router) {
		handlers.UserRouter(r, userService)
	})
	router.Route("/api/profile", func(r chi.Router) {
		handlers.ProfileRouter(r, userService, imageService, tokens)
	})
	router.Route("/api/admin", func(r chi.Router) {
		handlers.AdminRouter(r, userService, tokens, cfg.Admin)
	})

	port := cfg.ServerPort
	if port == 0 {
		port = 8080
	}

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: httpServer,
		router:     router,
		db:         dbConn,
		publisher:  publisher,
	}, nil
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start runs the HTTP server.
func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown attempts a graceful shutdown.
func (s *Server) Shutdown() error {
	if s.db != nil {
		_ = s.db.Close()
	}
	if s.publisher != nil {
		_ = s.publisher.Close()
	}
	return s.httpServer.Close()
}
