// Package server exposes the playback session over HTTP: REST endpoints for
// the trajectory and interpolated states, and a websocket playback stream.
package server

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/gorilla/websocket"

	"github.com/fleray/Flight-Simulator/internal/auth"
	"github.com/fleray/Flight-Simulator/internal/db"
	"github.com/fleray/Flight-Simulator/internal/metrics"
	"github.com/fleray/Flight-Simulator/pkg/config"
	"github.com/fleray/Flight-Simulator/pkg/playback"
	"github.com/fleray/Flight-Simulator/pkg/trace"
)

// UploadRecorder stores the audit record of an accepted upload.
type UploadRecorder interface {
	Record(ctx context.Context, u *db.Upload) error
}

// lastLoginRecorder is implemented by account stores that track logins.
type lastLoginRecorder interface {
	UpdateLastLogin(ctx context.Context, userID int) error
}

// Deps are the collaborators of a Server. Uploads and Source are optional.
type Deps struct {
	Session  *playback.Session
	Auth     *auth.Service
	Accounts auth.AccountStore
	Uploads  UploadRecorder
	Source   trace.Source
	Health   func(ctx context.Context) bool
}

// Server holds the HTTP router and its dependencies
type Server struct {
	router   *chi.Mux
	deps     Deps
	cfg      *config.Config
	upgrader websocket.Upgrader
}

// New creates a server and configures its routes.
func New(cfg *config.Config, deps Deps) *Server {
	s := &Server{
		router: chi.NewRouter(),
		deps:   deps,
		cfg:    cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return originAllowed(cfg.Server.AllowedOrigins, r) },
		},
	}
	s.setupRoutes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	r := s.router

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.cfg.Server.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Content-Encoding"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		// Public routes
		r.Post("/auth/login", s.handleLogin)
		r.Get("/trajectory", s.handleGetTrajectory)
		r.Get("/trajectory/at", s.handleGetAt)
		r.Get("/playback/ws", s.handlePlaybackStream)

		// Protected routes (require authentication)
		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)
			r.Get("/auth/me", s.handleGetCurrentUser)

			r.Group(func(r chi.Router) {
				r.Use(requireRole(auth.CanUploadTraces))
				r.Post("/trajectory", s.handleUploadTrajectory)
				r.Post("/trajectory/fetch/{icao}", s.handleFetchTrajectory)
				r.Post("/trajectory/reset", s.handleResetTrajectory)
			})
		})
	})
}

type contextKey string

const claimsKey contextKey = "claims"

// claimsFrom returns the authenticated claims, or nil for anonymous requests.
func claimsFrom(ctx context.Context) *auth.Claims {
	claims, _ := ctx.Value(claimsKey).(*auth.Claims)
	return claims
}

// authMiddleware validates the bearer token and stores its claims in the request context.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			respondError(w, http.StatusUnauthorized, "Missing authorization header")
			return
		}

		token, ok := strings.CutPrefix(authHeader, "Bearer ")
		if !ok || token == "" {
			respondError(w, http.StatusUnauthorized, "Invalid authorization header format")
			return
		}

		claims, err := s.deps.Auth.ValidateToken(token)
		if err != nil {
			respondError(w, http.StatusUnauthorized, "Invalid or expired token")
			return
		}

		ctx := context.WithValue(r.Context(), claimsKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireRole rejects requests whose role fails allowed.
func requireRole(allowed func(role string) bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := claimsFrom(r.Context())
			if claims == nil || !allowed(claims.Role) {
				respondError(w, http.StatusForbidden, auth.ErrUnauthorized.Error())
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func originAllowed(allowed []string, r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, a := range allowed {
		if a == "*" || strings.EqualFold(a, origin) {
			return true
		}
	}
	return false
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("Failed to encode response: %v", err)
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]interface{}{
		"success": false,
		"error":   message,
	})
}
