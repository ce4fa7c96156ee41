package server

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/mtaani/noticeboard/internal/blob"
	"github.com/mtaani/noticeboard/internal/cooldown"
	"github.com/mtaani/noticeboard/internal/email"
	"github.com/mtaani/noticeboard/internal/handler"
	"github.com/mtaani/noticeboard/internal/middleware"
	"github.com/mtaani/noticeboard/internal/notes"
	"github.com/mtaani/noticeboard/internal/store"
	ws "github.com/mtaani/noticeboard/internal/websocket"
)

type Server struct {
	db           *sql.DB
	hub          *ws.Hub
	authH        *handler.AuthHandler
	noteH        *handler.NoteHandler
	userStore    *store.UserStore
	sessionStore *store.SessionStore
	tokenStore   *store.VerificationTokenStore
	cooldowns    *cooldown.Tracker
	rateLimiter  *middleware.RateLimiter
	logger       *slog.Logger
}

func New(db *sql.DB, emailClient *email.Client, blobStore *blob.Store, logger *slog.Logger) *Server {
	hub := ws.NewHub(logger.With("component", "websocket"))

	noteStore := store.NewNoteStore(db)
	userStore := store.NewUserStore(db)
	sessionStore := store.NewSessionStore(db)
	tokenStore := store.NewVerificationTokenStore(db)

	cooldowns := cooldown.NewTracker()

	noteSvc := notes.NewService(noteStore, userStore, blobStore, logger.With("component", "notes"))

	return &Server{
		db:           db,
		hub:          hub,
		authH:        handler.NewAuthHandler(userStore, sessionStore, tokenStore, emailClient, cooldowns, logger.With("component", "auth")),
		noteH:        handler.NewNoteHandler(noteSvc, hub, logger.With("component", "note")),
		userStore:    userStore,
		sessionStore: sessionStore,
		tokenStore:   tokenStore,
		cooldowns:    cooldowns,
		rateLimiter:  middleware.NewRateLimiter(),
		logger:       logger,
	}
}

// SessionStore returns the session store for cleanup tasks.
func (s *Server) SessionStore() *store.SessionStore {
	return s.sessionStore
}

// VerificationTokenStore returns the token store for cleanup tasks.
func (s *Server) VerificationTokenStore() *store.VerificationTokenStore {
	return s.tokenStore
}

// RateLimiter returns the rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

// Cooldowns returns the resend-cooldown tracker for cleanup tasks.
func (s *Server) Cooldowns() *cooldown.Tracker {
	return s.cooldowns
}

func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	optionalAuth := middleware.OptionalAuth(s.sessionStore, s.userStore)
	requireAuth := middleware.RequireAuth(s.sessionStore, s.userStore)

	// Auth flow. Credential endpoints are rate limited by client IP.
	mux.HandleFunc("POST /api/auth/register", s.rateLimitedHandler(s.authH.Register))
	mux.HandleFunc("POST /api/auth/login", s.rateLimitedHandler(s.authH.Login))
	mux.HandleFunc("POST /api/auth/logout", s.authH.Logout)
	mux.Handle("POST /api/auth/resend-verification", requireAuth(s.rateLimitedMiddleware(http.HandlerFunc(s.authH.ResendVerification))))
	mux.Handle("GET /api/auth/me", requireAuth(http.HandlerFunc(s.authH.Me)))
	mux.HandleFunc("GET /auth/verify", s.authH.Verify)

	// Board reads are public; mutations require a session. Delete runs with
	// optional auth so an anonymous attempt is a silent no-op rather than 401.
	mux.HandleFunc("GET /api/notes", s.noteH.List)
	mux.HandleFunc("GET /api/notes/{id}", s.noteH.Get)
	mux.Handle("POST /api/notes", requireAuth(http.HandlerFunc(s.noteH.Create)))
	mux.Handle("PUT /api/notes/{id}", requireAuth(http.HandlerFunc(s.noteH.Update)))
	mux.Handle("DELETE /api/notes/{id}", optionalAuth(http.HandlerFunc(s.noteH.Delete)))

	// Live board feed
	mux.Handle("GET /ws", ws.HandleWebSocket(s.hub))

	mux.HandleFunc("GET /health", s.healthHandler)

	return middleware.RequestLogger(s.logger.With("component", "http"))(mux)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) rateLimitedMiddleware(next http.Handler) http.Handler {
	keyFunc := func(r *http.Request) string {
		return middleware.RealIP(r)
	}
	return middleware.RateLimit(s.rateLimiter, keyFunc, 10, time.Minute)(next)
}

func (s *Server) rateLimitedHandler(h http.HandlerFunc) http.HandlerFunc {
	return s.rateLimitedMiddleware(h).ServeHTTP
}
