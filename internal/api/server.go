// Package api exposes the wallet coordinator over HTTP
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/multiris/multiris/internal/config"
	"github.com/multiris/multiris/internal/logger"
	"github.com/multiris/multiris/internal/metrics"
	"github.com/multiris/multiris/internal/middleware"
	"github.com/multiris/multiris/internal/session"
	apperrors "github.com/multiris/multiris/pkg/errors"
)

// Server represents the HTTP server
type Server struct {
	config      *config.Config
	coordinator Coordinator
	sessions    Sessions
	verifier    session.Verifier
	metrics     *metrics.Metrics
	rateLimiter *middleware.RateLimiter
	idempotency *middleware.Idempotency
	httpServer  *http.Server
}

// NewServer creates a new API server
func NewServer(
	cfg *config.Config,
	coordinator Coordinator,
	sessions Sessions,
	verifier session.Verifier,
	m *metrics.Metrics,
	rateLimiter *middleware.RateLimiter,
	idempotency *middleware.Idempotency,
) *Server {
	s := &Server{
		config:      cfg,
		coordinator: coordinator,
		sessions:    sessions,
		verifier:    verifier,
		metrics:     m,
		rateLimiter: rateLimiter,
		idempotency: idempotency,
	}
	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           s.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		// verification calls are bounded by VERIFY_TIMEOUT
		WriteTimeout: cfg.VerifyTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Routes builds the router.
//
// Chain: RequestID -> Logging -> Recoverer -> CORS -> RateLimit -> LimitBody,
// then SessionAuth -> Idempotency for authenticated routes.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logging(s.metrics))
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.config.CORSAllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type", middleware.IdempotencyHeader, middleware.RequestIDHeader},
		ExposedHeaders: []string{middleware.RequestIDHeader, "X-Idempotency-Replay"},
		MaxAge:         300,
	}))
	r.Use(s.rateLimiter.Limit)
	r.Use(middleware.LimitBody)

	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Post("/verify", s.handleVerify)
		r.Post("/sessions", s.handleLogin)

		r.Group(func(r chi.Router) {
			r.Use(middleware.NewSessionAuth(s.sessions).Authenticate)
			r.Use(s.idempotency.Handle)

			r.Delete("/sessions/current", s.handleLogout)
			r.Get("/me", s.handleMe)

			r.Get("/wallets", s.handleListWallets)
			r.Post("/wallets", s.handleCreateWallet)
			r.Get("/wallets/{walletID}", s.handleGetWallet)
			r.Get("/wallets/{walletID}/members", s.handleListMembers)
			r.Put("/wallets/{walletID}/threshold", s.handleSetThreshold)
			r.Delete("/wallets/{walletID}/signers/{identityKey}", s.handleRemoveSigner)
			r.Post("/wallets/{walletID}/invites", s.handleCreateInvite)
			r.Get("/wallets/{walletID}/transactions", s.handleWalletTransactions)
			r.Post("/wallets/{walletID}/transactions", s.handleCreateTransaction)

			r.Get("/invites/{inviteID}", s.handleGetInvite)
			r.Post("/invites/{inviteID}/join", s.handleJoinWallet)
			r.Post("/invites/{inviteID}/confirm", s.handleConfirmMembership)

			r.Get("/transactions", s.handleListTransactions)
			r.Get("/transactions/{transactionID}", s.handleGetTransaction)
			r.Post("/transactions/{transactionID}/approvals", s.handleApprove)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, apperrors.ErrNotFound)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, apperrors.New(apperrors.ErrCodeBadRequest, "Method not allowed", http.StatusMethodNotAllowed))
	})
	return r
}

// Start serves until Shutdown is called. It returns nil on a clean shutdown.
func (s *Server) Start() error {
	logger.Info(context.Background(), "starting server", "port", s.config.Port)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, err *apperrors.AppError) {
	writeJSON(w, err.StatusCode, err)
}

// handleError renders err. Errors that are not AppErrors are logged and
// hidden behind internal_error.
func (s *Server) handleError(w http.ResponseWriter, r *http.Request, err error) {
	if appErr, ok := apperrors.IsAppError(err); ok {
		writeError(w, appErr)
		return
	}
	logger.Error(r.Context(), "request failed", "error", err)
	writeError(w, apperrors.ErrInternalError)
}

// requestSession returns the session SessionAuth stored for r
func requestSession(r *http.Request) *session.Session {
	sess, _ := middleware.GetSession(r.Context())
	return sess
}

// pathID parses a UUID route parameter
func pathID(r *http.Request, param, what string) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, param))
	if err != nil {
		return uuid.Nil, apperrors.BadRequest("invalid " + what + " ID")
	}
	return id, nil
}
