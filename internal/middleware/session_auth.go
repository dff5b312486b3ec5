package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/multiris/multiris/internal/logger"
	"github.com/multiris/multiris/internal/session"
	apperrors "github.com/multiris/multiris/pkg/errors"
)

type sessionContextKey struct{}

// Authenticator resolves a bearer token to a session.
// *session.Manager implements it.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*session.Session, error)
}

// SessionAuth requires a valid bearer session token
type SessionAuth struct {
	auth Authenticator
}

// NewSessionAuth creates the session middleware
func NewSessionAuth(auth Authenticator) *SessionAuth {
	return &SessionAuth{auth: auth}
}

// Authenticate rejects requests without a live session and stores the
// session in the request context
func (m *SessionAuth) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			writeError(w, apperrors.WithDetail(apperrors.ErrUnauthorized, "missing bearer token"))
			return
		}

		sess, err := m.auth.Authenticate(r.Context(), token)
		if err != nil {
			appErr, ok := apperrors.IsAppError(err)
			if !ok {
				logger.Error(r.Context(), "session lookup failed", "error", err)
				appErr = apperrors.ErrInternalError
			}
			writeError(w, appErr)
			return
		}

		StripCredentialHeaders(r.Header)
		ctx := WithSession(r.Context(), sess)
		ctx = logger.WithIdentityKey(ctx, string(sess.IdentityKey))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// WithSession stores sess in ctx
func WithSession(ctx context.Context, sess *session.Session) context.Context {
	return context.WithValue(ctx, sessionContextKey{}, sess)
}

// GetSession returns the session stored by SessionAuth
func GetSession(ctx context.Context) (*session.Session, bool) {
	sess, ok := ctx.Value(sessionContextKey{}).(*session.Session)
	return sess, ok && sess != nil
}

func bearerToken(r *http.Request) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(r.Header.Get("Authorization")), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
