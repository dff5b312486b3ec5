// Package session binds a verified identity to a bearer token.
//
// Login verifies an identity proof, stores the resulting user record under the
// session id and issues an HS256 token naming that id. Authentication checks
// the token and then loads the record, so a logged-out token stops working
// before it expires.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/multiris/multiris/internal/identity"
	"github.com/multiris/multiris/internal/logger"
	"github.com/multiris/multiris/internal/storage"
	apperrors "github.com/multiris/multiris/pkg/errors"
	"github.com/multiris/multiris/pkg/types"
)

const issuer = "multiris"

// Verifier checks identity proofs
type Verifier interface {
	Verify(ctx context.Context, proof types.IdentityProof, appID, action string, signal *string) (*types.VerificationResult, error)
	AppID() string
}

// Session is an authenticated caller
type Session struct {
	ID                string                  `json:"id"`
	IdentityKey       types.IdentityKey       `json:"identity_key"`
	VerificationLevel types.VerificationLevel `json:"verification_level"`
	ExpiresAt         time.Time               `json:"expires_at"`
}

// Config configures a Manager
type Config struct {
	// Action is the identity provider action used for login and membership
	// confirmation
	Action   string
	Secret   []byte
	TTL      time.Duration
	MinLevel types.VerificationLevel
}

// Manager issues and checks sessions
type Manager struct {
	verifier Verifier
	records  *storage.Records
	cfg      Config
	now      func() time.Time
}

type claims struct {
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}

// NewManager creates a new Manager
func NewManager(verifier Verifier, records *storage.Records, cfg Config) *Manager {
	if cfg.MinLevel == "" {
		cfg.MinLevel = types.VerificationLevelDevice
	}
	return &Manager{verifier: verifier, records: records, cfg: cfg, now: time.Now}
}

// WithClock replaces the manager's time source
func (m *Manager) WithClock(now func() time.Time) *Manager {
	m.now = now
	return m
}

// VerifyIdentity verifies proof for the session action with the given signal
// and returns the identity key it proves
func (m *Manager) VerifyIdentity(ctx context.Context, proof types.IdentityProof, signal *string) (types.IdentityKey, error) {
	if !proof.VerificationLevel.Satisfies(m.cfg.MinLevel) {
		return "", apperrors.InvalidProof(fmt.Sprintf("verification level %q is below the required %q",
			proof.VerificationLevel, m.cfg.MinLevel))
	}

	res, err := m.verifier.Verify(ctx, proof, m.verifier.AppID(), m.cfg.Action, signal)
	if err != nil {
		return "", err
	}

	key, err := identity.DeriveIdentityKey(m.verifier.AppID(), res.NullifierHash)
	if err != nil {
		return "", apperrors.InvalidProof(err.Error())
	}
	return key, nil
}

// Login verifies proof and opens a session for the proven identity
func (m *Manager) Login(ctx context.Context, proof types.IdentityProof) (*Session, string, error) {
	key, err := m.VerifyIdentity(ctx, proof, nil)
	if err != nil {
		return nil, "", err
	}

	now := m.now().UTC()
	sess := &Session{
		ID:                uuid.NewString(),
		IdentityKey:       key,
		VerificationLevel: proof.VerificationLevel,
		ExpiresAt:         now.Add(m.cfg.TTL),
	}

	user := &types.User{IdentityKey: key, VerificationLevel: proof.VerificationLevel, VerifiedAt: now}
	if err := m.records.PutUser(ctx, sess.ID, user); err != nil {
		return nil, "", fmt.Errorf("failed to store session: %w", err)
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		SessionID: sess.ID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   string(key),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(sess.ExpiresAt),
		},
	}).SignedString(m.cfg.Secret)
	if err != nil {
		return nil, "", fmt.Errorf("failed to sign session token: %w", err)
	}

	logger.Info(ctx, "session opened", "session_id", sess.ID, "identity_key", key)
	return sess, token, nil
}

// Authenticate resolves a bearer token to its live session
func (m *Manager) Authenticate(ctx context.Context, token string) (*Session, error) {
	var c claims
	parsed, err := jwt.ParseWithClaims(token, &c, func(t *jwt.Token) (interface{}, error) {
		return m.cfg.Secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		detail := "invalid session token"
		if errors.Is(err, jwt.ErrTokenExpired) {
			detail = "session expired"
		}
		return nil, apperrors.WithDetail(apperrors.ErrUnauthorized, detail)
	}
	if !parsed.Valid || c.SessionID == "" || c.Subject == "" {
		return nil, apperrors.WithDetail(apperrors.ErrUnauthorized, "invalid session token")
	}

	user, err := m.records.GetUser(ctx, c.SessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	if user == nil || string(user.IdentityKey) != c.Subject {
		return nil, apperrors.WithDetail(apperrors.ErrUnauthorized, "session ended")
	}

	return &Session{
		ID:                c.SessionID,
		IdentityKey:       user.IdentityKey,
		VerificationLevel: user.VerificationLevel,
		ExpiresAt:         c.ExpiresAt.Time,
	}, nil
}

// Logout ends sess; its token is rejected from now on
func (m *Manager) Logout(ctx context.Context, sess *Session) error {
	if err := m.records.RemoveUser(ctx, sess.ID); err != nil {
		return fmt.Errorf("failed to end session: %w", err)
	}
	logger.Info(ctx, "session closed", "session_id", sess.ID)
	return nil
}
