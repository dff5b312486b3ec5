package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"time"

	"github.com/multiris/multiris/internal/logger"
	"github.com/multiris/multiris/internal/storage"
	apperrors "github.com/multiris/multiris/pkg/errors"
	"golang.org/x/sync/singleflight"
)

const (
	// IdempotencyHeader carries the client's idempotency key
	IdempotencyHeader = "X-Idempotency-Key"

	idempotencyTTL       = 24 * time.Hour
	maxIdempotencyKeyLen = 256
)

type idempotencyStore interface {
	GetIdempotency(ctx context.Context, key string, now time.Time) (*storage.IdempotencyRecord, error)
	PutIdempotency(ctx context.Context, key string, rec *storage.IdempotencyRecord) error
}

// Idempotency replays the first response to a mutation sent with an
// idempotency key. Keys are scoped to the caller's identity, so it must run
// after SessionAuth. Server errors are not cached, so a retry after one runs
// the request again. Requests that arrive while the first one with the same
// key is still running wait for it and share its response.
type Idempotency struct {
	store  idempotencyStore
	now    func() time.Time
	flight singleflight.Group
}

// NewIdempotency creates the idempotency middleware
func NewIdempotency(store idempotencyStore) *Idempotency {
	return &Idempotency{store: store, now: time.Now}
}

// Handle wraps next with idempotency checking
func (m *Idempotency) Handle(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		default:
			next.ServeHTTP(w, r)
			return
		}

		clientKey := r.Header.Get(IdempotencyHeader)
		if clientKey == "" {
			next.ServeHTTP(w, r)
			return
		}
		if len(clientKey) > maxIdempotencyKeyLen {
			writeError(w, apperrors.BadRequest("idempotency key must be at most 256 characters"))
			return
		}

		scope := "anonymous"
		if sess, ok := GetSession(r.Context()); ok {
			scope = string(sess.IdentityKey)
		}

		body, err := io.ReadAll(r.Body)
		if err != nil {
			writeError(w, apperrors.BadRequest("failed to read request body"))
			return
		}
		r.Body = io.NopCloser(bytes.NewReader(body))
		bodyHash := computeBodyHash(body)

		key := storage.IdempotencyKey(scope, clientKey, r.Method, r.URL.Path)
		for {
			var led bool
			v, _, _ := m.flight.Do(key, func() (any, error) {
				led = true
				return m.serve(w, r, next, key, scope, bodyHash), nil
			})
			if led {
				return
			}
			// nothing to share when the first request failed; run again
			if record, _ := v.(*storage.IdempotencyRecord); record != nil {
				m.replayOrReject(w, record, bodyHash)
				return
			}
		}
	})
}

// serve answers the request that owns key: from the store when a response
// was recorded earlier, otherwise by running next. It returns the response
// other requests with the same key may replay, or nil.
func (m *Idempotency) serve(
	w http.ResponseWriter,
	r *http.Request,
	next http.Handler,
	key, scope, bodyHash string,
) *storage.IdempotencyRecord {
	record, err := m.store.GetIdempotency(r.Context(), key, m.now())
	if err != nil {
		logger.Error(r.Context(), "failed to read idempotency record", "error", err)
		writeError(w, apperrors.ErrInternalError)
		return nil
	}
	if record != nil {
		m.replayOrReject(w, record, bodyHash)
		return record
	}

	rec := NewResponseRecorder(w)
	next.ServeHTTP(rec, r)

	if rec.StatusCode >= http.StatusInternalServerError {
		return nil
	}
	record = &storage.IdempotencyRecord{
		Scope:      scope,
		Method:     r.Method,
		Path:       r.URL.Path,
		BodyHash:   bodyHash,
		StatusCode: rec.StatusCode,
		Headers:    rec.Headers,
		Body:       rec.Body.Bytes(),
		ExpiresAt:  m.now().Add(idempotencyTTL),
	}
	if err := m.store.PutIdempotency(r.Context(), key, record); err != nil {
		// the response is already sent
		logger.Error(r.Context(), "failed to store idempotency record",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err,
		)
	}
	return record
}

func (m *Idempotency) replayOrReject(w http.ResponseWriter, record *storage.IdempotencyRecord, bodyHash string) {
	if record.BodyHash != bodyHash {
		writeError(w, apperrors.New(apperrors.ErrCodeConflict,
			"Idempotency key reused with a different request body", http.StatusUnprocessableEntity))
		return
	}
	replay(w, record)
}

// replay writes a cached response, keeping the current request ID
func replay(w http.ResponseWriter, record *storage.IdempotencyRecord) {
	requestID := w.Header().Get(RequestIDHeader)
	for key, values := range record.Headers {
		w.Header()[key] = append([]string(nil), values...)
	}
	w.Header().Del(RequestIDHeader)
	if requestID != "" {
		w.Header().Set(RequestIDHeader, requestID)
	}
	w.Header().Set("X-Idempotency-Replay", "true")
	w.WriteHeader(record.StatusCode)
	_, _ = w.Write(record.Body)
}

func computeBodyHash(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}
