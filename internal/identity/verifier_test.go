package identity

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	apperrors "github.com/multiris/multiris/pkg/errors"
	"github.com/multiris/multiris/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testAppID = "app_staging_123"

func testProof() types.IdentityProof {
	return types.IdentityProof{
		Proof:             "0x" + "ab",
		MerkleRoot:        "0x" + "cd",
		NullifierHash:     testNullifier,
		VerificationLevel: types.VerificationLevelOrb,
	}
}

// provider fakes the verification API; handler sees the decoded request
func provider(t *testing.T, handler func(w http.ResponseWriter, body verifyRequest)) (*Verifier, *int32) {
	t.Helper()

	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v2/verify/"+testAppID, r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body verifyRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Header().Set("Content-Type", "application/json")
		handler(w, body)
	}))
	t.Cleanup(srv.Close)

	v := NewVerifier(Config{AppID: testAppID, BaseURL: srv.URL + "/", Timeout: time.Second})
	return v, &calls
}

func TestVerify_Success(t *testing.T) {
	var got verifyRequest
	v, _ := provider(t, func(w http.ResponseWriter, body verifyRequest) {
		got = body
		_ = json.NewEncoder(w).Encode(map[string]any{
			"success":        true,
			"nullifier_hash": body.NullifierHash,
			"action":         body.Action,
		})
	})

	signal := "invite-42"
	res, err := v.Verify(context.Background(), testProof(), testAppID, "wallet-authentication", &signal)

	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Nil(t, res.ErrorKind)
	assert.Equal(t, testNullifier, res.NullifierHash)

	assert.Equal(t, "wallet-authentication", got.Action)
	assert.Equal(t, "orb", got.VerificationLevel)
	assert.Equal(t, HashToField("invite-42"), got.SignalHash)
}

func TestVerify_NoSignalHashesEmptyString(t *testing.T) {
	var got verifyRequest
	v, _ := provider(t, func(w http.ResponseWriter, body verifyRequest) {
		got = body
		_ = json.NewEncoder(w).Encode(map[string]any{"success": true})
	})

	res, err := v.Verify(context.Background(), testProof(), testAppID, "login", nil)

	require.NoError(t, err)
	assert.Equal(t, HashToField(""), got.SignalHash)
	// falls back to the proof's own nullifier
	assert.Equal(t, testNullifier, res.NullifierHash)
}

func TestVerify_Rejected(t *testing.T) {
	v, _ := provider(t, func(w http.ResponseWriter, _ verifyRequest) {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"code":      "invalid_proof",
			"detail":    "The provided proof is invalid.",
			"attribute": nil,
		})
	})

	res, err := v.Verify(context.Background(), testProof(), testAppID, "login", nil)

	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeInvalidProof))
	assert.False(t, apperrors.IsRetryable(err))
	assert.False(t, res.Success)
	require.NotNil(t, res.ErrorKind)
	assert.Equal(t, types.ErrorKindInvalidProof, *res.ErrorKind)
	assert.Equal(t, "invalid_proof", res.Code)
}

func TestVerify_MaxVerificationsReached(t *testing.T) {
	v, _ := provider(t, func(w http.ResponseWriter, _ verifyRequest) {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"code":   "max_verifications_reached",
			"detail": "This person has already verified for this action.",
		})
	})

	res, err := v.Verify(context.Background(), testProof(), testAppID, "login", nil)

	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeInvalidProof))
	assert.Equal(t, "max_verifications_reached", res.Code)
}

func TestVerify_Unavailable(t *testing.T) {
	tests := []struct {
		name   string
		status int
	}{
		{"server error", http.StatusInternalServerError},
		{"bad gateway", http.StatusBadGateway},
		{"rate limited", http.StatusTooManyRequests},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, _ := provider(t, func(w http.ResponseWriter, _ verifyRequest) {
				w.WriteHeader(tt.status)
			})

			res, err := v.Verify(context.Background(), testProof(), testAppID, "login", nil)

			assert.True(t, apperrors.IsRetryable(err))
			require.NotNil(t, res.ErrorKind)
			assert.Equal(t, types.ErrorKindServiceUnavailable, *res.ErrorKind)
		})
	}
}

func TestVerify_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(func() { close(release) })

	v := NewVerifier(Config{AppID: testAppID, BaseURL: srv.URL, Timeout: 50 * time.Millisecond})
	res, err := v.Verify(context.Background(), testProof(), testAppID, "login", nil)

	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeServiceUnavailable))
	require.NotNil(t, res.ErrorKind)
	assert.Equal(t, types.ErrorKindServiceUnavailable, *res.ErrorKind)
}

func TestVerify_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	v := NewVerifier(Config{AppID: testAppID, BaseURL: url})
	_, err := v.Verify(context.Background(), testProof(), testAppID, "login", nil)

	assert.True(t, apperrors.IsRetryable(err))
}

func TestVerify_BadRequestNeverCallsProvider(t *testing.T) {
	v, calls := provider(t, func(w http.ResponseWriter, _ verifyRequest) {
		_ = json.NewEncoder(w).Encode(map[string]any{"success": true})
	})

	noLevel := testProof()
	noLevel.VerificationLevel = "retina"
	noProof := testProof()
	noProof.Proof = ""

	tests := []struct {
		name   string
		proof  types.IdentityProof
		appID  string
		action string
	}{
		{"missing app id", testProof(), "", "login"},
		{"missing action", testProof(), testAppID, ""},
		{"foreign app id", testProof(), "app_other", "login"},
		{"unknown level", noLevel, testAppID, "login"},
		{"missing proof", noProof, testAppID, "login"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := v.Verify(context.Background(), tt.proof, tt.appID, tt.action, nil)

			assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeBadRequest))
			require.NotNil(t, res.ErrorKind)
			assert.Equal(t, types.ErrorKindBadRequest, *res.ErrorKind)
		})
	}
	assert.Equal(t, int32(0), atomic.LoadInt32(calls))
}
