// Package identity verifies proof-of-personhood proofs against the identity
// provider's cloud verification API and derives the identity keys that bind
// a verified person to wallet memberships.
package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/multiris/multiris/internal/logger"
	"github.com/multiris/multiris/internal/metrics"
	apperrors "github.com/multiris/multiris/pkg/errors"
	"github.com/multiris/multiris/pkg/types"
)

// DefaultTimeout bounds a single verification round trip
const DefaultTimeout = 10 * time.Second

// maxResponseBytes caps how much of the provider's response is read
const maxResponseBytes = 64 << 10

// Config configures a Verifier
type Config struct {
	// AppID is the application identifier registered with the provider
	AppID string
	// BaseURL of the verification API, e.g. https://developer.worldcoin.org
	BaseURL string
	// Timeout for one verification call; DefaultTimeout when zero
	Timeout time.Duration
	// HTTPClient overrides the client; its Timeout is left untouched
	HTTPClient *http.Client
	Metrics    *metrics.Metrics
}

// Verifier validates identity proofs with the external verification service.
// It holds no state besides its HTTP client.
type Verifier struct {
	appID   string
	baseURL string
	timeout time.Duration
	client  *http.Client
	metrics *metrics.Metrics
}

// NewVerifier creates a new Verifier
func NewVerifier(cfg Config) *Verifier {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	return &Verifier{
		appID:   cfg.AppID,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		timeout: timeout,
		client:  client,
		metrics: cfg.Metrics,
	}
}

// AppID returns the application identifier proofs are verified for
func (v *Verifier) AppID() string {
	return v.appID
}

// verifyRequest is the provider's v2 verify body
type verifyRequest struct {
	NullifierHash     string `json:"nullifier_hash"`
	MerkleRoot        string `json:"merkle_root"`
	Proof             string `json:"proof"`
	VerificationLevel string `json:"verification_level"`
	Action            string `json:"action"`
	SignalHash        string `json:"signal_hash"`
}

// verifyResponse covers both the success and the error shape
type verifyResponse struct {
	Success       bool   `json:"success"`
	NullifierHash string `json:"nullifier_hash"`
	Action        string `json:"action"`
	Code          string `json:"code"`
	Detail        string `json:"detail"`
	Attribute     string `json:"attribute"`
}

// Verify checks proof for (appID, action, signal).
//
// The returned result is never nil. On failure its ErrorKind is set and the
// error is an *AppError carrying the matching code: bad_request for caller
// mistakes (not retried), invalid_proof when the provider rejected the proof,
// service_unavailable for network failures and timeouts (retryable).
func (v *Verifier) Verify(
	ctx context.Context,
	proof types.IdentityProof,
	appID, action string,
	signal *string,
) (*types.VerificationResult, error) {
	res, err := v.verify(ctx, proof, appID, action, signal)
	outcome := "success"
	if res.ErrorKind != nil {
		outcome = string(*res.ErrorKind)
	}
	v.metrics.ObserveVerification(outcome)
	return res, err
}

func (v *Verifier) verify(
	ctx context.Context,
	proof types.IdentityProof,
	appID, action string,
	signal *string,
) (*types.VerificationResult, error) {
	if appID == "" || action == "" {
		return failed(types.ErrorKindBadRequest, "", apperrors.BadRequest("app_id and action are required"))
	}
	if appID != v.appID {
		return failed(types.ErrorKindBadRequest, "", apperrors.BadRequest(
			fmt.Sprintf("app_id %q is not registered with this deployment", appID)))
	}
	if proof.Proof == "" || proof.MerkleRoot == "" || proof.NullifierHash == "" {
		return failed(types.ErrorKindBadRequest, "", apperrors.BadRequest("proof, merkle_root and nullifier_hash are required"))
	}
	if !proof.VerificationLevel.IsValid() {
		return failed(types.ErrorKindBadRequest, "", apperrors.BadRequest(
			fmt.Sprintf("unknown verification_level %q", proof.VerificationLevel)))
	}

	sig := ""
	if signal != nil {
		sig = *signal
	}
	body, err := json.Marshal(verifyRequest{
		NullifierHash:     proof.NullifierHash,
		MerkleRoot:        proof.MerkleRoot,
		Proof:             proof.Proof,
		VerificationLevel: string(proof.VerificationLevel),
		Action:            action,
		SignalHash:        HashToField(sig),
	})
	if err != nil {
		return failed(types.ErrorKindBadRequest, "", apperrors.BadRequest(err.Error()))
	}

	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	endpoint := v.baseURL + "/api/v2/verify/" + url.PathEscape(appID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return failed(types.ErrorKindBadRequest, "", apperrors.BadRequest(err.Error()))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := v.client.Do(req)
	if err != nil {
		detail := "verification request failed"
		if errors.Is(err, context.DeadlineExceeded) {
			detail = "verification request timed out"
		}
		logger.Warn(ctx, "identity verification unavailable", "action", action, "error", err)
		return failed(types.ErrorKindServiceUnavailable, "", apperrors.ServiceUnavailable(detail))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return failed(types.ErrorKindServiceUnavailable, "", apperrors.ServiceUnavailable("reading verification response failed"))
	}

	var parsed verifyResponse
	decodeErr := json.Unmarshal(raw, &parsed)

	switch {
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		logger.Warn(ctx, "identity verification unavailable", "action", action, "status", resp.StatusCode)
		return failed(types.ErrorKindServiceUnavailable, "",
			apperrors.ServiceUnavailable(fmt.Sprintf("verification service returned %d", resp.StatusCode)))

	case resp.StatusCode >= 400:
		if decodeErr != nil {
			return failed(types.ErrorKindServiceUnavailable, "",
				apperrors.ServiceUnavailable(fmt.Sprintf("unreadable verification response (%d)", resp.StatusCode)))
		}
		logger.Info(ctx, "identity proof rejected", "action", action, "code", parsed.Code)
		return failed(types.ErrorKindInvalidProof, parsed.Code, apperrors.InvalidProof(rejection(parsed)))

	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		if decodeErr != nil {
			return failed(types.ErrorKindServiceUnavailable, "", apperrors.ServiceUnavailable("unreadable verification response"))
		}
		if !parsed.Success {
			return failed(types.ErrorKindInvalidProof, parsed.Code, apperrors.InvalidProof(rejection(parsed)))
		}
		nullifier := parsed.NullifierHash
		if nullifier == "" {
			nullifier = proof.NullifierHash
		}
		normalized, err := NormalizeNullifier(nullifier)
		if err != nil {
			return failed(types.ErrorKindInvalidProof, "", apperrors.InvalidProof(err.Error()))
		}
		return &types.VerificationResult{Success: true, NullifierHash: normalized}, nil

	default:
		return failed(types.ErrorKindServiceUnavailable, "",
			apperrors.ServiceUnavailable(fmt.Sprintf("unexpected verification status %d", resp.StatusCode)))
	}
}

func rejection(r verifyResponse) string {
	switch {
	case r.Code != "" && r.Detail != "":
		return r.Code + ": " + r.Detail
	case r.Code != "":
		return r.Code
	case r.Detail != "":
		return r.Detail
	default:
		return "verification failed"
	}
}

func failed(kind types.ErrorKind, code string, err *apperrors.AppError) (*types.VerificationResult, error) {
	k := kind
	return &types.VerificationResult{Success: false, ErrorKind: &k, Code: code}, err
}
