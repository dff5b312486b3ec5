package types

import "time"

// IdentityKey is the durable identity anchor of a signer, derived from a
// proof-of-personhood nullifier. Hex encoded.
type IdentityKey string

// IdentityProof is a zero-knowledge proof of unique personhood as returned by
// the identity provider's client SDK. It is consumed by verification and
// never stored.
type IdentityProof struct {
	Proof             string            `json:"proof"`
	MerkleRoot        string            `json:"merkle_root"`
	NullifierHash     string            `json:"nullifier_hash"`
	VerificationLevel VerificationLevel `json:"verification_level"`
}

// ErrorKind classifies a failed verification
type ErrorKind string

// ErrorKind constants
const (
	ErrorKindServiceUnavailable ErrorKind = "service_unavailable"
	ErrorKindInvalidProof       ErrorKind = "invalid_proof"
	ErrorKindBadRequest         ErrorKind = "bad_request"
)

// VerificationResult is the outcome of verifying an IdentityProof for an
// (app, action, signal) tuple
type VerificationResult struct {
	Success       bool       `json:"success"`
	NullifierHash string     `json:"nullifier_hash,omitempty"`
	ErrorKind     *ErrorKind `json:"error_kind,omitempty"`
	// Code is the provider's error code when the proof was rejected
	Code string `json:"code,omitempty"`
}

// User is the identity bound to a login session. Only the derived identity
// key and the credential strength are kept; proofs are discarded after
// verification.
type User struct {
	IdentityKey       IdentityKey       `json:"identity_key"`
	VerificationLevel VerificationLevel `json:"verification_level"`
	VerifiedAt        time.Time         `json:"verified_at"`
}
