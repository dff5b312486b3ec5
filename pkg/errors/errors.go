package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError represents an application-level error with HTTP status code
type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	Detail     string `json:"detail,omitempty"`
	StatusCode int    `json:"-"`
}

func (e *AppError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Detail)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is reports whether target is an AppError with the same code, so that
// errors.Is(err, ErrUnknownSigner) matches regardless of detail.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// Common error codes
const (
	ErrCodeUnauthorized  = "unauthorized"
	ErrCodeForbidden     = "forbidden"
	ErrCodeNotFound      = "not_found"
	ErrCodeBadRequest    = "bad_request"
	ErrCodeConflict      = "conflict"
	ErrCodeRateLimited   = "rate_limited"
	ErrCodeInternalError = "internal_error"

	// Identity verification
	ErrCodeServiceUnavailable = "service_unavailable"
	ErrCodeInvalidProof       = "invalid_proof"

	// Signer registry
	ErrCodeDuplicateIdentity   = "duplicate_identity"
	ErrCodeOutOfRange          = "out_of_range"
	ErrCodeLastSignerViolation = "last_signer_violation"

	// Wallets and transactions
	ErrCodeUnknownWallet        = "unknown_wallet"
	ErrCodeUnknownSigner        = "unknown_signer"
	ErrCodeAlreadyApproved      = "already_approved"
	ErrCodeTransactionFinalized = "transaction_finalized"
)

// Predefined errors
var (
	ErrUnauthorized = &AppError{
		Code:       ErrCodeUnauthorized,
		Message:    "Authentication required",
		StatusCode: http.StatusUnauthorized,
	}

	ErrForbidden = &AppError{
		Code:       ErrCodeForbidden,
		Message:    "Access denied",
		StatusCode: http.StatusForbidden,
	}

	ErrNotFound = &AppError{
		Code:       ErrCodeNotFound,
		Message:    "Resource not found",
		StatusCode: http.StatusNotFound,
	}

	ErrBadRequest = &AppError{
		Code:       ErrCodeBadRequest,
		Message:    "Invalid request parameters",
		StatusCode: http.StatusBadRequest,
	}

	ErrInternalError = &AppError{
		Code:       ErrCodeInternalError,
		Message:    "Internal server error",
		StatusCode: http.StatusInternalServerError,
	}

	ErrConflict = &AppError{
		Code:       ErrCodeConflict,
		Message:    "Request conflict",
		StatusCode: http.StatusConflict,
	}

	ErrRateLimited = &AppError{
		Code:       ErrCodeRateLimited,
		Message:    "Rate limit exceeded",
		StatusCode: http.StatusTooManyRequests,
	}

	ErrServiceUnavailable = &AppError{
		Code:       ErrCodeServiceUnavailable,
		Message:    "Identity verification service unavailable",
		StatusCode: http.StatusServiceUnavailable,
	}

	ErrInvalidProof = &AppError{
		Code:       ErrCodeInvalidProof,
		Message:    "Identity proof rejected",
		StatusCode: http.StatusUnauthorized,
	}

	ErrDuplicateIdentity = &AppError{
		Code:       ErrCodeDuplicateIdentity,
		Message:    "Identity already bound to this wallet",
		StatusCode: http.StatusConflict,
	}

	ErrOutOfRange = &AppError{
		Code:       ErrCodeOutOfRange,
		Message:    "Threshold out of range",
		StatusCode: http.StatusUnprocessableEntity,
	}

	ErrLastSignerViolation = &AppError{
		Code:       ErrCodeLastSignerViolation,
		Message:    "Wallet must keep at least one signer",
		StatusCode: http.StatusUnprocessableEntity,
	}

	ErrUnknownWallet = &AppError{
		Code:       ErrCodeUnknownWallet,
		Message:    "Wallet not found",
		StatusCode: http.StatusNotFound,
	}

	ErrUnknownSigner = &AppError{
		Code:       ErrCodeUnknownSigner,
		Message:    "Not a synchronized signer of this wallet",
		StatusCode: http.StatusForbidden,
	}

	ErrAlreadyApproved = &AppError{
		Code:       ErrCodeAlreadyApproved,
		Message:    "Transaction already approved by this signer",
		StatusCode: http.StatusConflict,
	}

	ErrTransactionFinalized = &AppError{
		Code:       ErrCodeTransactionFinalized,
		Message:    "Transaction already completed",
		StatusCode: http.StatusConflict,
	}
)

// New creates a new AppError
func New(code, message string, statusCode int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
	}
}

// NewWithDetail creates a new AppError with additional detail
func NewWithDetail(code, message, detail string, statusCode int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		Detail:     detail,
		StatusCode: statusCode,
	}
}

// WithDetail returns a copy of a predefined error carrying detail
func WithDetail(base *AppError, detail string) *AppError {
	return &AppError{
		Code:       base.Code,
		Message:    base.Message,
		Detail:     detail,
		StatusCode: base.StatusCode,
	}
}

// BadRequest creates a bad request error
func BadRequest(detail string) *AppError {
	return WithDetail(ErrBadRequest, detail)
}

// ServiceUnavailable creates a retryable verification error
func ServiceUnavailable(detail string) *AppError {
	return WithDetail(ErrServiceUnavailable, detail)
}

// InvalidProof creates a terminal verification error
func InvalidProof(detail string) *AppError {
	return WithDetail(ErrInvalidProof, detail)
}

// WalletNotFound creates an unknown wallet error
func WalletNotFound(walletID string) *AppError {
	return WithDetail(ErrUnknownWallet, fmt.Sprintf("wallet_id: %s", walletID))
}

// TransactionNotFound creates a not found error for a transaction
func TransactionNotFound(transactionID string) *AppError {
	return NewWithDetail(
		ErrCodeNotFound,
		"Transaction not found",
		fmt.Sprintf("transaction_id: %s", transactionID),
		http.StatusNotFound,
	)
}

// InviteNotFound creates a not found error for an invite
func InviteNotFound(inviteID string) *AppError {
	return NewWithDetail(
		ErrCodeNotFound,
		"Invite not found",
		fmt.Sprintf("invite_id: %s", inviteID),
		http.StatusNotFound,
	)
}

// SignerNotFound creates a not found error for a wallet member
func SignerNotFound(identityKey string) *AppError {
	return NewWithDetail(
		ErrCodeNotFound,
		"Signer not found",
		fmt.Sprintf("identity_key: %s", identityKey),
		http.StatusNotFound,
	)
}

// IsAppError checks if an error is an AppError
func IsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// IsCode reports whether err is an AppError carrying code
func IsCode(err error, code string) bool {
	appErr, ok := IsAppError(err)
	return ok && appErr.Code == code
}

// IsRetryable reports whether the caller may retry the failed operation
// unchanged. Only verification service outages qualify.
func IsRetryable(err error) bool {
	return IsCode(err, ErrCodeServiceUnavailable)
}

// IsNoOp reports whether err is an idempotency guard: the request had no
// effect but nothing went wrong.
func IsNoOp(err error) bool {
	return IsCode(err, ErrCodeAlreadyApproved) || IsCode(err, ErrCodeTransactionFinalized)
}
