package middleware

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	apperrors "github.com/multiris/multiris/pkg/errors"
)

// ValidationError is one failed field check
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

func (ve ValidationErrors) Error() string {
	if len(ve) == 0 {
		return "validation failed"
	}
	msgs := make([]string, len(ve))
	for i, e := range ve {
		msgs[i] = fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return strings.Join(msgs, "; ")
}

// Validator collects field errors for a request
type Validator struct {
	errors ValidationErrors
}

// NewValidator creates a new validator
func NewValidator() *Validator {
	return &Validator{}
}

// HasErrors reports whether any check failed
func (v *Validator) HasErrors() bool {
	return len(v.errors) > 0
}

// Errors returns all validation errors
func (v *Validator) Errors() ValidationErrors {
	return v.errors
}

// Err returns nil, or a bad_request error listing every failed check
func (v *Validator) Err() error {
	if !v.HasErrors() {
		return nil
	}
	return apperrors.BadRequest(v.errors.Error())
}

// AddError adds a validation error
func (v *Validator) AddError(field, message string) {
	v.errors = append(v.errors, ValidationError{Field: field, Message: message})
}

// Required validates that a string is not blank
func (v *Validator) Required(field, value string) bool {
	if strings.TrimSpace(value) == "" {
		v.AddError(field, "is required")
		return false
	}
	return true
}

// MaxLength validates maximum string length
func (v *Validator) MaxLength(field, value string, maxLen int) bool {
	if len(value) > maxLen {
		v.AddError(field, fmt.Sprintf("must be at most %d characters", maxLen))
		return false
	}
	return true
}

// UUID validates that a string is a UUID
func (v *Validator) UUID(field, value string) (uuid.UUID, bool) {
	id, err := uuid.Parse(value)
	if err != nil {
		v.AddError(field, "must be a valid UUID")
		return uuid.Nil, false
	}
	return id, true
}

// EthereumAddress validates a 0x-prefixed 20 byte hex address
func (v *Validator) EthereumAddress(field, value string) bool {
	if !common.IsHexAddress(value) || !strings.HasPrefix(value, "0x") {
		v.AddError(field, "must be a valid Ethereum address")
		return false
	}
	return true
}

// OneOf validates that a value is one of the allowed values
func (v *Validator) OneOf(field, value string, allowed []string) bool {
	for _, a := range allowed {
		if value == a {
			return true
		}
	}
	v.AddError(field, fmt.Sprintf("must be one of: %s", strings.Join(allowed, ", ")))
	return false
}

// IntRange validates lo <= value <= hi
func (v *Validator) IntRange(field string, value, lo, hi int) bool {
	if value < lo || value > hi {
		v.AddError(field, fmt.Sprintf("must be between %d and %d", lo, hi))
		return false
	}
	return true
}

// DecodeJSON decodes a single JSON object from the request body, rejecting
// unknown fields and trailing data
func DecodeJSON(r *http.Request, v any) error {
	if r.Body == nil {
		return apperrors.BadRequest("request body is required")
	}

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return apperrors.BadRequest("request body is required")
		}
		return apperrors.BadRequest(fmt.Sprintf("invalid JSON: %v", err))
	}
	if decoder.More() {
		return apperrors.BadRequest("request body must contain a single JSON object")
	}
	return nil
}
