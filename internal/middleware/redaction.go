package middleware

import (
	"net/http"
	"strings"
)

const redactedValue = "[REDACTED]"

var redactHeaderKeys = []string{
	"Authorization",
	"Cookie",
	"Set-Cookie",
	IdempotencyHeader,
}

func isRedacted(key string) bool {
	key = strings.TrimSpace(key)
	for _, k := range redactHeaderKeys {
		if strings.EqualFold(k, key) {
			return true
		}
	}
	return false
}

// redactHeaderValue keeps the scheme of an Authorization value
func redactHeaderValue(key, value string) string {
	if strings.EqualFold(key, "Authorization") {
		scheme, _, found := strings.Cut(strings.TrimSpace(value), " ")
		if found && scheme != "" {
			return scheme + " " + redactedValue
		}
	}
	return redactedValue
}

// RedactHeaders returns a copy of h safe to log
func RedactHeaders(h http.Header) http.Header {
	if h == nil {
		return nil
	}

	out := make(http.Header, len(h))
	for key, values := range h {
		copied := make([]string, len(values))
		for i, v := range values {
			if isRedacted(key) {
				v = redactHeaderValue(key, v)
			}
			copied[i] = v
		}
		out[key] = copied
	}
	return out
}

// StripCredentialHeaders removes the session token from h once it has been
// checked, so handlers and logs never see it.
func StripCredentialHeaders(h http.Header) {
	if h == nil {
		return
	}
	h.Del("Authorization")
	h.Del("Cookie")
}
