// Package middleware provides HTTP middleware for the Lumigen API.
package middleware

import (
	"crypto/rand"
	"encoding/hex"
	"net/http"

	"github.com/lumigen/lumigen/internal/logger"
)

const headerRequestID = "X-Request-ID"

// RequestID tags every request with an ID for log correlation: the caller's
// X-Request-ID when present, otherwise a fresh one. The ID rides on the
// context and is echoed in the response header.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(headerRequestID)
		if id == "" {
			id = generateID()
		}

		ctx := logger.WithRequestID(r.Context(), id)
		w.Header().Set(headerRequestID, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// generateID returns 16 random bytes hex-encoded.
func generateID() string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
