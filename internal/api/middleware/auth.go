package middleware

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"net/http"
	"strings"

	"github.com/cloo-solutions/ragsync/internal/api"
	"github.com/cloo-solutions/ragsync/internal/domain"
)

type contextKey string

const KeyIDKey contextKey = "key_id"

// KeyIDHeader carries the caller key id back to outer middleware.
const KeyIDHeader = "X-Key-ID"

type AuthValidator interface {
	ValidateAPIKey(ctx context.Context, token string) (string, error)
}

// StaticKeys validates tokens against a fixed set of configured keys.
type StaticKeys struct {
	keys []string
}

// NewStaticKeys creates a validator for the non-blank keys.
func NewStaticKeys(keys []string) *StaticKeys {
	s := &StaticKeys{}
	for _, k := range keys {
		if k = strings.TrimSpace(k); k != "" {
			s.keys = append(s.keys, k)
		}
	}
	return s
}

// ValidateAPIKey returns a stable, non-secret id for a known key.
func (s *StaticKeys) ValidateAPIKey(ctx context.Context, token string) (string, error) {
	matched := 0
	for _, k := range s.keys {
		matched |= subtle.ConstantTimeCompare([]byte(k), []byte(token))
	}
	if matched != 1 {
		return "", domain.ErrInvalidAPIKey
	}
	return KeyID(token), nil
}

// KeyID is the first eight bytes of the key's SHA-256, hex encoded.
func KeyID(token string) string {
	sum := sha256.Sum256([]byte(token))
	return "key_" + hex.EncodeToString(sum[:8])
}

// APIKeyAuth accepts "Authorization: Bearer <key>" or "X-API-Key: <key>".
func APIKeyAuth(validator AuthValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := strings.TrimSpace(r.Header.Get("X-API-Key"))
			if token == "" {
				authHeader := r.Header.Get("Authorization")
				if authHeader == "" {
					api.Error(w, http.StatusUnauthorized, "missing authorization header")
					return
				}
				if !strings.HasPrefix(authHeader, "Bearer ") {
					api.Error(w, http.StatusUnauthorized, "invalid authorization format")
					return
				}
				token = strings.TrimPrefix(authHeader, "Bearer ")
			}

			keyID, err := validator.ValidateAPIKey(r.Context(), token)
			if err != nil {
				api.Error(w, http.StatusUnauthorized, "invalid api key")
				return
			}

			r.Header.Set(KeyIDHeader, keyID)
			ctx := context.WithValue(r.Context(), KeyIDKey, keyID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func GetKeyID(ctx context.Context) string {
	keyID, _ := ctx.Value(KeyIDKey).(string)
	return keyID
}
