package channel

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"net/http"
	"strings"
)

// TokenVerifier checks the token presented when a client connects and
// returns the subject it identifies.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (subject string, err error)
}

// StaticTokens accepts a fixed set of tokens. Only SHA-256 digests are kept
// and every candidate is compared in constant time.
type StaticTokens struct {
	digests [][sha256.Size]byte
}

func NewStaticTokens(tokens []string) *StaticTokens {
	s := &StaticTokens{}

	for _, token := range tokens {
		token = strings.TrimSpace(token)

		if token == "" {
			continue
		}

		s.digests = append(s.digests, sha256.Sum256([]byte(token)))
	}

	return s
}

func (s *StaticTokens) Verify(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", ErrMissingToken
	}

	digest := sha256.Sum256([]byte(token))
	match := 0

	for _, known := range s.digests {
		match |= subtle.ConstantTimeCompare(digest[:], known[:])
	}

	if match != 1 {
		return "", ErrInvalidToken
	}

	return "token:" + hex.EncodeToString(digest[:4]), nil
}

// Verifiers accepts a token when any of its members does. Errors other than
// a plain rejection are reported when no member accepts the token.
type Verifiers []TokenVerifier

func (v Verifiers) Verify(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", ErrMissingToken
	}

	err := ErrInvalidToken

	for _, verifier := range v {
		subject, verifyErr := verifier.Verify(ctx, token)

		if verifyErr == nil {
			return subject, nil
		}

		if !errors.Is(verifyErr, ErrInvalidToken) && !errors.Is(verifyErr, ErrMissingToken) {
			err = verifyErr
		}
	}

	return "", err
}

// tokenFromRequest reads a bearer token from the Authorization header, or
// from the token query parameter for browser clients that cannot set headers.
func tokenFromRequest(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		scheme, token, ok := strings.Cut(header, " ")

		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
	}

	return strings.TrimSpace(r.URL.Query().Get("token"))
}

// RequireToken guards plain HTTP endpoints with the same tokens the channel
// accepts.
func RequireToken(verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, err := verifier.Verify(r.Context(), tokenFromRequest(r)); err != nil {
				http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
