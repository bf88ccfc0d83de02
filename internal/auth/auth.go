// Package auth resolves an authenticated user identity from a request.
// The rest of the service only ever sees the opaque user id.
package auth

import (
	"net/http"
	"strings"

	"github.com/pkg/errors"
)

// ErrUnauthorized is returned when no valid credential accompanies a request.
var ErrUnauthorized = errors.New("missing or invalid credentials")

// Authenticator resolves the user id behind a request.
type Authenticator interface {
	UserID(r *http.Request) (string, error)
}

// StaticTokens authenticates bearer tokens against a fixed token→user map.
type StaticTokens struct {
	tokens map[string]string
}

// ParseStaticTokens builds a StaticTokens from a comma-separated list of
// token:user_id pairs, e.g. "s3cret:alice,t0ken:bob".
func ParseStaticTokens(pairs string) (*StaticTokens, error) {
	tokens := make(map[string]string)
	for _, pair := range strings.Split(pairs, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		token, user, ok := strings.Cut(pair, ":")
		if !ok || token == "" || user == "" {
			return nil, errors.Errorf("invalid token pair %q, want token:user_id", pair)
		}
		tokens[token] = user
	}
	return &StaticTokens{tokens: tokens}, nil
}

// UserID resolves the Authorization bearer token to a user id.
func (s *StaticTokens) UserID(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || token == "" {
		return "", ErrUnauthorized
	}
	user, ok := s.tokens[token]
	if !ok {
		return "", ErrUnauthorized
	}
	return user, nil
}
