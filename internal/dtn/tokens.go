package dtn

import (
	"context"
	"errors"
	"strings"
	"sync"
)

// ErrNoToken means no access token has been provided yet.
var ErrNoToken = errors.New("no access token")

const bearerPrefix = "Bearer "

// TokenProvider delivers the current access token on demand.
type TokenProvider interface {
	Token(ctx context.Context) (string, error)
}

// TokenStore holds a token set by the operator at startup or later through
// the API.
type TokenStore struct {
	mu    sync.RWMutex
	token string
}

// NewTokenStore returns a store holding token, which may be empty.
func NewTokenStore(token string) *TokenStore {
	return &TokenStore{token: strings.TrimSpace(token)}
}

// Set replaces the token.
func (s *TokenStore) Set(token string) {
	s.mu.Lock()
	s.token = strings.TrimSpace(token)
	s.mu.Unlock()
}

// Present reports whether a token is held.
func (s *TokenStore) Present() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token != ""
}

// Token implements TokenProvider.
func (s *TokenStore) Token(context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.token == "" {
		return "", ErrNoToken
	}
	return s.token, nil
}

// BearerToken returns token with a "Bearer " prefix.
func BearerToken(token string) string {
	token = strings.TrimSpace(token)
	if strings.HasPrefix(token, bearerPrefix) {
		return token
	}
	return bearerPrefix + token
}

// RawToken returns token without its "Bearer " prefix.
func RawToken(token string) string {
	return strings.TrimPrefix(strings.TrimSpace(token), bearerPrefix)
}
