package auth

import (
	"context"
	"sync"
	"time"
)

// TokenManager supplies bearer tokens to the request executor.
type TokenManager interface {
	// GetToken returns the held token, signing in first when there is none.
	GetToken(ctx context.Context) (string, error)
	// RefreshToken discards the held token and signs in again.
	RefreshToken(ctx context.Context) (string, error)
	// Invalidate discards the held token without signing in.
	Invalidate()
}

// Token represents a session token returned by the sign-in exchange.
type Token struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type,omitempty"`
	AcquiredAt  time.Time `json:"acquired_at"`
	// ExpiresAt is informational. Tokens are replaced only by re-login,
	// never on a timer.
	ExpiresAt time.Time `json:"expires_at,omitempty"`
}

// Valid reports whether the token can be sent.
func (t *Token) Valid() bool {
	return t != nil && t.AccessToken != ""
}

// TokenStore holds the current token.
type TokenStore struct {
	mu    sync.RWMutex
	token *Token
}

// NewTokenStore creates a new token store.
func NewTokenStore() *TokenStore {
	return &TokenStore{}
}

// Get returns the current token or nil.
func (s *TokenStore) Get() *Token {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.token
}

// Set replaces the current token.
func (s *TokenStore) Set(token *Token) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.token = token
}

// Clear removes the current token.
func (s *TokenStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.token = nil
}
