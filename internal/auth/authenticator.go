package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/sync/singleflight"

	"github.com/fivetwenty-io/zscaler/internal/constants"
	"github.com/fivetwenty-io/zscaler/pkg/zscaler"
)

// Config configures the authenticator.
type Config struct {
	// BaseURL is the resolved cloud base URL; the exchange posts to BaseURL/signin.
	BaseURL      string
	ClientID     string
	ClientSecret string

	HTTPClient   *http.Client
	LoginTimeout time.Duration
	Logger       zscaler.Logger
	Metrics      *zscaler.MetricsCollector
}

// Authenticator obtains and holds the session token.
//
// States move Unauthenticated → Authenticating → Authenticated, or to Failed
// when the exchange is rejected. Invalidate returns to Unauthenticated. There
// is no background refresh.
type Authenticator struct {
	config Config
	oauth  clientcredentials.Config
	store  *TokenStore
	group  singleflight.Group
	now    func() time.Time

	mu      sync.Mutex
	state   zscaler.AuthState
	lastErr error
}

// NewAuthenticator creates an authenticator in the Unauthenticated state.
func NewAuthenticator(config *Config) *Authenticator {
	cfg := *config

	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: constants.DefaultLoginTimeout}
	}

	if cfg.LoginTimeout <= 0 {
		cfg.LoginTimeout = constants.DefaultLoginTimeout
	}

	if cfg.Logger == nil {
		cfg.Logger = zscaler.NoOpLogger{}
	}

	return &Authenticator{
		config: cfg,
		oauth: clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     strings.TrimRight(cfg.BaseURL, "/") + constants.SignInPath,
			AuthStyle:    oauth2.AuthStyleInParams,
		},
		store: NewTokenStore(),
		now:   time.Now,
		state: zscaler.AuthStateUnauthenticated,
	}
}

// State returns the current state.
func (a *Authenticator) State() zscaler.AuthState {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.state
}

// Token returns the held token or nil.
func (a *Authenticator) Token() *Token {
	return a.store.Get()
}

// Login performs the client-credentials exchange and replaces the held token.
// Concurrent calls share one exchange.
func (a *Authenticator) Login(ctx context.Context) error {
	_, err, _ := a.group.Do("login", func() (interface{}, error) {
		return nil, a.login(ctx)
	})

	return err
}

func (a *Authenticator) login(ctx context.Context) error {
	a.setState(zscaler.AuthStateAuthenticating, nil)

	ctx, cancel := context.WithTimeout(ctx, a.config.LoginTimeout)
	defer cancel()

	ctx = context.WithValue(ctx, oauth2.HTTPClient, a.config.HTTPClient)

	a.config.Logger.Debug("Signing in", map[string]interface{}{
		"token_url": a.oauth.TokenURL,
		"client_id": a.config.ClientID,
	})

	oauthToken, err := a.oauth.Token(ctx)
	if err != nil {
		err = classifyLoginError(err)
		a.store.Clear()
		a.setState(zscaler.AuthStateFailed, err)
		a.config.Metrics.RecordLogin(false)
		a.config.Logger.Error("Sign-in failed", map[string]interface{}{"error": err.Error()})

		return err
	}

	a.store.Set(&Token{
		AccessToken: oauthToken.AccessToken,
		TokenType:   oauthToken.TokenType,
		AcquiredAt:  a.now(),
		ExpiresAt:   oauthToken.Expiry,
	})
	a.setState(zscaler.AuthStateAuthenticated, nil)
	a.config.Metrics.RecordLogin(true)
	a.config.Logger.Info("Signed in", map[string]interface{}{"client_id": a.config.ClientID})

	return nil
}

// classifyLoginError wraps every exchange failure with ErrAuthenticationFailed,
// adding the status and body when the endpoint rejected the credentials.
func classifyLoginError(err error) error {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		status := 0
		if retrieveErr.Response != nil {
			status = retrieveErr.Response.StatusCode
		}

		return fmt.Errorf("%w: sign-in returned status %d: %s", zscaler.ErrAuthenticationFailed, status, strings.TrimSpace(string(retrieveErr.Body)))
	}

	return fmt.Errorf("%w: %w", zscaler.ErrAuthenticationFailed, err)
}

// GetToken returns the held token. In the Unauthenticated state it signs in
// first; in the Failed state it returns ErrNotAuthenticated until Login
// succeeds.
func (a *Authenticator) GetToken(ctx context.Context) (string, error) {
	if token := a.store.Get(); token.Valid() {
		return token.AccessToken, nil
	}

	a.mu.Lock()
	state, lastErr := a.state, a.lastErr
	a.mu.Unlock()

	if state == zscaler.AuthStateFailed {
		return "", fmt.Errorf("%w: %w", zscaler.ErrNotAuthenticated, lastErr)
	}

	err := a.Login(ctx)
	if err != nil {
		return "", err
	}

	token := a.store.Get()
	if !token.Valid() {
		return "", zscaler.ErrNotAuthenticated
	}

	return token.AccessToken, nil
}

// RefreshToken signs in again and returns the new token.
func (a *Authenticator) RefreshToken(ctx context.Context) (string, error) {
	a.Invalidate()

	err := a.Login(ctx)
	if err != nil {
		return "", err
	}

	token := a.store.Get()
	if !token.Valid() {
		return "", zscaler.ErrNotAuthenticated
	}

	return token.AccessToken, nil
}

// Invalidate drops the held token and returns to Unauthenticated.
func (a *Authenticator) Invalidate() {
	a.store.Clear()
	a.setState(zscaler.AuthStateUnauthenticated, nil)
}

func (a *Authenticator) setState(state zscaler.AuthState, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.state = state
	a.lastErr = err
}
