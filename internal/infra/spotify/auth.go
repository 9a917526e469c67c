package spotify

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"math/big"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

const (
	verifierLength = 128
	stateLength    = 16

	// BootstrapPath serves a convenience redirect to the provider's
	// authorization URL, so the login link can be re-entered locally.
	BootstrapPath = "/authorize_trackwarden"
)

const alphanumeric = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// randomString returns a cryptographically random alphanumeric string.
func randomString(length int) (string, error) {
	b := make([]byte, length)
	max := big.NewInt(int64(len(alphanumeric)))
	for i := range b {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", errors.Wrap(err, "failed to generate random string")
		}
		b[i] = alphanumeric[n.Int64()]
	}
	return string(b), nil
}

// ChallengeFromVerifier derives the PKCE code challenge: the base64url
// encoding, without padding, of the verifier's SHA-256 digest.
func ChallengeFromVerifier(verifier string) string {
	digest := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(digest[:])
}

// AuthConfig represents authorization bootstrap configuration.
type AuthConfig struct {
	ClientID     string
	RedirectPort int
	Scope        string

	// AuthURL and TokenURL override the provider endpoints (tests only).
	AuthURL  string
	TokenURL string
}

// Authenticator runs the one-shot PKCE authorization flow: it generates the
// verifier/challenge pair, serves the loopback callback listener and
// exchanges the authorization code for a token, which it hands to the
// token handle.
type Authenticator struct {
	oauth      oauth2.Config
	tokens     *TokenHandle
	httpClient *http.Client

	// onLogin is invoked (on its own goroutine) after each successful
	// exchange, to trigger an immediate deny-list refresh.
	onLogin func()

	listenAddr string

	mu      sync.Mutex
	pending *loginAttempt
}

// loginAttempt is the state of one bootstrap: its PKCE secret, CSRF state,
// the URL the user must visit and the listener serving the callback.
type loginAttempt struct {
	verifier string
	state    string
	url      string
	server   *http.Server
}

// NewAuthenticator creates an authenticator. onLogin may be nil.
func NewAuthenticator(cfg AuthConfig, tokens *TokenHandle, onLogin func()) *Authenticator {
	authURL := cfg.AuthURL
	if authURL == "" {
		authURL = accountsBaseURL + "/authorize"
	}
	tokenURL := cfg.TokenURL
	if tokenURL == "" {
		tokenURL = accountsBaseURL + "/api/token"
	}
	if onLogin == nil {
		onLogin = func() {}
	}

	return &Authenticator{
		oauth: oauth2.Config{
			ClientID:    cfg.ClientID,
			RedirectURL: fmt.Sprintf("http://localhost:%d", cfg.RedirectPort),
			Scopes:      []string{cfg.Scope},
			Endpoint: oauth2.Endpoint{
				AuthURL:  authURL,
				TokenURL: tokenURL,
			},
		},
		tokens:     tokens,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		onLogin:    onLogin,
		listenAddr: fmt.Sprintf("127.0.0.1:%d", cfg.RedirectPort),
	}
}

// LoginStart begins the authorization flow and returns the URL the user
// must visit. The callback listener is bound before the URL is returned, so
// the URL is usable the moment the caller gets it.
//
// If a login is already pending, the pending attempt's URL is returned and
// no second listener is started; the first attempt completes normally.
func (a *Authenticator) LoginStart() (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.pending != nil {
		return a.pending.url, nil
	}

	verifier, err := randomString(verifierLength)
	if err != nil {
		return "", err
	}
	state, err := randomString(stateLength)
	if err != nil {
		return "", err
	}

	authURL := a.oauth.AuthCodeURL(state,
		oauth2.SetAuthURLParam("code_challenge_method", "S256"),
		oauth2.SetAuthURLParam("code_challenge", ChallengeFromVerifier(verifier)),
	)

	listener, err := net.Listen("tcp", a.listenAddr)
	if err != nil {
		return "", errors.Wrap(err, "failed to bind authorization callback listener")
	}

	attempt := &loginAttempt{
		verifier: verifier,
		state:    state,
		url:      authURL,
	}
	attempt.server = &http.Server{Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		a.handleCallback(w, r, attempt)
	})}
	a.pending = attempt

	go func() {
		if err := attempt.server.Serve(listener); err != nil && err != http.ErrServerClosed {
			zlog.Error().Msgf("Authorization callback listener failed: %v", err)
		}
	}()

	return authURL, nil
}

// handleCallback serves both recognized routes of the one-shot listener.
func (a *Authenticator) handleCallback(w http.ResponseWriter, r *http.Request, attempt *loginAttempt) {
	if r.URL.Path == BootstrapPath {
		http.Redirect(w, r, attempt.url, http.StatusFound)
		return
	}

	query := r.URL.Query()
	code := query.Get("code")
	state := query.Get("state")

	if code == "" || state == "" {
		// Tolerate stray requests (favicon and the like): answer 400
		// and keep the listener running.
		zlog.Warn().Msgf("Callback request without code/state params: %s", r.URL.Path)
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	if state != attempt.state {
		// CSRF defense: a mismatched state means the code was not
		// produced by our authorization request. Do not exchange it,
		// do not stop listening, and give the caller no detail.
		zlog.Warn().Msg("Callback state mismatch, ignoring authorization code.")
		w.WriteHeader(http.StatusOK)
		return
	}

	token, err := a.exchange(r.Context(), code, attempt.verifier)
	if err != nil {
		zlog.Error().Msgf("Unable to exchange authorization code: %v", err)
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	a.tokens.Set(token)
	go a.onLogin()

	w.Header().Set("Content-Type", "text/plain")
	fmt.Fprintln(w, "OK")

	// Exactly one successful exchange per bootstrap: tear the listener
	// down instead of leaving the socket open.
	a.mu.Lock()
	a.pending = nil
	a.mu.Unlock()
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := attempt.server.Shutdown(ctx); err != nil {
			zlog.Error().Msgf("Failed to shut down callback listener: %v", err)
		}
	}()
}

// exchange swaps the authorization code plus the original verifier for a
// token at the token endpoint.
func (a *Authenticator) exchange(ctx context.Context, code, verifier string) (Token, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, a.httpClient)

	tok, err := a.oauth.Exchange(ctx, code,
		oauth2.SetAuthURLParam("code_verifier", verifier),
	)
	if err != nil {
		return Token{}, errors.Wrap(err, "token exchange failed")
	}

	expiresIn := 0
	if v, ok := tok.Extra("expires_in").(float64); ok {
		expiresIn = int(v)
	} else if !tok.Expiry.IsZero() {
		expiresIn = int(time.Until(tok.Expiry).Seconds())
	}

	return Token{
		AccessToken:  tok.AccessToken,
		TokenType:    tok.TokenType,
		ExpiresIn:    expiresIn,
		RefreshToken: tok.RefreshToken,
	}, nil
}
