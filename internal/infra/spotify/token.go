package spotify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
)

// ErrRefreshFailed indicates the refresh token was rejected by the provider.
// This is terminal for the session: the user must log in again.
var ErrRefreshFailed = errors.New("spotify token refresh failed: login required")

// ErrNoToken indicates no token exists yet (the user never logged in).
var ErrNoToken = errors.New("no spotify token available: login required")

// Token is the current OAuth access credential. A refresh always replaces
// the whole value, never individual fields.
type Token struct {
	AccessToken  string
	TokenType    string
	ExpiresIn    int // informational; expiry is detected reactively via 401
	RefreshToken string
}

// TokenStore persists the current token across restarts.
type TokenStore interface {
	SaveToken(token Token) error
	// LoadToken returns (nil, nil) when no token has been stored yet.
	LoadToken() (*Token, error)
}

// TokenHandle owns the single authoritative token of the process. All API
// callers share one handle, so after any successful refresh every caller
// observes the same new token.
//
// mu guards the token value itself and is held only for reads and the
// replace-on-refresh write, never across a network round trip. The refresh
// round trip is serialized separately: concurrent callers that hit a 401
// while a refresh is already in flight wait for that refresh's outcome
// instead of starting a second one, because the provider invalidates a
// refresh token after first use.
type TokenHandle struct {
	store      TokenStore
	httpClient *http.Client
	tokenURL   string
	clientID   string

	mu    sync.RWMutex
	token *Token

	refreshMu   sync.Mutex
	refreshing  bool
	refreshDone chan struct{}
	refreshErr  error
}

// NewTokenHandle creates a token handle backed by the given store.
// The initial token may be nil when the user has not logged in yet.
func NewTokenHandle(clientID string, store TokenStore, initial *Token) *TokenHandle {
	return &TokenHandle{
		store:      store,
		httpClient: http.DefaultClient,
		tokenURL:   accountsBaseURL + "/api/token",
		clientID:   clientID,
		token:      initial,
	}
}

// HasToken reports whether a token is currently held.
func (h *TokenHandle) HasToken() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.token != nil
}

// Current returns a copy of the current token, or nil.
func (h *TokenHandle) Current() *Token {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.token == nil {
		return nil
	}
	t := *h.token
	return &t
}

// Set installs a freshly obtained token and persists it. Used by the
// authorization bootstrap after a successful code exchange.
func (h *TokenHandle) Set(token Token) {
	h.mu.Lock()
	h.token = &token
	h.mu.Unlock()

	if err := h.store.SaveToken(token); err != nil {
		zlog.Error().Msgf("Unable to store spotify token: %v", err)
	}
}

// Authorize sets the bearer header on the request using the token value at
// call time. It never blocks on I/O and never fails; a request authorized
// without a token will simply come back 401.
func (h *TokenHandle) Authorize(req *http.Request) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.token != nil {
		req.Header.Set("Authorization", "Bearer "+h.token.AccessToken)
	}
}

// Refresh obtains a new token using the stored refresh token. At most one
// refresh is in flight at any time; callers arriving while one is running
// block until it finishes and adopt its outcome. On success the held token
// is replaced atomically and persisted; on failure the prior token is left
// untouched and ErrRefreshFailed is returned.
func (h *TokenHandle) Refresh(ctx context.Context) error {
	h.refreshMu.Lock()
	if h.refreshing {
		done := h.refreshDone
		h.refreshMu.Unlock()
		select {
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		}
		h.refreshMu.Lock()
		err := h.refreshErr
		h.refreshMu.Unlock()
		return err
	}
	h.refreshing = true
	done := make(chan struct{})
	h.refreshDone = done
	h.refreshMu.Unlock()

	err := h.doRefresh(ctx)

	h.refreshMu.Lock()
	h.refreshing = false
	h.refreshErr = err
	h.refreshMu.Unlock()
	close(done)

	return err
}

func (h *TokenHandle) doRefresh(ctx context.Context) error {
	h.mu.RLock()
	if h.token == nil {
		h.mu.RUnlock()
		return ErrNoToken
	}
	refreshToken := h.token.RefreshToken
	h.mu.RUnlock()

	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refreshToken)
	form.Set("client_id", h.clientID)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.tokenURL,
		strings.NewReader(form.Encode()))
	if err != nil {
		return errors.Wrap(err, "failed to create refresh request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := h.httpClient.Do(req)
	if err != nil {
		zlog.Error().Msgf("Token refresh request failed: %v", err)
		return ErrRefreshFailed
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		zlog.Error().Msgf("Token refresh rejected with status %d", resp.StatusCode)
		return ErrRefreshFailed
	}

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		zlog.Error().Msgf("Unable to decode token refresh response: %v", err)
		return ErrRefreshFailed
	}

	token := Token{
		AccessToken:  tr.AccessToken,
		TokenType:    tr.TokenType,
		ExpiresIn:    tr.ExpiresIn,
		RefreshToken: tr.RefreshToken,
	}
	// The provider may omit the refresh token when it stays valid.
	if token.RefreshToken == "" {
		token.RefreshToken = refreshToken
	}

	h.mu.Lock()
	h.token = &token
	h.mu.Unlock()

	if err := h.store.SaveToken(token); err != nil {
		zlog.Error().Msgf("Unable to store token after refresh: %v", err)
	}

	return nil
}
