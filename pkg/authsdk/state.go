package authsdk

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"sync"
	"time"
)

// Storage persists a signed-in session between runs. storage.Adapter is
// the standard implementation.
type Storage interface {
	GetCurrentUser(ctx context.Context) (User, bool)
	GetToken(ctx context.Context) string
	GetRefreshToken(ctx context.Context) string
	IsRemembered(ctx context.Context) bool
	SaveAuth(ctx context.Context, user User, token, refreshToken string, rememberMe bool)
	ClearAuth(ctx context.Context)
}

type State int

const (
	StateUnauthenticated State = iota
	StatePendingTwoFactor
	StateAuthenticated
)

func (s State) String() string {
	switch s {
	case StatePendingTwoFactor:
		return "pending_two_factor"
	case StateAuthenticated:
		return "authenticated"
	default:
		return "unauthenticated"
	}
}

// LoginResult is what a first-factor login produced.
type LoginResult struct {
	Success           bool
	RequiresTwoFactor bool
	RedirectTo        string
}

// VerificationResult is the outcome of checking a second factor. Token and
// RefreshToken, when set, replace the ones held by the pending login.
type VerificationResult struct {
	Success      bool
	User         *User
	Token        string
	RefreshToken string
}

// pendingLogin holds a login that passed its first factor. Token and
// refreshToken are only set when the caller supplied them up front.
type pendingLogin struct {
	user         User
	provider     string
	pendingToken string
	token        string
	refreshToken string
	rememberMe   bool
}

// AuthState is the client session state machine:
//
//	unauthenticated -> pending_two_factor -> authenticated
//	unauthenticated -> authenticated
//
// Logout returns to unauthenticated from anywhere. It is safe for concurrent
// use.
type AuthState struct {
	client     *Client
	store      Storage
	logger     *slog.Logger
	minLoading time.Duration

	mu           sync.RWMutex
	user         *User
	token        string
	refreshToken string
	rememberMe   bool
	pending      *pendingLogin
	loading      bool
}

type StateOption func(*AuthState)

// WithMinLoading keeps IsLoading true for at least d during each network
// call, so a UI spinner does not flicker.
func WithMinLoading(d time.Duration) StateOption {
	return func(s *AuthState) { s.minLoading = d }
}

func WithLogger(l *slog.Logger) StateOption {
	return func(s *AuthState) { s.logger = l }
}

// NewAuthState returns a state that is loading until Restore runs. client
// may be nil when only LoginWithCredentials and Handle2FAVerification are
// used.
func NewAuthState(client *Client, store Storage, opts ...StateOption) *AuthState {
	s := &AuthState{
		client:  client,
		store:   store,
		logger:  slog.Default(),
		loading: true,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ErrNotAuthenticated is returned by calls that need a signed-in session.
var ErrNotAuthenticated = errors.New("not_authenticated")

// Restore loads a saved session from storage. When a client is set, the
// saved token is checked against the server and refreshed if it has
// expired; a session the server rejects is cleared. Network failures keep
// the saved session.
func (s *AuthState) Restore(ctx context.Context) {
	defer s.setLoading(false)

	token := s.store.GetToken(ctx)
	user, ok := s.store.GetCurrentUser(ctx)
	if token == "" || !ok {
		return
	}
	refresh := s.store.GetRefreshToken(ctx)
	remember := s.store.IsRemembered(ctx)

	if s.client != nil {
		fresh, err := s.client.Me(ctx, token)
		switch {
		case err == nil:
			user = *fresh
		case errors.Is(err, ErrUnauthorized) && refresh != "":
			resp, rerr := s.client.Refresh(ctx, refresh)
			if rerr != nil {
				s.logger.InfoContext(ctx, "saved session rejected", "error", rerr)
				s.store.ClearAuth(ctx)
				return
			}
			user, token, refresh = resp.User, resp.AccessToken, resp.RefreshToken
			s.store.SaveAuth(ctx, user, token, refresh, remember)
		case errors.Is(err, ErrUnauthorized):
			s.store.ClearAuth(ctx)
			return
		default:
			s.logger.WarnContext(ctx, "could not validate saved session", "error", err)
		}
	}

	s.mu.Lock()
	s.user = &user
	s.token = token
	s.refreshToken = refresh
	s.rememberMe = remember
	s.mu.Unlock()
}

// LoginWithCredentials signs in with a user and tokens already obtained.
// When the user has 2FA enabled and skipTwoFactor is false, nothing is
// stored: the login is held as pending and RequiresTwoFactor is reported.
func (s *AuthState) LoginWithCredentials(ctx context.Context, user User, token, refreshToken string, rememberMe, skipTwoFactor bool) LoginResult {
	if user.TwoFactorEnabled && !skipTwoFactor {
		s.beginPending(&pendingLogin{
			user:         user,
			provider:     user.Provider,
			token:        token,
			refreshToken: refreshToken,
			rememberMe:   rememberMe,
		})
		return LoginResult{RequiresTwoFactor: true, RedirectTo: twoFactorRedirect(user.Provider, "")}
	}

	s.authenticate(ctx, user, token, refreshToken, rememberMe)
	return LoginResult{Success: true, RedirectTo: RedirectDashboard}
}

// LoginWithPassword signs in against the server. A *TwoFactorRequiredError
// from the server is not an error here: the login becomes pending.
func (s *AuthState) LoginWithPassword(ctx context.Context, email, password string, rememberMe bool) (LoginResult, error) {
	return s.login(ctx, func() (*AuthResponse, error) {
		return s.client.Login(ctx, email, password, rememberMe)
	})
}

// LoginWithProvider signs in through a simulated provider.
func (s *AuthState) LoginWithProvider(ctx context.Context, provider string, rememberMe bool) (LoginResult, error) {
	return s.login(ctx, func() (*AuthResponse, error) {
		return s.client.LoginWithProvider(ctx, provider, rememberMe)
	})
}

func (s *AuthState) login(ctx context.Context, call func() (*AuthResponse, error)) (LoginResult, error) {
	var resp *AuthResponse
	err := s.withLoading(ctx, func() error {
		var err error
		resp, err = call()
		return err
	})

	var tfErr *TwoFactorRequiredError
	switch {
	case errors.As(err, &tfErr):
		s.beginPending(&pendingLogin{
			user:         tfErr.User,
			provider:     tfErr.Provider,
			pendingToken: tfErr.PendingToken,
			rememberMe:   tfErr.RememberMe,
		})
		return LoginResult{
			RequiresTwoFactor: true,
			RedirectTo:        twoFactorRedirect(tfErr.Provider, tfErr.PendingToken),
		}, nil
	case err != nil:
		return LoginResult{}, err
	}

	// The server already checked the second factor policy.
	return s.LoginWithCredentials(ctx, resp.User, resp.AccessToken, resp.RefreshToken, resp.RememberMe, true), nil
}

// VerifyTwoFactor sends a code for the pending login to the server. It
// returns false with the server's error when the code is rejected. When
// the server has dropped the pending login, the local one is dropped too.
func (s *AuthState) VerifyTwoFactor(ctx context.Context, method, code string) (bool, error) {
	s.mu.RLock()
	p := s.pending
	s.mu.RUnlock()
	if p == nil {
		return false, ErrNoPendingLogin
	}
	if p.pendingToken == "" {
		// Pending login created locally, so there is nothing to send.
		return false, ErrNoPendingLogin
	}

	var resp *AuthResponse
	err := s.withLoading(ctx, func() error {
		var err error
		resp, err = s.client.VerifyTwoFactor(ctx, p.pendingToken, method, code)
		return err
	})
	if err != nil {
		if errors.Is(err, ErrNoPendingLogin) || errors.Is(err, ErrTooManyAttempts) {
			s.clearPending()
		}
		return false, err
	}

	return s.Handle2FAVerification(ctx, VerificationResult{
		Success:      true,
		User:         &resp.User,
		Token:        resp.AccessToken,
		RefreshToken: resp.RefreshToken,
	}), nil
}

// Handle2FAVerification finishes a pending login. It returns false when
// result is a failure, nothing is pending or no access token is known; the
// pending login is kept in those cases so the user can retry.
func (s *AuthState) Handle2FAVerification(ctx context.Context, result VerificationResult) bool {
	s.mu.Lock()
	p := s.pending
	if !result.Success || p == nil {
		s.mu.Unlock()
		return false
	}

	token, refresh := p.token, p.refreshToken
	if result.Token != "" {
		token = result.Token
	}
	if result.RefreshToken != "" {
		refresh = result.RefreshToken
	}
	if token == "" {
		s.mu.Unlock()
		return false
	}
	s.pending = nil
	s.mu.Unlock()

	user := p.user
	if result.User != nil {
		user = *result.User
	}

	s.authenticate(ctx, user, token, refresh, p.rememberMe)
	return true
}

// CancelTwoFactor abandons the pending login. The server copy is dropped
// on a best-effort basis.
func (s *AuthState) CancelTwoFactor(ctx context.Context) {
	s.mu.Lock()
	p := s.pending
	s.pending = nil
	s.mu.Unlock()

	if p == nil || p.pendingToken == "" || s.client == nil {
		return
	}
	if err := s.client.CancelTwoFactor(ctx, p.pendingToken); err != nil {
		s.logger.WarnContext(ctx, "cancel two-factor failed", "error", err)
	}
}

// Refresh rotates the refresh token and stores the new pair.
func (s *AuthState) Refresh(ctx context.Context) error {
	s.mu.RLock()
	refresh, remember := s.refreshToken, s.rememberMe
	s.mu.RUnlock()
	if refresh == "" {
		return ErrNotAuthenticated
	}

	var resp *AuthResponse
	err := s.withLoading(ctx, func() error {
		var err error
		resp, err = s.client.Refresh(ctx, refresh)
		return err
	})
	if err != nil {
		if errors.Is(err, ErrInvalidRefresh) {
			s.reset(ctx)
		}
		return err
	}

	s.authenticate(ctx, resp.User, resp.AccessToken, resp.RefreshToken, remember)
	return nil
}

// Logout clears the session everywhere and returns the page to show next.
// Revoking the session on the server is best effort.
func (s *AuthState) Logout(ctx context.Context) string {
	s.mu.RLock()
	refresh := s.refreshToken
	s.mu.RUnlock()

	if refresh != "" && s.client != nil {
		if _, err := s.client.Logout(ctx, refresh); err != nil {
			s.logger.WarnContext(ctx, "server logout failed", "error", err)
		}
	}

	s.reset(ctx)
	return RedirectLogin
}

// UpdateUser saves a profile patch on the server, then stores the updated
// user under the current token and remember-me choice. An expired access
// token is refreshed once.
func (s *AuthState) UpdateUser(ctx context.Context, patch ProfilePatch) (User, error) {
	return s.syncUser(ctx, func(token string) (*User, error) {
		return s.client.UpdateMe(ctx, token, patch)
	})
}

// ReloadUser fetches the signed-in user from the server and stores it, so
// changes made through other calls show up locally.
func (s *AuthState) ReloadUser(ctx context.Context) (User, error) {
	return s.syncUser(ctx, func(token string) (*User, error) {
		return s.client.Me(ctx, token)
	})
}

// syncUser runs call with the access token, retrying once after a refresh
// when the token is rejected, and saves the user it returns.
func (s *AuthState) syncUser(ctx context.Context, call func(token string) (*User, error)) (User, error) {
	send := func() (*User, string, error) {
		token := s.Token()
		if token == "" {
			return nil, "", ErrNotAuthenticated
		}
		var u *User
		err := s.withLoading(ctx, func() error {
			var err error
			u, err = call(token)
			return err
		})
		return u, token, err
	}

	updated, token, err := send()
	if errors.Is(err, ErrUnauthorized) && s.Refresh(ctx) == nil {
		updated, token, err = send()
	}
	if err != nil {
		return User{}, err
	}

	s.mu.Lock()
	if s.token != token {
		// Logged out or refreshed while the request was in flight.
		s.mu.Unlock()
		return *updated, nil
	}
	s.user = updated
	refresh, remember := s.refreshToken, s.rememberMe
	s.mu.Unlock()

	s.store.SaveAuth(ctx, *updated, token, refresh, remember)
	return *updated, nil
}

// User returns the signed-in user.
func (s *AuthState) User() (User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return User{}, false
	}
	return *s.user, true
}

// PendingUser returns the user waiting on a second factor.
func (s *AuthState) PendingUser() (User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.pending == nil {
		return User{}, false
	}
	return s.pending.user, true
}

func (s *AuthState) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

func (s *AuthState) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token != "" && s.user != nil
}

func (s *AuthState) IsLoading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

func (s *AuthState) RequiresTwoFactor() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pending != nil
}

func (s *AuthState) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	switch {
	case s.pending != nil:
		return StatePendingTwoFactor
	case s.token != "" && s.user != nil:
		return StateAuthenticated
	default:
		return StateUnauthenticated
	}
}

// beginPending replaces any earlier pending login.
func (s *AuthState) beginPending(p *pendingLogin) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = p
}

func (s *AuthState) clearPending() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = nil
}

func (s *AuthState) authenticate(ctx context.Context, user User, token, refreshToken string, rememberMe bool) {
	s.store.SaveAuth(ctx, user, token, refreshToken, rememberMe)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.user = &user
	s.token = token
	s.refreshToken = refreshToken
	s.rememberMe = rememberMe
	s.pending = nil
}

func (s *AuthState) reset(ctx context.Context) {
	s.store.ClearAuth(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.user = nil
	s.token = ""
	s.refreshToken = ""
	s.rememberMe = false
	s.pending = nil
}

func (s *AuthState) setLoading(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = v
}

// withLoading runs fn with the loading flag set, holding it for at least
// minLoading unless ctx ends first.
func (s *AuthState) withLoading(ctx context.Context, fn func() error) error {
	if s.client == nil {
		return errors.New("authsdk: no client configured")
	}
	s.setLoading(true)
	defer s.setLoading(false)

	start := time.Now()
	err := fn()

	if wait := s.minLoading - time.Since(start); wait > 0 {
		t := time.NewTimer(wait)
		defer t.Stop()
		select {
		case <-t.C:
		case <-ctx.Done():
		}
	}
	return err
}

func twoFactorRedirect(provider, pendingToken string) string {
	q := url.Values{}
	if provider != "" {
		q.Set("provider", provider)
	}
	if pendingToken != "" {
		q.Set("pending", pendingToken)
	}
	if len(q) == 0 {
		return RedirectTwoFactor
	}
	return RedirectTwoFactor + "?" + q.Encode()
}
