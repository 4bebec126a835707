package http_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	authhttp "github.com/aussiebroadwan/fintrack/internal/auth/http"
	"github.com/aussiebroadwan/fintrack/internal/auth/service"
	"github.com/aussiebroadwan/fintrack/internal/auth/store/drivers/sqlite"
	"github.com/aussiebroadwan/fintrack/internal/finance"
	"github.com/aussiebroadwan/fintrack/pkg/authsdk"
	"github.com/aussiebroadwan/fintrack/pkg/authsdk/storage"
	"github.com/aussiebroadwan/fintrack/pkg/httpx"
	"github.com/aussiebroadwan/fintrack/pkg/jwtx"
	"github.com/aussiebroadwan/fintrack/pkg/slogx"
	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/require"
)

const (
	testIssuer   = "fintrack-test"
	testPassword = "correct horse battery"
)

type testServer struct {
	*httptest.Server
	client *authsdk.Client
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	st, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	require.NoError(t, st.ApplyMigrations())
	t.Cleanup(func() { _ = st.Close() })

	km, err := jwtx.NewKeyManager(jwtx.KeyManagerOptions{Issuer: testIssuer})
	require.NoError(t, err)

	tf := &service.TwoFactorService{Store: st, Issuer: "FinTrack", QRCodePath: "/v1/2fa/qr.png"}
	logger := slogx.Discard()

	r := authhttp.NewRouter(km.KeySet, km.Verifier, "test", st, logger)
	r.Cookies = httpx.CookiePolicy{Secure: false, PersistFor: storage.CookieTTL}
	r.LoginService = &service.LoginService{Store: st, Keys: km, TwoFactor: tf, Issuer: testIssuer}
	r.UserService = &service.UserService{Store: st}
	r.TwoFactorService = tf
	r.Book = finance.Demo()
	r.ApplyRoutes()

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return &testServer{Server: srv, client: authsdk.NewClient(srv.URL)}
}

// jarClient returns an SDK client that keeps cookies, like a browser.
func (s *testServer) jarClient(t *testing.T) (*authsdk.Client, http.CookieJar) {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return authsdk.NewClient(s.URL, authsdk.WithHTTPClient(&http.Client{Jar: jar})), jar
}

func (s *testServer) register(t *testing.T, email string) *authsdk.User {
	t.Helper()
	u, err := s.client.Register(context.Background(), authsdk.RegisterRequest{
		Email:           email,
		Name:            "Jane Doe",
		Password:        testPassword,
		ConfirmPassword: testPassword,
	})
	require.NoError(t, err)
	return u
}

func (s *testServer) login(t *testing.T, email string, remember bool) *authsdk.AuthResponse {
	t.Helper()
	resp, err := s.client.Login(context.Background(), email, testPassword, remember)
	require.NoError(t, err)
	return resp
}

func TestRegisterAndLogin(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)
	ctx := context.Background()

	u := s.register(t, "Jane@Example.com")
	require.Equal(t, "jane@example.com", u.Email)
	require.Equal(t, "password", u.Provider)
	require.False(t, u.TwoFactorEnabled)

	t.Run("duplicate email", func(t *testing.T) {
		_, err := s.client.Register(ctx, authsdk.RegisterRequest{
			Email: "jane@example.com", Name: "Other", Password: testPassword, ConfirmPassword: testPassword,
		})
		var apiErr *authsdk.APIError
		require.ErrorAs(t, err, &apiErr)
		require.Equal(t, http.StatusUnprocessableEntity, apiErr.StatusCode)
		require.Contains(t, apiErr.Fields, "email")
	})

	t.Run("field validation", func(t *testing.T) {
		_, err := s.client.Register(ctx, authsdk.RegisterRequest{Email: "nope", Password: "short", ConfirmPassword: "other"})
		var apiErr *authsdk.APIError
		require.ErrorAs(t, err, &apiErr)
		require.Equal(t, authsdk.ErrorCodeValidationFailed, apiErr.Code)
		for _, f := range []string{"email", "name", "password", "confirm_password"} {
			require.Contains(t, apiErr.Fields, f)
		}
	})

	t.Run("login and me", func(t *testing.T) {
		resp := s.login(t, "jane@example.com", false)
		require.Equal(t, "Bearer", resp.TokenType)
		require.Positive(t, resp.ExpiresIn)
		require.NotEmpty(t, resp.RefreshToken)
		require.Equal(t, authsdk.RedirectDashboard, resp.RedirectTo)

		me, err := s.client.Me(ctx, resp.AccessToken)
		require.NoError(t, err)
		require.Equal(t, u.ID, me.ID)
	})

	t.Run("wrong password", func(t *testing.T) {
		_, err := s.client.Login(ctx, "jane@example.com", "wrong password", false)
		require.ErrorIs(t, err, authsdk.ErrInvalidCredentials)
	})

	t.Run("missing token", func(t *testing.T) {
		_, err := s.client.Me(ctx, "")
		require.ErrorIs(t, err, authsdk.ErrUnauthorized)
		_, err = s.client.Me(ctx, "not-a-jwt")
		require.ErrorIs(t, err, authsdk.ErrUnauthorized)
	})
}

func TestLoginCookies(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)
	s.register(t, "cookie@example.com")

	post := func(remember bool) *http.Response {
		body := `{"email":"cookie@example.com","password":"` + testPassword + `","remember_me":` + map[bool]string{true: "true", false: "false"}[remember] + `}`
		resp, err := http.Post(s.URL+"/v1/auth/login", "application/json", strings.NewReader(body))
		require.NoError(t, err)
		resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)
		return resp
	}

	byName := func(resp *http.Response) map[string]*http.Cookie {
		out := map[string]*http.Cookie{}
		for _, c := range resp.Cookies() {
			out[c.Name] = c
		}
		return out
	}

	t.Run("remember me sets thirty day cookies", func(t *testing.T) {
		cookies := byName(post(true))
		for _, k := range storage.AuthKeys {
			require.Contains(t, cookies, k)
			require.Equal(t, "/", cookies[k].Path)
			require.Equal(t, http.SameSiteStrictMode, cookies[k].SameSite)
			require.Equal(t, int(storage.CookieTTL.Seconds()), cookies[k].MaxAge)
		}
		require.True(t, cookies[storage.KeyToken].HttpOnly)
		require.True(t, cookies[storage.KeyRefreshToken].HttpOnly)
		require.False(t, cookies[storage.KeyUser].HttpOnly)

		raw, err := httpx.DecodeCookieValue(cookies[storage.KeyUser].Value)
		require.NoError(t, err)
		var u authsdk.User
		require.NoError(t, json.Unmarshal([]byte(raw), &u))
		require.Equal(t, "cookie@example.com", u.Email)
	})

	t.Run("session cookies without remember me", func(t *testing.T) {
		cookies := byName(post(false))
		for _, k := range storage.AuthKeys {
			require.Zero(t, cookies[k].MaxAge)
			require.True(t, cookies[k].Expires.IsZero())
		}
	})
}

func TestCookieSession(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)
	ctx := context.Background()
	s.register(t, "browser@example.com")

	c, jar := s.jarClient(t)
	_, err := c.Login(ctx, "browser@example.com", testPassword, true)
	require.NoError(t, err)

	// No bearer token: the access cookie authenticates.
	raw, err := c.View(ctx, "", authsdk.ViewDashboard, nil)
	require.NoError(t, err)
	require.Contains(t, string(raw), "net_worth")

	// Empty body: the refresh cookie is used.
	refreshed, err := c.Refresh(ctx, "")
	require.NoError(t, err)
	require.True(t, refreshed.RememberMe)

	// The SDK storage reads the same cookies the server wrote.
	cookies, err := storage.NewCookieBackend(jar, s.URL)
	require.NoError(t, err)
	a := storage.NewAdapter(cookies, nil, nil, slogx.Discard())
	require.Equal(t, refreshed.AccessToken, a.GetToken(ctx))
	require.True(t, a.IsRemembered(ctx))

	out, err := c.Logout(ctx, "")
	require.NoError(t, err)
	require.Equal(t, authsdk.RedirectLogin, out.RedirectTo)
	require.Empty(t, a.GetToken(ctx))

	_, err = s.client.Refresh(ctx, refreshed.RefreshToken)
	require.ErrorIs(t, err, authsdk.ErrInvalidRefresh)

	_, err = c.View(ctx, "", authsdk.ViewDashboard, nil)
	require.ErrorIs(t, err, authsdk.ErrUnauthorized)
}

func TestRefreshRotation(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)
	ctx := context.Background()
	s.register(t, "rotate@example.com")
	first := s.login(t, "rotate@example.com", false)

	second, err := s.client.Refresh(ctx, first.RefreshToken)
	require.NoError(t, err)
	require.NotEqual(t, first.RefreshToken, second.RefreshToken)
	require.False(t, second.RememberMe)

	// Replaying the rotated token ends the whole session.
	_, err = s.client.Refresh(ctx, first.RefreshToken)
	require.ErrorIs(t, err, authsdk.ErrInvalidRefresh)
	_, err = s.client.Refresh(ctx, second.RefreshToken)
	require.ErrorIs(t, err, authsdk.ErrInvalidRefresh)

	out, err := s.client.Logout(ctx, "never-issued")
	require.NoError(t, err)
	require.Equal(t, authsdk.RedirectLogin, out.RedirectTo)
}

func TestTwoFactorFlow(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)
	ctx := context.Background()
	s.register(t, "mfa@example.com")
	token := s.login(t, "mfa@example.com", true).AccessToken

	_, err := s.client.TwoFactorQRCode(ctx, token)
	require.ErrorIs(t, err, authsdk.ErrTwoFactorNotSetup)

	setup, err := s.client.SetupTwoFactor(ctx, token)
	require.NoError(t, err)
	require.NotEmpty(t, setup.Secret)
	require.Equal(t, "/v1/2fa/qr.png", setup.QRCodeURL)
	require.Regexp(t, `^[A-Z0-9]{4}-[A-Z0-9]{4}-[A-Z0-9]{4}$`, setup.RecoveryCode)
	require.True(t, strings.HasPrefix(setup.OTPAuthURL, "otpauth://totp/"))

	png, err := s.client.TwoFactorQRCode(ctx, token)
	require.NoError(t, err)
	require.Equal(t, []byte("\x89PNG"), png[:4])

	_, err = s.client.EnableTwoFactor(ctx, token, "000000")
	require.ErrorIs(t, err, authsdk.ErrInvalidCode)

	code, err := totp.GenerateCode(setup.Secret, time.Now())
	require.NoError(t, err)
	status, err := s.client.EnableTwoFactor(ctx, token, code)
	require.NoError(t, err)
	require.True(t, status.Enabled)
	require.Len(t, status.RecoveryCodes, service.RecoveryCodeCount)

	_, err = s.client.SetupTwoFactor(ctx, token)
	require.ErrorIs(t, err, authsdk.ErrTwoFactorAlreadyEnabled)

	// Password login now stops at the second factor.
	_, err = s.client.Login(ctx, "mfa@example.com", testPassword, true)
	var tfErr *authsdk.TwoFactorRequiredError
	require.ErrorAs(t, err, &tfErr)
	require.NotEmpty(t, tfErr.PendingToken)
	require.Equal(t, []string{authsdk.MethodApp, authsdk.MethodRecovery}, tfErr.Methods)
	require.True(t, tfErr.RememberMe)
	require.True(t, tfErr.User.TwoFactorEnabled)
	require.Contains(t, tfErr.RedirectTo, "/login/2fa?")

	_, err = s.client.VerifyTwoFactor(ctx, tfErr.PendingToken, authsdk.MethodRecovery, "AAAA-BBBB-CCCC")
	require.ErrorIs(t, err, authsdk.ErrInvalidCode)

	_, err = s.client.VerifyTwoFactor(ctx, tfErr.PendingToken, "sms", "123456")
	require.ErrorIs(t, err, authsdk.ErrUnknownMethod)

	done, err := s.client.VerifyTwoFactor(ctx, tfErr.PendingToken, authsdk.MethodRecovery, strings.ToLower(status.RecoveryCodes[0]))
	require.NoError(t, err)
	require.True(t, done.RememberMe)
	require.True(t, done.User.TwoFactorEnabled)

	// The pending login is gone once used.
	_, err = s.client.VerifyTwoFactor(ctx, tfErr.PendingToken, authsdk.MethodRecovery, status.RecoveryCodes[1])
	require.ErrorIs(t, err, authsdk.ErrNoPendingLogin)

	st, err := s.client.TwoFactorStatus(ctx, done.AccessToken)
	require.NoError(t, err)
	require.True(t, st.Enabled)
	require.Equal(t, service.RecoveryCodeCount-1, st.RecoveryCodesLeft)

	t.Run("regenerate and disable", func(t *testing.T) {
		_, err := s.client.RegenerateRecoveryCodes(ctx, done.AccessToken, "000000")
		require.ErrorIs(t, err, authsdk.ErrInvalidCode)

		code, err := totp.GenerateCode(setup.Secret, time.Now())
		require.NoError(t, err)
		codes, err := s.client.RegenerateRecoveryCodes(ctx, done.AccessToken, code)
		require.NoError(t, err)
		require.Len(t, codes.Codes, service.RecoveryCodeCount)

		off, err := s.client.DisableTwoFactor(ctx, done.AccessToken, code)
		require.NoError(t, err)
		require.False(t, off.Enabled)

		resp := s.login(t, "mfa@example.com", false)
		require.False(t, resp.User.TwoFactorEnabled)
	})
}

func TestCancelTwoFactor(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)
	ctx := context.Background()

	token := s.loginProvider(t, "github")

	setup, err := s.client.SetupTwoFactor(ctx, token)
	require.NoError(t, err)
	code, err := totp.GenerateCode(setup.Secret, time.Now())
	require.NoError(t, err)
	_, err = s.client.EnableTwoFactor(ctx, token, code)
	require.NoError(t, err)

	_, err = s.client.LoginWithProvider(ctx, "github", false)
	var tfErr *authsdk.TwoFactorRequiredError
	require.ErrorAs(t, err, &tfErr)
	require.Equal(t, "github", tfErr.Provider)

	require.NoError(t, s.client.CancelTwoFactor(ctx, tfErr.PendingToken))
	_, err = s.client.VerifyTwoFactor(ctx, tfErr.PendingToken, authsdk.MethodApp, code)
	require.ErrorIs(t, err, authsdk.ErrNoPendingLogin)
}

func (s *testServer) loginProvider(t *testing.T, provider string) string {
	t.Helper()
	resp, err := s.client.LoginWithProvider(context.Background(), provider, false)
	require.NoError(t, err)
	return resp.AccessToken
}

func TestProviderLogin(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)
	ctx := context.Background()

	first, err := s.client.LoginWithProvider(ctx, "Google", true)
	require.NoError(t, err)
	require.Equal(t, "google", first.User.Provider)
	require.Equal(t, service.ProviderEmail("google"), first.User.Email)
	require.Equal(t, "USD", first.User.Profile.Currency)

	again, err := s.client.LoginWithProvider(ctx, "google", false)
	require.NoError(t, err)
	require.Equal(t, first.User.ID, again.User.ID)

	_, err = s.client.LoginWithProvider(ctx, "myspace", false)
	require.ErrorIs(t, err, authsdk.ErrUnknownProvider)

	t.Run("browser redirect", func(t *testing.T) {
		hc := &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		}}
		resp, err := hc.Get(s.URL + "/v1/auth/providers/apple?remember_me=true")
		require.NoError(t, err)
		resp.Body.Close()

		require.Equal(t, http.StatusSeeOther, resp.StatusCode)
		require.Equal(t, authsdk.RedirectDashboard, resp.Header.Get("Location"))
		names := []string{}
		for _, c := range resp.Cookies() {
			names = append(names, c.Name)
		}
		require.ElementsMatch(t, storage.AuthKeys, names)
	})
}

func TestUpdateMeAndChangePassword(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)
	ctx := context.Background()
	s.register(t, "profile@example.com")
	resp := s.login(t, "profile@example.com", false)

	title, tz := "Analyst", "Australia/Sydney"
	u, err := s.client.UpdateMe(ctx, resp.AccessToken, authsdk.ProfilePatch{JobTitle: &title, Timezone: &tz})
	require.NoError(t, err)
	require.Equal(t, "Analyst", u.Profile.JobTitle)
	require.Equal(t, "Jane Doe", u.Name)

	me, err := s.client.Me(ctx, resp.AccessToken)
	require.NoError(t, err)
	require.Equal(t, "Australia/Sydney", me.Profile.Timezone)

	err = s.client.ChangePassword(ctx, resp.AccessToken, "wrong password", "another long one")
	require.ErrorIs(t, err, authsdk.ErrInvalidCredentials)

	err = s.client.ChangePassword(ctx, resp.AccessToken, testPassword, "short")
	var apiErr *authsdk.APIError
	require.ErrorAs(t, err, &apiErr)
	require.Contains(t, apiErr.Fields, "new_password")

	require.NoError(t, s.client.ChangePassword(ctx, resp.AccessToken, testPassword, "another long one"))
	_, err = s.client.Refresh(ctx, resp.RefreshToken)
	require.ErrorIs(t, err, authsdk.ErrInvalidRefresh)

	_, err = s.client.Login(ctx, "profile@example.com", "another long one", false)
	require.NoError(t, err)
}

func TestFinanceViews(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)
	ctx := context.Background()
	s.register(t, "money@example.com")
	token := s.login(t, "money@example.com", false).AccessToken

	for _, v := range authsdk.Views {
		_, err := s.client.View(ctx, token, v, nil)
		require.NoError(t, err, v)

		_, err = s.client.View(ctx, "", v, nil)
		require.ErrorIs(t, err, authsdk.ErrUnauthorized, v)
	}

	raw, err := s.client.View(ctx, token, authsdk.ViewTransactions, url.Values{"type": {"income"}, "limit": {"2"}})
	require.NoError(t, err)
	var txs authhttp.TransactionsResponse
	require.NoError(t, json.Unmarshal(raw, &txs))
	require.LessOrEqual(t, txs.Count, 2)
	require.NotEmpty(t, txs.Categories)
	for _, tx := range txs.Transactions {
		require.Equal(t, finance.TypeIncome, tx.Type)
	}

	raw, err = s.client.View(ctx, token, authsdk.ViewCashflow, url.Values{"months": {"3"}})
	require.NoError(t, err)
	var cf finance.Cashflow
	require.NoError(t, json.Unmarshal(raw, &cf))
	require.Len(t, cf.Months, 3)

	for _, bad := range []struct {
		view  string
		query url.Values
	}{
		{authsdk.ViewPortfolio, url.Values{"sort": {"random"}}},
		{authsdk.ViewTransactions, url.Values{"type": {"transfer"}}},
		{authsdk.ViewTransactions, url.Values{"limit": {"-1"}}},
		{authsdk.ViewCashflow, url.Values{"months": {"zero"}}},
	} {
		_, err := s.client.View(ctx, token, bad.view, bad.query)
		require.ErrorIs(t, err, authsdk.ErrInvalidRequest, bad.query.Encode())
	}
}

func TestSystemEndpoints(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)
	ctx := context.Background()

	live, err := s.client.GetLiveness(ctx)
	require.NoError(t, err)
	require.Equal(t, "ok", live.Status)
	require.Equal(t, "test", live.Version)

	ready, err := s.client.GetReadiness(ctx)
	require.NoError(t, err)
	require.Equal(t, "ok", ready.Checks.Database)
	require.Equal(t, "ok", ready.Checks.Signer)

	keys, err := s.client.GetJWKS(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, keys.Keys)
}
