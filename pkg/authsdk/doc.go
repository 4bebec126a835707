/*
Package authsdk is the client SDK for the FinTrack auth service.

# Client

Client is a thin, stateless wrapper over the HTTP API:

	c := authsdk.NewClient("http://localhost:8080")

	resp, err := c.Login(ctx, "jane@example.com", password, true)
	var tfErr *authsdk.TwoFactorRequiredError
	if errors.As(err, &tfErr) {
		resp, err = c.VerifyTwoFactor(ctx, tfErr.PendingToken, authsdk.MethodApp, code)
	}

Failed calls return *APIError (compare with errors.Is against ErrInvalidCode,
ErrUnauthorized and friends) or *TwoFactorRequiredError when a login needs a
second factor.

# AuthState

AuthState keeps the session of one user on top of a Client and a Storage:

	jar, _ := cookiejar.New(nil)
	cookies, _ := storage.NewCookieBackend(jar, baseURL)
	disk, _ := storage.OpenSQLite(ctx, path)
	store := storage.NewAdapter(cookies, disk, storage.NewMemoryBackend(), logger)

	c := authsdk.NewClient(baseURL, authsdk.WithHTTPClient(&http.Client{Jar: jar}))
	state := authsdk.NewAuthState(c, store, authsdk.WithMinLoading(300*time.Millisecond))
	state.Restore(ctx)

	res, err := state.LoginWithPassword(ctx, email, password, rememberMe)
	if res.RequiresTwoFactor {
		ok, err := state.VerifyTwoFactor(ctx, authsdk.MethodApp, code)
	}

	next := state.Logout(ctx) // "/login"

The state moves from unauthenticated to pending_two_factor (when the account
has 2FA enabled) and then to authenticated. IsLoading is true until Restore
has run and during every network call.

# Remember me

With remember me the session goes to the persistent backend and a 30-day
cookie. Without it the session lives in the memory backend and session
cookies, and is gone when the process exits.
*/
package authsdk
