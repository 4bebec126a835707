package auth_test

import (
	"maps"
	"testing"
	"time"

	"github.com/aussiebroadwan/fintrack/pkg/authsdk"
	"github.com/aussiebroadwan/fintrack/pkg/jwtx"
	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/require"
)

// TestTwoFactorWithAuthenticatorApp enrolls a real TOTP secret and signs
// in with both an app code and a recovery code.
func TestTwoFactorWithAuthenticatorApp(t *testing.T) {
	client := setupAuthContainer(t, nil)
	ctx := t.Context()
	email := "totp@example.com"

	session := registerAndLogin(t, client, email, false)

	setup, err := client.SetupTwoFactor(ctx, session.AccessToken)
	require.NoError(t, err)
	require.NotEmpty(t, setup.Secret)
	t.Logf("TOTP enrollment initiated for %s", setup.Account)

	png, err := client.TwoFactorQRCode(ctx, session.AccessToken)
	require.NoError(t, err)
	require.NotEmpty(t, png)

	code, err := totp.GenerateCode(setup.Secret, time.Now())
	require.NoError(t, err)
	status, err := client.EnableTwoFactor(ctx, session.AccessToken, code)
	require.NoError(t, err)
	require.True(t, status.Enabled)
	require.Len(t, status.RecoveryCodes, 10)
	recovery := status.RecoveryCodes[0]

	// Password login now stops at the second factor.
	_, err = client.Login(ctx, email, testPassword, true)
	challenge := requireTwoFactor(t, err)
	require.True(t, challenge.RememberMe)
	require.Equal(t, email, challenge.User.Email)

	_, err = client.VerifyTwoFactor(ctx, challenge.PendingToken, authsdk.MethodApp, "000000")
	require.ErrorIs(t, err, authsdk.ErrInvalidCode)

	code, err = totp.GenerateCode(setup.Secret, time.Now())
	require.NoError(t, err)
	resp, err := client.VerifyTwoFactor(ctx, challenge.PendingToken, authsdk.MethodApp, code)
	require.NoError(t, err)
	assertAuthResponse(t, resp)
	require.True(t, resp.RememberMe)

	// The pending login is single use.
	_, err = client.VerifyTwoFactor(ctx, challenge.PendingToken, authsdk.MethodApp, code)
	require.ErrorIs(t, err, authsdk.ErrNoPendingLogin)

	_, err = client.Login(ctx, email, testPassword, false)
	challenge = requireTwoFactor(t, err)
	resp, err = client.VerifyTwoFactor(ctx, challenge.PendingToken, authsdk.MethodRecovery, recovery)
	require.NoError(t, err)

	jwks, err := client.GetJWKS(ctx)
	require.NoError(t, err)
	keys := jwtx.NewKeySet()
	for _, k := range jwks.Keys {
		require.NoError(t, keys.AddJWK(k))
	}
	claims, err := jwtx.NewVerifier(keys, jwtx.VerifyOptions{Issuer: testIssuer}).Verify(resp.AccessToken)
	require.NoError(t, err)
	require.True(t, claims.HasAMR(jwtx.AMRMFA))

	st, err := client.TwoFactorStatus(ctx, resp.AccessToken)
	require.NoError(t, err)
	require.Equal(t, 9, st.RecoveryCodesLeft)

	// A used recovery code cannot be replayed.
	_, err = client.Login(ctx, email, testPassword, false)
	challenge = requireTwoFactor(t, err)
	_, err = client.VerifyTwoFactor(ctx, challenge.PendingToken, authsdk.MethodRecovery, recovery)
	require.ErrorIs(t, err, authsdk.ErrInvalidCode)
}

// TestTwoFactorTooManyAttempts checks that repeated bad codes drop the
// pending login.
func TestTwoFactorTooManyAttempts(t *testing.T) {
	client := setupAuthContainer(t, nil)
	ctx := t.Context()
	email := "attempts@example.com"

	session := registerAndLogin(t, client, email, false)
	setup, err := client.SetupTwoFactor(ctx, session.AccessToken)
	require.NoError(t, err)
	code, err := totp.GenerateCode(setup.Secret, time.Now())
	require.NoError(t, err)
	_, err = client.EnableTwoFactor(ctx, session.AccessToken, code)
	require.NoError(t, err)

	_, err = client.Login(ctx, email, testPassword, false)
	challenge := requireTwoFactor(t, err)

	for i := range 5 {
		_, err = client.VerifyTwoFactor(ctx, challenge.PendingToken, authsdk.MethodRecovery, "AAAA-AAAA-AAAA")
		require.ErrorIs(t, err, authsdk.ErrInvalidCode, "attempt %d", i+1)
	}
	_, err = client.VerifyTwoFactor(ctx, challenge.PendingToken, authsdk.MethodApp, code)
	require.ErrorIs(t, err, authsdk.ErrTooManyAttempts)

	_, err = client.VerifyTwoFactor(ctx, challenge.PendingToken, authsdk.MethodApp, code)
	require.ErrorIs(t, err, authsdk.ErrNoPendingLogin)
}

// TestDemoMode runs the server with the demo verifier and a seeded user.
func TestDemoMode(t *testing.T) {
	env := containerEnv{
		"TWOFACTOR_MODE":     "demo",
		"DEMO_USER_EMAIL":    "demo@fintrack.local",
		"DEMO_USER_PASSWORD": testPassword,
	}
	maps.Copy(env, relaxedLimits)
	client := setupAuthContainer(t, env)
	ctx := t.Context()

	resp, err := client.Login(ctx, "Demo@FinTrack.local", testPassword, false)
	require.NoError(t, err)
	assertAuthResponse(t, resp)

	_, err = client.SetupTwoFactor(ctx, resp.AccessToken)
	require.NoError(t, err)
	_, err = client.EnableTwoFactor(ctx, resp.AccessToken, "123456")
	require.NoError(t, err, "demo mode accepts any six-digit code")

	_, err = client.Login(ctx, "demo@fintrack.local", testPassword, false)
	challenge := requireTwoFactor(t, err)
	_, err = client.VerifyTwoFactor(ctx, challenge.PendingToken, authsdk.MethodRecovery, "ZZZZ-9999-ZZZZ")
	require.NoError(t, err, "demo mode accepts any well-formed recovery code")
}
