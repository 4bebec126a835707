package auth_test

import (
	"testing"

	"github.com/aussiebroadwan/fintrack/pkg/jwtx"
	"github.com/stretchr/testify/require"
)

func TestHealthEndpoints(t *testing.T) {
	client := setupAuthContainer(t, nil)

	health, err := client.GetLiveness(t.Context())
	assertHealthy(t, health, err)
	require.NotEmpty(t, health.Version)

	ready, err := client.GetReadiness(t.Context())
	assertHealthy(t, ready, err)
	require.NotNil(t, ready.Checks)
	require.Equal(t, "ok", ready.Checks.Database)
	require.Equal(t, "ok", ready.Checks.Signer)
}

// TestJWKSVerifiesAccessTokens checks that a token issued at login verifies
// against the published key set alone.
func TestJWKSVerifiesAccessTokens(t *testing.T) {
	client := setupAuthContainer(t, nil)

	resp := registerAndLogin(t, client, "jwks@example.com", false)

	jwks, err := client.GetJWKS(t.Context())
	require.NoError(t, err)
	require.NotEmpty(t, jwks.Keys, "JWKS should contain at least one key")

	keys := jwtx.NewKeySet()
	for _, k := range jwks.Keys {
		require.Equal(t, jwtx.AlgorithmEdDSA, k.Alg)
		require.NoError(t, keys.AddJWK(k))
	}

	claims, err := jwtx.NewVerifier(keys, jwtx.VerifyOptions{Issuer: testIssuer}).Verify(resp.AccessToken)
	require.NoError(t, err)
	require.Equal(t, resp.User.ID, claims.Subject)
	require.Equal(t, "jwks@example.com", claims.Email)
	require.True(t, claims.HasAMR(jwtx.AMRPassword))
}
