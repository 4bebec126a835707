package jwtx

import (
	"encoding/json"
	"testing"

	"github.com/aussiebroadwan/fintrack/pkg/cryptox"
	"github.com/stretchr/testify/require"
)

func TestJWKRoundTripThroughKeySet(t *testing.T) {
	for _, kind := range []string{cryptox.KeyEd25519, cryptox.KeyP256} {
		t.Run(kind, func(t *testing.T) {
			pemKey, err := cryptox.GenerateSigningKey(kind)
			require.NoError(t, err)
			key, err := cryptox.ParsePrivateKeyPEM(pemKey)
			require.NoError(t, err)

			s, err := NewSigner("kid-1", key)
			require.NoError(t, err)

			// Serve the JWKS as JSON and load it into a fresh set, the way
			// a remote verifier would.
			src := NewKeySet()
			require.NoError(t, src.AddSigner(s))
			b, err := json.Marshal(src.PublicJWKS())
			require.NoError(t, err)

			var jwks JWKS
			require.NoError(t, json.Unmarshal(b, &jwks))
			dst := NewKeySet()
			for _, j := range jwks.Keys {
				require.NoError(t, dst.AddJWK(j))
			}

			tok, err := s.Sign(NewAccessClaims(AccessParams{Subject: "u1"}))
			require.NoError(t, err)
			_, err = NewVerifier(dst, VerifyOptions{}).Verify(tok)
			require.NoError(t, err)
		})
	}
}

func TestJWKRejectsUnsupported(t *testing.T) {
	_, err := JWK{Kty: "RSA"}.PublicKey()
	require.Error(t, err)
	_, err = JWK{Kty: "EC", Crv: "P-384"}.PublicKey()
	require.Error(t, err)
	_, err = JWK{Kty: "OKP", Crv: "Ed25519", X: "AAAA"}.PublicKey()
	require.Error(t, err)
}

func TestKeySetAddReplacesSameKID(t *testing.T) {
	pemKey, err := cryptox.GenerateSigningKey(cryptox.KeyEd25519)
	require.NoError(t, err)
	key, err := cryptox.ParsePrivateKeyPEM(pemKey)
	require.NoError(t, err)
	s, err := NewSigner("dup", key)
	require.NoError(t, err)

	ks := NewKeySet()
	require.NoError(t, ks.AddSigner(s))
	require.NoError(t, ks.AddSigner(s))
	require.Len(t, ks.PublicJWKS().Keys, 1)

	ks.Remove("dup")
	require.False(t, ks.IsReady())
	_, err = ks.Get("dup")
	require.ErrorIs(t, err, ErrNoKey)
}
