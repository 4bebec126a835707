package jwtx

import (
	"crypto/rand"
	"encoding/base64"
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultAccessTokenTTL is the lifetime of access tokens. Refresh tokens
// carry the long-lived part of a session.
const DefaultAccessTokenTTL = 15 * time.Minute

// Authentication method references carried in the "amr" claim.
const (
	AMRPassword = "pwd"
	AMRProvider = "fed" // federated / social provider
	AMROTP      = "otp"
	AMRMFA      = "mfa"
)

// Claims are the access-token claims issued to FinTrack clients.
type Claims struct {
	jwt.RegisteredClaims

	// Session ID, shared by every token rotated from the same login.
	SID string `json:"sid,omitempty"`

	AMR      []string `json:"amr,omitempty"`
	Email    string   `json:"email,omitempty"`
	Name     string   `json:"name,omitempty"`
	Provider string   `json:"provider,omitempty"`
}

// AccessParams describe an access token to mint.
type AccessParams struct {
	Subject   string
	SessionID string
	Issuer    string
	Audience  []string
	Email     string
	Name      string
	Provider  string
	AMR       []string
	TTL       time.Duration
	Now       time.Time
}

func NewAccessClaims(p AccessParams) Claims {
	if p.TTL <= 0 {
		p.TTL = DefaultAccessTokenTTL
	}
	if p.Now.IsZero() {
		p.Now = time.Now().UTC()
	}

	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    p.Issuer,
			Subject:   p.Subject,
			Audience:  jwt.ClaimStrings(p.Audience),
			IssuedAt:  jwt.NewNumericDate(p.Now),
			NotBefore: jwt.NewNumericDate(p.Now),
			ExpiresAt: jwt.NewNumericDate(p.Now.Add(p.TTL)),
			ID:        NewJTI(),
		},
		SID:      p.SessionID,
		AMR:      p.AMR,
		Email:    p.Email,
		Name:     p.Name,
		Provider: p.Provider,
	}
}

// NewJTI returns a random URL-safe token identifier.
func NewJTI() string {
	var b [20]byte
	_, _ = rand.Read(b[:])
	return base64.RawURLEncoding.EncodeToString(b[:])
}

// HasAMR reports whether the token was obtained using method.
func (c *Claims) HasAMR(method string) bool {
	return slices.Contains(c.AMR, method)
}

// ValidateIssuer checks iss. An empty expectation is not enforced.
func (c *Claims) ValidateIssuer(expected string) error {
	if expected != "" && c.Issuer != expected {
		return ErrIssuer
	}
	return nil
}

// ValidateAudience requires at least one expected audience when any are
// configured.
func (c *Claims) ValidateAudience(expected []string) error {
	if len(expected) == 0 {
		return nil
	}
	for _, want := range expected {
		if slices.Contains(c.Audience, want) {
			return nil
		}
	}
	return ErrAudience
}

// ValidateExpiry checks exp and nbf against now, allowing leeway for clock
// skew.
func (c *Claims) ValidateExpiry(now time.Time, leeway time.Duration) error {
	if c.ExpiresAt != nil && now.After(c.ExpiresAt.Add(leeway)) {
		return ErrExpired
	}
	if c.NotBefore != nil && now.Before(c.NotBefore.Add(-leeway)) {
		return ErrNotYetValid
	}
	return nil
}
