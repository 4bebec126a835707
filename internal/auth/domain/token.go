package domain

import "time"

// TokenPair is what a completed login or refresh returns.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"` // seconds
	RememberMe   bool   `json:"remember_me"`
}

// RefreshToken is the stored record of an issued refresh token.
type RefreshToken struct {
	ID         string
	UserID     string
	TokenHash  string // base64url SHA-256 of the opaque token
	SessionID  string // stable across rotation
	AMR        []string
	RememberMe bool
	ExpiresAt  time.Time
	Revoked    bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
