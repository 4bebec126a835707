package domain

import "time"

// Second-factor methods accepted when completing a pending login.
const (
	MethodApp      = "app"
	MethodRecovery = "recovery"
)

// TwoFactorMethods lists the methods offered to a pending login.
var TwoFactorMethods = []string{MethodApp, MethodRecovery}

// PendingLogin is a login that passed its first factor and waits for the
// second. A user has at most one at a time.
type PendingLogin struct {
	ID         string // opaque random token handed to the client
	UserID     string
	Provider   Provider
	RememberMe bool
	AMR        []string
	Attempts   int
	CreatedAt  time.Time
	ExpiresAt  time.Time
}

// LoginResult is the outcome of a first-factor login.
type LoginResult struct {
	User              User
	RequiresTwoFactor bool
	PendingToken      string
	Methods           []string
	Tokens            *TokenPair
}

// TwoFactorSetup is returned when a user starts enrolling an authenticator.
type TwoFactorSetup struct {
	Secret       string `json:"secret"`
	OTPAuthURL   string `json:"otpauth_url"`
	QRCodeURL    string `json:"qr_code_url"`
	RecoveryCode string `json:"recovery_code"`
	Issuer       string `json:"issuer"`
	Account      string `json:"account"`
}
