package authsdk

import (
	"time"

	"github.com/aussiebroadwan/fintrack/pkg/jwtx"
)

// Redirect targets handed back after auth transitions.
const (
	RedirectDashboard = "/dashboard"
	RedirectLogin     = "/login"
	RedirectTwoFactor = "/login/2fa"
)

// Two-factor methods accepted by VerifyTwoFactor.
const (
	MethodApp      = "app"
	MethodRecovery = "recovery"
)

// ============================================================================
// Users
// ============================================================================

type User struct {
	ID               string    `json:"id"`
	Email            string    `json:"email"`
	Name             string    `json:"name"`
	Provider         string    `json:"provider"`
	TwoFactorEnabled bool      `json:"two_factor_enabled"`
	Profile          Profile   `json:"profile"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// Profile holds the editable settings fields of a user.
type Profile struct {
	JobTitle string `json:"job_title,omitempty"`
	Company  string `json:"company,omitempty"`
	Bio      string `json:"bio,omitempty"`
	Location string `json:"location,omitempty"`
	Phone    string `json:"phone,omitempty"`
	Currency string `json:"currency,omitempty"`
	Timezone string `json:"timezone,omitempty"`
}

// ProfilePatch is the body of PATCH /v1/me. Nil fields are left unchanged.
type ProfilePatch struct {
	Name     *string `json:"name,omitempty"`
	JobTitle *string `json:"job_title,omitempty"`
	Company  *string `json:"company,omitempty"`
	Bio      *string `json:"bio,omitempty"`
	Location *string `json:"location,omitempty"`
	Phone    *string `json:"phone,omitempty"`
	Currency *string `json:"currency,omitempty"`
	Timezone *string `json:"timezone,omitempty"`
}

// Apply merges the patch into u.
func (p ProfilePatch) Apply(u *User) {
	set := func(dst *string, v *string) {
		if v != nil {
			*dst = *v
		}
	}
	set(&u.Name, p.Name)
	set(&u.Profile.JobTitle, p.JobTitle)
	set(&u.Profile.Company, p.Company)
	set(&u.Profile.Bio, p.Bio)
	set(&u.Profile.Location, p.Location)
	set(&u.Profile.Phone, p.Phone)
	set(&u.Profile.Currency, p.Currency)
	set(&u.Profile.Timezone, p.Timezone)
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// ============================================================================
// Sign-in
// ============================================================================

type RegisterRequest struct {
	Email           string `json:"email" example:"jane@example.com"`
	Name            string `json:"name" example:"Jane Doe"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
}

type LoginRequest struct {
	Email      string `json:"email" example:"jane@example.com"`
	Password   string `json:"password"`
	RememberMe bool   `json:"remember_me"`
}

type ProviderLoginRequest struct {
	RememberMe bool `json:"remember_me"`
}

// AuthResponse is returned by every call that completes a sign-in.
type AuthResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`

	// ExpiresIn is the access-token lifetime in seconds.
	ExpiresIn  int64  `json:"expires_in"`
	RememberMe bool   `json:"remember_me"`
	User       User   `json:"user"`
	RedirectTo string `json:"redirect_to,omitempty"`
}

type TwoFactorVerifyRequest struct {
	PendingToken string `json:"pending_token"`
	Method       string `json:"method" example:"app"`
	Code         string `json:"code" example:"123456"`
}

type PendingLoginRequest struct {
	PendingToken string `json:"pending_token"`
}

// RefreshRequest is the body of refresh and logout. An empty token falls
// back to the fintrack_refresh_token cookie.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token,omitempty"`
}

type LogoutResponse struct {
	RedirectTo string `json:"redirect_to"`
}

// ============================================================================
// Two-factor management
// ============================================================================

type TwoFactorSetupResponse struct {
	Secret       string `json:"secret" example:"JBSWY3DPEHPK3PXP"`
	OTPAuthURL   string `json:"otpauth_url"`
	QRCodeURL    string `json:"qr_code_url" example:"/v1/2fa/qr.png"`
	RecoveryCode string `json:"recovery_code" example:"ABCD-EFGH-2345"`
	Issuer       string `json:"issuer"`
	Account      string `json:"account"`
}

type TwoFactorCodeRequest struct {
	Code string `json:"code" example:"123456"`
}

type RecoveryCodesResponse struct {
	Codes []string `json:"codes"`
}

type TwoFactorStatusResponse struct {
	Enabled bool `json:"enabled"`

	// RecoveryCodes is only set when 2FA was just enabled.
	RecoveryCodes     []string `json:"recovery_codes,omitempty"`
	RecoveryCodesLeft int      `json:"recovery_codes_left"`
}

// ============================================================================
// Health
// ============================================================================

// HealthResponse is returned by /livez and /readyz.
type HealthResponse struct {
	Status  string        `json:"status"`
	Uptime  string        `json:"uptime,omitempty"`
	Version string        `json:"version,omitempty"`
	Checks  *HealthChecks `json:"checks,omitempty"`
}

// HealthChecks is only present on /readyz.
type HealthChecks struct {
	Database string `json:"database"`
	Signer   string `json:"signer"`
}

// JWKSResponse is the body of /.well-known/jwks.json.
type JWKSResponse jwtx.JWKS
