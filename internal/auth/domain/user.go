package domain

import (
	"slices"
	"time"
)

// Provider identifies how a user signs in.
type Provider string

const (
	ProviderPassword  Provider = "password"
	ProviderGoogle    Provider = "google"
	ProviderGitHub    Provider = "github"
	ProviderApple     Provider = "apple"
	ProviderMicrosoft Provider = "microsoft"
	ProviderPasskey   Provider = "passkey"
	ProviderWallet    Provider = "wallet"
)

// SocialProviders are the simulated third-party sign-in options.
var SocialProviders = []Provider{
	ProviderGoogle,
	ProviderGitHub,
	ProviderApple,
	ProviderMicrosoft,
	ProviderPasskey,
	ProviderWallet,
}

func (p Provider) IsSocial() bool { return slices.Contains(SocialProviders, p) }

type User struct {
	ID              string
	Email           string
	Name            string
	Provider        Provider
	ProviderSubject string     // stable subject for provider users, empty for password users
	PasswordHash    string     // argon2 encoded, empty for provider users
	TwoFactorAt     *time.Time // when 2FA was enabled, nil when disabled
	TwoFactorSecret *string    // base32 TOTP secret, set during setup
	Profile         Profile
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// TwoFactorEnabled reports whether sign-in must pass a second factor.
func (u User) TwoFactorEnabled() bool { return u.TwoFactorAt != nil }

// Profile holds the editable settings-page fields.
type Profile struct {
	JobTitle string `json:"job_title,omitempty"`
	Company  string `json:"company,omitempty"`
	Bio      string `json:"bio,omitempty"`
	Location string `json:"location,omitempty"`
	Phone    string `json:"phone,omitempty"`
	Currency string `json:"currency,omitempty"`
	Timezone string `json:"timezone,omitempty"`
}

// ProfilePatch is a partial update. Nil fields are left unchanged.
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

func (p ProfilePatch) IsEmpty() bool { return p == ProfilePatch{} }
