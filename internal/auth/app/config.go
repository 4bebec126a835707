package app

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Two-factor modes.
const (
	TwoFactorTOTP = "totp"
	TwoFactorDemo = "demo"
)

type Config struct {
	Issuer         string // issuer claim for access tokens (default: fintrack-auth)
	Algorithm      string // EdDSA or ES256 (default: EdDSA)
	SigningKeyFile string // Optional: PEM key kept across restarts; generated when missing
	KeyRotation    time.Duration

	DatabaseFile string // SQLite file (default: fintrack.db)
	PepperFile   string // password pepper (default: pepper)

	TwoFactorMode string // totp or demo (default: totp)

	AccessTTL   time.Duration
	SessionTTL  time.Duration // refresh lifetime without remember me (default: 12h)
	RememberTTL time.Duration // refresh lifetime with remember me (default: 30 days)
	PendingTTL  time.Duration // pending two-factor login lifetime (default: 10m)

	// Optional account created at startup so the demo has someone to sign
	// in as.
	DemoEmail    string
	DemoPassword string

	Env                  string // dev, staging, prod (default: dev)
	LogLevel             string
	LogFormat            string
	Port                 int
	ShutdownGracePeriod  time.Duration
	HousekeepingInterval time.Duration
}

// LoadConfig reads the environment, after merging in a .env file from the
// working directory when one exists. Variables already set win over .env.
func LoadConfig() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, err
	}

	cfg := Config{
		Issuer:         getEnvOrDefault("AUTH_ISSUER", "fintrack-auth"),
		Algorithm:      getEnvOrDefault("AUTH_ALGORITHM", "EdDSA"),
		SigningKeyFile: os.Getenv("AUTH_SIGNING_KEY_FILE"),
		KeyRotation:    getEnvDurationOrDefault("AUTH_KEY_ROTATION_INTERVAL", 0),

		DatabaseFile: getEnvOrDefault("AUTH_DATABASE_FILE", "fintrack.db"),
		PepperFile:   getEnvOrDefault("AUTH_PEPPER_FILE", "pepper"),

		TwoFactorMode: strings.ToLower(getEnvOrDefault("TWOFACTOR_MODE", TwoFactorTOTP)),

		AccessTTL:   getEnvDurationOrDefault("ACCESS_TOKEN_TTL", 15*time.Minute),
		SessionTTL:  getEnvDurationOrDefault("SESSION_TTL", 12*time.Hour),
		RememberTTL: getEnvDurationOrDefault("REMEMBER_ME_TTL", 30*24*time.Hour),
		PendingTTL:  getEnvDurationOrDefault("PENDING_LOGIN_TTL", 10*time.Minute),

		DemoEmail:    os.Getenv("DEMO_USER_EMAIL"),
		DemoPassword: os.Getenv("DEMO_USER_PASSWORD"),

		Env:                  getEnvOrDefault("ENV", "dev"),
		LogLevel:             getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:            getEnvOrDefault("LOG_FORMAT", "json"),
		Port:                 getEnvIntOrDefault("PORT", 8080),
		ShutdownGracePeriod:  getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
		HousekeepingInterval: getEnvDurationOrDefault("HOUSEKEEPING_INTERVAL", time.Hour),
	}

	if cfg.TwoFactorMode != TwoFactorTOTP && cfg.TwoFactorMode != TwoFactorDemo {
		return Config{}, errors.New("TWOFACTOR_MODE must be totp or demo")
	}
	if (cfg.DemoEmail == "") != (cfg.DemoPassword == "") {
		return Config{}, errors.New("DEMO_USER_EMAIL and DEMO_USER_PASSWORD must be set together")
	}
	return cfg, nil
}

// Dev reports whether cookies may go over plain HTTP.
func (c Config) Dev() bool {
	return c.Env == "dev"
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}

	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	// "1h", "30m", "90s"
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	// Bare integers are minutes.
	if minutes, err := strconv.Atoi(value); err == nil {
		return time.Duration(minutes) * time.Minute
	}

	return defaultValue
}
