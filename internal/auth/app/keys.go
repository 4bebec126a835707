package app

import (
	"fmt"
	"log/slog"

	"github.com/aussiebroadwan/fintrack/pkg/cryptox"
	"github.com/aussiebroadwan/fintrack/pkg/jwtx"
)

// InitAuthKeys builds the KeyManager that signs access tokens.
//
// Without AUTH_SIGNING_KEY_FILE a key is generated at startup and every
// session ends when the process restarts. With it, the key is read from the
// file (and written there the first time) so sessions survive restarts.
func InitAuthKeys(cfg Config, logger *slog.Logger) (*jwtx.KeyManager, error) {
	opts := jwtx.KeyManagerOptions{
		Algorithm: cfg.Algorithm,
		Issuer:    cfg.Issuer,
	}

	if cfg.SigningKeyFile != "" {
		kind, err := jwtx.KeyKind(cfg.Algorithm)
		if err != nil {
			return nil, err
		}
		key, err := cryptox.LoadOrGenerateKeyFile(cfg.SigningKeyFile, kind)
		if err != nil {
			return nil, fmt.Errorf("load signing key: %w", err)
		}
		opts.Key = key
	}

	km, err := jwtx.NewKeyManager(opts)
	if err != nil {
		return nil, fmt.Errorf("init key manager: %w", err)
	}

	if cfg.SigningKeyFile == "" {
		logger.Warn("using an ephemeral signing key; sessions end on restart", "algorithm", km.Algorithm())
	} else {
		logger.Info("signing key loaded", "algorithm", km.Algorithm(), "file", cfg.SigningKeyFile)
	}
	return km, nil
}
