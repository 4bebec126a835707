package cryptox

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"math/big"
	"strings"
)

// Token sizes in bytes before encoding.
const (
	TokenSize128 = 16 // 22 chars base64url
	TokenSize256 = 32 // 43 chars base64url
)

// GenerateToken returns size random bytes as unpadded base64url.
func GenerateToken(size int) (string, error) {
	if size <= 0 {
		return "", fmt.Errorf("cryptox: token size must be positive, got %d", size)
	}

	buf := make([]byte, size)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("cryptox: generate token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// FingerprintToken is the SHA-256 of token, base64url encoded. Secrets such
// as refresh tokens and recovery codes are stored only in this form.
func FingerprintToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// RecoveryCodeAlphabet is the character set recovery codes are drawn from.
const RecoveryCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// GenerateRecoveryCode returns a code shaped XXXX-XXXX-XXXX.
func GenerateRecoveryCode() (string, error) {
	const groups, groupLen = 3, 4

	var b strings.Builder
	b.Grow(groups*groupLen + groups - 1)

	limit := big.NewInt(int64(len(RecoveryCodeAlphabet)))
	for g := range groups {
		if g > 0 {
			b.WriteByte('-')
		}
		for range groupLen {
			n, err := rand.Int(rand.Reader, limit)
			if err != nil {
				return "", fmt.Errorf("cryptox: generate recovery code: %w", err)
			}
			b.WriteByte(RecoveryCodeAlphabet[n.Int64()])
		}
	}
	return b.String(), nil
}
