package cryptox

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Key types understood by GenerateSigningKey.
const (
	KeyEd25519 = "ed25519"
	KeyP256    = "p256"
)

// GenerateSigningKey creates a private key of the given type encoded as a
// PKCS8 PEM block.
func GenerateSigningKey(kind string) ([]byte, error) {
	var (
		key any
		err error
	)
	switch kind {
	case KeyEd25519:
		_, key, err = ed25519.GenerateKey(rand.Reader)
	case KeyP256:
		key, err = ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	default:
		return nil, fmt.Errorf("cryptox: unsupported key type %q", kind)
	}
	if err != nil {
		return nil, fmt.Errorf("cryptox: generate %s key: %w", kind, err)
	}

	der, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return nil, fmt.Errorf("cryptox: marshal PKCS8: %w", err)
	}
	return pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der}), nil
}

// ParsePrivateKeyPEM decodes a PKCS8 PEM private key. Only Ed25519 and
// ECDSA P-256 keys are accepted.
func ParsePrivateKeyPEM(pemKey []byte) (crypto.Signer, error) {
	block, _ := pem.Decode(pemKey)
	if block == nil {
		return nil, errors.New("cryptox: no PEM block found")
	}
	if block.Type != "PRIVATE KEY" {
		return nil, fmt.Errorf("cryptox: expected PRIVATE KEY, got %q", block.Type)
	}

	key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("cryptox: parse PKCS8: %w", err)
	}

	switch k := key.(type) {
	case ed25519.PrivateKey:
		return k, nil
	case *ecdsa.PrivateKey:
		if k.Curve != elliptic.P256() {
			return nil, errors.New("cryptox: only P-256 ECDSA keys are supported")
		}
		return k, nil
	default:
		return nil, fmt.Errorf("cryptox: unsupported private key %T", key)
	}
}

// LoadOrGenerateKeyFile reads a PEM key from path, generating and writing one
// of the given kind when the file does not exist yet.
func LoadOrGenerateKeyFile(path, kind string) (crypto.Signer, error) {
	path = filepath.Clean(path)

	b, err := os.ReadFile(path)
	if err == nil {
		return ParsePrivateKeyPEM(b)
	}
	if !os.IsNotExist(err) {
		return nil, fmt.Errorf("cryptox: read key file: %w", err)
	}

	b, err = GenerateSigningKey(kind)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("cryptox: create key dir: %w", err)
	}
	if err := os.WriteFile(path, b, 0o600); err != nil {
		return nil, fmt.Errorf("cryptox: write key file: %w", err)
	}
	return ParsePrivateKeyPEM(b)
}
