package jwtx

import (
	"crypto"
	"crypto/x509"
	"fmt"
	"sync"

	"github.com/aussiebroadwan/fintrack/pkg/cryptox"
)

// retainedKeys is how many signing keys stay verifiable after rotation,
// including the active one.
const retainedKeys = 3

// KeyManager owns the active signing key and the KeySet used to verify
// tokens. Rotating generates a new key and keeps the previous ones valid
// until they fall out of the retention window.
type KeyManager struct {
	KeySet   *KeySet
	Verifier Verifier

	algorithm string

	mu      sync.RWMutex
	signers []Signer // oldest first, last is active
}

type KeyManagerOptions struct {
	// Algorithm is AlgorithmEdDSA (default) or AlgorithmES256.
	Algorithm string
	Issuer    string
	Audience  []string

	// Key is an optional pre-loaded private key. When nil a fresh key is
	// generated and all tokens die with the process.
	Key crypto.Signer
}

func NewKeyManager(opts KeyManagerOptions) (*KeyManager, error) {
	if opts.Issuer == "" {
		return nil, fmt.Errorf("jwtx: issuer is required")
	}
	if opts.Algorithm == "" {
		opts.Algorithm = AlgorithmEdDSA
	}
	if _, err := KeyKind(opts.Algorithm); err != nil {
		return nil, err
	}

	keys := NewKeySet()
	km := &KeyManager{
		KeySet:    keys,
		Verifier:  NewVerifier(keys, VerifyOptions{Issuer: opts.Issuer, Audience: opts.Audience}),
		algorithm: opts.Algorithm,
	}

	if opts.Key != nil {
		s, err := signerFor(opts.Key)
		if err != nil {
			return nil, err
		}
		if s.Alg() != opts.Algorithm {
			return nil, fmt.Errorf("jwtx: key is %s but algorithm %s was requested", s.Alg(), opts.Algorithm)
		}
		if err := km.install(s); err != nil {
			return nil, err
		}
		return km, nil
	}

	if err := km.Rotate(); err != nil {
		return nil, err
	}
	return km, nil
}

func (km *KeyManager) Algorithm() string { return km.algorithm }
func (km *KeyManager) IsReady() bool     { return km.KeySet.IsReady() }

// Signer returns the active signing key.
func (km *KeyManager) Signer() Signer {
	km.mu.RLock()
	defer km.mu.RUnlock()

	if len(km.signers) == 0 {
		return nil
	}
	return km.signers[len(km.signers)-1]
}

// Rotate makes a freshly generated key active.
func (km *KeyManager) Rotate() error {
	kind, err := KeyKind(km.algorithm)
	if err != nil {
		return err
	}
	pemKey, err := cryptox.GenerateSigningKey(kind)
	if err != nil {
		return err
	}
	key, err := cryptox.ParsePrivateKeyPEM(pemKey)
	if err != nil {
		return err
	}
	s, err := signerFor(key)
	if err != nil {
		return err
	}
	return km.install(s)
}

func (km *KeyManager) install(s Signer) error {
	km.mu.Lock()
	defer km.mu.Unlock()

	if err := km.KeySet.AddSigner(s); err != nil {
		return fmt.Errorf("jwtx: add signer: %w", err)
	}
	km.signers = append(km.signers, s)

	for len(km.signers) > retainedKeys {
		km.KeySet.Remove(km.signers[0].KID())
		km.signers = km.signers[1:]
	}
	return nil
}

// KeyKind maps a signing algorithm to the cryptox key type it needs.
func KeyKind(alg string) (string, error) {
	switch alg {
	case AlgorithmEdDSA:
		return cryptox.KeyEd25519, nil
	case AlgorithmES256:
		return cryptox.KeyP256, nil
	}
	return "", fmt.Errorf("jwtx: unsupported algorithm %q (supported: EdDSA, ES256)", alg)
}

// signerFor derives the kid from the public key so a key loaded from disk
// keeps the same kid across restarts.
func signerFor(key crypto.Signer) (Signer, error) {
	der, err := x509.MarshalPKIXPublicKey(key.Public())
	if err != nil {
		return nil, fmt.Errorf("jwtx: key id: %w", err)
	}
	return NewSigner("fintrack-"+cryptox.FingerprintToken(string(der))[:16], key)
}
