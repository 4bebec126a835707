package jwtx

import (
	"crypto"
	"errors"
	"slices"
	"sync"
)

var ErrNoKey = errors.New("jwtx: key not found")

// KeySet holds the public verification keys, safe for concurrent use. The
// server publishes it as JWKS and verifies its own tokens against it.
type KeySet struct {
	mu   sync.RWMutex
	jwks []JWK
	pub  map[string]crypto.PublicKey
}

func NewKeySet() *KeySet {
	return &KeySet{pub: make(map[string]crypto.PublicKey)}
}

func (k *KeySet) AddSigner(s Signer) error {
	return k.AddJWK(s.PublicJWK())
}

func (k *KeySet) AddJWK(j JWK) error {
	key, err := j.PublicKey()
	if err != nil {
		return err
	}

	k.mu.Lock()
	defer k.mu.Unlock()

	if _, exists := k.pub[j.Kid]; exists {
		k.jwks = slices.DeleteFunc(k.jwks, func(e JWK) bool { return e.Kid == j.Kid })
	}
	k.pub[j.Kid] = key
	k.jwks = append(k.jwks, j)
	return nil
}

// Remove drops a key so tokens signed with it stop verifying.
func (k *KeySet) Remove(kid string) {
	k.mu.Lock()
	defer k.mu.Unlock()

	delete(k.pub, kid)
	k.jwks = slices.DeleteFunc(k.jwks, func(e JWK) bool { return e.Kid == kid })
}

func (k *KeySet) Get(kid string) (crypto.PublicKey, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()

	if pk, ok := k.pub[kid]; ok {
		return pk, nil
	}
	return nil, ErrNoKey
}

// PublicJWKS returns a snapshot suitable for serving.
func (k *KeySet) PublicJWKS() JWKS {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return JWKS{Keys: slices.Clone(k.jwks)}
}

func (k *KeySet) IsReady() bool {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return len(k.pub) > 0
}
