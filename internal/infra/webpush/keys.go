// Package webpush delivers Web Push messages: VAPID (RFC 8292) authorization
// and aes128gcm payload encryption (RFC 8291, RFC 8188) built from P-256
// ECDH, HKDF-SHA-256 and AES-128-GCM.
package webpush

import (
	"bytes"
	"crypto/ecdh"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"math/big"
	"strings"
)

const (
	// uncompressedPointLen is 0x04 || X(32) || Y(32).
	uncompressedPointLen = 65
	scalarLen            = 32
)

var (
	// ErrInvalidKey means key bytes could not be decoded or do not describe a P-256 key.
	ErrInvalidKey = errors.New("webpush: invalid key")
)

// KeyMaterial is the process-wide VAPID identity. It is immutable once built
// and safe for concurrent use.
type KeyMaterial struct {
	publicKey  []byte // uncompressed point
	privateKey *ecdsa.PrivateKey
	subject    string
}

// NewKeyMaterial builds the VAPID identity from the base64url encoded raw
// uncompressed public point and raw private scalar. The scalar must derive
// the given point.
func NewKeyMaterial(publicKeyB64, privateKeyB64, subject string) (*KeyMaterial, error) {
	pub, err := decodeBase64(publicKeyB64)
	if err != nil {
		return nil, fmt.Errorf("%w: public key: %v", ErrInvalidKey, err)
	}
	priv, err := decodeBase64(privateKeyB64)
	if err != nil {
		return nil, fmt.Errorf("%w: private key: %v", ErrInvalidKey, err)
	}
	return newKeyMaterial(pub, priv, subject)
}

// GenerateKeyMaterial creates a fresh VAPID key pair.
func GenerateKeyMaterial(subject string) (*KeyMaterial, error) {
	key, err := ecdh.P256().GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate vapid key: %w", err)
	}
	return newKeyMaterial(key.PublicKey().Bytes(), key.Bytes(), subject)
}

func newKeyMaterial(pub, priv []byte, subject string) (*KeyMaterial, error) {
	if len(pub) != uncompressedPointLen || pub[0] != 0x04 {
		return nil, fmt.Errorf("%w: public key must be a %d byte uncompressed point", ErrInvalidKey, uncompressedPointLen)
	}
	if len(priv) != scalarLen {
		return nil, fmt.Errorf("%w: private key must be %d bytes, got %d", ErrInvalidKey, scalarLen, len(priv))
	}
	if strings.TrimSpace(subject) == "" {
		return nil, fmt.Errorf("%w: subject is required", ErrInvalidKey)
	}

	// The scalar must derive the configured public point.
	derived, err := ecdh.P256().NewPrivateKey(priv)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	if !bytes.Equal(derived.PublicKey().Bytes(), pub) {
		return nil, fmt.Errorf("%w: private key does not match public key", ErrInvalidKey)
	}

	signer := &ecdsa.PrivateKey{
		PublicKey: ecdsa.PublicKey{
			Curve: elliptic.P256(),
			X:     new(big.Int).SetBytes(pub[1:33]),
			Y:     new(big.Int).SetBytes(pub[33:65]),
		},
		D: new(big.Int).SetBytes(priv),
	}

	return &KeyMaterial{
		publicKey:  append([]byte(nil), pub...),
		privateKey: signer,
		subject:    subject,
	}, nil
}

// PublicKey returns the base64url (unpadded) uncompressed public point, the
// value browsers use as applicationServerKey.
func (k *KeyMaterial) PublicKey() string {
	return base64.RawURLEncoding.EncodeToString(k.publicKey)
}

// PrivateKey returns the base64url (unpadded) private scalar.
func (k *KeyMaterial) PrivateKey() string {
	return base64.RawURLEncoding.EncodeToString(k.privateKey.D.FillBytes(make([]byte, scalarLen)))
}

// Subject returns the mailto: or https: contact.
func (k *KeyMaterial) Subject() string {
	return k.subject
}

// decodeBase64 accepts url-safe and standard alphabets, padded or not.
func decodeBase64(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimRight(s, "=")
	s = strings.NewReplacer("+", "-", "/", "_").Replace(s)
	return base64.RawURLEncoding.DecodeString(s)
}
