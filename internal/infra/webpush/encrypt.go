package webpush

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/ecdh"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

const (
	saltLen    = 16
	authLen    = 16
	keyLen     = 16
	nonceLen   = 12
	tagLen     = 16
	recordSize = 4096

	// MaxPlaintextLen is the largest payload fitting one record:
	// rs - AEAD tag - padding delimiter.
	MaxPlaintextLen = recordSize - tagLen - 1

	lastRecordDelimiter = 0x02
)

var (
	webPushInfo = []byte("WebPush: info\x00")
	cekInfo     = []byte("Content-Encoding: aes128gcm\x00")
	nonceInfo   = []byte("Content-Encoding: nonce\x00")
)

// ErrPayloadTooLarge means the plaintext does not fit a single 4096 byte record.
var ErrPayloadTooLarge = errors.New("webpush: payload too large")

// EncryptedRecord is one aes128gcm encoded message. Salt and KeyID (the
// ephemeral public key) are fresh for every record.
type EncryptedRecord struct {
	Salt       []byte
	RecordSize uint32
	KeyID      []byte
	Ciphertext []byte
}

// Bytes returns the wire payload: salt || rs || idlen || keyid || ciphertext.
func (r *EncryptedRecord) Bytes() []byte {
	out := make([]byte, 0, saltLen+4+1+len(r.KeyID)+len(r.Ciphertext))
	out = append(out, r.Salt...)
	out = binary.BigEndian.AppendUint32(out, r.RecordSize)
	out = append(out, byte(len(r.KeyID)))
	out = append(out, r.KeyID...)
	out = append(out, r.Ciphertext...)
	return out
}

// Encrypt encrypts plaintext for the subscription identified by its raw
// P-256 public key (p256dh) and 16 byte auth secret.
func Encrypt(clientPublicKey, authSecret, plaintext []byte) (*EncryptedRecord, error) {
	ephemeral, err := ecdh.P256().GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate ephemeral key: %w", err)
	}
	salt := make([]byte, saltLen)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("generate salt: %w", err)
	}
	return encrypt(ephemeral, salt, clientPublicKey, authSecret, plaintext)
}

func encrypt(ephemeral *ecdh.PrivateKey, salt, clientPublicKey, authSecret, plaintext []byte) (*EncryptedRecord, error) {
	if len(plaintext) > MaxPlaintextLen {
		return nil, fmt.Errorf("%w: %d bytes, max %d", ErrPayloadTooLarge, len(plaintext), MaxPlaintextLen)
	}
	if len(authSecret) != authLen {
		return nil, fmt.Errorf("%w: auth secret must be %d bytes, got %d", ErrInvalidKey, authLen, len(authSecret))
	}
	clientKey, err := ecdh.P256().NewPublicKey(clientPublicKey)
	if err != nil {
		return nil, fmt.Errorf("%w: client public key: %v", ErrInvalidKey, err)
	}

	shared, err := ephemeral.ECDH(clientKey)
	if err != nil {
		return nil, fmt.Errorf("ecdh: %w", err)
	}

	ephemeralPublic := ephemeral.PublicKey().Bytes()
	gcm, nonce, err := recordCipher(shared, authSecret, salt, clientPublicKey, ephemeralPublic)
	if err != nil {
		return nil, err
	}

	padded := make([]byte, 0, len(plaintext)+1)
	padded = append(padded, plaintext...)
	padded = append(padded, lastRecordDelimiter)

	return &EncryptedRecord{
		Salt:       salt,
		RecordSize: recordSize,
		KeyID:      ephemeralPublic,
		Ciphertext: gcm.Seal(nil, nonce, padded, nil),
	}, nil
}

// recordCipher runs the RFC 8291 key schedule and returns the AES-128-GCM
// AEAD and nonce for the single record.
func recordCipher(shared, authSecret, salt, uaPublic, asPublic []byte) (cipher.AEAD, []byte, error) {
	info := make([]byte, 0, len(webPushInfo)+len(uaPublic)+len(asPublic))
	info = append(info, webPushInfo...)
	info = append(info, uaPublic...)
	info = append(info, asPublic...)

	ikm, err := derive(shared, authSecret, info, 32)
	if err != nil {
		return nil, nil, err
	}
	cek, err := derive(ikm, salt, cekInfo, keyLen)
	if err != nil {
		return nil, nil, err
	}
	nonce, err := derive(ikm, salt, nonceInfo, nonceLen)
	if err != nil {
		return nil, nil, err
	}

	block, err := aes.NewCipher(cek)
	if err != nil {
		return nil, nil, fmt.Errorf("aes: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, nil, fmt.Errorf("gcm: %w", err)
	}
	return gcm, nonce, nil
}

func derive(secret, salt, info []byte, n int) ([]byte, error) {
	out := make([]byte, n)
	if _, err := io.ReadFull(hkdf.New(sha256.New, secret, salt, info), out); err != nil {
		return nil, fmt.Errorf("hkdf: %w", err)
	}
	return out, nil
}
