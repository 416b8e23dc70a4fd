package webpush

import (
	"crypto/ecdh"
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrMalformedRecord means the body is not a single aes128gcm record.
var ErrMalformedRecord = errors.New("webpush: malformed record")

// Decrypt is the user agent side of Encrypt. It is used by the self-check
// tooling and tests; the server never decrypts in normal operation.
func Decrypt(receiver *ecdh.PrivateKey, authSecret, body []byte) ([]byte, error) {
	if len(body) < saltLen+4+1 {
		return nil, fmt.Errorf("%w: %d byte body", ErrMalformedRecord, len(body))
	}
	salt := body[:saltLen]
	rs := binary.BigEndian.Uint32(body[saltLen : saltLen+4])
	idlen := int(body[saltLen+4])
	rest := body[saltLen+5:]
	if len(rest) < idlen {
		return nil, fmt.Errorf("%w: truncated key id", ErrMalformedRecord)
	}
	keyID, ciphertext := rest[:idlen], rest[idlen:]
	if len(ciphertext) < tagLen || uint32(len(ciphertext)) > rs {
		return nil, fmt.Errorf("%w: ciphertext length %d with record size %d", ErrMalformedRecord, len(ciphertext), rs)
	}

	sender, err := ecdh.P256().NewPublicKey(keyID)
	if err != nil {
		return nil, fmt.Errorf("%w: sender key: %v", ErrInvalidKey, err)
	}
	shared, err := receiver.ECDH(sender)
	if err != nil {
		return nil, fmt.Errorf("ecdh: %w", err)
	}

	gcm, nonce, err := recordCipher(shared, authSecret, salt, receiver.PublicKey().Bytes(), keyID)
	if err != nil {
		return nil, err
	}
	padded, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedRecord, err)
	}

	// Strip zero padding, then the delimiter that marks the last record.
	i := len(padded) - 1
	for i >= 0 && padded[i] == 0 {
		i--
	}
	if i < 0 || padded[i] != lastRecordDelimiter {
		return nil, fmt.Errorf("%w: missing last record delimiter", ErrMalformedRecord)
	}
	return padded[:i], nil
}
