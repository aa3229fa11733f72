// Package envelope implements the versioned symmetric encryption container
// used for machine credentials at rest. A sealed value is base64-of-JSON:
// {"v":1,"iv":<base64>,"data":<base64>} where data is AES-256-GCM ciphertext.
// The 32-byte key is derived by hashing a process-wide secret with SHA-256;
// no key material is ever stored alongside the envelope.
package envelope

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Version is the only envelope format version in use.
const Version = 1

// ErrMalformed indicates the envelope could not be parsed or carries an
// unknown format version. Authentication failures (wrong key, tampered
// ciphertext) surface as distinct wrapped errors from the cipher.
var ErrMalformed = errors.New("malformed envelope")

type payload struct {
	V    int    `json:"v"`
	IV   string `json:"iv"`
	Data string `json:"data"`
}

// deriveKey hashes the process-wide secret down to the 32 bytes AES-256 requires.
func deriveKey(secret string) []byte {
	sum := sha256.Sum256([]byte(secret))
	return sum[:]
}

func newGCM(secret string) (cipher.AEAD, error) {
	block, err := aes.NewCipher(deriveKey(secret))
	if err != nil {
		return nil, fmt.Errorf("aes.NewCipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("cipher.NewGCM: %w", err)
	}
	return gcm, nil
}

// Seal encrypts plaintext under a key derived from secret. Every call draws a
// fresh random 96-bit IV; an IV is never reused with the same derived key.
func Seal(plaintext, secret string) (string, error) {
	gcm, err := newGCM(secret)
	if err != nil {
		return "", err
	}

	iv := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return "", fmt.Errorf("rand iv: %w", err)
	}

	ciphertext := gcm.Seal(nil, iv, []byte(plaintext), nil)

	raw, err := json.Marshal(payload{
		V:    Version,
		IV:   base64.StdEncoding.EncodeToString(iv),
		Data: base64.StdEncoding.EncodeToString(ciphertext),
	})
	if err != nil {
		return "", fmt.Errorf("marshal envelope: %w", err)
	}

	return base64.StdEncoding.EncodeToString(raw), nil
}

// Open decrypts a sealed envelope with the key derived from secret. A parse
// failure, unknown version, or authentication-tag mismatch is a hard error;
// Open never returns garbage plaintext.
func Open(encoded, secret string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	var p payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if p.V != Version {
		return "", fmt.Errorf("%w: unsupported version %d", ErrMalformed, p.V)
	}

	iv, err := base64.StdEncoding.DecodeString(p.IV)
	if err != nil {
		return "", fmt.Errorf("%w: iv: %v", ErrMalformed, err)
	}
	ciphertext, err := base64.StdEncoding.DecodeString(p.Data)
	if err != nil {
		return "", fmt.Errorf("%w: data: %v", ErrMalformed, err)
	}

	gcm, err := newGCM(secret)
	if err != nil {
		return "", err
	}
	if len(iv) != gcm.NonceSize() {
		return "", fmt.Errorf("%w: iv length %d", ErrMalformed, len(iv))
	}

	plaintext, err := gcm.Open(nil, iv, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("open envelope: %w", err)
	}

	return string(plaintext), nil
}
