// Package cryptox implements the refresh-token vault: authenticated
// symmetric encryption (AES-256-GCM) of provider refresh tokens before they
// cross the storage boundary.
//
// The persisted material is base64(nonce || ciphertext), so a single opaque
// string carries everything decryption needs. Decryption of tampered or
// wrong-key material fails closed with common.ErrorEncryption; callers must
// never fall back to treating ciphertext as plaintext.
package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"io"

	"golang.org/x/crypto/hkdf"

	"github.com/dmitrijs2005/oauthkeeper/internal/common"
)

const (
	keySize   = 32 // AES-256
	nonceSize = 12 // standard GCM nonce
)

// ParseKey turns the configured encryption secret into a 32-byte AES key.
//
// If the secret is valid base64 decoding to exactly 32 bytes it is used
// directly (the documented format). Any other non-empty secret is expanded
// with HKDF-SHA256, so operators may supply an arbitrary-length passphrase.
func ParseKey(secret string) ([]byte, error) {
	if secret == "" {
		return nil, errors.New("encryption key is empty")
	}

	if raw, err := base64.StdEncoding.DecodeString(secret); err == nil && len(raw) == keySize {
		return raw, nil
	}

	key := make([]byte, keySize)
	r := hkdf.New(sha256.New, []byte(secret), nil, []byte("oauthkeeper refresh token vault"))
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, err
	}
	return key, nil
}

// Encrypt seals plaintext with AES-GCM under key, generating a fresh random
// nonce, and returns base64(nonce || ciphertext).
func Encrypt(plaintext string, key []byte) (string, error) {
	aesgcm, err := newGCM(key)
	if err != nil {
		return "", err
	}

	nonce := common.GenerateRandByteArray(nonceSize)
	sealed := aesgcm.Seal(nonce, nonce, []byte(plaintext), nil)

	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt reverses Encrypt. Malformed material, a wrong key, or a failed
// authentication tag all yield common.ErrorEncryption without detail.
func Decrypt(material string, key []byte) (string, error) {
	sealed, err := base64.StdEncoding.DecodeString(material)
	if err != nil || len(sealed) < nonceSize {
		return "", common.ErrorEncryption
	}

	aesgcm, err := newGCM(key)
	if err != nil {
		return "", err
	}

	plaintext, err := aesgcm.Open(nil, sealed[:nonceSize], sealed[nonceSize:], nil)
	if err != nil {
		return "", common.ErrorEncryption
	}
	return string(plaintext), nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
