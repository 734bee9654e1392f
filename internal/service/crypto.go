package service

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
)

// PINCipher encrypts and decrypts user PINs for storage at rest, using
// AES-GCM keyed from the server secret. The nonce is prepended to each
// ciphertext.
type PINCipher struct {
	aead cipher.AEAD
}

// NewPINCipher derives a PINCipher from the configured server secret.
func NewPINCipher(secret string) (*PINCipher, error) {
	key := sha256.Sum256([]byte(secret))
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create AEAD: %w", err)
	}
	return &PINCipher{aead: aead}, nil
}

// Encrypt seals a PIN for storage.
func (c *PINCipher) Encrypt(pin string) ([]byte, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}
	return c.aead.Seal(nonce, nonce, []byte(pin), nil), nil
}

// Decrypt opens a stored PIN ciphertext.
func (c *PINCipher) Decrypt(data []byte) (string, error) {
	if len(data) < c.aead.NonceSize() {
		return "", fmt.Errorf("ciphertext too short")
	}
	nonce := data[:c.aead.NonceSize()]
	plain, err := c.aead.Open(nil, nonce, data[c.aead.NonceSize():], nil)
	if err != nil {
		return "", fmt.Errorf("open ciphertext: %w", err)
	}
	return string(plain), nil
}
