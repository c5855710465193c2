package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"
)

// sealedPrefix tags the envelope format so a future key rotation can tell versions apart.
const sealedPrefix = "v1:"

var ErrMalformedSecret = errors.New("malformed sealed secret")

// EncryptionService seals upstream account passwords with AES-GCM.
// Envelope: "v1:" + base64(nonce || ciphertext).
type EncryptionService struct {
	gcm cipher.AEAD
}

// NewEncryptionService accepts a 16, 24 or 32 byte key.
func NewEncryptionService(key string) (*EncryptionService, error) {
	switch len(key) {
	case 16, 24, 32:
	default:
		return nil, fmt.Errorf("encryption key must be 16, 24, or 32 bytes; got %d", len(key))
	}
	block, err := aes.NewCipher([]byte(key))
	if err != nil {
		return nil, fmt.Errorf("aes.NewCipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("cipher.NewGCM: %w", err)
	}
	return &EncryptionService{gcm: gcm}, nil
}

func (e *EncryptionService) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, e.gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("rand nonce: %w", err)
	}
	sealed := e.gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return sealedPrefix + base64.StdEncoding.EncodeToString(sealed), nil
}

func (e *EncryptionService) Decrypt(sealed string) (string, error) {
	body, ok := strings.CutPrefix(sealed, sealedPrefix)
	if !ok {
		return "", ErrMalformedSecret
	}
	data, err := base64.StdEncoding.DecodeString(body)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedSecret, err)
	}
	ns := e.gcm.NonceSize()
	if len(data) < ns+e.gcm.Overhead() {
		return "", ErrMalformedSecret
	}
	pt, err := e.gcm.Open(nil, data[:ns], data[ns:], nil)
	if err != nil {
		return "", fmt.Errorf("gcm open: %w", err)
	}
	return string(pt), nil
}
