package blobstore

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"

	"golang.org/x/crypto/pbkdf2"
)

const (
	saltSize   = 16
	keySize    = 32
	iterations = 10000
)

func deriveKey(keyMaterial string, salt []byte) []byte {
	return pbkdf2.Key([]byte(keyMaterial), salt, iterations, keySize, sha256.New)
}

// Seal encrypts plaintext with AES-256-GCM. The result is URL-safe base64 of
// salt || nonce || ciphertext+tag.
func Seal(keyMaterial string, plaintext []byte) (string, error) {
	if keyMaterial == "" {
		return "", ErrMissingKey
	}

	salt := make([]byte, saltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", fmt.Errorf("failed to read salt: %w", err)
	}

	gcm, err := newGCM(deriveKey(keyMaterial, salt))
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("failed to read nonce: %w", err)
	}

	sealed := gcm.Seal(nil, nonce, plaintext, nil)

	out := make([]byte, 0, len(salt)+len(nonce)+len(sealed))
	out = append(out, salt...)
	out = append(out, nonce...)
	out = append(out, sealed...)

	return base64.URLEncoding.EncodeToString(out), nil
}

func Open(keyMaterial, encoded string) ([]byte, error) {
	if keyMaterial == "" {
		return nil, ErrMissingKey
	}

	raw, err := base64.URLEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedBlob, err)
	}
	if len(raw) < saltSize {
		return nil, ErrMalformedBlob
	}

	salt := raw[:saltSize]
	gcm, err := newGCM(deriveKey(keyMaterial, salt))
	if err != nil {
		return nil, err
	}

	rest := raw[saltSize:]
	if len(rest) < gcm.NonceSize()+gcm.Overhead() {
		return nil, ErrMalformedBlob
	}

	plaintext, err := gcm.Open(nil, rest[:gcm.NonceSize()], rest[gcm.NonceSize():], nil)
	if err != nil {
		return nil, ErrDecrypt
	}

	return plaintext, nil
}

// ContentID is the hex sha256 of a sealed blob.
func ContentID(sealed string) string {
	sum := sha256.Sum256([]byte(sealed))
	return hex.EncodeToString(sum[:])
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create gcm: %w", err)
	}
	return gcm, nil
}
