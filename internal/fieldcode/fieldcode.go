// Package fieldcode encrypts and decrypts individual clinical text fields.
// Values are stored as "ivHex:cipherHex" with a fresh random IV per
// encryption, so two encryptions of the same plaintext never match.
package fieldcode

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/ovialab/cliniguard-server/internal/logger"
)

// Sentinel replaces a value that fails to decrypt. A single corrupted
// historical field must not block rendering of a whole patient record, so
// Decode never returns an error for bad ciphertext.
const Sentinel = "[dato no recuperable]"

const separator = ":"

// Codec encrypts fields under one process-wide AES-256 key. Rotating the
// key is unsupported: existing ciphertexts become undecodable and surface
// the sentinel.
type Codec struct {
	key    []byte
	logger *logger.Logger
}

// New creates a Codec from a hex-encoded 256-bit key.
func New(hexKey string, logger *logger.Logger) (*Codec, error) {
	key, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("failed to decode field key: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("field key must be 32 bytes, got %d", len(key))
	}
	return &Codec{key: key, logger: logger}, nil
}

// Encode encrypts plaintext into "ivHex:cipherHex". Empty input is returned
// unchanged. Every call draws a fresh IV, including re-encryption of an
// unchanged value.
func (c *Codec) Encode(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}

	block, err := aes.NewCipher(c.key)
	if err != nil {
		return "", fmt.Errorf("failed to create cipher: %w", err)
	}

	iv := make([]byte, aes.BlockSize)
	if _, err := rand.Read(iv); err != nil {
		return "", fmt.Errorf("failed to generate iv: %w", err)
	}

	padded := pad([]byte(plaintext))
	encrypted := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(encrypted, padded)

	return hex.EncodeToString(iv) + separator + hex.EncodeToString(encrypted), nil
}

// Decode reverses Encode. Input without the separator is treated as legacy
// plaintext and passed through unchanged. Any cryptographic failure yields
// the sentinel, logged but never raised.
func (c *Codec) Decode(value string) string {
	if value == "" {
		return value
	}

	ivHex, cipherHex, found := strings.Cut(value, separator)
	if !found {
		return value
	}

	plaintext, err := c.decrypt(ivHex, cipherHex)
	if err != nil {
		c.logger.Error("field decode failed", "error", err.Error())
		return Sentinel
	}

	return plaintext
}

func (c *Codec) decrypt(ivHex, cipherHex string) (string, error) {
	iv, err := hex.DecodeString(ivHex)
	if err != nil {
		return "", fmt.Errorf("failed to decode iv: %w", err)
	}
	if len(iv) != aes.BlockSize {
		return "", fmt.Errorf("iv length mismatch: %d", len(iv))
	}

	encrypted, err := hex.DecodeString(cipherHex)
	if err != nil {
		return "", fmt.Errorf("failed to decode ciphertext: %w", err)
	}
	if len(encrypted) == 0 || len(encrypted)%aes.BlockSize != 0 {
		return "", fmt.Errorf("ciphertext length mismatch: %d", len(encrypted))
	}

	block, err := aes.NewCipher(c.key)
	if err != nil {
		return "", fmt.Errorf("failed to create cipher: %w", err)
	}

	decrypted := make([]byte, len(encrypted))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(decrypted, encrypted)

	plaintext, err := unpad(decrypted)
	if err != nil {
		return "", err
	}

	return string(plaintext), nil
}

// pad applies PKCS#7 padding up to the AES block size.
func pad(data []byte) []byte {
	n := aes.BlockSize - len(data)%aes.BlockSize
	padding := make([]byte, n)
	for i := range padding {
		padding[i] = byte(n)
	}
	return append(data, padding...)
}

func unpad(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty padded data")
	}
	n := int(data[len(data)-1])
	if n == 0 || n > aes.BlockSize || n > len(data) {
		return nil, fmt.Errorf("invalid padding")
	}
	for _, b := range data[len(data)-n:] {
		if int(b) != n {
			return nil, fmt.Errorf("invalid padding")
		}
	}
	return data[:len(data)-n], nil
}
