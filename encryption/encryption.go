// Package encryption exposes field decryption as an opaque capability.
// Stored values are either plaintext or a JSON envelope produced by
// AESGCM.Encrypt.
package encryption

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const (
	algorithmAESGCM = "aes-256-gcm"
	envelopeVersion = 1
	keySize         = 32
)

var ErrInvalidKey = errors.New("encryption key must be 32 bytes")

// Decryptor turns a raw stored value into plaintext. It never fails: values
// that are not envelopes, or cannot be decrypted, come back unchanged.
type Decryptor interface {
	DecryptIfNeeded(raw string) string
}

type envelope struct {
	Algorithm  string          `json:"algorithm"`
	Ciphertext string          `json:"ciphertext"`
	IV         string          `json:"iv"`
	AuthTag    string          `json:"authTag"`
	Version    json.RawMessage `json:"version,omitempty"`
}

// Passthrough is used when no key is configured.
type Passthrough struct{}

func (Passthrough) DecryptIfNeeded(raw string) string { return raw }

type AESGCM struct {
	aead cipher.AEAD
}

// NewAESGCM builds a cipher from a base64 encoded 32 byte key.
func NewAESGCM(encodedKey string) (*AESGCM, error) {
	key, err := base64.StdEncoding.DecodeString(strings.TrimSpace(encodedKey))
	if err != nil {
		return nil, fmt.Errorf("failed to decode encryption key: %w", err)
	}
	if len(key) != keySize {
		return nil, ErrInvalidKey
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create gcm: %w", err)
	}

	return &AESGCM{aead: aead}, nil
}

// New returns an AESGCM decryptor when a key is set, otherwise Passthrough.
func New(encodedKey string) (Decryptor, error) {
	if strings.TrimSpace(encodedKey) == "" {
		return Passthrough{}, nil
	}
	return NewAESGCM(encodedKey)
}

func (a *AESGCM) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, a.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := a.aead.Seal(nil, nonce, []byte(plaintext), nil)
	tagStart := len(sealed) - a.aead.Overhead()

	data, err := json.Marshal(envelope{
		Algorithm:  algorithmAESGCM,
		Ciphertext: base64.StdEncoding.EncodeToString(sealed[:tagStart]),
		IV:         base64.StdEncoding.EncodeToString(nonce),
		AuthTag:    base64.StdEncoding.EncodeToString(sealed[tagStart:]),
		Version:    json.RawMessage(strconv.Itoa(envelopeVersion)),
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal envelope: %w", err)
	}

	return string(data), nil
}

func (a *AESGCM) DecryptIfNeeded(raw string) string {
	env, ok := parseEnvelope(raw)
	if !ok {
		return raw
	}

	plaintext, err := a.decrypt(env)
	if err != nil {
		return raw
	}
	return plaintext
}

func (a *AESGCM) decrypt(env *envelope) (string, error) {
	ciphertext, err := base64.StdEncoding.DecodeString(env.Ciphertext)
	if err != nil {
		return "", err
	}
	nonce, err := base64.StdEncoding.DecodeString(env.IV)
	if err != nil {
		return "", err
	}
	tag, err := base64.StdEncoding.DecodeString(env.AuthTag)
	if err != nil {
		return "", err
	}
	if len(nonce) != a.aead.NonceSize() {
		return "", errors.New("invalid nonce size")
	}

	plaintext, err := a.aead.Open(nil, nonce, append(ciphertext, tag...), nil)
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}

// IsEnvelope reports whether raw looks like an encrypted field.
func IsEnvelope(raw string) bool {
	_, ok := parseEnvelope(raw)
	return ok
}

func parseEnvelope(raw string) (*envelope, bool) {
	trimmed := strings.TrimSpace(raw)
	if !strings.HasPrefix(trimmed, "{") {
		return nil, false
	}

	var env envelope
	if err := json.Unmarshal([]byte(trimmed), &env); err != nil {
		return nil, false
	}
	if env.Ciphertext == "" || env.IV == "" || env.AuthTag == "" {
		return nil, false
	}
	return &env, true
}
