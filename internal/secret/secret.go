// Package secret encrypts small values stored at rest, such as the
// market-data API key, with fernet tokens.
package secret

import (
	"errors"
	"strings"

	"github.com/fernet/fernet-go"
)

var (
	ErrNoKey        = errors.New("encryption key not configured")
	ErrInvalidToken = errors.New("invalid or tampered token")
)

// Box seals and opens values with one or more fernet keys. The first key
// encrypts; every key is tried when decrypting, so keys can be rotated.
type Box struct {
	keys []*fernet.Key
}

// NewBox parses a comma-separated list of base64 fernet keys.
func NewBox(encoded string) (*Box, error) {
	var parts []string
	for _, p := range strings.Split(encoded, ",") {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) == 0 {
		return nil, ErrNoKey
	}
	keys, err := fernet.DecodeKeys(parts...)
	if err != nil {
		return nil, err
	}
	return &Box{keys: keys}, nil
}

// GenerateKey returns a new random key in its encoded form.
func GenerateKey() (string, error) {
	var k fernet.Key
	if err := k.Generate(); err != nil {
		return "", err
	}
	return k.Encode(), nil
}

// Encrypt seals plaintext into a fernet token.
func (b *Box) Encrypt(plaintext string) (string, error) {
	tok, err := fernet.EncryptAndSign([]byte(plaintext), b.keys[0])
	if err != nil {
		return "", err
	}
	return string(tok), nil
}

// Decrypt opens a token produced by Encrypt with any of the box's keys.
func (b *Box) Decrypt(token string) (string, error) {
	msg := fernet.VerifyAndDecrypt([]byte(token), 0, b.keys)
	if msg == nil {
		return "", ErrInvalidToken
	}
	return string(msg), nil
}
