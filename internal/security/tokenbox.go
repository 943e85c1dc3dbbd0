package security

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/nacl/secretbox"
)

const nonceSize = 24

// ErrTokenTampered is returned when a sealed token fails authentication
var ErrTokenTampered = errors.New("sealed token is invalid or was tampered with")

// TokenBox encrypts backend bearer tokens before they are stored
type TokenBox struct {
	key [32]byte
}

// NewTokenBox derives the encryption key from secret
func NewTokenBox(secret string) *TokenBox {
	return &TokenBox{key: sha256.Sum256([]byte("edupanel-token:" + secret))}
}

// Seal encrypts token and returns it base64 encoded with its nonce prepended
func (b *TokenBox) Seal(token string) (string, error) {
	var nonce [nonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	sealed := secretbox.Seal(nonce[:], []byte(token), &nonce, &b.key)
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

// Open decrypts a value produced by Seal
func (b *TokenBox) Open(sealed string) (string, error) {
	data, err := base64.RawURLEncoding.DecodeString(sealed)
	if err != nil || len(data) < nonceSize+secretbox.Overhead {
		return "", ErrTokenTampered
	}
	var nonce [nonceSize]byte
	copy(nonce[:], data[:nonceSize])
	plain, ok := secretbox.Open(nil, data[nonceSize:], &nonce, &b.key)
	if !ok {
		return "", ErrTokenTampered
	}
	return string(plain), nil
}
