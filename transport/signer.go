package transport

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"os"

	"golang.org/x/crypto/ssh"
)

// KeySigner signs request strings with a private key loaded from a PEM
// or OpenSSH key file. The signature algorithm follows the key type:
// rsa-sha256, ecdsa-sha256, or ed25519.
type KeySigner struct {
	key       crypto.PrivateKey
	algorithm string
}

// LoadKeySigner reads and parses the private key at path.
func LoadKeySigner(path string) (*KeySigner, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading private key %s: %w", path, err)
	}
	return ParseKeySigner(raw)
}

// ParseKeySigner parses a PEM or OpenSSH encoded private key.
func ParseKeySigner(raw []byte) (*KeySigner, error) {
	key, err := ssh.ParseRawPrivateKey(raw)
	if err != nil {
		return nil, fmt.Errorf("parsing private key: %w", err)
	}

	var algorithm string
	switch key.(type) {
	case *rsa.PrivateKey:
		algorithm = "rsa-sha256"
	case *ecdsa.PrivateKey:
		algorithm = "ecdsa-sha256"
	case *ed25519.PrivateKey, ed25519.PrivateKey:
		algorithm = "ed25519"
	default:
		return nil, fmt.Errorf("unsupported private key type %T", key)
	}

	return &KeySigner{key: key, algorithm: algorithm}, nil
}

// Algorithm returns the signature algorithm name used in the
// Authorization header.
func (s *KeySigner) Algorithm() string {
	return s.algorithm
}

// Sign signs message and returns the base64-encoded signature.
func (s *KeySigner) Sign(message []byte) (string, error) {
	var (
		sig []byte
		err error
	)
	switch key := s.key.(type) {
	case *rsa.PrivateKey:
		digest := sha256.Sum256(message)
		sig, err = rsa.SignPKCS1v15(rand.Reader, key, crypto.SHA256, digest[:])
	case *ecdsa.PrivateKey:
		digest := sha256.Sum256(message)
		sig, err = ecdsa.SignASN1(rand.Reader, key, digest[:])
	case *ed25519.PrivateKey:
		sig = ed25519.Sign(*key, message)
	case ed25519.PrivateKey:
		sig = ed25519.Sign(key, message)
	default:
		err = fmt.Errorf("unsupported private key type %T", s.key)
	}
	if err != nil {
		return "", fmt.Errorf("signing request: %w", err)
	}
	return base64.StdEncoding.EncodeToString(sig), nil
}
