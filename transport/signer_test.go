package transport

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"
)

func rsaKeyPEM(t *testing.T) ([]byte, *rsa.PrivateKey) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	}), key
}

func ecdsaKeyPEM(t *testing.T) ([]byte, *ecdsa.PrivateKey) {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	der, err := x509.MarshalECPrivateKey(key)
	require.NoError(t, err)
	return pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: der}), key
}

func ed25519KeyOpenSSH(t *testing.T) ([]byte, ed25519.PrivateKey) {
	t.Helper()
	_, key, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	block, err := ssh.MarshalPrivateKey(key, "")
	require.NoError(t, err)
	return pem.EncodeToMemory(block), key
}

func TestParseKeySigner_RSA(t *testing.T) {
	raw, key := rsaKeyPEM(t)
	signer, err := ParseKeySigner(raw)
	require.NoError(t, err)
	assert.Equal(t, "rsa-sha256", signer.Algorithm())

	message := []byte("date: Thu, 28 Aug 2026 12:00:00 GMT")
	sig, err := signer.Sign(message)
	require.NoError(t, err)

	decoded, err := base64.StdEncoding.DecodeString(sig)
	require.NoError(t, err)
	digest := sha256.Sum256(message)
	assert.NoError(t, rsa.VerifyPKCS1v15(&key.PublicKey, crypto.SHA256, digest[:], decoded))
}

func TestParseKeySigner_ECDSA(t *testing.T) {
	raw, key := ecdsaKeyPEM(t)
	signer, err := ParseKeySigner(raw)
	require.NoError(t, err)
	assert.Equal(t, "ecdsa-sha256", signer.Algorithm())

	message := []byte("date: Thu, 28 Aug 2026 12:00:00 GMT")
	sig, err := signer.Sign(message)
	require.NoError(t, err)

	decoded, err := base64.StdEncoding.DecodeString(sig)
	require.NoError(t, err)
	digest := sha256.Sum256(message)
	assert.True(t, ecdsa.VerifyASN1(&key.PublicKey, digest[:], decoded))
}

func TestParseKeySigner_Ed25519(t *testing.T) {
	raw, key := ed25519KeyOpenSSH(t)
	signer, err := ParseKeySigner(raw)
	require.NoError(t, err)
	assert.Equal(t, "ed25519", signer.Algorithm())

	message := []byte("date: Thu, 28 Aug 2026 12:00:00 GMT")
	sig, err := signer.Sign(message)
	require.NoError(t, err)

	decoded, err := base64.StdEncoding.DecodeString(sig)
	require.NoError(t, err)
	assert.True(t, ed25519.Verify(key.Public().(ed25519.PublicKey), message, decoded))
}

func TestLoadKeySigner(t *testing.T) {
	raw, _ := rsaKeyPEM(t)
	path := filepath.Join(t.TempDir(), "id_rsa")
	require.NoError(t, os.WriteFile(path, raw, 0o600))

	signer, err := LoadKeySigner(path)
	require.NoError(t, err)
	assert.Equal(t, "rsa-sha256", signer.Algorithm())

	_, err = LoadKeySigner(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}

func TestParseKeySigner_Garbage(t *testing.T) {
	_, err := ParseKeySigner([]byte("not a key"))
	assert.Error(t, err)
}
