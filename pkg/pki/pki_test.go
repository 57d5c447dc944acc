package pki

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-kit/kit/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	deployerr "github.com/deploybot/deploybot/pkg/errors"
)

func generateKey(t *testing.T) *rsa.PrivateKey {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return key
}

func writePKIX(t *testing.T, dir, name string, key *rsa.PublicKey) {
	der, err := x509.MarshalPKIXPublicKey(key)
	require.NoError(t, err)
	data := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der})
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), data, 0600))
}

func writePKCS1(t *testing.T, dir, name string, key *rsa.PublicKey) {
	data := pem.EncodeToMemory(&pem.Block{Type: "RSA PUBLIC KEY", Bytes: x509.MarshalPKCS1PublicKey(key)})
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), data, 0600))
}

func TestVerifyAnyTrustedKey(t *testing.T) {
	dir := t.TempDir()
	signer := generateKey(t)
	other := generateKey(t)

	// Junk sorts first, so has to be skipped rather than fail the check
	require.NoError(t, os.WriteFile(filepath.Join(dir, "0-garbage.pem"), []byte("not a key"), 0600))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "1-subdir"), 0700))
	writePKIX(t, dir, "2-other.pem", &other.PublicKey)
	writePKCS1(t, dir, "3-signer.pem", &signer.PublicKey)

	sig, err := Sign(signer, "deploy v1.2.3")
	require.NoError(t, err)

	gate := NewGate(dir, log.NewNopLogger())
	assert.NoError(t, gate.Verify("job", "deploy v1.2.3", sig))
}

func TestVerifyRejects(t *testing.T) {
	dir := t.TempDir()
	trusted := generateKey(t)
	untrusted := generateKey(t)
	writePKIX(t, dir, "trusted.pem", &trusted.PublicKey)

	good, err := Sign(trusted, "hello")
	require.NoError(t, err)
	bad, err := Sign(untrusted, "hello")
	require.NoError(t, err)

	gate := NewGate(dir, log.NewNopLogger())
	for name, c := range map[string]struct{ msg, sig string }{
		"untrusted key":   {"hello", bad},
		"altered message": {"hello!", good},
		"bad base64":      {"hello", "!!not base64!!"},
		"empty signature": {"hello", ""},
	} {
		t.Run(name, func(t *testing.T) {
			err := gate.Verify("job", c.msg, c.sig)
			assert.Equal(t, ErrNoValidKey, err)
			assert.Equal(t, deployerr.Unauthorized, deployerr.TypeOf(err))
		})
	}
}

func TestVerifyWrappedSignature(t *testing.T) {
	dir := t.TempDir()
	key := generateKey(t)
	writePKIX(t, dir, "key.pem", &key.PublicKey)

	sig, err := Sign(key, "msg")
	require.NoError(t, err)
	var wrapped string
	for i := 0; i < len(sig); i += 64 {
		end := i + 64
		if end > len(sig) {
			end = len(sig)
		}
		wrapped += sig[i:end] + "\n"
	}

	assert.NoError(t, NewGate(dir, log.NewNopLogger()).Verify("job", "msg", wrapped))
}

func TestVerifyMissingDirectory(t *testing.T) {
	gate := NewGate(filepath.Join(t.TempDir(), "nope"), log.NewNopLogger())
	assert.Equal(t, ErrNoValidKey, gate.Verify("job", "msg", "c2ln"))
}

func TestParsePrivateKeyRoundTrip(t *testing.T) {
	key := generateKey(t)
	pkcs1 := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})
	parsed, err := ParsePrivateKey(pkcs1)
	require.NoError(t, err)
	assert.True(t, key.Equal(parsed))

	der, err := x509.MarshalPKCS8PrivateKey(key)
	require.NoError(t, err)
	parsed, err = ParsePrivateKey(pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der}))
	require.NoError(t, err)
	assert.True(t, key.Equal(parsed))

	_, err = ParsePrivateKey([]byte("nope"))
	assert.Error(t, err)
}
