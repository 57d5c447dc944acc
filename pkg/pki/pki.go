// Package pki checks that deploy requests are signed by one of a
// directory of trusted RSA public keys.
package pki

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-kit/kit/log"
	"github.com/pkg/errors"

	deployerr "github.com/deploybot/deploybot/pkg/errors"
)

var ErrNoValidKey = &deployerr.Error{
	Type: deployerr.Unauthorized,
	Err:  errors.New("no trusted key validates the signature"),
	Help: `The deploy request signature could not be verified

None of the trusted public keys validates the signature given in
crypto_sign over the text given in plain_msg. Sign plain_msg with
RSA/SHA-256 using a private key whose public half is installed in the
trusted key directory, and send the signature base64 encoded.
`,
}

// Gate verifies signatures against every key in Dir; any one key is
// enough to authorise a request.
type Gate struct {
	Dir    string
	Logger log.Logger
}

func NewGate(dir string, logger log.Logger) *Gate {
	return &Gate{Dir: dir, Logger: logger}
}

// Verify returns nil if any trusted key validates signature (base64,
// newlines allowed) over plaintext, and ErrNoValidKey otherwise. A
// key that cannot be read or parsed just doesn't validate.
func (g *Gate) Verify(jobID, plaintext, signature string) error {
	logger := log.With(g.Logger, "jobID", jobID)

	sig, err := DecodeSignature(signature)
	if err != nil {
		logger.Log("event", "pki_check_error", "err", err)
		return ErrNoValidKey
	}

	entries, err := os.ReadDir(g.Dir)
	if err != nil {
		logger.Log("event", "pki_check_error", "dir", g.Dir, "err", err)
		return ErrNoValidKey
	}

	digest := sha256.Sum256([]byte(plaintext))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(g.Dir, entry.Name())
		key, err := ReadPublicKey(path)
		if err != nil {
			logger.Log("event", "pki_rsa_key_pem_error", "key", path, "err", err)
			continue
		}
		if rsa.VerifyPKCS1v15(key, crypto.SHA256, digest[:], sig) == nil {
			logger.Log("event", "pki_check_ok", "key", path)
			return nil
		}
	}

	logger.Log("event", "pki_check_error", "keys", len(entries))
	return ErrNoValidKey
}

// DecodeSignature strips newlines (as wrapped by e.g., `base64` or
// `openssl enc`) and decodes the rest.
func DecodeSignature(signature string) ([]byte, error) {
	normalized := strings.Replace(signature, "\n", "", -1)
	sig, err := base64.StdEncoding.DecodeString(normalized)
	if err != nil {
		return nil, errors.Wrap(err, "decoding signature")
	}
	return sig, nil
}

// ReadPublicKey reads a PEM encoded RSA public key, either PKIX
// ("PUBLIC KEY", as written by `openssl rsa -pubout`) or PKCS#1
// ("RSA PUBLIC KEY").
func ReadPublicKey(path string) (*rsa.PublicKey, error) {
	bytes, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParsePublicKey(bytes)
}

func ParsePublicKey(pemBytes []byte) (*rsa.PublicKey, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, errors.New("no PEM block found")
	}
	switch block.Type {
	case "RSA PUBLIC KEY":
		return x509.ParsePKCS1PublicKey(block.Bytes)
	case "PUBLIC KEY":
		key, err := x509.ParsePKIXPublicKey(block.Bytes)
		if err != nil {
			return nil, err
		}
		rsaKey, ok := key.(*rsa.PublicKey)
		if !ok {
			return nil, errors.Errorf("public key is %T, not RSA", key)
		}
		return rsaKey, nil
	default:
		return nil, errors.Errorf("unexpected PEM block type %q", block.Type)
	}
}

// ParsePrivateKey reads a PEM encoded RSA private key, PKCS#1 or
// PKCS#8.
func ParsePrivateKey(pemBytes []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, errors.New("no PEM block found")
	}
	switch block.Type {
	case "RSA PRIVATE KEY":
		return x509.ParsePKCS1PrivateKey(block.Bytes)
	case "PRIVATE KEY":
		key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return nil, err
		}
		rsaKey, ok := key.(*rsa.PrivateKey)
		if !ok {
			return nil, errors.Errorf("private key is %T, not RSA", key)
		}
		return rsaKey, nil
	default:
		return nil, errors.Errorf("unexpected PEM block type %q", block.Type)
	}
}

// Sign produces the base64 signature Verify expects.
func Sign(key *rsa.PrivateKey, plaintext string) (string, error) {
	digest := sha256.Sum256([]byte(plaintext))
	sig, err := rsa.SignPKCS1v15(rand.Reader, key, crypto.SHA256, digest[:])
	if err != nil {
		return "", errors.Wrap(err, "signing message")
	}
	return base64.StdEncoding.EncodeToString(sig), nil
}
