// Package ssh describes the deploy key used to clone repositories, so
// that its public half can be given to repository hosts.
package ssh

import (
	"crypto/md5"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"os"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/crypto/ssh"
)

type PublicKey struct {
	Key          string            `json:"key"`
	Fingerprints map[string]string `json:"fingerprints"`
}

// ReadPublicKey derives the public key, in authorized_keys format,
// from the private key at path, with its md5 and sha256 fingerprints.
func ReadPublicKey(path string) (PublicKey, error) {
	keyData, err := os.ReadFile(path)
	if err != nil {
		return PublicKey{}, errors.Wrap(err, "reading deploy key")
	}
	return ExtractPublicKey(keyData)
}

func ExtractPublicKey(keyData []byte) (PublicKey, error) {
	signer, err := ssh.ParsePrivateKey(keyData)
	if err != nil {
		return PublicKey{}, errors.Wrap(err, "parsing deploy key")
	}
	pubKey := signer.PublicKey()
	return PublicKey{
		Key: strings.TrimSpace(string(ssh.MarshalAuthorizedKey(pubKey))),
		Fingerprints: map[string]string{
			"md5":    fingerprintMD5(pubKey),
			"sha256": fingerprintSHA256(pubKey),
		},
	}, nil
}

func fingerprintMD5(pubKey ssh.PublicKey) string {
	hash := md5.Sum(pubKey.Marshal())
	fingerprint := ""
	for i, b := range hash {
		fingerprint = fmt.Sprintf("%s%0.2x", fingerprint, b)
		if i < len(hash)-1 {
			fingerprint = fingerprint + ":"
		}
	}
	return fingerprint
}

func fingerprintSHA256(pubKey ssh.PublicKey) string {
	hash := sha256.Sum256(pubKey.Marshal())
	return strings.TrimRight(base64.StdEncoding.EncodeToString(hash[:]), "=")
}
