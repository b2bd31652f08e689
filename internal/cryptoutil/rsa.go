// Package cryptoutil implements the key-exchange and file-decryption
// primitives the protocol mandates: RSA-OAEP key wrapping over an
// imported X.509 public key, and AES-256-CBC decryption with a fixed
// zero IV plus PKCS#7 unpadding. These are deliberately thin wrappers
// over crypto/rsa, crypto/aes, and crypto/cipher — see DESIGN.md for why
// no third-party library replaces the standard library here.
package cryptoutil

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"fmt"
)

// ImportRSAPublicKey parses a 160-byte X.509 SubjectPublicKeyInfo DER
// blob — the shape a common C++ crypto toolkit emits for a 1024-bit RSA
// public key — and returns the parsed key. Any non-RSA key, or anything
// that fails to parse as SPKI, is an error.
func ImportRSAPublicKey(spki []byte) (*rsa.PublicKey, error) {
	pub, err := x509.ParsePKIXPublicKey(spki)
	if err != nil {
		return nil, fmt.Errorf("cryptoutil: parse SPKI: %w", err)
	}
	rsaPub, ok := pub.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("cryptoutil: SPKI does not hold an RSA public key")
	}
	return rsaPub, nil
}

// WrapAESKey encrypts a 32-byte AES key under the given RSA public key
// using PKCS#1 OAEP with SHA-256 as both the hash and MGF1 mask
// function, and the default (empty) label.
func WrapAESKey(pub *rsa.PublicKey, aesKey []byte) ([]byte, error) {
	hash := sha256.New()
	wrapped, err := rsa.EncryptOAEP(hash, rand.Reader, pub, aesKey, nil)
	if err != nil {
		return nil, fmt.Errorf("cryptoutil: OAEP wrap: %w", err)
	}
	return wrapped, nil
}
