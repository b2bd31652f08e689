package cryptoutil

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
)

// rsaDecryptOAEP mirrors the unwrap step a real client never performs
// (the server only ever wraps), used here solely to verify that what
// WrapAESKey produces round-trips under the matching private key.
func rsaDecryptOAEP(priv *rsa.PrivateKey, wrapped []byte) ([]byte, error) {
	return rsa.DecryptOAEP(sha256.New(), rand.Reader, priv, wrapped, nil)
}

// edSPKIFixture builds an Ed25519 SPKI blob, used to verify that
// ImportRSAPublicKey rejects a well-formed but non-RSA key.
func edSPKIFixture() (ed25519.PrivateKey, []byte, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, nil, err
	}
	spki, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return nil, nil, err
	}
	return priv, spki, nil
}
