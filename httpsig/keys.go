package httpsig

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"fmt"
)

// Minimum RSA key size in bits.
const minRSAKeyBits = 2048

// Salt length of rsa-sha256-pss, equal to the SHA-256 output size.
const pssSaltLength = 32

// Strategy signs and verifies the canonical string of one algorithm.
//
// Verify returns ErrSignatureInvalid when the signature does not match and
// ErrInvalidKey or ErrKeyMaterialMissing when the key cannot be used.
type Strategy interface {
	Sign(message []byte, key crypto.PrivateKey) ([]byte, error)
	Verify(message, signature []byte, key crypto.PublicKey) error
}

// --- RSASSA-PKCS1-v1_5 SHA-256 ---

type rsaPKCS1v15SHA256 struct{}

func (rsaPKCS1v15SHA256) Sign(message []byte, key crypto.PrivateKey) ([]byte, error) {
	signer, err := rsaSigner(key)
	if err != nil {
		return nil, err
	}

	digest := sha256.Sum256(message)

	return signer.Sign(rand.Reader, digest[:], crypto.SHA256)
}

func (rsaPKCS1v15SHA256) Verify(message, signature []byte, key crypto.PublicKey) error {
	pub, err := rsaPublicKey(key)
	if err != nil {
		return err
	}

	digest := sha256.Sum256(message)
	if err := rsa.VerifyPKCS1v15(pub, crypto.SHA256, digest[:], signature); err != nil {
		return ErrSignatureInvalid
	}

	return nil
}

// --- RSASSA-PSS SHA-256 ---

type rsaPSSSHA256 struct {
	saltLength int
}

func (s rsaPSSSHA256) Sign(message []byte, key crypto.PrivateKey) ([]byte, error) {
	signer, err := rsaSigner(key)
	if err != nil {
		return nil, err
	}

	digest := sha256.Sum256(message)

	return signer.Sign(rand.Reader, digest[:], &rsa.PSSOptions{
		SaltLength: s.saltLength,
		Hash:       crypto.SHA256,
	})
}

func (s rsaPSSSHA256) Verify(message, signature []byte, key crypto.PublicKey) error {
	pub, err := rsaPublicKey(key)
	if err != nil {
		return err
	}

	digest := sha256.Sum256(message)
	if err := rsa.VerifyPSS(pub, crypto.SHA256, digest[:], signature, &rsa.PSSOptions{
		SaltLength: s.saltLength,
		Hash:       crypto.SHA256,
	}); err != nil {
		return ErrSignatureInvalid
	}

	return nil
}

// rsaSigner accepts an *rsa.PrivateKey or any crypto.Signer backed by an
// RSA public key, such as a hardware token.
func rsaSigner(key crypto.PrivateKey) (crypto.Signer, error) {
	if key == nil {
		return nil, fmt.Errorf("%w: private key", ErrKeyMaterialMissing)
	}

	if k, ok := key.(*rsa.PrivateKey); ok && k == nil {
		return nil, fmt.Errorf("%w: private key", ErrKeyMaterialMissing)
	}

	signer, ok := key.(crypto.Signer)
	if !ok {
		return nil, fmt.Errorf("%w: %T cannot sign", ErrInvalidKey, key)
	}

	if _, err := rsaPublicKey(signer.Public()); err != nil {
		return nil, err
	}

	return signer, nil
}

func rsaPublicKey(key crypto.PublicKey) (*rsa.PublicKey, error) {
	if key == nil {
		return nil, fmt.Errorf("%w: public key", ErrKeyMaterialMissing)
	}

	pub, ok := key.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("%w: rsa key required, got %T", ErrInvalidKey, key)
	}

	if pub == nil {
		return nil, fmt.Errorf("%w: public key", ErrKeyMaterialMissing)
	}

	if pub.N == nil || pub.N.BitLen() < minRSAKeyBits {
		return nil, fmt.Errorf("%w: rsa key must be at least %d bits", ErrInvalidKey, minRSAKeyBits)
	}

	return pub, nil
}
