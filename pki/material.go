// Package pki models the keys and certificates used to sign and verify
// HTTP signatures and reads them from PEM.
package pki

import (
	"crypto"
	"crypto/x509"
)

// KeyMaterial bundles the keys and certificates of one party. Every part
// is optional. A KeyMaterial is immutable once built and safe to share.
type KeyMaterial struct {
	privateKey crypto.PrivateKey
	publicKey  crypto.PublicKey
	publicCert *x509.Certificate
	certChain  []*x509.Certificate
	certs      []*x509.Certificate
}

// Option sets one part of a KeyMaterial.
type Option func(*KeyMaterial)

// WithPrivateKey sets the private key.
func WithPrivateKey(key crypto.PrivateKey) Option {
	return func(k *KeyMaterial) { k.privateKey = key }
}

// WithPublicKey sets the public key.
func WithPublicKey(key crypto.PublicKey) Option {
	return func(k *KeyMaterial) { k.publicKey = key }
}

// WithCertificate sets the leaf certificate.
func WithCertificate(cert *x509.Certificate) Option {
	return func(k *KeyMaterial) { k.publicCert = cert }
}

// WithCertChain sets the certificate chain, leaf first.
func WithCertChain(chain ...*x509.Certificate) Option {
	return func(k *KeyMaterial) { k.certChain = append([]*x509.Certificate(nil), chain...) }
}

// WithCertificates sets additional certificates, such as trusted roots.
func WithCertificates(certs ...*x509.Certificate) Option {
	return func(k *KeyMaterial) { k.certs = append([]*x509.Certificate(nil), certs...) }
}

// New builds a KeyMaterial from opts.
func New(opts ...Option) KeyMaterial {
	var k KeyMaterial
	for _, opt := range opts {
		opt(&k)
	}

	return k
}

// PrivateKey returns the private key, or nil.
func (k KeyMaterial) PrivateKey() crypto.PrivateKey { return k.privateKey }

// PublicKey returns the public key. When none was set explicitly it is
// taken from the leaf certificate, then from the first chain certificate,
// then derived from the private key. It returns nil when no source exists.
func (k KeyMaterial) PublicKey() crypto.PublicKey {
	if k.publicKey != nil {
		return k.publicKey
	}

	if cert := k.Certificate(); cert != nil {
		return cert.PublicKey
	}

	if signer, ok := k.privateKey.(crypto.Signer); ok {
		return signer.Public()
	}

	return nil
}

// Certificate returns the leaf certificate, falling back to the first
// certificate of the chain.
func (k KeyMaterial) Certificate() *x509.Certificate {
	if k.publicCert != nil {
		return k.publicCert
	}

	if len(k.certChain) > 0 {
		return k.certChain[0]
	}

	return nil
}

// CertChain returns a copy of the certificate chain.
func (k KeyMaterial) CertChain() []*x509.Certificate {
	return append([]*x509.Certificate(nil), k.certChain...)
}

// Certificates returns a copy of the additional certificates.
func (k KeyMaterial) Certificates() []*x509.Certificate {
	return append([]*x509.Certificate(nil), k.certs...)
}

// IsZero reports whether no key or certificate is set.
func (k KeyMaterial) IsZero() bool {
	return k.privateKey == nil && k.publicKey == nil && k.publicCert == nil &&
		len(k.certChain) == 0 && len(k.certs) == 0
}
