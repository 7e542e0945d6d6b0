package pki

import (
	"crypto"
	"crypto/dsa" //nolint:staticcheck // DSA public keys are still accepted from peers.
	"crypto/ecdsa"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/youmark/pkcs8"
)

// ErrPKI is returned when key or certificate material cannot be read.
var ErrPKI = errors.New("pki: unable to read key material")

// PEM block types.
const (
	blockPrivateKey          = "PRIVATE KEY"
	blockEncryptedPrivateKey = "ENCRYPTED PRIVATE KEY"
	blockRSAPrivateKey       = "RSA PRIVATE KEY"
	blockECPrivateKey        = "EC PRIVATE KEY"
	blockPublicKey           = "PUBLIC KEY"
	blockRSAPublicKey        = "RSA PUBLIC KEY"
	blockCertificate         = "CERTIFICATE"
)

var oidPublicKeyRSAPSS = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 1, 10}

// ReadPrivateKey reads the first private key block in data. PKCS#8 is
// tried first; "ENCRYPTED PRIVATE KEY" blocks are decrypted with password.
// PKCS#1 RSA and SEC 1 EC blocks are accepted as fallbacks.
func ReadPrivateKey(data, password []byte) (crypto.PrivateKey, error) {
	block := findBlock(data, func(t string) bool { return strings.HasSuffix(t, blockPrivateKey) })
	if block == nil {
		return nil, fmt.Errorf("%w: no private key found", ErrPKI)
	}

	if _, ok := block.Headers["Proc-Type"]; ok {
		return nil, fmt.Errorf("%w: legacy PEM encryption is not supported, use encrypted PKCS#8", ErrPKI)
	}

	var (
		key any
		err error
	)

	switch block.Type {
	case blockEncryptedPrivateKey:
		if len(password) == 0 {
			return nil, fmt.Errorf("%w: private key is encrypted, passphrase required", ErrPKI)
		}

		key, err = pkcs8.ParsePKCS8PrivateKey(block.Bytes, password)
	case blockRSAPrivateKey:
		key, err = x509.ParsePKCS1PrivateKey(block.Bytes)
	case blockECPrivateKey:
		key, err = x509.ParseECPrivateKey(block.Bytes)
	default:
		key, err = parsePKCS8(block.Bytes)
	}

	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrPKI, strings.ToLower(block.Type), err)
	}

	switch key.(type) {
	case *rsa.PrivateKey, *ecdsa.PrivateKey:
		return key, nil
	default:
		return nil, fmt.Errorf("%w: private key is not RSA or EC: %T", ErrPKI, key)
	}
}

// parsePKCS8 parses unencrypted PKCS#8, including RSA keys wrapped with
// the RSASSA-PSS algorithm identifier.
func parsePKCS8(der []byte) (any, error) {
	key, err := x509.ParsePKCS8PrivateKey(der)
	if err == nil {
		return key, nil
	}

	var info struct {
		Version    int
		Algo       pkix.AlgorithmIdentifier
		PrivateKey []byte
	}

	if _, asnErr := asn1.Unmarshal(der, &info); asnErr != nil || !info.Algo.Algorithm.Equal(oidPublicKeyRSAPSS) {
		return nil, err
	}

	return x509.ParsePKCS1PrivateKey(info.PrivateKey)
}

// ReadPublicKey reads the first public key block in data, either
// SubjectPublicKeyInfo or PKCS#1 RSA.
func ReadPublicKey(data []byte) (crypto.PublicKey, error) {
	block := findBlock(data, func(t string) bool { return strings.HasSuffix(t, blockPublicKey) })
	if block == nil {
		return nil, fmt.Errorf("%w: no public key found", ErrPKI)
	}

	var (
		key any
		err error
	)

	if block.Type == blockRSAPublicKey {
		key, err = x509.ParsePKCS1PublicKey(block.Bytes)
	} else {
		key, err = x509.ParsePKIXPublicKey(block.Bytes)
	}

	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrPKI, strings.ToLower(block.Type), err)
	}

	switch key.(type) {
	case *rsa.PublicKey, *dsa.PublicKey, *ecdsa.PublicKey:
		return key, nil
	default:
		return nil, fmt.Errorf("%w: key is not RSA, DSA or EC: %T", ErrPKI, key)
	}
}

// ReadCertificates reads every certificate block in data, in order.
func ReadCertificates(data []byte) ([]*x509.Certificate, error) {
	var certs []*x509.Certificate

	rest := data
	for {
		var block *pem.Block

		block, rest = pem.Decode(rest)
		if block == nil {
			break
		}

		if !strings.HasSuffix(block.Type, blockCertificate) {
			continue
		}

		cert, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("%w: certificate %d: %v", ErrPKI, len(certs), err)
		}

		certs = append(certs, cert)
	}

	if len(certs) == 0 {
		return nil, fmt.Errorf("%w: no certificates found", ErrPKI)
	}

	return certs, nil
}

// ReadPrivateKeyFile reads a private key from a PEM file.
func ReadPrivateKeyFile(path string, password []byte) (crypto.PrivateKey, error) {
	data, err := readFile(path)
	if err != nil {
		return nil, err
	}

	return ReadPrivateKey(data, password)
}

// ReadPublicKeyFile reads a public key from a PEM file.
func ReadPublicKeyFile(path string) (crypto.PublicKey, error) {
	data, err := readFile(path)
	if err != nil {
		return nil, err
	}

	return ReadPublicKey(data)
}

// ReadCertificatesFile reads a certificate chain from a PEM file.
func ReadCertificatesFile(path string) ([]*x509.Certificate, error) {
	data, err := readFile(path)
	if err != nil {
		return nil, err
	}

	return ReadCertificates(data)
}

func readFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPKI, err)
	}

	return data, nil
}

func findBlock(data []byte, match func(blockType string) bool) *pem.Block {
	rest := data
	for {
		var block *pem.Block

		block, rest = pem.Decode(rest)
		if block == nil {
			return nil
		}

		if match(block.Type) {
			return block
		}
	}
}
