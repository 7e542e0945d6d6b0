package pki

import "fmt"

// Source names the PEM files that make up a KeyMaterial. Empty paths are
// skipped.
type Source struct {
	PrivateKeyPath string `yaml:"key-path"`
	Passphrase     string `yaml:"key-passphrase"`
	PublicKeyPath  string `yaml:"public-key-path"`
	CertChainPath  string `yaml:"cert-chain-path"`
	TrustedPath    string `yaml:"trusted-certs-path"`
}

// IsZero reports whether no file is named.
func (s Source) IsZero() bool {
	return s.PrivateKeyPath == "" && s.PublicKeyPath == "" && s.CertChainPath == "" && s.TrustedPath == ""
}

// Load reads every file named by s. The first certificate of the chain
// becomes the leaf certificate.
func Load(s Source) (KeyMaterial, error) {
	var opts []Option

	if s.PrivateKeyPath != "" {
		key, err := ReadPrivateKeyFile(s.PrivateKeyPath, []byte(s.Passphrase))
		if err != nil {
			return KeyMaterial{}, fmt.Errorf("%s: %w", s.PrivateKeyPath, err)
		}

		opts = append(opts, WithPrivateKey(key))
	}

	if s.PublicKeyPath != "" {
		key, err := ReadPublicKeyFile(s.PublicKeyPath)
		if err != nil {
			return KeyMaterial{}, fmt.Errorf("%s: %w", s.PublicKeyPath, err)
		}

		opts = append(opts, WithPublicKey(key))
	}

	if s.CertChainPath != "" {
		chain, err := ReadCertificatesFile(s.CertChainPath)
		if err != nil {
			return KeyMaterial{}, fmt.Errorf("%s: %w", s.CertChainPath, err)
		}

		opts = append(opts, WithCertificate(chain[0]), WithCertChain(chain...))
	}

	if s.TrustedPath != "" {
		certs, err := ReadCertificatesFile(s.TrustedPath)
		if err != nil {
			return KeyMaterial{}, fmt.Errorf("%s: %w", s.TrustedPath, err)
		}

		opts = append(opts, WithCertificates(certs...))
	}

	return New(opts...), nil
}
