// Package config loads signing targets, inbound clients and the signed
// header policy from a YAML document, and process settings from the
// environment.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/vitalvas/cavage/httpsig"
	"github.com/vitalvas/cavage/pki"
)

// File is the YAML document.
//
//	canonical:
//	  date-header: date
//	  digest-encoding: hex
//	policy:
//	  default:
//	    always: [date, (request-target)]
//	  methods:
//	    POST:
//	      always: [(request-target), host, date, digest, content-type]
//	      if-present: [authorization]
//	targets:
//	  - name: upstream
//	    key-id: proxy-1
//	    algorithm: rsa-sha256
//	    keys:
//	      key-path: keys/proxy.pem
//	clients:
//	  - key-id: k1
//	    algorithm: rsa-sha256-pss
//	    keys:
//	      public-key-path: keys/k1.pub
type File struct {
	Canonical Canonical `yaml:"canonical"`
	Policy    *Policy   `yaml:"policy"`
	Targets   []Target  `yaml:"targets"`
	Clients   []Client  `yaml:"clients"`
}

// Canonical configures canonical string construction.
type Canonical struct {
	DateHeader     string `yaml:"date-header"`
	DigestEncoding string `yaml:"digest-encoding"`
	IncludeQuery   bool   `yaml:"include-query"`
}

// Policy lists the signed headers per method. Method entries replace the
// default entirely.
type Policy struct {
	Default httpsig.HeadersConfig            `yaml:"default"`
	Methods map[string]httpsig.HeadersConfig `yaml:"methods"`
}

// Target is a peer that outgoing messages are signed for.
type Target struct {
	Name      string     `yaml:"name"`
	KeyID     string     `yaml:"key-id"`
	Algorithm string     `yaml:"algorithm"`
	Carrier   string     `yaml:"carrier"`
	Keys      pki.Source `yaml:"keys"`

	// Policy overrides the document policy for this target.
	Policy *Policy `yaml:"policy"`

	SharedSecret    string   `yaml:"shared-secret"`
	ResponseHeaders []string `yaml:"response-headers"`
}

// Client is a peer whose signatures are accepted.
type Client struct {
	KeyID string `yaml:"key-id"`

	// Algorithm pins the client to one algorithm. Empty accepts any.
	Algorithm string     `yaml:"algorithm"`
	Keys      pki.Source `yaml:"keys"`

	// Enabled defaults to true.
	Enabled *bool `yaml:"enabled"`

	SharedSecret string `yaml:"shared-secret"`
}

// Config is the resolved document.
type Config struct {
	Canonical httpsig.CanonicalOptions
	Policy    httpsig.Policy
	Targets   map[string]httpsig.OutboundTarget
	Clients   *Store
}

// Target returns the outbound target called name.
func (c *Config) Target(name string) (httpsig.OutboundTarget, error) {
	t, ok := c.Targets[name]
	if !ok {
		return httpsig.OutboundTarget{}, fmt.Errorf("config: unknown target %q", name)
	}

	return t, nil
}

// Load reads and resolves the document at path. Relative key paths are
// resolved against the directory of path.
func Load(path string, reg *httpsig.Registry) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	return Parse(data, filepath.Dir(path), reg)
}

// Parse decodes, validates and resolves a document. Key files are read
// relative to baseDir. A nil reg selects httpsig.DefaultRegistry().
func Parse(data []byte, baseDir string, reg *httpsig.Registry) (*Config, error) {
	if reg == nil {
		reg = httpsig.DefaultRegistry()
	}

	var file File

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	if err := dec.Decode(&file); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: %w", err)
	}

	if err := file.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	return file.resolve(baseDir, reg)
}

func (f *File) resolve(baseDir string, reg *httpsig.Registry) (*Config, error) {
	enc, err := httpsig.ParseDigestEncoding(f.Canonical.DigestEncoding)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	cfg := &Config{
		Canonical: httpsig.CanonicalOptions{
			DateHeader:     f.Canonical.DateHeader,
			DigestEncoding: enc,
			IncludeQuery:   f.Canonical.IncludeQuery,
		},
		Policy:  f.Policy.build(),
		Targets: make(map[string]httpsig.OutboundTarget, len(f.Targets)),
	}

	for _, t := range f.Targets {
		target, err := t.resolve(baseDir, reg, cfg)
		if err != nil {
			return nil, fmt.Errorf("config: target %q: %w", t.Name, err)
		}

		cfg.Targets[t.Name] = target
	}

	clients := make([]httpsig.InboundClient, 0, len(f.Clients))
	for _, c := range f.Clients {
		client, err := c.resolve(baseDir, reg)
		if err != nil {
			return nil, fmt.Errorf("config: client %q: %w", c.KeyID, err)
		}

		clients = append(clients, client)
	}

	cfg.Clients = NewStore(clients...)

	return cfg, nil
}

// build returns the default policy when p is nil.
func (p *Policy) build() httpsig.Policy {
	if p == nil {
		return httpsig.DefaultPolicy()
	}

	return httpsig.NewPolicy(p.Default, p.Methods)
}

func (t Target) resolve(baseDir string, reg *httpsig.Registry, cfg *Config) (httpsig.OutboundTarget, error) {
	alg, err := reg.Resolve(t.Algorithm)
	if err != nil {
		return httpsig.OutboundTarget{}, err
	}

	carrier, err := httpsig.ParseCarrier(t.Carrier)
	if err != nil {
		return httpsig.OutboundTarget{}, err
	}

	keys, err := pki.Load(resolvePaths(baseDir, t.Keys))
	if err != nil {
		return httpsig.OutboundTarget{}, err
	}

	if keys.PrivateKey() == nil {
		return httpsig.OutboundTarget{}, fmt.Errorf("%w: no private key", httpsig.ErrKeyMaterialMissing)
	}

	policy := cfg.Policy
	if t.Policy != nil {
		policy = t.Policy.build()
	}

	return httpsig.OutboundTarget{
		KeyID:           t.KeyID,
		Algorithm:       alg,
		Keys:            keys,
		Carrier:         carrier,
		SharedSecret:    secret(t.SharedSecret),
		Policy:          policy,
		Canonical:       cfg.Canonical,
		ResponseHeaders: t.ResponseHeaders,
	}, nil
}

func (c Client) resolve(baseDir string, reg *httpsig.Registry) (httpsig.InboundClient, error) {
	var alg httpsig.Algorithm

	if c.Algorithm != "" {
		var err error

		alg, err = reg.Resolve(c.Algorithm)
		if err != nil {
			return httpsig.InboundClient{}, err
		}
	}

	keys, err := pki.Load(resolvePaths(baseDir, c.Keys))
	if err != nil {
		return httpsig.InboundClient{}, err
	}

	if keys.PublicKey() == nil {
		return httpsig.InboundClient{}, fmt.Errorf("%w: no public key", httpsig.ErrKeyMaterialMissing)
	}

	return httpsig.InboundClient{
		KeyID:        c.KeyID,
		Algorithm:    alg,
		Keys:         keys,
		SharedSecret: secret(c.SharedSecret),
		Enabled:      c.Enabled == nil || *c.Enabled,
	}, nil
}

// resolvePaths makes relative paths absolute against baseDir and expands
// environment references in the passphrase.
func resolvePaths(baseDir string, s pki.Source) pki.Source {
	join := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}

		return filepath.Join(baseDir, p)
	}

	s.PrivateKeyPath = join(s.PrivateKeyPath)
	s.PublicKeyPath = join(s.PublicKeyPath)
	s.CertChainPath = join(s.CertChainPath)
	s.TrustedPath = join(s.TrustedPath)
	s.Passphrase = os.ExpandEnv(s.Passphrase)

	return s
}

func secret(s string) []byte {
	if s == "" {
		return nil
	}

	return []byte(os.ExpandEnv(s))
}
