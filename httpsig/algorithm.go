package httpsig

import (
	"fmt"
	"strings"
	"sync"
)

// AlgorithmID is the stable token of a registered algorithm.
type AlgorithmID uint8

const (
	// RSASHA256 is RSASSA-PKCS1-v1_5 with SHA-256.
	RSASHA256 AlgorithmID = iota + 1

	// RSASHA256PSS is RSASSA-PSS with SHA-256, MGF1-SHA-256 and a 32 byte salt.
	RSASHA256PSS
)

// Algorithm is a registry entry. It carries the portable name used on the
// wire, the platform name used by JCA-style peers and the strategy that
// signs and verifies with it.
//
// The zero Algorithm is not registered and has no strategy.
type Algorithm struct {
	id       AlgorithmID
	portable string
	platform string
	strategy Strategy
}

// ID returns the stable token of the algorithm.
func (a Algorithm) ID() AlgorithmID { return a.id }

// PortableName returns the name sent in the algorithm field, e.g. "rsa-sha256".
func (a Algorithm) PortableName() string { return a.portable }

// PlatformName returns the platform name, e.g. "SHA256withRSA".
func (a Algorithm) PlatformName() string { return a.platform }

// Strategy returns the sign/verify implementation of the algorithm.
func (a Algorithm) Strategy() Strategy { return a.strategy }

// IsZero reports whether a is the zero Algorithm.
func (a Algorithm) IsZero() bool { return a.id == 0 }

func (a Algorithm) String() string { return a.portable }

// Registry resolves algorithm names to registered algorithms. It is
// read-only after construction and safe for concurrent use.
type Registry struct {
	algorithms []Algorithm
	aliases    map[string]Algorithm
}

// NewRegistry builds a registry holding every supported algorithm.
func NewRegistry() *Registry {
	algorithms := []Algorithm{
		{id: RSASHA256, portable: "rsa-sha256", platform: "SHA256withRSA", strategy: rsaPKCS1v15SHA256{}},
		{id: RSASHA256PSS, portable: "rsa-sha256-pss", platform: "SHA256withRSA/PSS", strategy: rsaPSSSHA256{saltLength: pssSaltLength}},
	}

	r := &Registry{
		algorithms: algorithms,
		aliases:    make(map[string]Algorithm, len(algorithms)*2),
	}

	for _, alg := range algorithms {
		r.aliases[normalizeAlgorithmName(alg.portable)] = alg
		r.aliases[normalizeAlgorithmName(alg.platform)] = alg
	}

	return r
}

// DefaultRegistry returns a process-wide registry built on first use.
var DefaultRegistry = sync.OnceValue(NewRegistry)

// Resolve returns the algorithm registered under name. Matching ignores
// case and every non-alphanumeric character, so "RSA_SHA256" and
// "sha256withrsa" both resolve to rsa-sha256.
func (r *Registry) Resolve(name string) (Algorithm, error) {
	alg, ok := r.aliases[normalizeAlgorithmName(name)]
	if !ok {
		return Algorithm{}, fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, name)
	}

	return alg, nil
}

// Get returns the algorithm registered under id.
func (r *Registry) Get(id AlgorithmID) (Algorithm, error) {
	for _, alg := range r.algorithms {
		if alg.id == id {
			return alg, nil
		}
	}

	return Algorithm{}, fmt.Errorf("%w: id %d", ErrUnsupportedAlgorithm, id)
}

// Algorithms returns the registered algorithms in registration order.
func (r *Registry) Algorithms() []Algorithm {
	out := make([]Algorithm, len(r.algorithms))
	copy(out, r.algorithms)

	return out
}

func normalizeAlgorithmName(name string) string {
	var b strings.Builder
	b.Grow(len(name))

	for _, c := range name {
		switch {
		case c >= 'a' && c <= 'z', c >= '0' && c <= '9':
			b.WriteRune(c)
		case c >= 'A' && c <= 'Z':
			b.WriteRune(c + ('a' - 'A'))
		}
	}

	return b.String()
}
