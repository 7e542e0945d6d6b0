package httpsig

import (
	"net/http"
	"strings"
)

// HeadersConfig lists the headers signed for one method.
type HeadersConfig struct {
	// Always lists headers that are signed unconditionally and, on the
	// verifying side, must be covered by every signature.
	Always []string `yaml:"always"`

	// IfPresent lists headers that are signed only when the message
	// carries them.
	IfPresent []string `yaml:"if-present"`
}

// Policy maps request methods to the headers they sign. A method entry
// replaces Default entirely; the two are never merged.
type Policy struct {
	Default HeadersConfig
	Methods map[string]HeadersConfig
}

// NewPolicy returns a Policy with method keys upper-cased and all lists
// copied, so later changes to the arguments do not affect it.
func NewPolicy(def HeadersConfig, methods map[string]HeadersConfig) Policy {
	p := Policy{
		Default: def.clone(),
		Methods: make(map[string]HeadersConfig, len(methods)),
	}

	for method, cfg := range methods {
		p.Methods[strings.ToUpper(method)] = cfg.clone()
	}

	return p
}

// DefaultPolicy returns the inbound policy used when none is configured.
// Safe methods sign the request line, host and date; methods with a body
// add digest and content-type. Authorization is signed when present.
func DefaultPolicy() Policy {
	safe := HeadersConfig{
		Always:    []string{RequestTarget, "host", "date"},
		IfPresent: []string{"authorization"},
	}

	withBody := HeadersConfig{
		Always:    []string{RequestTarget, "host", "date", "digest", "content-type"},
		IfPresent: []string{"authorization"},
	}

	return NewPolicy(
		HeadersConfig{Always: []string{"date", RequestTarget}},
		map[string]HeadersConfig{
			http.MethodGet:    safe,
			http.MethodHead:   safe,
			http.MethodPost:   withBody,
			http.MethodPut:    withBody,
			http.MethodDelete: withBody,
		},
	)
}

// HeadersFor returns the headers to sign for method: every Always entry
// followed by the IfPresent entries found in present. Order is preserved
// and duplicates are kept.
func (p Policy) HeadersFor(method string, present http.Header) []string {
	cfg := p.lookup(method)

	out := make([]string, 0, len(cfg.Always)+len(cfg.IfPresent))
	out = append(out, cfg.Always...)

	for _, name := range cfg.IfPresent {
		if isPseudoHeader(name) || len(present.Values(name)) > 0 {
			out = append(out, name)
		}
	}

	return out
}

// RequiredHeadersFor returns the headers a signature must cover for method.
func (p Policy) RequiredHeadersFor(method string) []string {
	cfg := p.lookup(method)

	out := make([]string, len(cfg.Always))
	copy(out, cfg.Always)

	return out
}

func (p Policy) lookup(method string) HeadersConfig {
	if cfg, ok := p.Methods[strings.ToUpper(method)]; ok {
		return cfg
	}

	for m, cfg := range p.Methods {
		if strings.EqualFold(m, method) {
			return cfg
		}
	}

	return p.Default
}

func (c HeadersConfig) clone() HeadersConfig {
	return HeadersConfig{
		Always:    append([]string(nil), c.Always...),
		IfPresent: append([]string(nil), c.IfPresent...),
	}
}
