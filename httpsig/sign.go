package httpsig

import (
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"

	"github.com/vitalvas/cavage/pki"
)

// OutboundTarget describes how requests to one peer are signed.
type OutboundTarget struct {
	// KeyID is sent in the keyId field. Required.
	KeyID string

	// Algorithm signs the canonical string. Required.
	Algorithm Algorithm

	// Keys holds the private key used for signing.
	Keys pki.KeyMaterial

	// Carrier selects the header the signature travels in.
	Carrier Carrier

	// SharedSecret is kept for symmetric algorithms; no registered
	// algorithm uses it.
	SharedSecret []byte

	// Policy selects the signed headers per method.
	Policy Policy

	// Canonical tunes canonical string construction.
	Canonical CanonicalOptions

	// ResponseHeaders lists the headers signed by SignResponse. Defaults
	// to date, digest and content-type.
	ResponseHeaders []string
}

func (t OutboundTarget) validate() error {
	if t.KeyID == "" {
		return ErrNoKeyID
	}

	if t.Algorithm.IsZero() {
		return fmt.Errorf("%w: target %q has no algorithm", ErrUnsupportedAlgorithm, t.KeyID)
	}

	if t.Keys.PrivateKey() == nil {
		return fmt.Errorf("%w: target %q has no private key", ErrKeyMaterialMissing, t.KeyID)
	}

	return nil
}

// Sign signs msg with the headers the target's policy selects for its
// method. Missing date and host headers are synthesized; they are returned
// in the header map and must be sent with the message.
//
// With CarrierAuthorization the authorization header is never signed,
// since it carries the signature itself.
func Sign(target OutboundTarget, msg *Message) (*Signature, http.Header, error) {
	names := target.Policy.HeadersFor(msg.Method, msg.Header)

	return signHeaders(target, names, msg)
}

func signHeaders(target OutboundTarget, names []string, msg *Message) (*Signature, http.Header, error) {
	if err := target.validate(); err != nil {
		return nil, nil, err
	}

	if target.Carrier == CarrierAuthorization {
		names = withoutHeader(names, "authorization")
	}

	signingString, injected, err := BuildSigningString(names, msg, target.Canonical, true)
	if err != nil {
		return nil, nil, err
	}

	raw, err := target.Algorithm.Strategy().Sign([]byte(signingString), target.Keys.PrivateKey())
	if err != nil {
		return nil, nil, err
	}

	sig := &Signature{
		KeyID:     target.KeyID,
		Algorithm: target.Algorithm,
		Headers:   names,
		Value:     base64.StdEncoding.EncodeToString(raw),
	}

	return sig, injected, nil
}

// SignRequest signs r in place. It buffers the body, adds any synthesized
// headers and sets the carrier header.
func SignRequest(r *http.Request, target OutboundTarget) error {
	msg, err := NewRequestMessage(r)
	if err != nil {
		return err
	}

	sig, injected, err := Sign(target, msg)
	if err != nil {
		return err
	}

	for name, values := range injected {
		if strings.EqualFold(name, hostHeader) {
			if r.Host == "" {
				r.Host = values[0]
			}
			continue
		}

		r.Header[name] = values
	}

	r.Header.Set(target.Carrier.HeaderName(), target.Carrier.format(sig))

	return nil
}

func withoutHeader(names []string, drop string) []string {
	out := make([]string, 0, len(names))
	for _, name := range names {
		if !strings.EqualFold(name, drop) {
			out = append(out, name)
		}
	}

	return out
}
