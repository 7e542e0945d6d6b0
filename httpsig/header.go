package httpsig

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Field names of the signature header grammar.
const (
	fieldKeyID     = "keyId"
	fieldAlgorithm = "algorithm"
	fieldHeaders   = "headers"
	fieldSignature = "signature"
)

// authorizationScheme prefixes the grammar in the Authorization header.
const authorizationScheme = "Signature"

// Carrier selects the header that transports a signature.
type Carrier int

const (
	// CarrierSignature sends "Signature: <grammar>".
	CarrierSignature Carrier = iota

	// CarrierAuthorization sends "Authorization: Signature <grammar>".
	CarrierAuthorization
)

// ParseCarrier parses "signature" or "authorization". An empty name
// selects CarrierSignature.
func ParseCarrier(name string) (Carrier, error) {
	switch strings.ToLower(name) {
	case "", "signature":
		return CarrierSignature, nil
	case "authorization":
		return CarrierAuthorization, nil
	default:
		return 0, fmt.Errorf("httpsig: unknown signature carrier %q", name)
	}
}

// HeaderName returns the canonical name of the carrying header.
func (c Carrier) HeaderName() string {
	if c == CarrierAuthorization {
		return "Authorization"
	}

	return "Signature"
}

func (c Carrier) String() string {
	return strings.ToLower(c.HeaderName())
}

// format returns the header value carrying sig.
func (c Carrier) format(sig *Signature) string {
	if c == CarrierAuthorization {
		return authorizationScheme + " " + sig.HeaderValue()
	}

	return sig.HeaderValue()
}

// HeaderFields holds the raw fields of a signature header. Empty strings
// mean the field was not present; Headers is nil when the headers field
// was absent or blank.
type HeaderFields struct {
	KeyID     string
	Algorithm string
	Headers   []string
	Signature string
}

func (f *HeaderFields) set(name, value string) {
	switch name {
	case fieldKeyID:
		f.KeyID = value
	case fieldAlgorithm:
		f.Algorithm = value
	case fieldHeaders:
		f.Headers = nil
		for h := range strings.FieldsSeq(value) {
			f.Headers = append(f.Headers, strings.ToLower(h))
		}
	case fieldSignature:
		f.Signature = value
	}
}

type parseState int

const (
	stateBeforeName parseState = iota
	stateName
	stateBeforeValue
	stateValue
	stateAfterValue
)

// ParseHeader parses a comma separated list of name="value" pairs.
// Whitespace around names, '=' and commas is ignored, unknown names are
// skipped and the last occurrence of a name wins.
//
// On malformed input the scan stops and the fields collected so far are
// returned together with an error wrapping ErrMalformedHeader.
func ParseHeader(raw string) (HeaderFields, error) {
	var (
		fields HeaderFields
		state  = stateBeforeName
		name   string
		start  int
	)

	for i := 0; i < len(raw); i++ {
		c := raw[i]

		switch state {
		case stateBeforeName:
			if isSpace(c) || c == ',' {
				continue
			}

			if c == '=' {
				return fields, fmt.Errorf("%w: empty field name at offset %d", ErrMalformedHeader, i)
			}

			start = i
			state = stateName

		case stateName:
			switch c {
			case '=':
				name = strings.TrimSpace(raw[start:i])
				if name == "" {
					return fields, fmt.Errorf("%w: empty field name at offset %d", ErrMalformedHeader, i)
				}

				state = stateBeforeValue
			case ',':
				return fields, fmt.Errorf("%w: field %q has no value", ErrMalformedHeader, strings.TrimSpace(raw[start:i]))
			}

		case stateBeforeValue:
			if isSpace(c) {
				continue
			}

			if c != '"' {
				return fields, fmt.Errorf("%w: value of %q is not quoted", ErrMalformedHeader, name)
			}

			start = i + 1
			state = stateValue

		case stateValue:
			if c == '"' {
				fields.set(name, raw[start:i])
				state = stateAfterValue
			}

		case stateAfterValue:
			if isSpace(c) {
				continue
			}

			if c != ',' {
				return fields, fmt.Errorf("%w: unexpected %q after %q", ErrMalformedHeader, c, name)
			}

			state = stateBeforeName
		}
	}

	switch state {
	case stateName:
		return fields, fmt.Errorf("%w: field %q has no value", ErrMalformedHeader, strings.TrimSpace(raw[start:]))
	case stateBeforeValue:
		return fields, fmt.Errorf("%w: value of %q is missing", ErrMalformedHeader, name)
	case stateValue:
		return fields, fmt.Errorf("%w: value of %q is not terminated", ErrMalformedHeader, name)
	}

	return fields, nil
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t'
}

// Signature is a parsed or freshly produced signature.
type Signature struct {
	KeyID     string
	Algorithm Algorithm

	// Headers lists the signed header names in canonical order.
	Headers []string

	// Value is the base64 encoded signature.
	Value string
}

// HeaderValue serializes the signature as
// keyId="<id>",algorithm="<name>",headers="<names>",signature="<base64>".
//
// The plain keyId, algorithm, signature form is produced only when Headers
// is empty. Peers that ignore unknown fields read the longer form the same
// way, and the headers field lets a signature over fewer names than
// DefaultSignedHeaders verify.
func (s *Signature) HeaderValue() string {
	var b strings.Builder

	writeField(&b, fieldKeyID, s.KeyID)
	b.WriteByte(',')
	writeField(&b, fieldAlgorithm, s.Algorithm.PortableName())
	b.WriteByte(',')

	if len(s.Headers) > 0 {
		writeField(&b, fieldHeaders, strings.Join(s.Headers, " "))
		b.WriteByte(',')
	}

	writeField(&b, fieldSignature, s.Value)

	return b.String()
}

// Bytes decodes the signature value.
func (s *Signature) Bytes() ([]byte, error) {
	return decodeSignature(s.Value)
}

// decodeSignature decodes standard base64, tolerating missing or surplus
// padding.
func decodeSignature(value string) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(value)
	if err == nil {
		return raw, nil
	}

	raw, rawErr := base64.RawStdEncoding.DecodeString(strings.TrimRight(value, "="))
	if rawErr != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignatureEncoding, err)
	}

	return raw, nil
}

func writeField(b *strings.Builder, name, value string) {
	b.WriteString(name)
	b.WriteString(`="`)
	b.WriteString(value)
	b.WriteByte('"')
}

// NewSignature validates fields and resolves the algorithm through reg.
// Every missing field is reported in one error wrapping
// ErrIncompleteSignature. A missing header list defaults to
// DefaultSignedHeaders.
func NewSignature(fields HeaderFields, reg *Registry, opts CanonicalOptions) (*Signature, error) {
	var problems []error

	if fields.KeyID == "" {
		problems = append(problems, fmt.Errorf("%w: keyId is missing", ErrIncompleteSignature))
	}

	if fields.Algorithm == "" {
		problems = append(problems, fmt.Errorf("%w: algorithm is missing", ErrIncompleteSignature))
	}

	if fields.Signature == "" {
		problems = append(problems, fmt.Errorf("%w: signature is missing", ErrIncompleteSignature))
	}

	if len(problems) > 0 {
		return nil, errors.Join(problems...)
	}

	alg, err := reg.Resolve(fields.Algorithm)
	if err != nil {
		return nil, err
	}

	if _, err := decodeSignature(fields.Signature); err != nil {
		return nil, err
	}

	headers := fields.Headers
	if len(headers) == 0 {
		headers = DefaultSignedHeaders(opts)
	}

	return &Signature{
		KeyID:     fields.KeyID,
		Algorithm: alg,
		Headers:   headers,
		Value:     fields.Signature,
	}, nil
}

// extractSignatureHeader returns the raw grammar from the Signature header
// or, failing that, from an Authorization header using the Signature
// scheme. The scheme is matched case-insensitively.
func extractSignatureHeader(h http.Header) (string, Carrier, bool) {
	if v := h.Get("Signature"); v != "" {
		return v, CarrierSignature, true
	}

	for _, v := range h.Values("Authorization") {
		if len(v) > len(authorizationScheme) &&
			strings.EqualFold(v[:len(authorizationScheme)], authorizationScheme) &&
			isSpace(v[len(authorizationScheme)]) {
			return strings.TrimSpace(v[len(authorizationScheme):]), CarrierAuthorization, true
		}
	}

	return "", 0, false
}
