package httpsig

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"

	"github.com/vitalvas/cavage/pki"
)

// InboundClient is a registered peer whose signatures are accepted.
type InboundClient struct {
	// KeyID is the keyId the client signs with.
	KeyID string

	// Algorithm pins the algorithm the client must use. The zero value
	// accepts any registered algorithm.
	Algorithm Algorithm

	// Keys holds the public key or certificate used for verification.
	Keys pki.KeyMaterial

	// SharedSecret is kept for symmetric algorithms; no registered
	// algorithm uses it.
	SharedSecret []byte

	// Enabled must be true for the client's signatures to be accepted.
	Enabled bool
}

// ClientStore looks up inbound clients by key id. Implementations return
// an error wrapping ErrUnknownKeyID when no client is registered; any
// other error is treated as a server fault.
type ClientStore interface {
	LoadByKeyID(ctx context.Context, keyID string) (InboundClient, error)
}

// ClientStoreFunc adapts a function to the ClientStore interface.
type ClientStoreFunc func(ctx context.Context, keyID string) (InboundClient, error)

// LoadByKeyID calls f(ctx, keyID).
func (f ClientStoreFunc) LoadByKeyID(ctx context.Context, keyID string) (InboundClient, error) {
	return f(ctx, keyID)
}

// State is the stage an inbound signature reached.
type State int

const (
	// StateNoSignature means the message carried no signature header.
	StateNoSignature State = iota

	// StateParsed means the header was parsed.
	StateParsed

	// StateStructurallyValid means every field is present and well formed.
	StateStructurallyValid

	// StateCanonicalized means the canonical string was rebuilt.
	StateCanonicalized

	// StateVerified means the signature matched.
	StateVerified

	// StateRejected means the signature was refused; see Result.Reason.
	StateRejected
)

func (s State) String() string {
	switch s {
	case StateNoSignature:
		return "no_signature"
	case StateParsed:
		return "parsed"
	case StateStructurallyValid:
		return "structurally_valid"
	case StateCanonicalized:
		return "canonicalized"
	case StateVerified:
		return "verified"
	case StateRejected:
		return "rejected"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Result is the outcome of verifying one message.
type Result struct {
	State State

	// Signature is set once the header was parsed into a valid signature.
	Signature *Signature

	// Reason explains a rejection. It wraps one of the package errors.
	Reason error
}

// Verified reports whether the signature matched.
func (r Result) Verified() bool { return r.State == StateVerified }

// KeyID returns the key id of the signature, or "" when none was parsed.
func (r Result) KeyID() string {
	if r.Signature == nil {
		return ""
	}

	return r.Signature.KeyID
}

func reject(res Result, reason error) Result {
	res.State = StateRejected
	res.Reason = reason

	return res
}

// ResolveInbound finds and parses the signature carried by h. It returns
// nil, nil when neither the Signature header nor a Signature-scheme
// Authorization header is present.
func ResolveInbound(h http.Header, reg *Registry, opts CanonicalOptions) (*Signature, error) {
	raw, _, ok := extractSignatureHeader(h)
	if !ok {
		return nil, nil
	}

	fields, err := ParseHeader(raw)
	if err != nil {
		return nil, err
	}

	return NewSignature(fields, reg, opts)
}

// Verify checks sig against msg using the client's public key.
//
// Message problems (disabled client, uncovered required header, missing
// header, bad encoding, mismatch) are reported in the Result with
// StateRejected, as is a nil sig. Only configuration faults are returned
// as an error; a Signature built without an algorithm is one of them.
func Verify(sig *Signature, client InboundClient, required []string, msg *Message, opts CanonicalOptions) (Result, error) {
	if sig == nil {
		return reject(Result{}, fmt.Errorf("%w: no signature", ErrIncompleteSignature)), nil
	}

	res := Result{State: StateStructurallyValid, Signature: sig}

	if sig.Algorithm.IsZero() {
		return res, fmt.Errorf("%w: signature has no algorithm", ErrUnsupportedAlgorithm)
	}

	if !client.Enabled {
		return reject(res, fmt.Errorf("%w: %s", ErrClientDisabled, client.KeyID)), nil
	}

	if !client.Algorithm.IsZero() && client.Algorithm.ID() != sig.Algorithm.ID() {
		return reject(res, fmt.Errorf("%w: got %s, want %s", ErrAlgorithmMismatch, sig.Algorithm, client.Algorithm)), nil
	}

	pub := client.Keys.PublicKey()
	if pub == nil {
		return res, fmt.Errorf("%w: client %q has no public key", ErrKeyMaterialMissing, client.KeyID)
	}

	for _, name := range required {
		if !slices.ContainsFunc(sig.Headers, func(h string) bool { return strings.EqualFold(h, name) }) {
			return reject(res, fmt.Errorf("%w: %s is required, yet not signed", ErrMissingSignedHeader, name)), nil
		}
	}

	signingString, _, err := BuildSigningString(sig.Headers, msg, opts, false)
	if err != nil {
		return reject(res, err), nil
	}

	res.State = StateCanonicalized

	raw, err := sig.Bytes()
	if err != nil {
		return reject(res, err), nil
	}

	if err := sig.Algorithm.Strategy().Verify([]byte(signingString), raw, pub); err != nil {
		if errors.Is(err, ErrSignatureInvalid) {
			return reject(res, err), nil
		}

		return res, err
	}

	res.State = StateVerified

	return res, nil
}

// Authenticator verifies signed requests against a ClientStore.
type Authenticator struct {
	// Store looks up clients by key id. Required.
	Store ClientStore

	// Registry resolves algorithm names. Defaults to DefaultRegistry().
	Registry *Registry

	// Policy selects the headers each method must sign. The zero Policy
	// requires nothing; use DefaultPolicy for the standard set.
	Policy Policy

	// Canonical tunes canonical string construction.
	Canonical CanonicalOptions

	// RequireDigest additionally checks the Digest header against the
	// body before the signature is verified.
	RequireDigest bool
}

// Authenticate verifies the signature on r. A request without a signature
// yields StateNoSignature. The body of r is restored for downstream
// handlers.
//
// When r.Body is limited with http.MaxBytesReader and the limit is hit, the
// rejected Result is returned together with an error wrapping
// ErrBodyTooLarge.
func (a *Authenticator) Authenticate(r *http.Request) (Result, error) {
	if a.Store == nil {
		return Result{}, ErrNoClientStore
	}

	reg := a.Registry
	if reg == nil {
		reg = DefaultRegistry()
	}

	sig, err := ResolveInbound(r.Header, reg, a.Canonical)
	if err != nil {
		return reject(Result{State: StateParsed}, err), nil
	}

	if sig == nil {
		return Result{State: StateNoSignature}, nil
	}

	res := Result{State: StateStructurallyValid, Signature: sig}

	client, err := a.Store.LoadByKeyID(r.Context(), sig.KeyID)
	if err != nil {
		if errors.Is(err, ErrUnknownKeyID) {
			return reject(res, err), nil
		}

		return res, err
	}

	msg, err := NewRequestMessage(r)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return reject(res, ErrBodyTooLarge), fmt.Errorf("%w: limit %d bytes", ErrBodyTooLarge, tooLarge.Limit)
		}

		return reject(res, fmt.Errorf("httpsig: reading body: %w", err)), nil
	}

	if a.RequireDigest {
		if err := VerifyDigest(r, a.Canonical.DigestEncoding); err != nil {
			return reject(res, err), nil
		}
	}

	return Verify(sig, client, a.Policy.RequiredHeadersFor(r.Method), msg, a.Canonical)
}
