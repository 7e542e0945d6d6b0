package httpsig

import (
	"errors"

	"github.com/vitalvas/cavage/pki"
)

// Registry errors.
var (
	// ErrUnsupportedAlgorithm is returned when an algorithm name does not
	// resolve to a registered algorithm.
	ErrUnsupportedAlgorithm = errors.New("httpsig: unsupported algorithm")
)

// Header errors.
var (
	// ErrMalformedHeader is returned when a Signature or Authorization
	// header value does not follow the name="value" grammar.
	ErrMalformedHeader = errors.New("httpsig: malformed signature header")

	// ErrIncompleteSignature is returned when keyId, algorithm or signature
	// is missing from a parsed header.
	ErrIncompleteSignature = errors.New("httpsig: incomplete signature")

	// ErrInvalidSignatureEncoding is returned when the signature text is
	// not valid base64.
	ErrInvalidSignatureEncoding = errors.New("httpsig: invalid signature encoding")
)

// Signing errors.
var (
	// ErrNoKeyID is returned when an outbound target has no key id.
	ErrNoKeyID = errors.New("httpsig: key id must not be empty")

	// ErrMissingSignedHeader is returned when a header that must be signed
	// is absent from the message, or when a required header is not covered
	// by the signature.
	ErrMissingSignedHeader = errors.New("httpsig: signed header missing")
)

// Verification errors.
var (
	// ErrNoClientStore is returned when an Authenticator has no ClientStore.
	ErrNoClientStore = errors.New("httpsig: client store must not be nil")

	// ErrSignatureInvalid is returned when signature verification fails.
	ErrSignatureInvalid = errors.New("httpsig: signature verification failed")

	// ErrUnknownKeyID is returned by a ClientStore when no client is
	// registered for a key id.
	ErrUnknownKeyID = errors.New("httpsig: unknown key id")

	// ErrClientDisabled is returned when the client owning the key id is
	// not enabled.
	ErrClientDisabled = errors.New("httpsig: client disabled")

	// ErrAlgorithmMismatch is returned when the signature names a different
	// algorithm than the one configured for the client.
	ErrAlgorithmMismatch = errors.New("httpsig: algorithm does not match client configuration")
)

// Key material errors.
var (
	// ErrInvalidKey is returned when key material is invalid (wrong type,
	// insufficient size, etc.).
	ErrInvalidKey = errors.New("httpsig: invalid key material")

	// ErrKeyMaterialMissing is returned when the key needed for an
	// operation is not configured.
	ErrKeyMaterialMissing = errors.New("httpsig: key material missing")
)

// Digest errors.
var (
	// ErrDigestMismatch is returned when Digest verification fails.
	ErrDigestMismatch = errors.New("httpsig: digest mismatch")

	// ErrDigestNotFound is returned when the Digest header is required
	// but not present.
	ErrDigestNotFound = errors.New("httpsig: digest not found")

	// ErrUnsupportedDigest is returned when the Digest header names an
	// algorithm other than SHA-256.
	ErrUnsupportedDigest = errors.New("httpsig: unsupported digest algorithm")
)

// ErrBodyTooLarge is returned by Authenticator.Authenticate when the
// request body exceeds the limit set with http.MaxBytesReader.
var ErrBodyTooLarge = errors.New("httpsig: request body too large")

// IsConfigError reports whether err is a deployment fault rather than a
// property of the message. Such errors are answered with a server error
// instead of an authentication challenge.
func IsConfigError(err error) bool {
	return errors.Is(err, ErrKeyMaterialMissing) ||
		errors.Is(err, ErrInvalidKey) ||
		errors.Is(err, ErrNoKeyID) ||
		errors.Is(err, ErrNoClientStore) ||
		errors.Is(err, pki.ErrPKI)
}
