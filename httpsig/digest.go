package httpsig

import (
	"bytes"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"
)

// DigestEncoding selects how the SHA-256 body digest is written after the
// "SHA-256=" prefix.
type DigestEncoding int

const (
	// DigestHex writes the digest as lowercase hexadecimal.
	DigestHex DigestEncoding = iota

	// DigestBase64 writes the digest as standard base64.
	DigestBase64
)

const digestPrefix = "SHA-256="

func (e DigestEncoding) String() string {
	switch e {
	case DigestHex:
		return "hex"
	case DigestBase64:
		return "base64"
	default:
		return fmt.Sprintf("DigestEncoding(%d)", int(e))
	}
}

// ParseDigestEncoding parses "hex" or "base64". An empty name selects hex.
func ParseDigestEncoding(name string) (DigestEncoding, error) {
	switch strings.ToLower(name) {
	case "", "hex":
		return DigestHex, nil
	case "base64":
		return DigestBase64, nil
	default:
		return 0, fmt.Errorf("%w: digest encoding %q", ErrUnsupportedDigest, name)
	}
}

// DigestValue returns "SHA-256=<digest>" for body.
func DigestValue(body []byte, enc DigestEncoding) string {
	sum := sha256.Sum256(body)

	if enc == DigestBase64 {
		return digestPrefix + base64.StdEncoding.EncodeToString(sum[:])
	}

	return digestPrefix + hex.EncodeToString(sum[:])
}

// SetDigest reads the request body, sets the Digest header and replaces
// the body so it can be read again.
func SetDigest(r *http.Request, enc DigestEncoding) error {
	body, err := readAndRestoreBody(r)
	if err != nil {
		return err
	}

	r.Header.Set("Digest", DigestValue(body, enc))

	return nil
}

// VerifyDigest verifies the Digest header against the request body. Hex
// values are compared case-insensitively.
func VerifyDigest(r *http.Request, enc DigestEncoding) error {
	header := r.Header.Get("Digest")
	if header == "" {
		return ErrDigestNotFound
	}

	alg, value, ok := strings.Cut(header, "=")
	if !ok || !strings.EqualFold(strings.TrimSpace(alg), "SHA-256") {
		return fmt.Errorf("%w: %s", ErrUnsupportedDigest, header)
	}

	actual, err := decodeDigest(strings.TrimSpace(value), enc)
	if err != nil {
		return err
	}

	body, err := readAndRestoreBody(r)
	if err != nil {
		return err
	}

	expected := sha256.Sum256(body)
	if !bytes.Equal(expected[:], actual) {
		return ErrDigestMismatch
	}

	return nil
}

func decodeDigest(value string, enc DigestEncoding) ([]byte, error) {
	var (
		out []byte
		err error
	)

	if enc == DigestBase64 {
		out, err = base64.StdEncoding.DecodeString(value)
	} else {
		out, err = hex.DecodeString(value)
	}

	if err != nil {
		return nil, fmt.Errorf("%w: invalid %s in digest", ErrMalformedHeader, enc)
	}

	return out, nil
}
