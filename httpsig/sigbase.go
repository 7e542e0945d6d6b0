package httpsig

import (
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Pseudo-headers and computed headers of the canonical string.
const (
	// RequestTarget covers the lowercased method and the request path.
	RequestTarget = "(request-target)"

	// DigestHeaderName covers the SHA-256 digest of the body, computed
	// fresh when the canonical string is built.
	DigestHeaderName = "digest"

	defaultDateHeader = "date"
	hostHeader        = "host"
)

// CanonicalOptions tunes how the canonical string is built. The zero value
// signs "date", writes hex digests and excludes the query from
// (request-target).
type CanonicalOptions struct {
	// DateHeader is the header name treated as the signature date.
	// Defaults to "date".
	DateHeader string

	// DigestEncoding selects the encoding of the digest line.
	DigestEncoding DigestEncoding

	// IncludeQuery appends "?<query>" to (request-target) when the request
	// has a query.
	IncludeQuery bool

	// Now returns the time used for an injected date. Defaults to time.Now.
	Now func() time.Time
}

func (o CanonicalOptions) dateHeader() string {
	if o.DateHeader == "" {
		return defaultDateHeader
	}

	return strings.ToLower(o.DateHeader)
}

func (o CanonicalOptions) now() time.Time {
	if o.Now == nil {
		return time.Now()
	}

	return o.Now()
}

// DefaultSignedHeaders returns the header list assumed when a signature
// does not name one: (request-target) host <date> digest content-type.
func DefaultSignedHeaders(opts CanonicalOptions) []string {
	return []string{RequestTarget, hostHeader, opts.dateHeader(), DigestHeaderName, "content-type"}
}

// BuildSigningString builds the canonical string for names over msg: one
// "name: value" line per name, joined by "\n" without a trailing newline.
//
// When inject is true, a missing date header is taken from the message's
// Date header or from opts.Now, and a missing host header is taken from
// msg.Host. Injected values are returned in the header map and msg is left
// untouched. Any other missing header fails with ErrMissingSignedHeader.
func BuildSigningString(names []string, msg *Message, opts CanonicalOptions, inject bool) (string, http.Header, error) {
	injected := make(http.Header)
	lines := make([]string, 0, len(names))

	for _, name := range names {
		lname := strings.ToLower(name)

		switch lname {
		case RequestTarget:
			lines = append(lines, lname+": "+msg.requestTarget(opts.IncludeQuery))
			continue
		case DigestHeaderName:
			lines = append(lines, lname+": "+DigestValue(msg.Body, opts.DigestEncoding))
			continue
		}

		values := msg.Header.Values(lname)
		if len(values) == 0 {
			values = injected.Values(lname)
		}

		if len(values) == 0 {
			if !inject {
				return "", nil, fmt.Errorf("%w: %s", ErrMissingSignedHeader, lname)
			}

			value, err := injectHeader(lname, msg, opts)
			if err != nil {
				return "", nil, err
			}

			injected.Set(lname, value)
			values = []string{value}
		}

		lines = append(lines, lname+": "+strings.Join(values, " "))
	}

	return strings.Join(lines, "\n"), injected, nil
}

// injectHeader synthesizes the value of a missing date or host header.
func injectHeader(name string, msg *Message, opts CanonicalOptions) (string, error) {
	switch name {
	case opts.dateHeader():
		if date := msg.Header.Get("Date"); date != "" {
			return date, nil
		}

		return opts.now().UTC().Format(http.TimeFormat), nil
	case hostHeader:
		if msg.Host != "" {
			return msg.Host, nil
		}
	}

	return "", fmt.Errorf("%w: %s", ErrMissingSignedHeader, name)
}

func isPseudoHeader(name string) bool {
	return strings.EqualFold(name, RequestTarget)
}
