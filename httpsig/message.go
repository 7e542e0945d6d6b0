package httpsig

import (
	"bytes"
	"io"
	"net/http"
	"strings"
)

// Message is the view of an HTTP message the canonical string is built
// from. Requests carry Method and Path; responses leave them empty.
type Message struct {
	// Method is the request method as sent, e.g. "POST".
	Method string

	// Path is the escaped request path without the query.
	Path string

	// RawQuery is the encoded query without the leading '?'.
	RawQuery string

	// Host is the target host, including the port when one was given.
	Host string

	// Header holds the message headers. It is never modified by the
	// canonical builder.
	Header http.Header

	// Body is the buffered message body.
	Body []byte
}

// NewRequestMessage buffers the body of r and returns a Message describing
// it. The body of r is replaced so that it can be read again downstream.
//
// For server requests, where net/http moves Host out of the header map,
// the Host header is restored in the message view.
func NewRequestMessage(r *http.Request) (*Message, error) {
	body, err := readAndRestoreBody(r)
	if err != nil {
		return nil, err
	}

	host := r.Host
	if host == "" && r.URL != nil {
		host = r.URL.Host
	}

	header := r.Header.Clone()
	if header == nil {
		header = make(http.Header)
	}

	if r.RequestURI != "" && host != "" && header.Get("Host") == "" {
		header.Set("Host", host)
	}

	msg := &Message{
		Method: r.Method,
		Host:   host,
		Header: header,
		Body:   body,
	}

	if r.URL != nil {
		msg.Path = r.URL.EscapedPath()
		msg.RawQuery = r.URL.RawQuery
	}

	if msg.Path == "" {
		msg.Path = "/"
	}

	return msg, nil
}

// NewResponseMessage returns a Message describing an outgoing response.
func NewResponseMessage(header http.Header, body []byte) *Message {
	if header == nil {
		header = make(http.Header)
	}

	return &Message{
		Header: header,
		Body:   body,
	}
}

// requestTarget returns the value of the (request-target) pseudo-header.
func (m *Message) requestTarget(includeQuery bool) string {
	target := m.Path
	if includeQuery && m.RawQuery != "" {
		target += "?" + m.RawQuery
	}

	return strings.ToLower(m.Method) + " " + target
}

// readAndRestoreBody reads the entire request body and replaces it with a
// new reader so the body can be consumed again by downstream handlers.
func readAndRestoreBody(r *http.Request) ([]byte, error) {
	if r.Body == nil || r.Body == http.NoBody {
		return nil, nil
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, err
	}

	r.Body.Close()
	r.Body = io.NopCloser(bytes.NewReader(body))

	return body, nil
}
