package httpsig

import (
	"bytes"
	"net/http"
	"strconv"

	"github.com/sirupsen/logrus"
)

// DefaultResponseHeaders are signed on responses when the target does not
// list its own.
var DefaultResponseHeaders = []string{"date", DigestHeaderName, "content-type"}

// SignResponse signs an outgoing response described by h and body and sets
// the carrier header on h. A missing date header is added to h.
func SignResponse(h http.Header, body []byte, target OutboundTarget) (*Signature, error) {
	names := target.ResponseHeaders
	if len(names) == 0 {
		names = DefaultResponseHeaders
	}

	sig, injected, err := signHeaders(target, names, NewResponseMessage(h, body))
	if err != nil {
		return nil, err
	}

	for name, values := range injected {
		h[name] = values
	}

	h.Set(target.Carrier.HeaderName(), target.Carrier.format(sig))

	return sig, nil
}

// ResponseSigner returns a MiddlewareFunc that buffers each response and
// signs it before it is written. Handlers that stream are not supported:
// nothing reaches the client until the handler returns.
//
// When the handler sets no Content-Type, one is sniffed from the body the
// same way net/http would.
func ResponseSigner(target OutboundTarget, logger logrus.FieldLogger, metrics *Metrics) MiddlewareFunc {
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			buf := &bufferedResponse{header: make(http.Header)}

			next.ServeHTTP(buf, r)

			if buf.status == 0 {
				buf.status = http.StatusOK
			}

			body := buf.body.Bytes()
			if buf.header.Get("Content-Type") == "" {
				buf.header.Set("Content-Type", http.DetectContentType(body))
			}

			if _, err := SignResponse(buf.header, body, target); err != nil {
				logger.WithError(err).WithField("key_id", target.KeyID).Error("response signing failed")
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)

				return
			}

			metrics.observeSignature(target.Algorithm)

			dst := w.Header()
			for name, values := range buf.header {
				dst[name] = values
			}

			if hasBody(r.Method, buf.status) {
				dst.Set("Content-Length", strconv.Itoa(len(body)))
			}

			w.WriteHeader(buf.status)
			_, _ = w.Write(body)
		})
	}
}

// hasBody reports whether a response to method with status carries a
// body, so that its Content-Length reflects the buffered bytes.
func hasBody(method string, status int) bool {
	switch {
	case method == http.MethodHead:
		return false
	case status >= 100 && status < 200:
		return false
	case status == http.StatusNoContent, status == http.StatusNotModified:
		return false
	}

	return true
}

// bufferedResponse collects a handler's response so it can be signed.
type bufferedResponse struct {
	header http.Header
	status int
	body   bytes.Buffer
}

func (b *bufferedResponse) Header() http.Header { return b.header }

func (b *bufferedResponse) WriteHeader(code int) {
	if b.status == 0 {
		b.status = code
	}
}

func (b *bufferedResponse) Write(p []byte) (int, error) {
	if b.status == 0 {
		b.status = http.StatusOK
	}

	return b.body.Write(p)
}
