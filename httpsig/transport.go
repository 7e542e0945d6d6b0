package httpsig

import "net/http"

// Transport is an http.RoundTripper that signs outgoing requests for one
// OutboundTarget.
type Transport struct {
	base    http.RoundTripper
	target  OutboundTarget
	metrics *Metrics
}

// NewTransport creates a signing Transport that delegates to base after
// signing each request. When base is nil, a clone of http.DefaultTransport
// is used, giving an independent connection pool with default proxy, TLS,
// and timeout settings.
//
//	client := &http.Client{
//	    Transport: httpsig.NewTransport(nil, target),
//	    Timeout:   10 * time.Second,
//	}
func NewTransport(base http.RoundTripper, target OutboundTarget) *Transport {
	if base == nil {
		base = http.DefaultTransport.(*http.Transport).Clone()
	}

	return &Transport{
		base:   base,
		target: target,
	}
}

// WithMetrics returns a copy of t that counts produced signatures in m.
func (t *Transport) WithMetrics(m *Metrics) *Transport {
	clone := *t
	clone.metrics = m

	return &clone
}

// RoundTrip signs the request and then delegates to the base transport.
// The original request is cloned before signing to avoid mutation.
// When GetBody is available, the clone receives its own body copy so
// that digest computation does not consume the caller's body.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())

	if clone.Body != nil && req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, err
		}

		clone.Body = body
	}

	if err := SignRequest(clone, t.target); err != nil {
		return nil, err
	}

	t.metrics.observeSignature(t.target.Algorithm)

	return t.base.RoundTrip(clone)
}
