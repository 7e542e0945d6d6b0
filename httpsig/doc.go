// Package httpsig implements HTTP signatures as described by
// draft-cavage-http-signatures.
//
// A signature covers a canonical string built from selected headers of a
// message, one "name: value" line per header. Two pseudo-headers are
// supported: (request-target), the lowercased method and request path, and
// digest, the SHA-256 of the body computed when the string is built. The
// signature travels as
//
//	Signature: keyId="k1",algorithm="rsa-sha256",signature="<base64>"
//
// or in the Authorization header after the "Signature " scheme.
//
// # Supported Algorithms
//
//   - rsa-sha256 (SHA256withRSA, RSASSA-PKCS1-v1_5)
//   - rsa-sha256-pss (SHA256withRSA/PSS, salt length 32)
//
// Names are resolved through a Registry, ignoring case and punctuation.
//
// # Signing Requests
//
//	reg := httpsig.DefaultRegistry()
//	alg, err := reg.Resolve("rsa-sha256")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	target := httpsig.OutboundTarget{
//	    KeyID:     "k1",
//	    Algorithm: alg,
//	    Keys:      pki.New(pki.WithPrivateKey(key)),
//	    Policy:    httpsig.DefaultPolicy(),
//	}
//
//	if err := httpsig.SignRequest(req, target); err != nil {
//	    log.Fatal(err)
//	}
//
// Date and host are added to the request when the policy signs them and
// the request lacks them.
//
// # Verifying Requests
//
//	auth := &httpsig.Authenticator{
//	    Store:  store,
//	    Policy: httpsig.DefaultPolicy(),
//	}
//
//	res, err := auth.Authenticate(req)
//	if err != nil {
//	    // configuration fault
//	}
//	if !res.Verified() {
//	    // res.Reason explains the rejection
//	}
//
// Middleware wraps an Authenticator for use with net/http and answers
// rejections with 401 and a Signature challenge.
//
// # Client Transport
//
// NewTransport creates an http.RoundTripper that signs every outgoing
// request for one target.
package httpsig
