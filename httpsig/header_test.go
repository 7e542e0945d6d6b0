package httpsig

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseHeader(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want HeaderFields
	}{
		{
			name: "minimal",
			raw:  `keyId="k1",algorithm="rsa-sha256",signature="AAA=="`,
			want: HeaderFields{KeyID: "k1", Algorithm: "rsa-sha256", Signature: "AAA=="},
		},
		{
			name: "whitespace around tokens",
			raw:  ` keyId = "k1" ,	algorithm= "rsa-sha256" , signature ="c2ln" `,
			want: HeaderFields{KeyID: "k1", Algorithm: "rsa-sha256", Signature: "c2ln"},
		},
		{
			name: "headers field is split and lowercased",
			raw:  `keyId="k1",headers="(request-target) Host  Date",signature="c2ln"`,
			want: HeaderFields{KeyID: "k1", Headers: []string{"(request-target)", "host", "date"}, Signature: "c2ln"},
		},
		{
			name: "last occurrence wins",
			raw:  `keyId="first",keyId="second",signature="c2ln"`,
			want: HeaderFields{KeyID: "second", Signature: "c2ln"},
		},
		{
			name: "unknown fields are ignored",
			raw:  `keyId="k1",created="1402170695",extension="x,y",signature="c2ln"`,
			want: HeaderFields{KeyID: "k1", Signature: "c2ln"},
		},
		{
			name: "field names are case sensitive",
			raw:  `KEYID="k1",keyId="k2"`,
			want: HeaderFields{KeyID: "k2"},
		},
		{
			name: "trailing comma",
			raw:  `keyId="k1",`,
			want: HeaderFields{KeyID: "k1"},
		},
		{
			name: "empty value",
			raw:  `keyId=""`,
			want: HeaderFields{},
		},
		{
			name: "empty input",
			raw:  "",
			want: HeaderFields{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseHeader(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseHeaderMalformed(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		partial HeaderFields
	}{
		{
			name:    "name without equals",
			raw:     `keyId="k1",algorithm,signature="c2ln"`,
			partial: HeaderFields{KeyID: "k1"},
		},
		{
			name:    "name without equals at end",
			raw:     `keyId="k1",algorithm`,
			partial: HeaderFields{KeyID: "k1"},
		},
		{
			name:    "unquoted value",
			raw:     `keyId="k1",algorithm=rsa-sha256,signature="c2ln"`,
			partial: HeaderFields{KeyID: "k1"},
		},
		{
			name:    "missing closing quote",
			raw:     `keyId="k1",signature="c2ln`,
			partial: HeaderFields{KeyID: "k1"},
		},
		{
			name:    "missing value at end",
			raw:     `keyId="k1",signature=`,
			partial: HeaderFields{KeyID: "k1"},
		},
		{
			name:    "garbage after value",
			raw:     `keyId="k1" algorithm="rsa-sha256"`,
			partial: HeaderFields{KeyID: "k1"},
		},
		{
			name: "empty name",
			raw:  `="k1"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseHeader(tt.raw)
			assert.ErrorIs(t, err, ErrMalformedHeader)
			assert.Equal(t, tt.partial, got)
		})
	}
}

func TestNewSignature(t *testing.T) {
	reg := NewRegistry()

	t.Run("wire scenario", func(t *testing.T) {
		fields, err := ParseHeader(`keyId="k1",algorithm="rsa-sha256",signature="AAA=="`)
		require.NoError(t, err)

		sig, err := NewSignature(fields, reg, CanonicalOptions{})
		require.NoError(t, err)

		assert.Equal(t, "k1", sig.KeyID)
		assert.Equal(t, RSASHA256, sig.Algorithm.ID())

		raw, err := sig.Bytes()
		require.NoError(t, err)
		assert.Equal(t, []byte{0, 0}, raw)
	})

	t.Run("default header list uses configured date name", func(t *testing.T) {
		fields := HeaderFields{KeyID: "k1", Algorithm: "rsa-sha256", Signature: "c2ln"}

		sig, err := NewSignature(fields, reg, CanonicalOptions{})
		require.NoError(t, err)
		assert.Equal(t, []string{"(request-target)", "host", "date", "digest", "content-type"}, sig.Headers)

		sig, err = NewSignature(fields, reg, CanonicalOptions{DateHeader: "X-Tesws-Date"})
		require.NoError(t, err)
		assert.Equal(t, []string{"(request-target)", "host", "x-tesws-date", "digest", "content-type"}, sig.Headers)
	})

	t.Run("explicit header list", func(t *testing.T) {
		fields := HeaderFields{KeyID: "k1", Algorithm: "SHA256withRSA/PSS", Headers: []string{"date"}, Signature: "c2ln"}

		sig, err := NewSignature(fields, reg, CanonicalOptions{})
		require.NoError(t, err)
		assert.Equal(t, []string{"date"}, sig.Headers)
		assert.Equal(t, RSASHA256PSS, sig.Algorithm.ID())
	})

	t.Run("all missing fields are reported", func(t *testing.T) {
		_, err := NewSignature(HeaderFields{}, reg, CanonicalOptions{})
		require.ErrorIs(t, err, ErrIncompleteSignature)
		assert.Contains(t, err.Error(), "keyId")
		assert.Contains(t, err.Error(), "algorithm")
		assert.Contains(t, err.Error(), "signature is missing")
	})

	t.Run("unsupported algorithm", func(t *testing.T) {
		_, err := NewSignature(HeaderFields{KeyID: "k1", Algorithm: "hmac-sha256", Signature: "c2ln"}, reg, CanonicalOptions{})
		assert.ErrorIs(t, err, ErrUnsupportedAlgorithm)
	})

	t.Run("invalid encoding", func(t *testing.T) {
		_, err := NewSignature(HeaderFields{KeyID: "k1", Algorithm: "rsa-sha256", Signature: "not base64!"}, reg, CanonicalOptions{})
		assert.ErrorIs(t, err, ErrInvalidSignatureEncoding)
	})
}

func TestSignatureHeaderRoundTrip(t *testing.T) {
	reg := NewRegistry()

	for _, alg := range reg.Algorithms() {
		t.Run(alg.PortableName(), func(t *testing.T) {
			sig := &Signature{
				KeyID:     "client-7",
				Algorithm: alg,
				Headers:   DefaultSignedHeaders(CanonicalOptions{}),
				Value:     "dGVzdCBzaWduYXR1cmU=",
			}

			value := sig.HeaderValue()
			assert.Equal(t, `keyId="client-7",algorithm="`+alg.PortableName()+
				`",headers="(request-target) host date digest content-type",signature="dGVzdCBzaWduYXR1cmU="`, value)

			fields, err := ParseHeader(value)
			require.NoError(t, err)

			parsed, err := NewSignature(fields, reg, CanonicalOptions{})
			require.NoError(t, err)
			assert.Equal(t, sig, parsed)
		})
	}
}

func TestSignatureHeaderRoundTripCustomHeaders(t *testing.T) {
	sig := &Signature{
		KeyID:     "k1",
		Algorithm: mustResolve(t, "rsa-sha256"),
		Headers:   []string{"date", RequestTarget},
		Value:     "c2ln",
	}

	fields, err := ParseHeader(sig.HeaderValue())
	require.NoError(t, err)

	parsed, err := NewSignature(fields, NewRegistry(), CanonicalOptions{})
	require.NoError(t, err)
	assert.Equal(t, sig, parsed)
}

func TestSignatureHeaderValueFieldOrder(t *testing.T) {
	sig := &Signature{
		KeyID:     "k1",
		Algorithm: mustResolve(t, "rsa-sha256"),
		Headers:   []string{RequestTarget, "host", "date"},
		Value:     "AAA==",
	}

	assert.Equal(t, `keyId="k1",algorithm="rsa-sha256",headers="(request-target) host date",signature="AAA=="`, sig.HeaderValue())
}

func TestSignatureHeaderValueWithoutHeaders(t *testing.T) {
	sig := &Signature{KeyID: "k1", Algorithm: mustResolve(t, "rsa-sha256"), Value: "AAA=="}

	assert.Equal(t, `keyId="k1",algorithm="rsa-sha256",signature="AAA=="`, sig.HeaderValue())
}

func TestCarrier(t *testing.T) {
	sig := &Signature{KeyID: "k1", Algorithm: mustResolve(t, "rsa-sha256"), Value: "c2ln"}

	assert.Equal(t, "Signature", CarrierSignature.HeaderName())
	assert.Equal(t, "Authorization", CarrierAuthorization.HeaderName())
	assert.Equal(t, sig.HeaderValue(), CarrierSignature.format(sig))
	assert.Equal(t, "Signature "+sig.HeaderValue(), CarrierAuthorization.format(sig))

	for name, want := range map[string]Carrier{"": CarrierSignature, "Signature": CarrierSignature, "AUTHORIZATION": CarrierAuthorization} {
		got, err := ParseCarrier(name)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := ParseCarrier("cookie")
	assert.Error(t, err)
}

func TestExtractSignatureHeader(t *testing.T) {
	grammar := `keyId="k1",algorithm="rsa-sha256",signature="c2ln"`

	tests := []struct {
		name    string
		header  http.Header
		want    string
		carrier Carrier
		found   bool
	}{
		{
			name:    "signature header",
			header:  http.Header{"Signature": {grammar}},
			want:    grammar,
			carrier: CarrierSignature,
			found:   true,
		},
		{
			name:    "authorization scheme",
			header:  http.Header{"Authorization": {"Signature " + grammar}},
			want:    grammar,
			carrier: CarrierAuthorization,
			found:   true,
		},
		{
			name:    "authorization scheme is case insensitive",
			header:  http.Header{"Authorization": {"signature  " + grammar}},
			want:    grammar,
			carrier: CarrierAuthorization,
			found:   true,
		},
		{
			name:    "second authorization value",
			header:  http.Header{"Authorization": {"Bearer abc", "SIGNATURE " + grammar}},
			want:    grammar,
			carrier: CarrierAuthorization,
			found:   true,
		},
		{
			name:    "signature header preferred",
			header:  http.Header{"Signature": {grammar}, "Authorization": {"Signature other"}},
			want:    grammar,
			carrier: CarrierSignature,
			found:   true,
		},
		{
			name:   "other scheme",
			header: http.Header{"Authorization": {"Bearer abc"}},
		},
		{
			name:   "scheme prefix without separator",
			header: http.Header{"Authorization": {"SignatureX abc"}},
		},
		{
			name:   "nothing",
			header: http.Header{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, carrier, found := extractSignatureHeader(tt.header)
			assert.Equal(t, tt.found, found)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.carrier, carrier)
		})
	}
}
