package main

import (
	"crypto/rand"
	"crypto/rsa"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitalvas/cavage/config"
	"github.com/vitalvas/cavage/httpsig"
	"github.com/vitalvas/cavage/pki"
)

var testRSAKey = sync.OnceValue(func() *rsa.PrivateKey {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		panic(err)
	}

	return key
})

func testTarget(t *testing.T, keyID string) httpsig.OutboundTarget {
	t.Helper()

	alg, err := httpsig.DefaultRegistry().Resolve("rsa-sha256")
	require.NoError(t, err)

	return httpsig.OutboundTarget{
		KeyID:     keyID,
		Algorithm: alg,
		Keys:      pki.New(pki.WithPrivateKey(testRSAKey())),
		Policy:    httpsig.DefaultPolicy(),
	}
}

func testClient(keyID string) httpsig.InboundClient {
	return httpsig.InboundClient{
		KeyID:   keyID,
		Keys:    pki.New(pki.WithPublicKey(&testRSAKey().PublicKey)),
		Enabled: true,
	}
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()

	return &config.Config{
		Policy:  httpsig.DefaultPolicy(),
		Targets: map[string]httpsig.OutboundTarget{"upstream": testTarget(t, "proxy-1")},
		Clients: config.NewStore(testClient("k1")),
	}
}

func TestProxy(t *testing.T) {
	upstreamAuth := &httpsig.Authenticator{Store: config.NewStore(testClient("proxy-1")), Policy: httpsig.DefaultPolicy()}

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		res, err := upstreamAuth.Authenticate(r)
		if err != nil || !res.Verified() {
			w.WriteHeader(http.StatusForbidden)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("X-Upstream-Key-ID", res.KeyID())
		_, _ = io.Copy(w, r.Body)
	}))
	defer upstream.Close()

	logger, _ := test.NewNullLogger()

	reg := prometheus.NewRegistry()
	metrics, err := httpsig.NewMetrics(reg)
	require.NoError(t, err)

	handler, err := newProxyHandler(testConfig(t), config.Settings{
		Upstream:       upstream.URL,
		UpstreamTarget: "upstream",
		ResponseTarget: "upstream",
		Realm:          "sigproxy",
	}, logger, metrics)
	require.NoError(t, err)

	proxy := httptest.NewServer(handler)
	defer proxy.Close()

	client := &http.Client{Transport: httpsig.NewTransport(nil, testTarget(t, "k1"))}

	t.Run("signed request is re-signed and forwarded", func(t *testing.T) {
		req, err := http.NewRequest(http.MethodPost, proxy.URL+"/orders", strings.NewReader(`{"id":1}`))
		require.NoError(t, err)
		req.Header.Set("Content-Type", "application/json")

		resp, err := client.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)

		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "proxy-1", resp.Header.Get("X-Upstream-Key-ID"))
		assert.Equal(t, `{"id":1}`, string(body))
		assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))

		sig, err := httpsig.ResolveInbound(resp.Header, httpsig.DefaultRegistry(), httpsig.CanonicalOptions{})
		require.NoError(t, err)
		require.NotNil(t, sig)
		assert.Equal(t, "proxy-1", sig.KeyID)

		signingString, _, err := httpsig.BuildSigningString(sig.Headers, httpsig.NewResponseMessage(resp.Header, body), httpsig.CanonicalOptions{}, false)
		require.NoError(t, err)

		raw, err := sig.Bytes()
		require.NoError(t, err)
		assert.NoError(t, sig.Algorithm.Strategy().Verify([]byte(signingString), raw, &testRSAKey().PublicKey))
	})

	t.Run("unsigned request is challenged", func(t *testing.T) {
		resp, err := http.Get(proxy.URL + "/orders")
		require.NoError(t, err)
		resp.Body.Close()

		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		assert.Equal(t, `Signature realm="sigproxy"`, resp.Header.Get("WWW-Authenticate"))
	})

	t.Run("unknown key id is challenged", func(t *testing.T) {
		other := &http.Client{Transport: httpsig.NewTransport(nil, testTarget(t, "k9"))}

		resp, err := other.Get(proxy.URL + "/orders")
		require.NoError(t, err)
		resp.Body.Close()

		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})
}

func TestProxyPassThrough(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Inbound-Signature", r.Header.Get("Signature"))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer upstream.Close()

	logger, _ := test.NewNullLogger()

	handler, err := newProxyHandler(testConfig(t), config.Settings{Upstream: upstream.URL}, logger, nil)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "http://proxy.example.com/orders", nil)
	require.NoError(t, httpsig.SignRequest(req, testTarget(t, "k1")))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, req.Header.Get("Signature"), w.Header().Get("X-Inbound-Signature"))
	assert.Empty(t, w.Header().Get("Signature"))
}

func TestNewProxyHandlerErrors(t *testing.T) {
	logger, _ := test.NewNullLogger()

	_, err := newProxyHandler(testConfig(t), config.Settings{}, logger, nil)
	assert.Error(t, err)

	_, err = newProxyHandler(testConfig(t), config.Settings{Upstream: "http://127.0.0.1", UpstreamTarget: "missing"}, logger, nil)
	assert.Error(t, err)

	_, err = newProxyHandler(testConfig(t), config.Settings{Upstream: "http://127.0.0.1", ResponseTarget: "missing"}, logger, nil)
	assert.Error(t, err)
}

func TestStripSignature(t *testing.T) {
	h := http.Header{
		"Signature":     {`keyId="k1"`},
		"Authorization": {"Bearer abc", `signature keyId="k1"`},
	}

	stripSignature(h)
	assert.Empty(t, h.Get("Signature"))
	assert.Equal(t, []string{"Bearer abc"}, h.Values("Authorization"))

	h = http.Header{"Authorization": {`Signature keyId="k1"`}}
	stripSignature(h)
	assert.NotContains(t, h, "Authorization")
}
