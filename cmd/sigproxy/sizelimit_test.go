package main

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitalvas/cavage/config"
	"github.com/vitalvas/cavage/httpsig"
)

func TestRequestSizeLimitMiddleware(t *testing.T) {
	t.Run("config validation", func(t *testing.T) {
		for _, maxBytes := range []int64{0, -1} {
			_, err := requestSizeLimitMiddleware(maxBytes)
			assert.ErrorIs(t, err, errInvalidMaxSize)
		}
	})

	tests := []struct {
		name            string
		maxBytes        int64
		body            string
		wantCode        int
		wantHandlerCall bool
	}{
		{"body within limit", 1024, "hello", http.StatusNoContent, true},
		{"body exactly at limit", 5, "hello", http.StatusNoContent, true},
		{"declared length over limit", 4, "hello", http.StatusRequestEntityTooLarge, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mw, err := requestSizeLimitMiddleware(tt.maxBytes)
			require.NoError(t, err)

			called := false
			h := mw(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				called = true
				w.WriteHeader(http.StatusNoContent)
			}))

			w := httptest.NewRecorder()
			h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body)))

			assert.Equal(t, tt.wantCode, w.Code)
			assert.Equal(t, tt.wantHandlerCall, called)
		})
	}
}

func TestProxyBodyLimit(t *testing.T) {
	var hits atomic.Int32

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer upstream.Close()

	newHandler := func(t *testing.T) (http.Handler, *prometheus.Registry) {
		t.Helper()

		logger, _ := test.NewNullLogger()

		reg := prometheus.NewRegistry()
		metrics, err := httpsig.NewMetrics(reg)
		require.NoError(t, err)

		handler, err := newProxyHandler(testConfig(t), config.Settings{
			Upstream:     upstream.URL,
			MaxBodyBytes: 4,
		}, logger, metrics)
		require.NoError(t, err)

		return handler, reg
	}

	signedPost := func(t *testing.T) *http.Request {
		t.Helper()

		req := httptest.NewRequest(http.MethodPost, "http://proxy.example.com/orders", strings.NewReader(`{"id":1}`))
		req.Header.Set("Content-Type", "application/json")
		require.NoError(t, httpsig.SignRequest(req, testTarget(t, "k1")))

		return req
	}

	t.Run("declared length is refused before verification", func(t *testing.T) {
		handler, reg := newHandler(t)

		w := httptest.NewRecorder()
		handler.ServeHTTP(w, signedPost(t))

		assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
		assert.Empty(t, w.Header().Get("X-Request-ID"))
		assert.Zero(t, hits.Load())

		families, err := reg.Gather()
		require.NoError(t, err)

		for _, mf := range families {
			assert.NotEqual(t, "httpsig_verifications_total", mf.GetName())
		}
	})

	t.Run("unknown length is cut off by the verifier", func(t *testing.T) {
		handler, _ := newHandler(t)

		req := signedPost(t)
		req.ContentLength = -1

		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
		assert.Zero(t, hits.Load())
	})
}
