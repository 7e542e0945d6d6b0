package httpsig

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vitalvas/cavage/pki"
)

var testRSAKey = sync.OnceValue(func() *rsa.PrivateKey {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		panic(err)
	}

	return key
})

func selfSignedCert(t *testing.T) *x509.Certificate {
	t.Helper()

	key := testRSAKey()
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "k1"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
	}

	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	require.NoError(t, err)

	cert, err := x509.ParseCertificate(der)
	require.NoError(t, err)

	return cert
}

func mustResolve(t *testing.T, name string) Algorithm {
	t.Helper()

	alg, err := DefaultRegistry().Resolve(name)
	require.NoError(t, err)

	return alg
}

func testTarget(t *testing.T, alg string) OutboundTarget {
	t.Helper()

	return OutboundTarget{
		KeyID:     "k1",
		Algorithm: mustResolve(t, alg),
		Keys:      pki.New(pki.WithPrivateKey(testRSAKey())),
		Policy:    DefaultPolicy(),
	}
}

func testClient(t *testing.T, alg string) InboundClient {
	t.Helper()

	return InboundClient{
		KeyID:     "k1",
		Algorithm: mustResolve(t, alg),
		Keys:      pki.New(pki.WithPublicKey(&testRSAKey().PublicKey)),
		Enabled:   true,
	}
}

func storeOf(clients ...InboundClient) ClientStore {
	return ClientStoreFunc(func(_ context.Context, keyID string) (InboundClient, error) {
		for _, c := range clients {
			if c.KeyID == keyID {
				return c, nil
			}
		}

		return InboundClient{}, ErrUnknownKeyID
	})
}
