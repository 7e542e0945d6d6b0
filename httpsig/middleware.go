package httpsig

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// MiddlewareFunc wraps an http.Handler.
type MiddlewareFunc func(http.Handler) http.Handler

type resultKey struct{}

// ResultFromContext returns the verification result stored by Middleware.
func ResultFromContext(ctx context.Context) (Result, bool) {
	res, ok := ctx.Value(resultKey{}).(Result)
	return res, ok
}

// MiddlewareConfig configures the server-side signature verification
// middleware.
type MiddlewareConfig struct {
	// Authenticator verifies requests. Its Store is required.
	Authenticator *Authenticator

	// AllowUnsigned passes requests without any signature header through
	// to the next handler. Signed requests are still verified.
	AllowUnsigned bool

	// Realm is sent in the WWW-Authenticate challenge. Defaults to
	// "httpsig".
	Realm string

	// RequestIDHeader carries the request id. Defaults to "X-Request-ID".
	// An incoming id is reused; otherwise a UUIDv4 is generated.
	RequestIDHeader string

	// Logger receives rejections and faults. Defaults to the logrus
	// standard logger.
	Logger logrus.FieldLogger

	// Metrics, when set, counts verification outcomes.
	Metrics *Metrics

	// OnError is called for rejected requests. When nil, a 401 with a
	// Signature challenge and no body is sent.
	OnError func(w http.ResponseWriter, r *http.Request, res Result)
}

// Middleware returns a MiddlewareFunc that verifies draft-cavage HTTP
// signatures on incoming requests. Verified results are stored in the
// request context, see ResultFromContext.
//
// It returns ErrNoClientStore if the Authenticator or its Store is nil.
func Middleware(cfg MiddlewareConfig) (MiddlewareFunc, error) {
	if cfg.Authenticator == nil || cfg.Authenticator.Store == nil {
		return nil, ErrNoClientStore
	}

	realm := cfg.Realm
	if realm == "" {
		realm = "httpsig"
	}

	challenge := fmt.Sprintf("%s realm=%q", authorizationScheme, realm)

	headerName := cfg.RequestIDHeader
	if headerName == "" {
		headerName = "X-Request-ID"
	}

	logger := cfg.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	onError := cfg.OnError
	if onError == nil {
		onError = func(w http.ResponseWriter, _ *http.Request, _ Result) {
			w.Header().Set("WWW-Authenticate", challenge)
			w.WriteHeader(http.StatusUnauthorized)
		}
	}

	auth := cfg.Authenticator

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(headerName)
			if id == "" {
				id = uuid.New().String()
				r.Header.Set(headerName, id)
			}

			w.Header().Set(headerName, id)

			log := logger.WithFields(logrus.Fields{
				"request_id": id,
				"method":     r.Method,
				"path":       r.URL.Path,
			})

			res, err := auth.Authenticate(r)
			if errors.Is(err, ErrBodyTooLarge) {
				cfg.Metrics.observeVerification(StateRejected)
				log.WithField("key_id", res.KeyID()).Warn("request body too large")
				http.Error(w, http.StatusText(http.StatusRequestEntityTooLarge), http.StatusRequestEntityTooLarge)

				return
			}

			if err != nil {
				cfg.Metrics.observeFault()
				log.WithError(err).Error("signature verification fault")
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)

				return
			}

			cfg.Metrics.observeVerification(res.State)

			switch {
			case res.Verified():
				log.WithField("key_id", res.KeyID()).Debug("signature verified")
			case res.State == StateNoSignature && cfg.AllowUnsigned:
				log.Debug("unsigned request allowed")
			default:
				entry := log.WithFields(logrus.Fields{
					"key_id": res.KeyID(),
					"state":  res.State.String(),
				})
				if res.Reason != nil {
					entry = entry.WithField("reason", res.Reason.Error())
				}

				entry.Warn("signature rejected")
				onError(w, r, res)

				return
			}

			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), resultKey{}, res)))
		})
	}, nil
}
