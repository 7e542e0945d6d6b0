package main

import (
	"math"
	"net/http"
	"strconv"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/vitalvas/cavage/httpsig"
)

// keyLimiters holds one token bucket per verified key id. Key ids come
// from the configured client store, so the map stays bounded.
type keyLimiters struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	limit    rate.Limit
	burst    int
}

func (k *keyLimiters) get(keyID string) *rate.Limiter {
	k.mu.Lock()
	defer k.mu.Unlock()

	l, ok := k.limiters[keyID]
	if !ok {
		l = rate.NewLimiter(k.limit, k.burst)
		k.limiters[keyID] = l
	}

	return l
}

// rateLimitMiddleware limits verified requests per key id. It must run
// after the verification middleware; requests without a verified result
// pass through.
func rateLimitMiddleware(rps float64, burst int, logger logrus.FieldLogger) httpsig.MiddlewareFunc {
	store := &keyLimiters{
		limiters: make(map[string]*rate.Limiter),
		limit:    rate.Limit(rps),
		burst:    burst,
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			res, ok := httpsig.ResultFromContext(r.Context())
			if !ok || !res.Verified() {
				next.ServeHTTP(w, r)
				return
			}

			limiter := store.get(res.KeyID())

			if !limiter.Allow() {
				reservation := limiter.Reserve()
				retryAfter := int(math.Ceil(reservation.Delay().Seconds()))
				reservation.Cancel()

				logger.WithFields(logrus.Fields{
					"key_id":      res.KeyID(),
					"retry_after": retryAfter,
				}).Debug("rate limit exceeded")

				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
				w.WriteHeader(http.StatusTooManyRequests)

				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
