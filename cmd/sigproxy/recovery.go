package main

import (
	"net/http"
	"runtime/debug"

	"github.com/sirupsen/logrus"

	"github.com/vitalvas/cavage/httpsig"
)

// recoveryMiddleware answers a panicking handler with 500 and logs the
// panic value with its stack.
func recoveryMiddleware(logger logrus.FieldLogger) httpsig.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if v := recover(); v != nil {
					if v == http.ErrAbortHandler {
						panic(v)
					}

					logger.WithFields(logrus.Fields{
						"method": r.Method,
						"path":   r.URL.Path,
						"panic":  v,
						"stack":  string(debug.Stack()),
					}).Error("handler panicked")

					http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
