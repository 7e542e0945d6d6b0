package main

import (
	"errors"
	"net/http"

	"github.com/vitalvas/cavage/httpsig"
)

var errInvalidMaxSize = errors.New("request size limit: max size must be greater than zero")

// requestSizeLimitMiddleware limits request bodies to maxBytes. A declared
// Content-Length over the limit is answered with 413 before the signature
// is looked at; other bodies are wrapped with http.MaxBytesReader and the
// verification middleware answers 413 once the limit is hit.
func requestSizeLimitMiddleware(maxBytes int64) (httpsig.MiddlewareFunc, error) {
	if maxBytes <= 0 {
		return nil, errInvalidMaxSize
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > maxBytes {
				http.Error(w, http.StatusText(http.StatusRequestEntityTooLarge), http.StatusRequestEntityTooLarge)
				return
			}

			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}, nil
}
