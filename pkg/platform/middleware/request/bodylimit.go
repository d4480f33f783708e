package request

import (
	"net/http"

	"tckt/pkg/platform/httputil"
	"tckt/pkg/platform/validation"
)

// BodyLimit caps request bodies at maxBytes. A body that declares a larger
// Content-Length is refused with invalid_input before next runs; anything
// else is read through http.MaxBytesReader so chunked uploads stop at the cap
// and surface as the same error from httputil.DecodeAndPrepare.
func BodyLimit(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > maxBytes {
				httputil.WriteError(w, validation.BodyTooLarge(maxBytes))
				return
			}
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}
