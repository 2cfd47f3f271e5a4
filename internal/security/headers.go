package security

import (
	"net/http"
	"strconv"
)

// Headers sets response headers for the register API. Settlement responses
// carry payment data, so nothing is cacheable.
type Headers struct {
	EnableHSTS bool
	HSTSMaxAge int
}

// Middleware attaches the headers to every response.
func (h Headers) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		headers := w.Header()
		headers.Set("X-Content-Type-Options", "nosniff")
		headers.Set("X-Frame-Options", "DENY")
		headers.Set("Referrer-Policy", "no-referrer")
		headers.Set("Cache-Control", "no-store")
		if h.EnableHSTS && r.TLS != nil {
			maxAge := h.HSTSMaxAge
			if maxAge <= 0 {
				maxAge = 31536000
			}
			headers.Set("Strict-Transport-Security", "max-age="+strconv.Itoa(maxAge))
		}
		next.ServeHTTP(w, r)
	})
}
