package middleware

import "net/http"

// NoStore marks every response as uncacheable. Cart contents are per session
// and must never be served from a shared cache.
func NoStore(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		w.Header().Add("Vary", SessionHeader)
		next.ServeHTTP(w, r)
	})
}
