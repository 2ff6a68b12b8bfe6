package middleware

import "net/http"

// SkipWebSocket пропускает upgrade запросы мимо mw. Нужна для middleware,
// которые подменяют ResponseWriter, например сжатия.
func SkipWebSocket(mw func(http.Handler) http.Handler) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		wrapped := mw(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isWebSocketUpgrade(r) {
				next.ServeHTTP(w, r)
				return
			}
			wrapped.ServeHTTP(w, r)
		})
	}
}
