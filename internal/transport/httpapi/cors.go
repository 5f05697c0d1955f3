package httpapi

import (
	"net/http"
	"slices"
	"strconv"
	"time"
)

const (
	corsMethods = "GET, OPTIONS"
	corsHeaders = "Content-Type"
	corsMaxAge  = 10 * time.Minute
)

// CORS returns middleware that lets browser UIs on other origins read the
// API. An empty list (or one containing "*") allows any origin; otherwise a
// matching Origin is echoed back and others get no CORS headers. Headers are
// set before next runs so error responses carry them too.
func CORS(origins []string) func(http.Handler) http.Handler {
	open := len(origins) == 0 || slices.Contains(origins, "*")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			origin := r.Header.Get("Origin")

			switch {
			case open:
				h.Set("Access-Control-Allow-Origin", "*")
			case origin != "" && slices.Contains(origins, origin):
				h.Set("Access-Control-Allow-Origin", origin)
				h.Add("Vary", "Origin")
			default:
				h.Add("Vary", "Origin")
				if r.Method == http.MethodOptions {
					w.WriteHeader(http.StatusForbidden)
					return
				}
				next.ServeHTTP(w, r)
				return
			}

			if r.Method == http.MethodOptions {
				h.Set("Access-Control-Allow-Methods", corsMethods)
				h.Set("Access-Control-Allow-Headers", corsHeaders)
				h.Set("Access-Control-Max-Age", strconv.Itoa(int(corsMaxAge.Seconds())))
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
