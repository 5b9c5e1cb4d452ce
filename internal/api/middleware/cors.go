package middleware

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// ErrCORSRejected marks a request whose Origin is not on the allowlist
var ErrCORSRejected = errors.New("origin not allowed")

const (
	corsDefaultHeaders = "Content-Type, Accept, X-Requested-With"
	corsMaxAge         = 600 // seconds
)

// CORSRejectionRecorder counts rejected origins
type CORSRejectionRecorder interface {
	CORSRejected()
}

// CORS gates cross-origin requests against a fixed allowlist.
// Requests without an Origin pass untouched, unknown origins get a 403 and never reach
// routing, and preflights terminate here with 204. Header emission is left to go-chi/cors.
func CORS(allowlist []string, recorder CORSRejectionRecorder) func(http.Handler) http.Handler {
	allowed := make(map[string]struct{}, len(allowlist))
	for _, origin := range allowlist {
		allowed[origin] = struct{}{}
	}
	isAllowed := func(origin string) bool {
		_, ok := allowed[origin]
		return ok
	}

	headers := cors.Handler(cors.Options{
		AllowOriginFunc:    func(_ *http.Request, origin string) bool { return isAllowed(origin) },
		AllowedMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:     []string{"*"},
		AllowCredentials:   true,
		MaxAge:             corsMaxAge,
		OptionsPassthrough: true,
	})

	return func(next http.Handler) http.Handler {
		inner := headers(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}
			h := w.Header()
			if h.Get("Access-Control-Allow-Origin") != "" && h.Get("Access-Control-Allow-Headers") == "" {
				h.Set("Access-Control-Allow-Headers", corsDefaultHeaders)
			}
			w.WriteHeader(http.StatusNoContent)
		}))

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin != "" && !isAllowed(origin) {
				if recorder != nil {
					recorder.CORSRejected()
				}
				slog.Warn("cors rejected",
					"error", ErrCORSRejected,
					"origin", origin,
					"method", r.Method,
					"path", r.URL.Path,
					"request_id", chimw.GetReqID(r.Context()),
				)
				w.Header().Add("Vary", "Origin")
				writeCORSRejection(w)
				return
			}
			inner.ServeHTTP(w, r)
		})
	}
}

// writeCORSRejection answers without naming any allowed origin
func writeCORSRejection(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusForbidden)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": "Not allowed by CORS"})
}
