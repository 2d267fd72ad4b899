package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/nl2sql/nl2sql/internal/config"
)

const (
	corsAllowedMethods = "GET, POST, OPTIONS"
	corsAllowedHeaders = "Content-Type, Authorization"
	corsMaxAgeSeconds  = 3600
)

// CORSMiddleware allows credentialed requests from the configured origins. "*" allows any origin.
func CORSMiddleware(cfg config.CORSConfig) func(http.Handler) http.Handler {
	allowAll := false
	allowed := make(map[string]struct{}, len(cfg.AllowedOrigins))
	for _, origin := range cfg.AllowedOrigins {
		origin = strings.TrimRight(strings.TrimSpace(origin), "/")
		if origin == "*" {
			allowAll = true
			continue
		}
		if origin != "" {
			allowed[origin] = struct{}{}
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin == "" {
				next.ServeHTTP(w, r)
				return
			}
			w.Header().Add("Vary", "Origin")

			_, ok := allowed[origin]
			ok = ok || allowAll
			preflight := r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != ""

			if !ok {
				if preflight {
					writeError(r.Context(), w, http.StatusForbidden, "CORS_ORIGIN_DENIED", "origin is not allowed", false, map[string]any{"origin": origin})
					return
				}
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			if !preflight {
				next.ServeHTTP(w, r)
				return
			}
			if !corsMethodAllowed(r.Header.Get("Access-Control-Request-Method")) {
				writeError(r.Context(), w, http.StatusForbidden, "CORS_METHOD_DENIED", "method is not allowed", false, nil)
				return
			}
			w.Header().Add("Vary", "Access-Control-Request-Method")
			w.Header().Add("Vary", "Access-Control-Request-Headers")
			w.Header().Set("Access-Control-Allow-Methods", corsAllowedMethods)
			w.Header().Set("Access-Control-Allow-Headers", corsAllowedHeaders)
			w.Header().Set("Access-Control-Max-Age", strconv.Itoa(corsMaxAgeSeconds))
			w.WriteHeader(http.StatusNoContent)
		})
	}
}

func corsMethodAllowed(method string) bool {
	switch strings.ToUpper(strings.TrimSpace(method)) {
	case http.MethodGet, http.MethodPost, http.MethodOptions:
		return true
	default:
		return false
	}
}
