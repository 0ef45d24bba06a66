package middleware

import (
	"net/http"
	"strconv"
	"strings"
)

// CORSConfig holds configuration for the CORS middleware.
type CORSConfig struct {
	// AllowedOrigins lists the origins storefront pages are served from.
	// "*" allows any origin.
	AllowedOrigins []string

	// AllowedMethods defaults to GET, POST, PUT, PATCH, DELETE, OPTIONS.
	AllowedMethods []string

	// AllowedHeaders defaults to the headers a storefront page sends,
	// including X-Session-ID.
	AllowedHeaders []string

	// ExposedHeaders lists response headers page scripts may read. The
	// session header must be exposed for a page to learn its issued ID.
	ExposedHeaders []string

	// MaxAge is the preflight cache lifetime in seconds. Defaults to 3600.
	MaxAge int

	AllowCredentials bool

	// Environment "development" allows any origin regardless of
	// AllowedOrigins.
	Environment string
}

var (
	defaultCORSMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	defaultCORSHeaders = []string{"Accept", "Authorization", "Content-Type", CorrelationHeader, SessionHeader}
)

// DefaultCORSConfig allows any origin and the headers the storefront page
// sends. Only suitable for development.
func DefaultCORSConfig() CORSConfig {
	return CORSConfig{
		AllowedOrigins: []string{"*"},
		AllowedMethods: defaultCORSMethods,
		AllowedHeaders: defaultCORSHeaders,
		ExposedHeaders: []string{CorrelationHeader, SessionHeader},
		MaxAge:         3600,
		Environment:    "development",
	}
}

// corsPolicy is a CORSConfig with its header values rendered once.
type corsPolicy struct {
	anyOrigin   bool
	origins     map[string]struct{}
	credentials bool
	methods     string
	headers     string
	exposed     string
	maxAge      string
}

func newCORSPolicy(cfg CORSConfig) corsPolicy {
	if len(cfg.AllowedMethods) == 0 {
		cfg.AllowedMethods = defaultCORSMethods
	}
	if len(cfg.AllowedHeaders) == 0 {
		cfg.AllowedHeaders = defaultCORSHeaders
	}
	if cfg.MaxAge == 0 {
		cfg.MaxAge = 3600
	}

	p := corsPolicy{
		anyOrigin:   cfg.Environment == "development",
		origins:     make(map[string]struct{}, len(cfg.AllowedOrigins)),
		credentials: cfg.AllowCredentials,
		methods:     strings.Join(cfg.AllowedMethods, ", "),
		headers:     strings.Join(cfg.AllowedHeaders, ", "),
		exposed:     strings.Join(cfg.ExposedHeaders, ", "),
		maxAge:      strconv.Itoa(cfg.MaxAge),
	}
	for _, o := range cfg.AllowedOrigins {
		if o == "*" {
			p.anyOrigin = true
			continue
		}
		p.origins[strings.TrimRight(o, "/")] = struct{}{}
	}
	return p
}

// allowOrigin returns the Access-Control-Allow-Origin value for origin and
// whether the value depends on the request. A wildcard is never combined
// with credentials; the origin is reflected instead.
func (p corsPolicy) allowOrigin(origin string) (value string, varies bool) {
	if p.anyOrigin {
		if p.credentials && origin != "" {
			return origin, true
		}
		return "*", false
	}
	if _, ok := p.origins[origin]; ok && origin != "" {
		return origin, true
	}
	return "", false
}

// CORS sets the Access-Control headers and answers preflight requests
// without reaching the wrapped handler.
func CORS(cfg CORSConfig) func(http.Handler) http.Handler {
	p := newCORSPolicy(cfg)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()

			if value, varies := p.allowOrigin(r.Header.Get("Origin")); value != "" {
				h.Set("Access-Control-Allow-Origin", value)
				if varies {
					h.Add("Vary", "Origin")
				}
			}
			h.Set("Access-Control-Allow-Methods", p.methods)
			h.Set("Access-Control-Allow-Headers", p.headers)
			if p.exposed != "" {
				h.Set("Access-Control-Expose-Headers", p.exposed)
			}
			h.Set("Access-Control-Max-Age", p.maxAge)
			if p.credentials {
				h.Set("Access-Control-Allow-Credentials", "true")
			}

			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
