// Package shield holds the HTTP middleware every pagemap listener runs:
// security headers, request body caps and HEAD handling.
//
//	r := chi.NewRouter()
//	for _, mw := range shield.APIStack(10 << 20) {
//	    r.Use(mw)
//	}
package shield

import "net/http"

// APIStack returns the standard middleware for the JSON API, outermost
// first: HeadToGet, SecurityHeaders(DefaultHeaders()), MaxBody(maxBody).
func APIStack(maxBody int64) []func(http.Handler) http.Handler {
	return []func(http.Handler) http.Handler{
		HeadToGet,
		SecurityHeaders(DefaultHeaders()),
		MaxBody(maxBody),
	}
}

// HeaderConfig lists the security headers set on every response. Empty
// fields are not sent.
type HeaderConfig struct {
	CSP                 string
	XFrameOptions       string
	XContentTypeOptions string
	ReferrerPolicy      string
}

// DefaultHeaders forbids every subresource except inline styles, which the
// snapshot view uses, and forbids framing.
func DefaultHeaders() HeaderConfig {
	return HeaderConfig{
		CSP:                 "default-src 'none'; style-src 'unsafe-inline'; frame-ancestors 'none'",
		XFrameOptions:       "DENY",
		XContentTypeOptions: "nosniff",
		ReferrerPolicy:      "no-referrer",
	}
}

// SecurityHeaders sets cfg's headers before calling next.
func SecurityHeaders(cfg HeaderConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			set := func(k, v string) {
				if v != "" {
					h.Set(k, v)
				}
			}
			set("Content-Security-Policy", cfg.CSP)
			set("X-Frame-Options", cfg.XFrameOptions)
			set("X-Content-Type-Options", cfg.XContentTypeOptions)
			set("Referrer-Policy", cfg.ReferrerPolicy)
			next.ServeHTTP(w, r)
		})
	}
}

// MaxBody caps request bodies at maxBytes. Reads past the cap fail.
func MaxBody(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Body != nil {
				r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			}
			next.ServeHTTP(w, r)
		})
	}
}

// HeadToGet serves HEAD requests with the GET routes; net/http drops the body.
func HeadToGet(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			r.Method = http.MethodGet
		}
		next.ServeHTTP(w, r)
	})
}
