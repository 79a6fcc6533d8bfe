package web

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"strings"
)

// CSRFCookieName is the double-submit cookie checked on state-changing requests.
const CSRFCookieName = "sheetlogin_csrf"

// maxFormSize bounds POST bodies. A login form is two short fields.
const maxFormSize = 64 << 10

type csrfKey struct{}

// cspMiddleware sets Content Security Policy and related security headers on all responses.
func cspMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Security-Policy",
			"default-src 'self'; script-src 'none'; style-src 'self' 'unsafe-inline'; "+
				"img-src 'self' data:; frame-ancestors 'none'; form-action 'self'")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "same-origin")
		w.Header().Set("Cache-Control", "no-store")

		next.ServeHTTP(w, r)
	})
}

// csrfMiddleware provides Cross-Site Request Forgery protection.
//
// On safe methods (GET, HEAD, OPTIONS) it sets the token cookie if missing.
// On every other method the X-CSRF-Token header, or the csrf_token form field
// when the header is absent, must match the cookie. Mismatches get 403.
// The token is available to handlers through csrfToken.
func csrfMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method := r.Method

		if method == http.MethodGet || method == http.MethodHead || method == http.MethodOptions {
			token := ensureCSRFCookie(w, r)
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), csrfKey{}, token)))
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, maxFormSize)

		cookie, err := r.Cookie(CSRFCookieName)
		if err != nil || cookie.Value == "" {
			csrfFailed(w, r)
			return
		}

		token := r.Header.Get("X-CSRF-Token")
		if token == "" {
			// Only form bodies are parsed here; JSON bodies are left for the handler.
			token = r.PostFormValue("csrf_token")
		}
		if token == "" || token != cookie.Value {
			csrfFailed(w, r)
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), csrfKey{}, cookie.Value)))
	})
}

func csrfFailed(w http.ResponseWriter, r *http.Request) {
	if strings.HasPrefix(r.URL.Path, "/api/") {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":"CSRF token invalid"}` + "\n"))
		return
	}
	http.Error(w, "CSRF token invalid. Reload the page and try again.", http.StatusForbidden)
}

// ensureCSRFCookie returns the request's CSRF token, setting a new cookie
// when there is none. The cookie is readable by scripts so API clients can
// echo it in the X-CSRF-Token header.
func ensureCSRFCookie(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(CSRFCookieName); err == nil && c.Value != "" {
		return c.Value
	}

	token := generateCSRFToken()
	http.SetCookie(w, &http.Cookie{
		Name:     CSRFCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: false, // JS must read this to send as header
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteStrictMode,
	})
	return token
}

// csrfToken returns the token stored by csrfMiddleware.
func csrfToken(ctx context.Context) string {
	token, _ := ctx.Value(csrfKey{}).(string)
	return token
}

// generateCSRFToken returns a cryptographically random 32-byte hex-encoded string.
func generateCSRFToken() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		// crypto/rand.Read does not fail on supported platforms.
		return strings.Repeat("0", 64)
	}
	return hex.EncodeToString(b)
}
