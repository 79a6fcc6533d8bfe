package web

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gaepo/sheetlogin/internal/domain/session"
)

// SessionCookieName holds the opaque session ID.
const SessionCookieName = "sheetlogin_session"

type sessionKey struct{}

// sessionMiddleware resolves the client's existing session from its cookie
// and extends its expiry. It never creates one: a request without a live
// session proceeds as anonymous, and login starts a session on demand.
func (h *Handler) sessionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, err := h.resolveSession(r)
		if err != nil {
			if strings.HasPrefix(r.URL.Path, "/api/") {
				h.apiFail(w, r, err)
			} else {
				h.fail(w, r, err)
			}
			return
		}
		if sess == nil {
			next.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), sessionKey{}, sess)))
	})
}

// resolveSession returns the live session named by the cookie, or nil when
// there is no cookie or the session is unknown or expired.
func (h *Handler) resolveSession(r *http.Request) (*session.Session, error) {
	c, err := r.Cookie(SessionCookieName)
	if err != nil || c.Value == "" {
		return nil, nil
	}

	ctx := r.Context()
	sess, err := h.svc.Get(ctx, c.Value)
	switch {
	case errors.Is(err, session.ErrSessionNotFound):
		return nil, nil
	case err != nil:
		return nil, err
	}
	if err := h.svc.Refresh(ctx, sess.ID); err != nil && !errors.Is(err, session.ErrSessionNotFound) {
		return nil, err
	}
	return sess, nil
}

// ensureSession returns the request's session, starting a new anonymous one
// and setting its cookie when there is none.
func (h *Handler) ensureSession(w http.ResponseWriter, r *http.Request) (*session.Session, error) {
	if sess := sessionFrom(r.Context()); sess != nil {
		return sess, nil
	}

	sess, err := h.svc.Start(r.Context())
	if err != nil {
		return nil, err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    sess.ID,
		Path:     "/",
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
	loggerFrom(r.Context(), h.logger).Debug("session started")
	return sess, nil
}

// sessionFrom returns the session resolved by sessionMiddleware, or nil for
// a client without a live session.
func sessionFrom(ctx context.Context) *session.Session {
	sess, _ := ctx.Value(sessionKey{}).(*session.Session)
	return sess
}
