package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gaepo/sheetlogin/internal/domain/session"
	"github.com/gaepo/sheetlogin/internal/domain/table"
)

// LoginRequest is the JSON body of POST /api/login.
type LoginRequest struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// SessionResponse describes the caller's session. Columns keeps table order
// since Record is a JSON object.
type SessionResponse struct {
	Authenticated bool           `json:"authenticated"`
	Columns       []string       `json:"columns,omitempty"`
	Record        map[string]any `json:"record,omitempty"`
}

func newSessionResponse(sess *session.Session) SessionResponse {
	if sess == nil {
		return SessionResponse{}
	}
	rec, ok := sess.State.ActiveRecord()
	if !ok {
		return SessionResponse{}
	}
	resp := SessionResponse{
		Authenticated: true,
		Columns:       rec.Columns(),
		Record:        make(map[string]any, len(rec.Columns())),
	}
	for _, c := range resp.Columns {
		v, _ := rec.Get(c)
		resp.Record[c] = v
	}
	return resp
}

func (h *Handler) apiSession(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, r, http.StatusOK, newSessionResponse(sessionFrom(r.Context())))
}

func (h *Handler) apiLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, r, http.StatusBadRequest, "invalid JSON")
		return
	}

	sess, err := h.ensureSession(w, r)
	if err != nil {
		h.apiFail(w, r, err)
		return
	}
	updated, err := h.svc.Login(r.Context(), sess.ID, session.Credentials{ID: req.ID, Name: req.Name})
	switch {
	case err == nil:
		h.respondJSON(w, r, http.StatusOK, newSessionResponse(updated))
	case errors.Is(err, session.ErrInvalidCredentials):
		h.respondError(w, r, http.StatusUnauthorized, "invalid credentials")
	case errors.Is(err, session.ErrAlreadyAuthenticated):
		h.respondError(w, r, http.StatusConflict, "already authenticated; log out first")
	case errors.Is(err, session.ErrSessionNotFound):
		h.respondError(w, r, http.StatusUnauthorized, "session expired")
	default:
		h.apiFail(w, r, err)
	}
}

func (h *Handler) apiLogout(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r.Context())
	if sess == nil {
		h.respondJSON(w, r, http.StatusOK, SessionResponse{})
		return
	}
	updated, err := h.svc.Logout(r.Context(), sess.ID)
	switch {
	case err == nil:
		h.respondJSON(w, r, http.StatusOK, newSessionResponse(updated))
	case errors.Is(err, session.ErrSessionNotFound):
		h.respondJSON(w, r, http.StatusOK, SessionResponse{})
	default:
		h.apiFail(w, r, err)
	}
}

func (h *Handler) apiFail(w http.ResponseWriter, r *http.Request, err error) {
	logger := loggerFrom(r.Context(), h.logger)
	if errors.Is(err, table.ErrSourceUnavailable) {
		logger.Error("table source unavailable", "error", err)
		h.respondError(w, r, http.StatusServiceUnavailable, "source unavailable")
		return
	}
	logger.Error("request failed", "error", err)
	h.respondError(w, r, http.StatusServiceUnavailable, "internal error")
}

// --- JSON helper methods ---

// respondJSON writes a JSON response with the given status code and data.
func (h *Handler) respondJSON(w http.ResponseWriter, r *http.Request, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		loggerFrom(r.Context(), h.logger).Error("failed to encode JSON response", "error", err)
	}
}

// respondError writes a JSON error response with the given status code and message.
func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, status int, message string) {
	h.respondJSON(w, r, status, map[string]string{"error": message})
}
