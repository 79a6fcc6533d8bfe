// Package web serves the student login page and its JSON API.
package web

import (
	"context"
	"embed"
	"errors"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/gaepo/sheetlogin/internal/ctxkey"
	"github.com/gaepo/sheetlogin/internal/domain/session"
	"github.com/gaepo/sheetlogin/internal/domain/table"
)

//go:embed templates/*.html
var templatesFS embed.FS

// DefaultTitle is the page heading when none is configured.
const DefaultTitle = "학생 정보 조회"

// User-facing messages.
const (
	msgInvalidCredentials   = "학번과 이름이 올바르지 않습니다."
	msgAlreadyAuthenticated = "이미 로그인되어 있습니다. 먼저 로그아웃해주세요."
	msgSourceUnavailable    = "Google 시트 데이터를 불러오는 데 실패했습니다. URL 또는 시트 권한을 확인해주세요."
	msgUnexpected           = "요청을 처리하지 못했습니다. 잠시 후 다시 시도해주세요."
)

// LoginService is the session-scoped login API the handler drives.
type LoginService interface {
	Start(ctx context.Context) (*session.Session, error)
	Get(ctx context.Context, id string) (*session.Session, error)
	Refresh(ctx context.Context, id string) error
	Available(ctx context.Context) error
	Login(ctx context.Context, id string, creds session.Credentials) (*session.Session, error)
	Logout(ctx context.Context, id string) (*session.Session, error)
}

// Handler renders the login page and the record view.
type Handler struct {
	svc          LoginService
	logger       *slog.Logger
	tmpl         *template.Template
	title        string
	nameColumn   string
	errorDetails bool
}

// Option configures a Handler.
type Option func(*Handler)

// WithTitle sets the page heading and document title.
func WithTitle(title string) Option {
	return func(h *Handler) {
		if title != "" {
			h.title = title
		}
	}
}

// WithNameColumn sets the column used for the greeting.
func WithNameColumn(column string) Option {
	return func(h *Handler) {
		h.nameColumn = table.NormalizeColumn(column)
	}
}

// WithErrorDetails shows the underlying error on the fatal page. Dev mode only.
func WithErrorDetails(enabled bool) Option {
	return func(h *Handler) {
		h.errorDetails = enabled
	}
}

// NewHandler creates the web handler.
func NewHandler(svc LoginService, logger *slog.Logger, opts ...Option) (*Handler, error) {
	tmpl, err := template.ParseFS(templatesFS, "templates/*.html")
	if err != nil {
		return nil, err
	}

	h := &Handler{
		svc:        svc,
		logger:     logger,
		tmpl:       tmpl,
		title:      DefaultTitle,
		nameColumn: "이름",
	}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

// Handler returns an http.Handler with all page and API routes.
func (h *Handler) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", h.index)
	mux.HandleFunc("POST /login", h.login)
	mux.HandleFunc("POST /logout", h.logout)

	mux.HandleFunc("GET /api/session", h.apiSession)
	mux.HandleFunc("POST /api/login", h.apiLogin)
	mux.HandleFunc("POST /api/logout", h.apiLogout)

	// CSRF runs before session resolution so forged posts never reach a session.
	return cspMiddleware(csrfMiddleware(h.sessionMiddleware(mux)))
}

// pageData is the template model for page.html.
type pageData struct {
	Title     string
	CSRFToken string

	Authenticated bool
	Greeting      string
	Columns       []string
	Values        []string

	Fatal   bool
	Error   string
	Detail  string
	Notice  string
	InputID string
}

// index renders the record view for an authenticated session and the login
// form otherwise. The form is only shown when the table can be loaded.
func (h *Handler) index(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r.Context())
	if sess != nil && sess.State.Authenticated() {
		h.render(w, r, http.StatusOK, h.recordPage(r, sess, ""))
		return
	}

	if err := h.svc.Available(r.Context()); err != nil {
		h.fail(w, r, err)
		return
	}
	h.render(w, r, http.StatusOK, h.formPage(r, "", ""))
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	sess, err := h.ensureSession(w, r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	creds := session.Credentials{
		ID:   r.PostFormValue("student_id"),
		Name: r.PostFormValue("student_name"),
	}

	updated, err := h.svc.Login(r.Context(), sess.ID, creds)
	switch {
	case err == nil:
		http.Redirect(w, r, "/", http.StatusSeeOther)
	case errors.Is(err, session.ErrInvalidCredentials):
		h.render(w, r, http.StatusUnauthorized, h.formPage(r, msgInvalidCredentials, creds.ID))
	case errors.Is(err, session.ErrAlreadyAuthenticated):
		h.render(w, r, http.StatusConflict, h.recordPage(r, updated, msgAlreadyAuthenticated))
	case errors.Is(err, session.ErrSessionNotFound):
		// Expired between resolution and login; start over with a fresh session.
		http.Redirect(w, r, "/", http.StatusSeeOther)
	default:
		h.fail(w, r, err)
	}
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r.Context())
	if sess == nil {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	if _, err := h.svc.Logout(r.Context(), sess.ID); err != nil && !errors.Is(err, session.ErrSessionNotFound) {
		h.fail(w, r, err)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (h *Handler) formPage(r *http.Request, errMsg, inputID string) pageData {
	return pageData{
		Title:     h.title,
		CSRFToken: csrfToken(r.Context()),
		Error:     errMsg,
		InputID:   inputID,
	}
}

func (h *Handler) recordPage(r *http.Request, sess *session.Session, notice string) pageData {
	data := pageData{
		Title:         h.title,
		CSRFToken:     csrfToken(r.Context()),
		Authenticated: true,
		Notice:        notice,
	}
	rec, ok := sess.State.ActiveRecord()
	if !ok {
		return data
	}
	data.Greeting = rec.Text(h.nameColumn)
	data.Columns = rec.Columns()
	for _, c := range data.Columns {
		data.Values = append(data.Values, rec.Text(c))
	}
	return data
}

// fail renders the fatal page. Every error that is not a recoverable login
// outcome ends up here with 503.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	logger := loggerFrom(r.Context(), h.logger)
	msg := msgSourceUnavailable
	if errors.Is(err, table.ErrSourceUnavailable) {
		logger.Error("table source unavailable", "error", err)
	} else {
		msg = msgUnexpected
		logger.Error("request failed", "error", err)
	}

	data := pageData{Title: h.title, Fatal: true, Error: msg}
	if h.errorDetails {
		data.Detail = err.Error()
	}
	h.render(w, r, http.StatusServiceUnavailable, data)
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, status int, data pageData) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := h.tmpl.ExecuteTemplate(w, "page", data); err != nil {
		loggerFrom(r.Context(), h.logger).Error("failed to render page", "error", err)
	}
}

// loggerFrom returns the request-scoped logger, or fallback outside the
// transport middleware.
func loggerFrom(ctx context.Context, fallback *slog.Logger) *slog.Logger {
	if logger, ok := ctx.Value(ctxkey.LoggerKey{}).(*slog.Logger); ok {
		return logger
	}
	return fallback
}
