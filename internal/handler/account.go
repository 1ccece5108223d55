package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"unicode"

	"github.com/sakif/companyblog/internal/apperror"
	"github.com/sakif/companyblog/internal/auth"
	"github.com/sakif/companyblog/internal/form"
	"github.com/sakif/companyblog/internal/picture"
	"github.com/sakif/companyblog/internal/service"
)

// Flash messages shown after a successful action.
const (
	FlashRegistered    = "Thanks for registering! Now you can login!"
	FlashLoggedIn      = "Logged in successfully."
	FlashAccountUpdate = "User Account Updated!"
	FlashGitHubLinked  = "GitHub account connected."
)

// AccountHandler serves registration, login, logout and the account page.
//
// DEPENDENCY CHAIN:
//   - accounts *service.AccountService → registration, credentials, updates
//   - sessions *auth.SessionManager    → session cookie
//   - pictures picture.Store           → profile picture URLs
//   - render / errors                  → pages
type AccountHandler struct {
	accounts      *service.AccountService
	sessions      *auth.SessionManager
	pictures      picture.Store
	render        *Renderer
	errors        *ErrorPages
	maxUpload     int64
	githubEnabled bool
	logger        *slog.Logger
}

// AccountHandlerConfig holds the non-dependency settings of AccountHandler.
type AccountHandlerConfig struct {
	MaxUploadBytes int64
	GitHubEnabled  bool
}

func NewAccountHandler(
	accounts *service.AccountService,
	sessions *auth.SessionManager,
	pictures picture.Store,
	render *Renderer,
	errorPages *ErrorPages,
	cfg AccountHandlerConfig,
	logger *slog.Logger,
) *AccountHandler {
	return &AccountHandler{
		accounts:      accounts,
		sessions:      sessions,
		pictures:      pictures,
		render:        render,
		errors:        errorPages,
		maxUpload:     cfg.MaxUploadBytes,
		githubEnabled: cfg.GitHubEnabled,
		logger:        logger,
	}
}

// =========================================================================
// REGISTER
// =========================================================================

// HandleRegisterPage shows an empty registration form.
//
// HTTP: GET /register
func (h *AccountHandler) HandleRegisterPage(w http.ResponseWriter, r *http.Request) {
	h.render.Render(w, r, http.StatusOK, pageRegister, View{Form: form.RegistrationForm{}})
}

// HandleRegister creates an account.
//
// HTTP: POST /register
//
// Success → flash + 303 to /login. Invalid input or a taken email/username
// → the form again with messages, status 200, nothing stored.
func (h *AccountHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	f := form.ParseRegistration(r)

	if _, err := h.accounts.Register(r.Context(), f); err != nil {
		var errs form.Errors
		if errors.As(err, &errs) {
			h.render.Render(w, r, http.StatusOK, pageRegister, View{Form: f, Errors: errs})
			return
		}
		h.errors.Error(w, r, err)
		return
	}

	addFlash(w, r, FlashRegistered)
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

// =========================================================================
// LOGIN / LOGOUT
// =========================================================================

// HandleLoginPage shows the login form, carrying ?next= through.
//
// HTTP: GET /login?next=/account
func (h *AccountHandler) HandleLoginPage(w http.ResponseWriter, r *http.Request) {
	h.render.Render(w, r, http.StatusOK, pageLogin, View{
		Form:          form.LoginForm{},
		Next:          r.URL.Query().Get("next"),
		GitHubEnabled: h.githubEnabled,
	})
}

// HandleLogin checks the credentials and starts a session.
//
// HTTP: POST /login?next=/account
//
// On success it redirects to ?next= when that is a local path, otherwise to
// the front page. On failure the form is shown again with one generic
// message and no cookie is set.
func (h *AccountHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	f := form.ParseLogin(r)
	next := r.URL.Query().Get("next")

	user, err := h.accounts.Authenticate(r.Context(), f)
	if err != nil {
		var errs form.Errors
		switch {
		case errors.As(err, &errs):
		case errors.Is(err, apperror.ErrInvalidCredentials):
			errs = form.Errors{"credentials": {err.Error()}}
		default:
			h.errors.Error(w, r, err)
			return
		}
		h.render.Render(w, r, http.StatusOK, pageLogin, View{
			Form:          form.LoginForm{Email: f.Email},
			Errors:        errs,
			Next:          next,
			GitHubEnabled: h.githubEnabled,
		})
		return
	}

	if err := h.sessions.Login(w, user.ID); err != nil {
		h.errors.Error(w, r, err)
		return
	}

	h.logger.Info("user logged in", slog.String("userID", user.ID))
	addFlash(w, r, FlashLoggedIn)
	http.Redirect(w, r, safeNext(next), http.StatusSeeOther)
}

// HandleLogout ends the session. It works with or without one.
//
// HTTP: GET /logout
func (h *AccountHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	h.sessions.Logout(w)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// safeNext returns next if it is a path on this site, otherwise "/".
//
// OPEN REDIRECT:
// Without this check, /login?next=https://evil.example would bounce a
// freshly logged-in user to an attacker's page. Only paths starting with a
// single "/" pass. "//evil.example" and "/\evil.example" are rejected because
// browsers treat both as protocol-relative URLs, and so are control
// characters, which browsers strip before parsing.
func safeNext(next string) string {
	if next == "" || next[0] != '/' {
		return "/"
	}
	if len(next) > 1 && (next[1] == '/' || next[1] == '\\') {
		return "/"
	}
	if strings.ContainsFunc(next, unicode.IsControl) {
		return "/"
	}
	u, err := url.Parse(next)
	if err != nil || u.Scheme != "" || u.Host != "" {
		return "/"
	}
	return next
}

// =========================================================================
// ACCOUNT
// =========================================================================

// HandleAccountPage shows the current user's profile, pre-filled.
//
// HTTP: GET /account (login required)
func (h *AccountHandler) HandleAccountPage(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		http.Redirect(w, r, auth.LoginURL(r.URL.RequestURI()), http.StatusSeeOther)
		return
	}

	h.render.Render(w, r, http.StatusOK, pageAccount, View{
		Form:          form.AccountForm{Username: user.Username, Email: user.Email},
		ProfileImage:  h.pictures.URL(user.ProfileImage),
		GitHubEnabled: h.githubEnabled,
	})
}

// HandleUpdateAccount saves the account form, including an optional picture.
//
// HTTP: POST /account (login required, multipart/form-data)
//
// The body is capped at the configured upload size. An oversized upload is
// reported on the picture field like any other validation problem.
func (h *AccountHandler) HandleUpdateAccount(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		http.Redirect(w, r, auth.LoginURL(r.URL.RequestURI()), http.StatusSeeOther)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	if err := r.ParseMultipartForm(h.maxUpload); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		var tooLarge *http.MaxBytesError
		if !errors.As(err, &tooLarge) {
			h.errors.Error(w, r, err)
			return
		}
		h.render.Render(w, r, http.StatusOK, pageAccount, View{
			Form:          form.AccountForm{Username: user.Username, Email: user.Email},
			Errors:        form.Errors{"picture": {"File is too large."}},
			ProfileImage:  h.pictures.URL(user.ProfileImage),
			GitHubEnabled: h.githubEnabled,
		})
		return
	}
	if r.MultipartForm != nil {
		defer r.MultipartForm.RemoveAll()
	}

	f := form.ParseAccount(r)
	if err := h.accounts.UpdateAccount(r.Context(), user, f); err != nil {
		var errs form.Errors
		if errors.As(err, &errs) {
			h.render.Render(w, r, http.StatusOK, pageAccount, View{
				Form:          form.AccountForm{Username: f.Username, Email: f.Email},
				Errors:        errs,
				ProfileImage:  h.pictures.URL(user.ProfileImage),
				GitHubEnabled: h.githubEnabled,
			})
			return
		}
		h.errors.Error(w, r, err)
		return
	}

	addFlash(w, r, FlashAccountUpdate)
	http.Redirect(w, r, "/account", http.StatusSeeOther)
}
