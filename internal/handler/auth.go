package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/sakif/companyblog/internal/apperror"
	"github.com/sakif/companyblog/internal/auth"
	"github.com/sakif/companyblog/internal/model"
	"github.com/sakif/companyblog/internal/service"
)

// GitHubExchanger is the OAuth side of GitHub sign-in; *auth.GitHubProvider
// implements it.
type GitHubExchanger interface {
	AuthURL(state string) string
	Exchange(ctx context.Context, code string) (*auth.GitHubUser, error)
}

// GitHubHandler runs the optional "Sign in with GitHub" flow.
//
// HANDLER RESPONSIBILITIES:
//   - HandleLogin    → redirect the browser to GitHub's authorization page
//   - HandleCallback → check state, exchange the code, resolve the account,
//     start a normal session; for a signed-in user, connect GitHub to
//     their account instead
type GitHubHandler struct {
	github   GitHubExchanger
	accounts *service.AccountService
	sessions *auth.SessionManager
	errors   *ErrorPages
	secure   bool
	logger   *slog.Logger
}

func NewGitHubHandler(
	github GitHubExchanger,
	accounts *service.AccountService,
	sessions *auth.SessionManager,
	errorPages *ErrorPages,
	secureCookies bool,
	logger *slog.Logger,
) *GitHubHandler {
	return &GitHubHandler{
		github:   github,
		accounts: accounts,
		sessions: sessions,
		errors:   errorPages,
		secure:   secureCookies,
		logger:   logger,
	}
}

// HandleLogin redirects to GitHub with a fresh state stored in a cookie.
//
// HTTP: GET /auth/github/login
func (h *GitHubHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	state := auth.SetStateCookie(w, h.secure)
	http.Redirect(w, r, h.github.AuthURL(state), http.StatusTemporaryRedirect)
}

// HandleCallback completes the OAuth flow.
//
// HTTP: GET /auth/github/callback?code=xxx&state=yyy
//
// FLOW:
//  1. Validate the state parameter (CSRF check) → 403 page on mismatch
//  2. Exchange the code for a GitHub profile
//  3. Signed in: link the profile to the current account and go back to
//     /account (AccountService.LinkGitHub)
//  4. Otherwise resolve it to a local account (AccountService.LoginWithGitHub),
//     issue the session cookie and redirect home
//
// Problems the user can act on (denied access, username not available, no
// email, email already registered) are flashed on the login page.
func (h *GitHubHandler) HandleCallback(w http.ResponseWriter, r *http.Request) {
	if !auth.CheckState(w, r) {
		h.logger.Warn("github callback: state mismatch")
		h.errors.Forbidden(w, r)
		return
	}

	if errParam := r.URL.Query().Get("error"); errParam != "" {
		h.logger.Info("github callback: authorization denied", slog.String("error", errParam))
		addFlash(w, r, "GitHub sign-in was cancelled.")
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		h.errors.Forbidden(w, r)
		return
	}

	ghUser, err := h.github.Exchange(r.Context(), code)
	if err != nil {
		h.errors.Error(w, r, err)
		return
	}

	if current, ok := auth.UserFromContext(r.Context()); ok {
		h.link(w, r, current, ghUser)
		return
	}

	user, err := h.accounts.LoginWithGitHub(r.Context(), ghUser)
	if err != nil {
		if msg, ok := userMessage(err); ok {
			addFlash(w, r, msg)
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}
		h.errors.Error(w, r, err)
		return
	}

	if err := h.sessions.Login(w, user.ID); err != nil {
		h.errors.Error(w, r, err)
		return
	}

	h.logger.Info("user logged in via GitHub",
		slog.String("userID", user.ID),
		slog.String("username", user.Username),
	)
	addFlash(w, r, FlashLoggedIn)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (h *GitHubHandler) link(w http.ResponseWriter, r *http.Request, user *model.User, ghUser *auth.GitHubUser) {
	if err := h.accounts.LinkGitHub(r.Context(), user, ghUser); err != nil {
		if msg, ok := userMessage(err); ok {
			addFlash(w, r, msg)
			http.Redirect(w, r, "/account", http.StatusSeeOther)
			return
		}
		h.errors.Error(w, r, err)
		return
	}

	addFlash(w, r, FlashGitHubLinked)
	http.Redirect(w, r, "/account", http.StatusSeeOther)
}

// userMessage extracts the message of a conflict or validation AppError,
// the failures a user can do something about.
func userMessage(err error) (string, bool) {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) && (errors.Is(err, apperror.ErrConflict) || errors.Is(err, apperror.ErrValidation)) {
		return appErr.Message, true
	}
	return "", false
}
