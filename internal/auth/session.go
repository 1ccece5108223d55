package auth

import (
	"fmt"
	"net/http"
)

// SessionCookieName is the cookie that carries the session JWT.
const SessionCookieName = "session"

// SessionManager issues and clears the session cookie.
//
// COOKIE FLAGS:
//   - HttpOnly: JavaScript cannot read the token (XSS can't steal it)
//   - SameSite=Lax: sent on top-level navigations, not on cross-site POSTs
//   - Secure: HTTPS only; enabled by config in production
type SessionManager struct {
	tokens *TokenService
	secure bool
}

// NewSessionManager creates a SessionManager signing with tokens.
func NewSessionManager(tokens *TokenService, secure bool) *SessionManager {
	return &SessionManager{tokens: tokens, secure: secure}
}

// Login issues a session for userID by setting the session cookie on w.
func (s *SessionManager) Login(w http.ResponseWriter, userID string) error {
	token, err := s.tokens.Generate(userID)
	if err != nil {
		return fmt.Errorf("auth: issuing session: %w", err)
	}

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(s.tokens.TTL().Seconds()),
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// Logout deletes the session cookie. It is safe to call without a session.
//
// Since sessions are stateless, the token stays technically valid until it
// expires, but without the cookie the browser no longer sends it.
func (s *SessionManager) Logout(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// UserID returns the user ID carried by the request's session cookie.
// http.ErrNoCookie means the request is anonymous.
func (s *SessionManager) UserID(r *http.Request) (string, error) {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil {
		return "", err
	}
	return s.tokens.Validate(cookie.Value)
}
