package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sakif/companyblog/internal/model"
)

// fakeUsers is an in-memory UserLookup.
type fakeUsers map[string]*model.User

func (f fakeUsers) GetUserByID(_ context.Context, id string) (*model.User, error) {
	if u, ok := f[id]; ok {
		return u, nil
	}
	return nil, errors.New("not found")
}

// sessionCookie logs userID in through sm and returns the cookie it set.
func sessionCookie(t *testing.T, sm *SessionManager, userID string) *http.Cookie {
	t.Helper()
	rec := httptest.NewRecorder()
	if err := sm.Login(rec, userID); err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	for _, c := range rec.Result().Cookies() {
		if c.Name == SessionCookieName {
			return c
		}
	}
	t.Fatal("Login() did not set the session cookie")
	return nil
}

// =========================================================================
// SESSION COOKIE TESTS
// =========================================================================

func TestSessionManager_LoginSetsHardenedCookie(t *testing.T) {
	sm := NewSessionManager(newTestTokenService(t), true)

	c := sessionCookie(t, sm, "u1")

	if !c.HttpOnly {
		t.Error("session cookie must be HttpOnly")
	}
	if !c.Secure {
		t.Error("session cookie must be Secure when configured")
	}
	if c.SameSite != http.SameSiteLaxMode {
		t.Errorf("SameSite = %v, want Lax", c.SameSite)
	}
	if c.MaxAge != int(time.Hour.Seconds()) {
		t.Errorf("MaxAge = %d, want %d", c.MaxAge, int(time.Hour.Seconds()))
	}
}

func TestSessionManager_LogoutDeletesCookie(t *testing.T) {
	sm := NewSessionManager(newTestTokenService(t), false)
	rec := httptest.NewRecorder()

	sm.Logout(rec)

	cookies := rec.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Name != SessionCookieName || cookies[0].MaxAge >= 0 {
		t.Fatalf("Logout() cookies = %+v, want one expired session cookie", cookies)
	}
}

func TestSessionManager_UserIDRoundTrip(t *testing.T) {
	sm := NewSessionManager(newTestTokenService(t), false)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if _, err := sm.UserID(req); !errors.Is(err, http.ErrNoCookie) {
		t.Errorf("UserID() without cookie error = %v, want http.ErrNoCookie", err)
	}

	req.AddCookie(sessionCookie(t, sm, "u1"))
	got, err := sm.UserID(req)
	if err != nil || got != "u1" {
		t.Errorf("UserID() = %q, %v; want u1", got, err)
	}
}

// =========================================================================
// MIDDLEWARE TESTS
// =========================================================================

// whoami echoes the context user's name, or "anonymous".
var whoami = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	if u, ok := UserFromContext(r.Context()); ok {
		w.Write([]byte(u.Username))
		return
	}
	w.Write([]byte("anonymous"))
})

func TestLoadUser(t *testing.T) {
	ts := newTestTokenService(t)
	sm := NewSessionManager(ts, false)
	users := fakeUsers{"u1": {ID: "u1", Username: "rex"}}

	expired, _ := ts.GenerateWithDuration("u1", -time.Minute)

	tests := []struct {
		name   string
		cookie *http.Cookie
		want   string
	}{
		{"no cookie", nil, "anonymous"},
		{"valid session", sessionCookie(t, sm, "u1"), "rex"},
		{"deleted user", sessionCookie(t, sm, "gone"), "anonymous"},
		{"expired token", &http.Cookie{Name: SessionCookieName, Value: expired}, "anonymous"},
		{"forged token", &http.Cookie{Name: SessionCookieName, Value: "forged"}, "anonymous"},
	}

	handler := LoadUser(sm, users)(whoami)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.cookie != nil {
				req.AddCookie(tt.cookie)
			}
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			if rec.Code != http.StatusOK {
				t.Errorf("status = %d, want 200", rec.Code)
			}
			if got := rec.Body.String(); got != tt.want {
				t.Errorf("user = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRequireUser_RedirectsAnonymousToLogin(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/account?tab=pic", nil)
	rec := httptest.NewRecorder()

	RequireUser(whoami).ServeHTTP(rec, req)

	if rec.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want 303", rec.Code)
	}
	want := "/login?next=%2Faccount%3Ftab%3Dpic"
	if got := rec.Header().Get("Location"); got != want {
		t.Errorf("Location = %q, want %q", got, want)
	}
}

func TestRequireUser_PassesAuthenticated(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/account", nil)
	req = req.WithContext(WithUser(req.Context(), &model.User{Username: "rex"}))
	rec := httptest.NewRecorder()

	RequireUser(whoami).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK || rec.Body.String() != "rex" {
		t.Errorf("got %d %q, want 200 \"rex\"", rec.Code, rec.Body.String())
	}
}

func TestLoginURL(t *testing.T) {
	tests := map[string]string{
		"":         "/login",
		"/":        "/login",
		"/account": "/login?next=%2Faccount",
	}
	for next, want := range tests {
		if got := LoginURL(next); got != want {
			t.Errorf("LoginURL(%q) = %q, want %q", next, got, want)
		}
	}
}
