package handler

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
)

// flashCookie carries one-shot messages across a redirect.
const flashCookie = "flash"

// addFlash queues msg for the next rendered page, keeping messages already
// queued by this request.
func addFlash(w http.ResponseWriter, r *http.Request, msg string) {
	msgs := append(readFlashes(r), msg)

	data, err := json.Marshal(msgs)
	if err != nil {
		return // []string always marshals
	}

	http.SetCookie(w, &http.Cookie{
		Name:     flashCookie,
		Value:    base64.RawURLEncoding.EncodeToString(data),
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// popFlashes returns the queued messages and deletes the cookie.
func popFlashes(w http.ResponseWriter, r *http.Request) []string {
	msgs := readFlashes(r)
	if len(msgs) > 0 {
		http.SetCookie(w, &http.Cookie{Name: flashCookie, Value: "", Path: "/", MaxAge: -1})
	}
	return msgs
}

// readFlashes decodes the flash cookie. A tampered or garbled cookie is
// treated as empty: flashes are cosmetic.
func readFlashes(r *http.Request) []string {
	c, err := r.Cookie(flashCookie)
	if err != nil || c.Value == "" {
		return nil
	}
	data, err := base64.RawURLEncoding.DecodeString(c.Value)
	if err != nil {
		return nil
	}
	var msgs []string
	if err := json.Unmarshal(data, &msgs); err != nil {
		return nil
	}
	return msgs
}
