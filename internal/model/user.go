// Package model defines the data structures used throughout the application.
// In Go, we use structs to represent our data — similar to classes in other languages,
// but without inheritance. Go favours composition over inheritance.
package model

import "time"

// DefaultProfileImage is the filename every new account starts with.
// It is served from the embedded static assets, not from the picture store.
const DefaultProfileImage = "default_profile.png"

// User represents a registered account.
//
// The `db:"..."` tags are read by sqlx when scanning rows into the struct;
// the column list in every SELECT must match them.
//
// WHY PasswordHash HAS json:"-"?
// The hash never leaves the server. Tagging it "-" means even an accidental
// json.Marshal(user) cannot leak it.
//
// WHY GitHubID *int64?
// Accounts created through the registration form have no GitHub identity.
// A nil pointer maps to SQL NULL, and the UNIQUE index on github_id ignores NULLs,
// so any number of password-only users can coexist.
type User struct {
	ID           string    `json:"id"           db:"id"`
	Username     string    `json:"username"     db:"username"`
	Email        string    `json:"email"        db:"email"`
	PasswordHash string    `json:"-"            db:"password_hash"` // empty for GitHub-only accounts
	ProfileImage string    `json:"profileImage" db:"profile_image"`
	GitHubID     *int64    `json:"-"            db:"github_id"`
	CreatedAt    time.Time `json:"createdAt"    db:"created_at"`
	UpdatedAt    time.Time `json:"updatedAt"    db:"updated_at"`
}

// HasPassword reports whether the account can sign in with email + password.
func (u *User) HasPassword() bool {
	return u.PasswordHash != ""
}
