package form

import (
	"errors"
	"sort"
	"strings"

	"github.com/sakif/companyblog/internal/apperror"
)

// Errors maps a form field name to its validation messages.
//
// It implements error, so Validate and the services can return it directly,
// and it unwraps to apperror.ErrValidation so errors.Is works across layers.
// Templates read it with {{.Errors.Get "email"}}.
type Errors map[string][]string

// Add appends a message for field.
func (e Errors) Add(field, message string) {
	e[field] = append(e[field], message)
}

// Get returns the first message for field, or "".
func (e Errors) Get(field string) string {
	if msgs := e[field]; len(msgs) > 0 {
		return msgs[0]
	}
	return ""
}

// Has reports whether field has at least one message.
func (e Errors) Has(field string) bool {
	return len(e[field]) > 0
}

// Error joins every message, fields in alphabetical order.
func (e Errors) Error() string {
	fields := make([]string, 0, len(e))
	for f := range e {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, f+": "+strings.Join(e[f], "; "))
	}
	return "form: " + strings.Join(parts, ", ")
}

func (e Errors) Unwrap() error {
	return apperror.ErrValidation
}

// Err returns e as an error, or nil when there are no messages.
func (e Errors) Err() error {
	if len(e) == 0 {
		return nil
	}
	return e
}

// Conflict messages shown when a username or email is already taken.
const (
	MsgEmailTaken    = "That email is already registered."
	MsgUsernameTaken = "That username is already taken."
)

// FromConflict turns a uniqueness conflict on a known field into form
// errors, so a race lost at the UNIQUE constraint still shows up next to the
// offending input. ok is false for any other error.
func FromConflict(err error) (errs Errors, ok bool) {
	var appErr *apperror.AppError
	if !errors.As(err, &appErr) || !errors.Is(err, apperror.ErrConflict) {
		return nil, false
	}
	switch appErr.Field {
	case "email":
		return Errors{"email": {MsgEmailTaken}}, true
	case "username":
		return Errors{"username": {MsgUsernameTaken}}, true
	}
	return nil, false
}
