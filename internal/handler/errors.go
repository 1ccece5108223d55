package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/sakif/companyblog/internal/apperror"
)

// ErrorPages renders the 404, 403 and 500 pages.
//
// ERROR MAPPING:
// This is where domain errors from the service layer become HTTP. Services
// return apperror sentinels; Error maps them:
//
//	apperror.ErrNotFound  → 404 page
//	apperror.ErrForbidden → 403 page
//	anything else         → 500 page (details only in the log)
//
// Validation and credential errors never get here: handlers re-render their
// form for those.
type ErrorPages struct {
	render *Renderer
	logger *slog.Logger
}

func NewErrorPages(render *Renderer, logger *slog.Logger) *ErrorPages {
	return &ErrorPages{render: render, logger: logger}
}

// Render writes the page for status with that same status. Codes without a
// page of their own get the 500 page.
func (e *ErrorPages) Render(w http.ResponseWriter, r *http.Request, status int) {
	switch status {
	case http.StatusNotFound, http.StatusForbidden:
	default:
		status = http.StatusInternalServerError
	}
	e.render.Render(w, r, status, errorPage(status), View{})
}

// NotFound is mounted as the router's fallback for unknown paths.
func (e *ErrorPages) NotFound(w http.ResponseWriter, r *http.Request) {
	e.Render(w, r, http.StatusNotFound)
}

func (e *ErrorPages) Forbidden(w http.ResponseWriter, r *http.Request) {
	e.Render(w, r, http.StatusForbidden)
}

// Error maps err to a status and renders that page.
//
// NEVER expose internal error details to the client: the raw message might
// contain SQL, file paths or bucket names. They go to the log only.
func (e *ErrorPages) Error(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, apperror.ErrNotFound):
		e.Render(w, r, http.StatusNotFound)
	case errors.Is(err, apperror.ErrForbidden):
		e.Render(w, r, http.StatusForbidden)
	default:
		e.logger.Error("request failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
		e.Render(w, r, http.StatusInternalServerError)
	}
}
