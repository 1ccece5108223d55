package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/companyblog/internal/pagination"
	"github.com/sakif/companyblog/internal/service"
)

// PostHandler serves the post listings.
type PostHandler struct {
	posts  *service.PostService
	render *Renderer
	errors *ErrorPages
	logger *slog.Logger
}

func NewPostHandler(posts *service.PostService, render *Renderer, errorPages *ErrorPages, logger *slog.Logger) *PostHandler {
	return &PostHandler{posts: posts, render: render, errors: errorPages, logger: logger}
}

// HandleIndex lists all posts, newest first.
//
// HTTP: GET /?page=N
func (h *PostHandler) HandleIndex(w http.ResponseWriter, r *http.Request) {
	page := pagination.ParsePage(r.URL.Query().Get("page"))

	posts, err := h.posts.ListRecent(r.Context(), page)
	if err != nil {
		h.errors.Error(w, r, err)
		return
	}

	h.render.Render(w, r, http.StatusOK, pageIndex, View{Posts: posts})
}

// HandleUserPosts lists one author's posts, newest first.
//
// HTTP: GET /{username}?page=N
//
// chi.URLParam reads the {username} segment. An unknown author or a page
// past the end renders the 404 page.
func (h *PostHandler) HandleUserPosts(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")
	page := pagination.ParsePage(r.URL.Query().Get("page"))

	author, posts, err := h.posts.ListByUsername(r.Context(), username, page)
	if err != nil {
		h.errors.Error(w, r, err)
		return
	}

	h.render.Render(w, r, http.StatusOK, pageUserPosts, View{Author: author, Posts: posts})
}
