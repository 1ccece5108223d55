// Package handler contains the HTTP handlers of the blog.
//
// HANDLER RESPONSIBILITIES:
//  1. Parse the incoming request (path params, query, form)
//  2. Call the service layer
//  3. Render a page or redirect
//
// Handlers hold no business rules; those live in the service package. Every
// page is server-rendered with html/template. Successful POSTs redirect with
// 303 See Other (Post/Redirect/Get) so a browser refresh never resubmits a
// form.
package handler

import (
	"bytes"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"time"

	"github.com/sakif/companyblog/internal/auth"
	"github.com/sakif/companyblog/internal/form"
	"github.com/sakif/companyblog/internal/model"
	"github.com/sakif/companyblog/internal/pagination"
	"github.com/sakif/companyblog/internal/picture"
)

// Page names, relative to the templates root.
const (
	pageIndex     = "index.html"
	pageRegister  = "register.html"
	pageLogin     = "login.html"
	pageAccount   = "account.html"
	pageUserPosts = "user_posts.html"
)

var pageNames = []string{
	pageIndex,
	pageRegister,
	pageLogin,
	pageAccount,
	pageUserPosts,
	errorPage(http.StatusNotFound),
	errorPage(http.StatusForbidden),
	errorPage(http.StatusInternalServerError),
}

func errorPage(status int) string {
	return fmt.Sprintf("error_pages/%d.html", status)
}

// View is the data every page template receives. Pages use the fields they
// need and ignore the rest.
type View struct {
	CurrentUser *model.User // set by Render from the request context
	Flashes     []string    // set by Render from the flash cookie

	Form          any // the form struct being shown or re-shown
	Errors        form.Errors
	Next          string // login: where to go after signing in
	GitHubEnabled bool

	ProfileImage string // account: URL of the current picture

	Author *model.User // user posts: whose posts these are
	Posts  pagination.Page[model.Post]
}

// pager is what the "pager" partial needs: a page and the path its links
// point at.
type pager struct {
	Page pagination.Page[model.Post]
	Base string
}

// Renderer holds one parsed template set per page.
//
// TEMPLATE COMPOSITION:
// Each set is base.html + partials.html + the page file. base.html defines
// the layout with {{block "content" .}}; the page file fills "title" and
// "content". Parsing them per page keeps each page's "content" separate.
// Parsing happens once at startup; executing a parsed template is cheap
// and safe for concurrent use.
type Renderer struct {
	pages  map[string]*template.Template
	logger *slog.Logger
}

// NewRenderer parses every page from fsys. pictures resolves the
// {{picture .ProfileImage}} template function.
func NewRenderer(fsys fs.FS, pictures picture.Store, logger *slog.Logger) (*Renderer, error) {
	funcs := template.FuncMap{
		"picture": pictures.URL,
		"date":    func(t time.Time) string { return t.Format("January 2, 2006") },
		"pager": func(p pagination.Page[model.Post], base string) pager {
			return pager{Page: p, Base: base}
		},
	}

	pages := make(map[string]*template.Template, len(pageNames))
	for _, name := range pageNames {
		t, err := template.New(name).Funcs(funcs).ParseFS(fsys, "base.html", "partials.html", name)
		if err != nil {
			return nil, fmt.Errorf("handler: parsing template %s: %w", name, err)
		}
		pages[name] = t
	}

	return &Renderer{pages: pages, logger: logger}, nil
}

// Render executes page with v and writes it with the given status.
//
// The page is rendered into a buffer first: if execution fails halfway,
// the client gets a clean 500 instead of half a page with a 200 status.
func (rd *Renderer) Render(w http.ResponseWriter, r *http.Request, status int, page string, v View) {
	if user, ok := auth.UserFromContext(r.Context()); ok {
		v.CurrentUser = user
	}
	v.Flashes = popFlashes(w, r)

	t, ok := rd.pages[page]
	if !ok {
		rd.logger.Error("unknown page template", slog.String("page", page))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "base", v); err != nil {
		rd.logger.Error("template execution failed",
			slog.String("page", page),
			slog.String("error", err.Error()),
		)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if _, err := buf.WriteTo(w); err != nil {
		rd.logger.Debug("writing response failed", slog.String("error", err.Error()))
	}
}
