// Package repository declares the storage interfaces the service layer depends on.
//
// Services import this package, never a concrete backend. The SQLite
// implementation lives in repository/sqlite; tests use in-memory fakes.
package repository

import (
	"context"

	"github.com/sakif/companyblog/internal/model"
)

// ListOptions is a LIMIT/OFFSET window over an ordered result set.
type ListOptions struct {
	Limit  int
	Offset int
}

// UserRepository stores accounts.
//
// Lookups return an error wrapping apperror.ErrNotFound when no row matches.
// Create and Update return apperror.ErrConflict (with Field set to
// "username", "email" or "github_id") when a UNIQUE constraint fails.
type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	GetByUsername(ctx context.Context, username string) (*model.User, error)
	GetByGitHubID(ctx context.Context, githubID int64) (*model.User, error)
	Update(ctx context.Context, user *model.User) error
	Count(ctx context.Context) (int, error)
}

// PostRepository stores blog posts. Listings are ordered newest first.
type PostRepository interface {
	CreatePost(ctx context.Context, post *model.Post) error
	ListByUser(ctx context.Context, userID string, opts ListOptions) ([]model.Post, error)
	CountByUser(ctx context.Context, userID string) (int, error)
	ListPosts(ctx context.Context, opts ListOptions) ([]model.Post, error)
	CountPosts(ctx context.Context) (int, error)
}
