package service

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/sakif/companyblog/internal/apperror"
	"github.com/sakif/companyblog/internal/model"
	"github.com/sakif/companyblog/internal/pagination"
	"github.com/sakif/companyblog/internal/repository"
)

// PostService builds the paginated post listings.
type PostService struct {
	users   repository.UserRepository
	posts   repository.PostRepository
	perPage int
	logger  *slog.Logger
}

// NewPostService creates a PostService showing pagination.DefaultPerPage
// posts per page.
func NewPostService(users repository.UserRepository, posts repository.PostRepository, logger *slog.Logger) *PostService {
	return &PostService{
		users:   users,
		posts:   posts,
		perPage: pagination.DefaultPerPage,
		logger:  logger,
	}
}

// ListByUsername returns the author and one page of their posts, newest
// first.
//
// An unknown username and a page past the last one are both
// apperror.ErrNotFound. Page 1 of an author without posts is a valid,
// empty page.
func (s *PostService) ListByUsername(ctx context.Context, username string, page int) (*model.User, pagination.Page[model.Post], error) {
	var empty pagination.Page[model.Post]

	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		return nil, empty, fmt.Errorf("service/post: listing posts of %q: %w", username, err)
	}

	total, err := s.posts.CountByUser(ctx, user.ID)
	if err != nil {
		return nil, empty, fmt.Errorf("service/post: listing posts of %q: %w", username, err)
	}

	p := s.params(page)
	if err := checkRange(p, total); err != nil {
		return nil, empty, err
	}

	items, err := s.posts.ListByUser(ctx, user.ID, repository.ListOptions{Limit: p.PerPage, Offset: p.Offset()})
	if err != nil {
		return nil, empty, fmt.Errorf("service/post: listing posts of %q: %w", username, err)
	}

	return user, pagination.New(items, p, total), nil
}

// ListRecent returns one page of all posts across authors, newest first.
// Same page rules as ListByUsername.
func (s *PostService) ListRecent(ctx context.Context, page int) (pagination.Page[model.Post], error) {
	var empty pagination.Page[model.Post]

	total, err := s.posts.CountPosts(ctx)
	if err != nil {
		return empty, fmt.Errorf("service/post: listing recent posts: %w", err)
	}

	p := s.params(page)
	if err := checkRange(p, total); err != nil {
		return empty, err
	}

	items, err := s.posts.ListPosts(ctx, repository.ListOptions{Limit: p.PerPage, Offset: p.Offset()})
	if err != nil {
		return empty, fmt.Errorf("service/post: listing recent posts: %w", err)
	}

	return pagination.New(items, p, total), nil
}

func (s *PostService) params(page int) pagination.Params {
	return pagination.Params{Page: page, PerPage: s.perPage}.Normalize()
}

// checkRange rejects a page past the end before any rows are fetched.
func checkRange(p pagination.Params, total int) error {
	if pagination.New[model.Post](nil, p, total).OutOfRange() {
		return apperror.NotFound("page", strconv.Itoa(p.Page))
	}
	return nil
}
