package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/companyblog/internal/model"
	"github.com/sakif/companyblog/internal/repository"
)

var _ repository.PostRepository = (*DB)(nil)

// postSelect joins the author so a listing needs one query, not 1+N.
//
// ORDERING:
// created_at DESC puts the newest post first. Two posts can share a timestamp,
// so rowid DESC breaks the tie by insertion order: the later insert wins.
// Without a tie-breaker SQLite may return equal rows in any order, and a post
// could appear on two pages or on none.
const postSelect = `
	SELECT p.id, p.user_id, p.title, p.text, p.created_at,
	       u.username AS author, u.profile_image AS author_image
	FROM posts p
	JOIN users u ON u.id = p.user_id`

const postOrder = ` ORDER BY p.created_at DESC, p.rowid DESC LIMIT ? OFFSET ?`

// CreatePost inserts a post. A zero CreatedAt is set to now; a non-zero one is
// kept, which lets fixtures build a deterministic timeline.
//
// The user_id foreign key is enforced by SQLite (foreign_keys pragma), so a
// post for a missing user fails here.
func (db *DB) CreatePost(ctx context.Context, post *model.Post) error {
	post.ID = xid.New().String()
	if post.CreatedAt.IsZero() {
		post.CreatedAt = time.Now()
	}
	post.CreatedAt = post.CreatedAt.UTC()

	_, err := db.ExecContext(ctx,
		`INSERT INTO posts (id, user_id, title, text, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		post.ID,
		post.UserID,
		post.Title,
		post.Text,
		post.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating post: %w", err)
	}

	return nil
}

// ListByUser returns one window of a user's posts, newest first.
func (db *DB) ListByUser(ctx context.Context, userID string, opts repository.ListOptions) ([]model.Post, error) {
	limit, offset := window(opts)

	posts := make([]model.Post, 0, limit)
	err := db.SelectContext(ctx, &posts,
		postSelect+` WHERE p.user_id = ?`+postOrder,
		userID, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing posts for user %s: %w", userID, err)
	}

	return posts, nil
}

func (db *DB) CountByUser(ctx context.Context, userID string) (int, error) {
	var n int
	if err := db.GetContext(ctx, &n, `SELECT COUNT(*) FROM posts WHERE user_id = ?`, userID); err != nil {
		return 0, fmt.Errorf("sqlite: counting posts for user %s: %w", userID, err)
	}
	return n, nil
}

// ListPosts returns one window of all posts across users, newest first.
func (db *DB) ListPosts(ctx context.Context, opts repository.ListOptions) ([]model.Post, error) {
	limit, offset := window(opts)

	posts := make([]model.Post, 0, limit)
	if err := db.SelectContext(ctx, &posts, postSelect+postOrder, limit, offset); err != nil {
		return nil, fmt.Errorf("sqlite: listing posts: %w", err)
	}

	return posts, nil
}

func (db *DB) CountPosts(ctx context.Context) (int, error) {
	var n int
	if err := db.GetContext(ctx, &n, `SELECT COUNT(*) FROM posts`); err != nil {
		return 0, fmt.Errorf("sqlite: counting posts: %w", err)
	}
	return n, nil
}

// window applies the defaults and caps that keep a single query bounded.
func window(opts repository.ListOptions) (limit, offset int) {
	limit = opts.Limit
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	offset = max(opts.Offset, 0)
	return limit, offset
}
