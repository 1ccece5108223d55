package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/companyblog/internal/apperror"
	"github.com/sakif/companyblog/internal/model"
	"github.com/sakif/companyblog/internal/repository"
)

// compile-time check that *DB implements repository.UserRepository
var _ repository.UserRepository = (*DB)(nil)

const userColumns = `id, username, email, password_hash, profile_image, github_id, created_at, updated_at`

// Create inserts a new user.
//
// The ID (xid) and both timestamps are generated here and written back into
// the caller's struct. An empty ProfileImage gets model.DefaultProfileImage.
//
// Uniqueness of username, email and github_id is enforced by the schema;
// a violation comes back as apperror.ErrConflict with Field set.
func (db *DB) Create(ctx context.Context, user *model.User) error {
	now := time.Now().UTC()
	user.ID = xid.New().String()
	user.CreatedAt = now
	user.UpdatedAt = now
	if user.ProfileImage == "" {
		user.ProfileImage = model.DefaultProfileImage
	}

	_, err := db.ExecContext(ctx,
		`INSERT INTO users (`+userColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		user.ID,
		user.Username,
		user.Email,
		user.PasswordHash,
		user.ProfileImage,
		user.GitHubID,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: inserting user %q: %w", user.Username, uniqueViolation(err))
	}

	return nil
}

// GetUserByID retrieves a user by their internal ID.
// Returns apperror.ErrNotFound if no user exists with that ID.
func (db *DB) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	return db.getUserBy(ctx, "id", id)
}

// GetByEmail is the login lookup.
func (db *DB) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	return db.getUserBy(ctx, "email", email)
}

// GetByUsername resolves the /{username} path segment.
func (db *DB) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	return db.getUserBy(ctx, "username", username)
}

func (db *DB) GetByGitHubID(ctx context.Context, githubID int64) (*model.User, error) {
	return db.getUserBy(ctx, "github_id", githubID)
}

// getUserBy runs the shared single-row SELECT. column is always one of the
// constants passed by the methods above, never user input.
func (db *DB) getUserBy(ctx context.Context, column string, value any) (*model.User, error) {
	var u model.User

	err := db.GetContext(ctx, &u,
		`SELECT `+userColumns+` FROM users WHERE `+column+` = ?`,
		value,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", keyString(value))
		}
		return nil, fmt.Errorf("sqlite: getting user by %s: %w", column, err)
	}

	return &u, nil
}

// Update writes the mutable profile fields (username, email, profile image,
// GitHub link) and bumps updated_at. The password hash is never touched here.
func (db *DB) Update(ctx context.Context, user *model.User) error {
	user.UpdatedAt = time.Now().UTC()

	result, err := db.ExecContext(ctx,
		`UPDATE users
		 SET username = ?, email = ?, profile_image = ?, github_id = ?, updated_at = ?
		 WHERE id = ?`,
		user.Username,
		user.Email,
		user.ProfileImage,
		user.GitHubID,
		user.UpdatedAt,
		user.ID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating user %s: %w", user.ID, uniqueViolation(err))
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("user", user.ID)
	}

	return nil
}

// Count returns the number of registered users.
func (db *DB) Count(ctx context.Context) (int, error) {
	var n int
	if err := db.GetContext(ctx, &n, `SELECT COUNT(*) FROM users`); err != nil {
		return 0, fmt.Errorf("sqlite: counting users: %w", err)
	}
	return n, nil
}

func keyString(v any) string {
	switch k := v.(type) {
	case string:
		return k
	case int64:
		return strconv.FormatInt(k, 10)
	default:
		return fmt.Sprint(k)
	}
}
