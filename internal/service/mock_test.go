package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http/httptest"
	"os"
	"sort"
	"testing"

	"github.com/sakif/companyblog/internal/apperror"
	"github.com/sakif/companyblog/internal/model"
	"github.com/sakif/companyblog/internal/picture"
	"github.com/sakif/companyblog/internal/repository"
)

// =========================================================================
// MOCK REPOSITORIES
// =========================================================================
//
// Hand-written in-memory fakes of the repository interfaces. They enforce
// the same UNIQUE rules as the SQLite schema so conflict paths can be
// exercised without a database. Values are copied in and out so a test
// can't mutate stored state by accident.

type mockUserRepo struct {
	users  map[string]*model.User
	nextID int
	err    error // returned by every lookup when set
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{users: make(map[string]*model.User)}
}

func (m *mockUserRepo) conflict(u *model.User) error {
	for _, other := range m.users {
		if other.ID == u.ID {
			continue
		}
		switch {
		case other.Email == u.Email:
			return apperror.Conflict("user", "email")
		case other.Username == u.Username:
			return apperror.Conflict("user", "username")
		case other.GitHubID != nil && u.GitHubID != nil && *other.GitHubID == *u.GitHubID:
			return apperror.Conflict("user", "github_id")
		}
	}
	return nil
}

func (m *mockUserRepo) Create(_ context.Context, u *model.User) error {
	if err := m.conflict(u); err != nil {
		return err
	}
	m.nextID++
	u.ID = fmt.Sprintf("user-%d", m.nextID)
	if u.ProfileImage == "" {
		u.ProfileImage = model.DefaultProfileImage
	}
	stored := *u
	m.users[u.ID] = &stored
	return nil
}

func (m *mockUserRepo) find(match func(*model.User) bool, key string) (*model.User, error) {
	if m.err != nil {
		return nil, m.err
	}
	for _, u := range m.users {
		if match(u) {
			found := *u
			return &found, nil
		}
	}
	return nil, apperror.NotFound("user", key)
}

func (m *mockUserRepo) GetUserByID(_ context.Context, id string) (*model.User, error) {
	return m.find(func(u *model.User) bool { return u.ID == id }, id)
}

func (m *mockUserRepo) GetByEmail(_ context.Context, email string) (*model.User, error) {
	return m.find(func(u *model.User) bool { return u.Email == email }, email)
}

func (m *mockUserRepo) GetByUsername(_ context.Context, username string) (*model.User, error) {
	return m.find(func(u *model.User) bool { return u.Username == username }, username)
}

func (m *mockUserRepo) GetByGitHubID(_ context.Context, id int64) (*model.User, error) {
	return m.find(func(u *model.User) bool { return u.GitHubID != nil && *u.GitHubID == id }, fmt.Sprint(id))
}

func (m *mockUserRepo) Update(_ context.Context, u *model.User) error {
	if _, ok := m.users[u.ID]; !ok {
		return apperror.NotFound("user", u.ID)
	}
	if err := m.conflict(u); err != nil {
		return err
	}
	stored := *u
	m.users[u.ID] = &stored
	return nil
}

func (m *mockUserRepo) Count(context.Context) (int, error) {
	return len(m.users), nil
}

// mockPostRepo keeps posts in insertion order; listings return the newest
// insert first, which matches created_at DESC for fixtures inserted in
// chronological order.
type mockPostRepo struct {
	posts []model.Post
}

func (m *mockPostRepo) CreatePost(_ context.Context, p *model.Post) error {
	p.ID = fmt.Sprintf("post-%d", len(m.posts)+1)
	m.posts = append(m.posts, *p)
	return nil
}

func (m *mockPostRepo) newestFirst(match func(model.Post) bool) []model.Post {
	var out []model.Post
	for i := len(m.posts) - 1; i >= 0; i-- {
		if match(m.posts[i]) {
			out = append(out, m.posts[i])
		}
	}
	return out
}

func window(posts []model.Post, opts repository.ListOptions) []model.Post {
	if opts.Offset >= len(posts) {
		return []model.Post{}
	}
	posts = posts[opts.Offset:]
	if opts.Limit < len(posts) {
		posts = posts[:opts.Limit]
	}
	return posts
}

func (m *mockPostRepo) ListByUser(_ context.Context, userID string, opts repository.ListOptions) ([]model.Post, error) {
	return window(m.newestFirst(func(p model.Post) bool { return p.UserID == userID }), opts), nil
}

func (m *mockPostRepo) CountByUser(_ context.Context, userID string) (int, error) {
	return len(m.newestFirst(func(p model.Post) bool { return p.UserID == userID })), nil
}

func (m *mockPostRepo) ListPosts(_ context.Context, opts repository.ListOptions) ([]model.Post, error) {
	return window(m.newestFirst(func(model.Post) bool { return true }), opts), nil
}

func (m *mockPostRepo) CountPosts(context.Context) (int, error) {
	return len(m.posts), nil
}

// =========================================================================
// MOCK PICTURE STORE
// =========================================================================

type savedPicture struct {
	userID string
	data   []byte
}

type mockPictures struct {
	saved []savedPicture
	err   error
}

func (m *mockPictures) Save(_ context.Context, userID, originalName string, r io.Reader) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	name, err := picture.Filename(userID, originalName)
	if err != nil {
		return "", err
	}
	data, _ := io.ReadAll(r)
	m.saved = append(m.saved, savedPicture{userID: userID, data: data})
	return name, nil
}

func (m *mockPictures) URL(name string) string {
	return "/pics/" + name
}

// =========================================================================
// HELPERS
// =========================================================================

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// uploadedFile builds a real *multipart.FileHeader by parsing a multipart body.
func uploadedFile(t *testing.T, filename string, data []byte) *multipart.FileHeader {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("picture", filename)
	if err != nil {
		t.Fatalf("CreateFormFile: %v", err)
	}
	fw.Write(data)
	mw.Close()

	req := httptest.NewRequest("POST", "/account", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if err := req.ParseMultipartForm(1 << 20); err != nil {
		t.Fatalf("ParseMultipartForm: %v", err)
	}
	return req.MultipartForm.File["picture"][0]
}

func usernames(users map[string]*model.User) []string {
	out := make([]string, 0, len(users))
	for _, u := range users {
		out = append(out, u.Username)
	}
	sort.Strings(out)
	return out
}
