package picture

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
)

// LocalURLPrefix is the path LocalStore pictures are served under.
const LocalURLPrefix = "/static/profile_pics/"

// LocalStore keeps pictures in a directory on disk.
type LocalStore struct {
	dir string
}

var _ Store = (*LocalStore)(nil)

// NewLocalStore creates dir if needed and returns a store writing into it.
func NewLocalStore(dir string) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("picture: creating %s: %w", dir, err)
	}
	return &LocalStore{dir: dir}, nil
}

// Save writes the thumbnail to a temp file and renames it into place, so a
// reader never sees a half-written picture.
func (s *LocalStore) Save(_ context.Context, userID, originalName string, r io.Reader) (string, error) {
	name, err := Filename(userID, originalName)
	if err != nil {
		return "", err
	}
	ext, _ := Extension(originalName)

	thumb, err := Thumbnail(r, ext)
	if err != nil {
		return "", err
	}

	tmp, err := os.CreateTemp(s.dir, ".upload-*")
	if err != nil {
		return "", fmt.Errorf("picture: creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name()) // no-op after a successful rename

	if _, err := tmp.Write(thumb); err != nil {
		tmp.Close()
		return "", fmt.Errorf("picture: writing %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("picture: writing %s: %w", name, err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(s.dir, name)); err != nil {
		return "", fmt.Errorf("picture: storing %s: %w", name, err)
	}

	return name, nil
}

func (s *LocalStore) URL(name string) string {
	if isDefault(name) {
		return DefaultURL
	}
	return LocalURLPrefix + name
}

// Handler serves the stored pictures; mount it at LocalURLPrefix. Directory
// requests get a 404 instead of a listing.
func (s *LocalStore) Handler() http.Handler {
	return http.StripPrefix(LocalURLPrefix, http.FileServer(filesOnly{http.Dir(s.dir)}))
}

// filesOnly hides directories from http.FileServer.
type filesOnly struct {
	fs http.FileSystem
}

func (f filesOnly) Open(name string) (http.File, error) {
	file, err := f.fs.Open(name)
	if err != nil {
		return nil, err
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, err
	}
	if info.IsDir() {
		file.Close()
		return nil, os.ErrNotExist
	}
	return file, nil
}
