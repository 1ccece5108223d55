// Package picture stores profile pictures.
//
// An upload is decoded, shrunk to fit a 200×200 box (aspect ratio kept,
// never enlarged), re-encoded in its original format and saved as
// "<user id>.<ext>". IDs never change and are never handed out again, so a
// rename keeps the picture and an account that later takes the old username
// cannot overwrite it. A new upload replaces the previous one.
//
// Two backends implement Store: LocalStore writes to a directory served by
// the app itself, S3Store writes to an S3-compatible bucket.
package picture

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"path/filepath"
	"strings"

	"golang.org/x/image/draw"

	"github.com/sakif/companyblog/internal/apperror"
	"github.com/sakif/companyblog/internal/model"
)

// Size is the bounding box, in pixels, that thumbnails fit into.
const Size = 200

// maxPixels rejects images whose header claims absurd dimensions before any
// pixel data is decoded.
const maxPixels = 40_000_000

// DefaultURL is where the embedded default picture is served.
const DefaultURL = "/static/img/" + model.DefaultProfileImage

// Store saves pictures and knows the public URL of a stored picture.
type Store interface {
	// Save thumbnails the image read from r and stores it for the user with
	// the given ID. originalName is the uploaded filename; only its extension
	// is used. Returns the stored filename.
	Save(ctx context.Context, userID, originalName string, r io.Reader) (string, error)

	// URL returns the public URL of a stored filename. The default picture
	// always resolves to DefaultURL.
	URL(name string) string
}

// Extension returns the lower-cased extension of filename ("png", "jpg",
// "jpeg") and whether it is an accepted picture type.
func Extension(filename string) (string, bool) {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
	switch ext {
	case "png", "jpg", "jpeg":
		return ext, true
	}
	return ext, false
}

// Filename is the name a picture for userID is stored under.
func Filename(userID, originalName string) (string, error) {
	if userID == "" {
		return "", fmt.Errorf("picture: user ID must not be empty")
	}
	ext, ok := Extension(originalName)
	if !ok {
		return "", apperror.ValidationFailed("picture", "File does not have an approved extension: jpg, jpeg, png.")
	}
	return userID + "." + ext, nil
}

// isDefault reports names that resolve to the embedded default picture.
func isDefault(name string) bool {
	return name == "" || name == model.DefaultProfileImage
}

// contentType is the MIME type for an accepted extension.
func contentType(ext string) string {
	if ext == "png" {
		return "image/png"
	}
	return "image/jpeg"
}

// Thumbnail decodes an image, scales it to fit Size×Size and encodes it
// back in the format implied by ext.
//
// Input that doesn't decode as PNG or JPEG is a validation error: the
// extension is user-controlled, the content is what counts.
func Thumbnail(r io.Reader, ext string) ([]byte, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("picture: reading upload: %w", err)
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, apperror.ValidationFailed("picture", "Uploaded file is not a valid image.")
	}
	if cfg.Width*cfg.Height > maxPixels {
		return nil, apperror.ValidationFailed("picture", "Uploaded image is too large.")
	}

	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, apperror.ValidationFailed("picture", "Uploaded file is not a valid image.")
	}

	b := src.Bounds()
	w, h := fit(b.Dx(), b.Dy(), Size)
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Over, nil)

	var out bytes.Buffer
	if ext == "png" {
		err = png.Encode(&out, dst)
	} else {
		err = jpeg.Encode(&out, dst, &jpeg.Options{Quality: 90})
	}
	if err != nil {
		return nil, fmt.Errorf("picture: encoding thumbnail: %w", err)
	}
	return out.Bytes(), nil
}

// fit scales (w, h) down to fit in a box×box square, keeping the ratio.
// Images already inside the box keep their size.
func fit(w, h, box int) (int, int) {
	if w <= box && h <= box {
		return w, h
	}
	if w >= h {
		return box, max(1, h*box/w)
	}
	return max(1, w*box/h), box
}
