// Package web embeds the HTML templates and static assets into the binary,
// so a deployment is a single file.
package web

import (
	"embed"
	"io/fs"
)

//go:embed templates static
var files embed.FS

// Templates holds base.html, the partials and one file per page.
func Templates() fs.FS {
	sub, _ := fs.Sub(files, "templates") // the directory is embedded above
	return sub
}

// Static holds the CSS and the default profile picture, served at /static/.
func Static() fs.FS {
	sub, _ := fs.Sub(files, "static")
	return sub
}
