// Package main is the entry point for the blog.
//
// The main package stays minimal: everything it does is hand control to the
// cobra command tree in internal/cli, which loads configuration, builds the
// server and runs it.
//
//	blog serve
//	blog users create --username rex --email rex@example.com
package main

import (
	"os"

	"github.com/sakif/companyblog/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
