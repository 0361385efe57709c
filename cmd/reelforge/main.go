// ReelForge is a resumable upload service for large media files.
//
// The server accepts chunked uploads over HTTP, assembles them in an
// S3-compatible object store, and hands finished uploads off to the
// transcode pipeline.
package main

import (
	"github.com/reelforge/reelforge/cmd/reelforge/commands"
)

// Build information, injected via -ldflags at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	commands.Version = version
	commands.Commit = commit
	commands.Date = date

	commands.Execute()
}
