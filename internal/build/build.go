// Package build carries version metadata injected at link time.
package build

var (
	// Version is set via -ldflags at release build time.
	Version = "dev"
	AppName = "Campus Sync"
	AppSlug = "campus-sync"
)
