// Package panelbot provides core application constants and version information
// which are used throughout the application.
package panelbot

import "github.com/blang/semver"

const (
	// Version is the current version of the application.
	Version = "1.0.0"
	// AppName is the name of the application.
	AppName = "panelbot"
)

// APIVersion is the default 1Panel API version. Its major number selects the
// /api/v{major} path prefix.
var APIVersion = semver.MustParse("2.0.0")
