// Package constants provides shared constants used throughout the stagehand codebase.
// This includes timeouts, file permissions, paths and staging defaults
// that should be consistent across the library and the CLI.
package constants

import "time"

// Timeout constants define various timeout durations used in the application
const (
	// DefaultHTTPTimeout is the standard timeout for requests to a persistence backend
	DefaultHTTPTimeout = 30 * time.Second

	// ShutdownTimeout bounds closing the draft store on exit
	ShutdownTimeout = 5 * time.Second
)

// File permission constants define standard Unix file permissions
const (
	// DirPermissions is the default permission for created directories (rwxr-xr-x)
	DirPermissions = 0755

	// FilePermissions is the default permission for created files (rw-r--r--)
	FilePermissions = 0644
)

// Staging defaults
const (
	// TempIDPrefix prefixes generated temporary ids for string keyed entities
	TempIDPrefix = "tmp-"

	// IDField is the wire name of the identifier field in records and payloads
	IDField = "id"

	// MaxResponseBytes caps how much of a backend response body is read
	MaxResponseBytes = 8 << 20
)

// Path constants
const (
	// DefaultDataDir is the default directory for draft sessions
	DefaultDataDir = "~/.stagehand/drafts"

	// ConfigName is the config file name searched in $HOME and the working directory
	ConfigName = ".stagehand"

	// EnvPrefix is the prefix for environment variables read by the CLI
	EnvPrefix = "STAGEHAND"
)

// Format constants
const (
	// TimeFormatHuman is a human-readable time format
	TimeFormatHuman = "Jan 2, 2006 at 3:04pm MST"
)
