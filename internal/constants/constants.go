// Package constants contains application-wide constants to avoid magic numbers and strings.
package constants

import "time"

// Application defaults
const (
	DefaultPort           = "8090"
	DefaultDBPath         = "fetchd.db"
	DefaultToolBinary     = "yt-dlp"
	DefaultOutputTemplate = "%(uploader)s - %(title)s"
	DefaultContainerLabel = "Default"
	InfoFetchTimeout      = 2 * time.Minute
	ThumbnailFetchTimeout = 30 * time.Second
	NetworkPollInterval   = 5 * time.Second
)

// Format selector sentinels understood by the resolver and synthesizer.
const (
	FormatIDBest  = "best"
	FormatIDWorst = "worst"
)

// UnknownFilePath is substituted for the final path when the post-download
// move fails.
const UnknownFilePath = "FILE_NOT_FOUND"

// MaxProgressLine bounds progress output lines before they are persisted or
// handed to notifiers.
const MaxProgressLine = 5000

// Metadata sanitization limits applied before --replace-in-metadata.
const (
	MaxMetaTitleLen    = 200
	MaxMetaUploaderLen = 25
)

// File Permissions
const (
	DirPermissions  = 0755
	FilePermissions = 0644
)

// Directory names under the work root.
const (
	TempDirName = "downloads"
	LogsDirName = "logs"
)

// Characters to sanitize from filesystem paths
const InvalidPathChars = "<>:\"/\\|?*"
