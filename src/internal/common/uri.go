package common

import (
	"path"
	"path/filepath"
	"strings"

	"go.lsp.dev/uri"
)

// FilePathToURI converts a path to a file:// document uri. Relative paths
// are made absolute first.
func FilePathToURI(path string) string {
	return string(uri.File(filepath.Clean(path)))
}

// RemotePathToURI builds the uri of a path on a remote host. The path is
// used verbatim so it never picks up the local separator or drive.
func RemotePathToURI(p string) string {
	return "file://" + path.Clean(p)
}

// URIToFilePath converts a file:// uri back to a path. Other schemes are
// returned unchanged.
func URIToFilePath(u string) string {
	if !strings.HasPrefix(u, "file://") {
		return u
	}
	return uri.URI(u).Filename()
}
