// Package version exposes build and version metadata.
package version

import (
	"fmt"
	"runtime"
)

// Overridden at build time with -ldflags "-X lsp-indexer/src/internal/version.Version=..."
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
	GoVersion = runtime.Version()
)

// ClientName is reported to servers in initialize.clientInfo
const ClientName = "lsp-indexer"

func GetVersion() string {
	return Version
}

func GetFullVersionInfo() string {
	return fmt.Sprintf("%s %s (commit: %s, built: %s, go: %s)",
		ClientName, Version, GitCommit, BuildDate, GoVersion)
}
