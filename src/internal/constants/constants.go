package constants

import "time"

// Timeout constants for LSP operations
const (
	// DefaultRequestTimeout bounds context-form queries
	DefaultRequestTimeout = 30 * time.Second
	// DefaultInitializeTimeout bounds InitializeAndWait
	DefaultInitializeTimeout = 15 * time.Second
	// ShutdownRequestTimeout bounds the shutdown request during Stop
	ShutdownRequestTimeout = 2 * time.Second
	// ProcessExitTimeout is how long Stop waits for the process after exit
	ProcessExitTimeout = 1 * time.Second
	// ProcessShutdownTimeout is the overall cap for a graceful stop
	ProcessShutdownTimeout = 5 * time.Second
)

// Indexing constants
const (
	// DefaultStepTimeout bounds a single documentSymbol step
	DefaultStepTimeout = 5 * time.Second
	// DefaultPollInterval drives transport draining
	DefaultPollInterval = 50 * time.Millisecond
	// DefaultMaxRemoteDepth caps breadth-first remote scans
	DefaultMaxRemoteDepth = 8
	// DefaultRemoteCommandTimeout is added to the ssh connect timeout for each remote call
	DefaultRemoteCommandTimeout = 15 * time.Second
)

// File and directory constants
const (
	// Debounce delay for file watching
	FileWatchDebounceDelay = 500 * time.Millisecond
)

// SupportedExtensions maps language ids to the source extensions indexed for them
var SupportedExtensions = map[string][]string{
	"c":          {".c", ".h"},
	"cpp":        {".cpp", ".cc", ".cxx", ".hpp", ".hh", ".hxx", ".inl"},
	"go":         {".go"},
	"python":     {".py", ".pyi"},
	"javascript": {".js", ".jsx", ".mjs"},
	"typescript": {".ts", ".tsx"},
	"java":       {".java"},
	"rust":       {".rs"},
	"csharp":     {".cs"},
}

// SkipDirectories is the fixed deny-list applied during scans. Hidden
// entries are skipped separately.
var SkipDirectories = map[string]bool{
	"node_modules": true,
	"vendor":       true,
	"build":        true,
	"dist":         true,
	"target":       true,
	"__pycache__":  true,
	"bin":          true,
	"obj":          true,
	"out":          true,
}

// GetAllSupportedExtensions returns all supported file extensions
func GetAllSupportedExtensions() []string {
	extensions := make([]string, 0)
	seen := make(map[string]bool)
	for _, exts := range SupportedExtensions {
		for _, ext := range exts {
			if !seen[ext] {
				extensions = append(extensions, ext)
				seen[ext] = true
			}
		}
	}
	return extensions
}

// GetSkipDirectories returns the deny-list as a slice
func GetSkipDirectories() []string {
	dirs := make([]string, 0, len(SkipDirectories))
	for d := range SkipDirectories {
		dirs = append(dirs, d)
	}
	return dirs
}
