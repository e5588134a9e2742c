package common

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"go.lsp.dev/protocol"

	"lsp-indexer/src/config"
	"lsp-indexer/src/internal/common"
	"lsp-indexer/src/internal/errors"
	"lsp-indexer/src/internal/models/lsp"
	"lsp-indexer/src/server/remote"
)

// NewRemoteAdapter returns the adapter for the configured remote target
func NewRemoteAdapter(cfg *config.Config) *remote.Adapter {
	opts := []remote.Option{remote.WithLogger(common.IndexLogger)}
	if cfg.Remote.CommandTimeout > 0 {
		opts = append(opts, remote.WithCommandTimeout(cfg.Remote.CommandTimeout))
	}
	return remote.NewAdapter(cfg.Target(), opts...)
}

// ResolveRoot normalizes the workspace root. Remote roots default to the
// remote home and have a leading ~ expanded on the host.
func ResolveRoot(ctx context.Context, cfg *config.Config, root string) (string, error) {
	if cfg.Remote.Enabled {
		if root == "" {
			root = "~"
		}
		return NewRemoteAdapter(cfg).ExpandTilde(ctx, root), nil
	}
	return common.ValidateAndGetWorkingDir(root)
}

// ResolveFile makes file absolute. Relative remote paths are taken against
// root; relative local paths against the current directory.
func ResolveFile(ctx context.Context, cfg *config.Config, root, file string) (string, error) {
	if cfg.Remote.Enabled {
		switch {
		case strings.HasPrefix(file, "~"):
			return NewRemoteAdapter(cfg).ExpandTilde(ctx, file), nil
		case strings.HasPrefix(file, "/"):
			return path.Clean(file), nil
		default:
			return path.Join(root, file), nil
		}
	}
	expanded, err := common.ExpandPath(file)
	if err != nil {
		return "", err
	}
	return filepath.Abs(expanded)
}

// DocumentURI is the uri a resolved file is opened under
func DocumentURI(cfg *config.Config, file string) string {
	if cfg.Remote.Enabled {
		return common.RemotePathToURI(file)
	}
	return common.FilePathToURI(file)
}

// ReadDocument reads a resolved file from the local disk or the remote host
func ReadDocument(ctx context.Context, cfg *config.Config, file string) ([]byte, error) {
	if cfg.Remote.Enabled {
		return NewRemoteAdapter(cfg).ReadFile(ctx, file)
	}
	return os.ReadFile(file)
}

// ParsePosition converts 1-based line and column arguments to an LSP
// position.
func ParsePosition(lineArg, colArg string) (lsp.Position, error) {
	line, err := strconv.Atoi(lineArg)
	if err != nil || line < 1 {
		return lsp.Position{}, errors.NewValidationError("position", fmt.Sprintf("invalid line %q: must be a positive integer", lineArg))
	}
	col, err := strconv.Atoi(colArg)
	if err != nil || col < 1 {
		return lsp.Position{}, errors.NewValidationError("position", fmt.Sprintf("invalid column %q: must be a positive integer", colArg))
	}
	return lsp.Position{Line: uint32(line - 1), Character: uint32(col - 1)}, nil
}

// ParseSymbolKind accepts a kind name such as "class" or its LSP number
func ParseSymbolKind(name string) (lsp.SymbolKind, error) {
	if n, err := strconv.Atoi(name); err == nil {
		if n < int(protocol.SymbolKindFile) || n > int(protocol.SymbolKindTypeParameter) {
			return 0, fmt.Errorf("symbol kind %d out of range", n)
		}
		return lsp.SymbolKind(n), nil
	}
	for k := protocol.SymbolKindFile; k <= protocol.SymbolKindTypeParameter; k++ {
		if strings.EqualFold(k.String(), name) {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown symbol kind %q", name)
}

// PrintJSON writes v as indented JSON
func PrintJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
