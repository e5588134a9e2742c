package cli

import (
	"context"
	"fmt"
	"io"

	clicommon "lsp-indexer/src/cli/common"
	"lsp-indexer/src/config"
	"lsp-indexer/src/server/indexer"
)

// newRemoteFS is swapped in tests
var newRemoteFS = func(cfg *config.Config) indexer.RemoteFS {
	return clicommon.NewRemoteAdapter(cfg)
}

// RemoteList prints the children of a remote directory, directories with a
// trailing slash
func RemoteList(ctx context.Context, w io.Writer, fs indexer.RemoteFS, dir string) error {
	entries, err := fs.ListDirectory(ctx, fs.ExpandTilde(ctx, dir))
	if err != nil {
		return err
	}
	for _, e := range entries {
		fmt.Fprintln(w, e.String())
	}
	return nil
}

// RemoteCat copies a remote file to w
func RemoteCat(ctx context.Context, w io.Writer, fs indexer.RemoteFS, p string) error {
	data, err := fs.ReadFile(ctx, p)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// RemoteExpand prints p with a leading ~ resolved on the host
func RemoteExpand(ctx context.Context, w io.Writer, fs indexer.RemoteFS, p string) error {
	fmt.Fprintln(w, fs.ExpandTilde(ctx, p))
	return nil
}
