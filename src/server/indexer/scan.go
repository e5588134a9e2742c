package indexer

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	ignore "github.com/sabhiram/go-gitignore"
)

var errScanStopped = fmt.Errorf("scan stopped")

func (ix *Indexer) scan(ctx context.Context, r *run) ([]string, error) {
	if ix.isRemote() {
		return ix.scanRemote(ctx, r)
	}
	return ix.scanLocal(ctx, r)
}

func (ix *Indexer) wanted(name string) bool {
	return ix.extensions[strings.ToLower(filepath.Ext(name))]
}

func (ix *Indexer) skipDir(name string) bool {
	return strings.HasPrefix(name, ".") || ix.skipDirs[name]
}

// scanLocal walks the root in lexical order, skipping hidden entries, the
// directory deny-list, symlinks and, when enabled, .gitignore matches.
func (ix *Indexer) scanLocal(ctx context.Context, r *run) ([]string, error) {
	root, err := filepath.Abs(ix.opts.Root)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", root)
	}

	ix.mu.Lock()
	ix.scanRoot = root
	ix.mu.Unlock()

	var gi *ignore.GitIgnore
	if ix.opts.RespectGitignore {
		gi = loadGitignore(root)
	}

	var files []string
	err = filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if r.stopped() || ctx.Err() != nil {
			return errScanStopped
		}
		if err != nil {
			if p == root {
				return err
			}
			ix.logger.Debug("scan: skipping %s: %v", p, err)
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if p == root {
			return nil
		}

		name := d.Name()
		rel, relErr := filepath.Rel(root, p)
		if relErr != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if ix.skipDir(name) || (gi != nil && gi.MatchesPath(rel+"/")) {
				return filepath.SkipDir
			}
			return nil
		}

		if strings.HasPrefix(name, ".") || d.Type()&fs.ModeSymlink != 0 {
			return nil
		}
		if !ix.wanted(name) {
			return nil
		}
		if gi != nil && gi.MatchesPath(rel) {
			return nil
		}
		files = append(files, p)
		return nil
	})
	if err == errScanStopped {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	sort.Strings(files)
	return files, nil
}

func loadGitignore(root string) *ignore.GitIgnore {
	gi, err := ignore.CompileIgnoreFile(filepath.Join(root, ".gitignore"))
	if err != nil {
		return nil
	}
	return gi
}

func readLocalFile(p string) ([]byte, error) {
	return os.ReadFile(p)
}

type remoteDir struct {
	path  string
	depth int
}

// scanRemote lists the tree breadth-first through the adapter. Directories
// deeper than MaxRemoteDepth are not listed. A listing failure below the
// root skips that directory.
func (ix *Indexer) scanRemote(ctx context.Context, r *run) ([]string, error) {
	fsys := ix.opts.Remote
	if fsys == nil {
		return nil, fmt.Errorf("remote target has no adapter")
	}

	root := ix.opts.Root
	if strings.HasPrefix(root, "~") {
		root = fsys.ExpandTilde(ctx, root)
	}
	root = path.Clean(root)

	ix.mu.Lock()
	ix.scanRoot = root
	ix.mu.Unlock()

	var files []string
	queue := []remoteDir{{path: root, depth: 0}}
	for len(queue) > 0 {
		if r.stopped() {
			return nil, nil
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		dir := queue[0]
		queue = queue[1:]

		entries, err := fsys.ListDirectory(ctx, dir.path)
		if err != nil {
			if dir.path == root {
				return nil, err
			}
			ix.logger.Warn("scan: cannot list %s: %v", dir.path, err)
			continue
		}

		for _, e := range entries {
			child := path.Join(dir.path, e.Name)
			if e.IsDir {
				if ix.skipDir(e.Name) || dir.depth+1 > ix.opts.MaxRemoteDepth {
					continue
				}
				queue = append(queue, remoteDir{path: child, depth: dir.depth + 1})
				continue
			}
			if strings.HasPrefix(e.Name, ".") || !ix.wanted(e.Name) {
				continue
			}
			files = append(files, child)
		}
	}

	sort.Strings(files)
	return files, nil
}
