package common

import (
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
)

// PlatformExpand lists the file names an executable may have on this platform
func PlatformExpand(names []string) []string {
	out := make([]string, 0, len(names)*4)
	for _, n := range names {
		if runtime.GOOS == "windows" && filepath.Ext(n) == "" {
			out = append(out, n, n+".exe", n+".cmd", n+".bat")
		} else {
			out = append(out, n)
		}
	}
	seen := map[string]struct{}{}
	uniq := make([]string, 0, len(out))
	for _, v := range out {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		uniq = append(uniq, v)
	}
	return uniq
}

// FirstExistingExecutable returns the first candidate found on PATH, or an
// absolute candidate that exists and is executable. Empty when none match.
func FirstExistingExecutable(names []string) string {
	for _, n := range PlatformExpand(names) {
		if filepath.IsAbs(n) {
			if info, err := os.Stat(n); err == nil && !info.IsDir() && (runtime.GOOS == "windows" || info.Mode()&0111 != 0) {
				return n
			}
			continue
		}
		if p, err := exec.LookPath(n); err == nil {
			return p
		}
	}
	return ""
}
