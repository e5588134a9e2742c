// Package remote runs commands and reads files on a host reached through an
// ssh tunnel.
package remote

import (
	"strconv"
	"strings"

	"lsp-indexer/src/internal/types"
)

// SSHCommand is the tunnel client binary
var SSHCommand = "ssh"

// BuildTunnelPrefix composes the argv that precedes a remote command string.
// Batch mode and forced pseudo-terminal allocation are always requested;
// several analysis servers refuse to run without a controlling terminal.
func BuildTunnelPrefix(target types.RemoteTarget) []string {
	argv := []string{
		SSHCommand,
		"-tt",
		"-o", "BatchMode=yes",
		"-o", "ConnectTimeout=" + strconv.Itoa(int(target.ConnectTimeout().Seconds())),
	}
	if target.Port > 0 {
		argv = append(argv, "-p", strconv.Itoa(target.Port))
	}
	if target.IdentityFile != "" {
		argv = append(argv, "-i", target.IdentityFile)
	}
	for _, opt := range target.ExtraOptions {
		opt = strings.TrimSpace(opt)
		if opt == "" {
			continue
		}
		if strings.HasPrefix(opt, "-") {
			argv = append(argv, strings.Fields(opt)...)
		} else {
			argv = append(argv, "-o", opt)
		}
	}
	return append(argv, target.Destination())
}

// TunnelPrefixString renders the prefix as a shell-quoted string for logs
func TunnelPrefixString(target types.RemoteTarget) string {
	return JoinQuoted(BuildTunnelPrefix(target))
}

// ShellQuote single-quotes s for a POSIX shell
func ShellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// QuotePath single-quotes a path while leaving a leading ~ unquoted so the
// remote shell can still expand it.
func QuotePath(path string) string {
	switch {
	case path == "~":
		return "~"
	case strings.HasPrefix(path, "~/"):
		return "~/" + ShellQuote(path[2:])
	default:
		return ShellQuote(path)
	}
}

func needsQuoting(s string) bool {
	if s == "" {
		return true
	}
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case strings.ContainsRune("-_./=:,+@%", r):
		default:
			return true
		}
	}
	return false
}

// JoinQuoted joins argv into a command line, quoting only where needed
func JoinQuoted(argv []string) string {
	parts := make([]string, len(argv))
	for i, a := range argv {
		if needsQuoting(a) {
			parts[i] = ShellQuote(a)
		} else {
			parts[i] = a
		}
	}
	return strings.Join(parts, " ")
}

// ServerCommand builds the remote command string that starts a language
// server in root. The terminal is switched to raw mode first so the forced
// pty neither echoes input nor rewrites the framing's line endings.
func ServerCommand(root, command string, args []string) string {
	cmdline := JoinQuoted(append([]string{command}, args...))
	return "stty raw -echo 2>/dev/null; cd " + QuotePath(root) + " && " + cmdline
}

// BuildServerArgv is the full argv for a tunnelled language server
func BuildServerArgv(target types.RemoteTarget, root, command string, args []string) []string {
	return append(BuildTunnelPrefix(target), ServerCommand(root, command, args))
}
