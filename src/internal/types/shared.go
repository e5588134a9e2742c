package types

import (
	"fmt"
	"time"
)

// ClientConfig contains configuration for an LSP client process
type ClientConfig struct {
	Command               string
	Args                  []string
	WorkingDir            string
	Language              string
	Target                ExecutionTarget
	InitializationOptions interface{} // Optional initialization options from config
}

// RemoteTarget describes how to reach a host over ssh. Zero values mean
// "use the ssh default" except ConnectTimeoutSeconds, which falls back to
// DefaultConnectTimeoutSeconds.
type RemoteTarget struct {
	Enabled               bool
	Host                  string
	Port                  int
	User                  string
	IdentityFile          string
	ExtraOptions          []string
	ConnectTimeoutSeconds int
}

// DefaultConnectTimeoutSeconds bounds the ssh handshake when no timeout is configured
const DefaultConnectTimeoutSeconds = 10

// Valid reports whether the target can be used for remote execution
func (r *RemoteTarget) Valid() bool {
	return r != nil && r.Enabled && r.Host != ""
}

// ConnectTimeout returns the effective ssh connect timeout
func (r *RemoteTarget) ConnectTimeout() time.Duration {
	if r == nil || r.ConnectTimeoutSeconds <= 0 {
		return DefaultConnectTimeoutSeconds * time.Second
	}
	return time.Duration(r.ConnectTimeoutSeconds) * time.Second
}

// Destination returns [user@]host
func (r *RemoteTarget) Destination() string {
	if r.User == "" {
		return r.Host
	}
	return r.User + "@" + r.Host
}

// ExecutionTarget is either local (Remote == nil) or a remote host.
type ExecutionTarget struct {
	Remote *RemoteTarget
}

// LocalTarget returns the local execution target
func LocalTarget() ExecutionTarget {
	return ExecutionTarget{}
}

// NewRemoteTarget wraps a remote description into an execution target
func NewRemoteTarget(r RemoteTarget) ExecutionTarget {
	return ExecutionTarget{Remote: &r}
}

// IsRemote reports whether commands and file access go over the tunnel
func (t ExecutionTarget) IsRemote() bool {
	return t.Remote != nil
}

func (t ExecutionTarget) String() string {
	if t.Remote == nil {
		return "local"
	}
	if t.Remote.Port > 0 {
		return fmt.Sprintf("remote(%s:%d)", t.Remote.Destination(), t.Remote.Port)
	}
	return fmt.Sprintf("remote(%s)", t.Remote.Destination())
}
