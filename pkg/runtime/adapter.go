// Package runtime defines the Adapter contract for reading and mutating
// live WireGuard interfaces, and provides two implementations: a
// CLIAdapter that shells out to wg/ip, and a WgctrlAdapter that talks to
// the kernel directly through wgctrl.
package runtime

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotExists is returned by GetInterface when the named interface does
// not exist on the host.
var ErrNotExists = errors.New("interface does not exist")

// RuntimeError wraps an underlying command or syscall failure with
// whatever diagnostic detail the adapter could recover.
type RuntimeError struct {
	Message string
	Code    int
	Stderr  string
	cause    error
}

func (e *RuntimeError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("%s: %s", e.Message, e.Stderr)
	}
	return e.Message
}

func (e *RuntimeError) Unwrap() error { return e.cause }

func newRuntimeError(message string, cause error, stderr string) *RuntimeError {
	return &RuntimeError{Message: message, cause: cause, Stderr: stderr}
}

// RuntimePeer mirrors an observed WireGuard peer entry.
type RuntimePeer struct {
	PublicKey           string
	PresharedKey        string
	Endpoint            string
	AllowedIPs          []string
	LatestHandshake     int64
	TransferRx          int64
	TransferTx          int64
	PersistentKeepalive int
}

// RuntimeInterface mirrors an observed WireGuard interface and its peers.
type RuntimeInterface struct {
	PrivateKey string
	PublicKey  string
	ListenPort int
	FwMark     int
	MTU        int
	DNS        []string
	Table      string
	Peers      []RuntimePeer
}

// PeerSpec is everything an adapter needs to add, update, or synchronize
// one peer entry. PresharedKey, when non-empty, is written to a 0600
// temp file and passed by path, never by argv.
type PeerSpec struct {
	PublicKey           string
	PresharedKey        string
	Endpoint            string
	AllowedIPs          []string
	PersistentKeepalive int
}

// UpOptions configures UpInterface: bring an interface fully online.
type UpOptions struct {
	PrivateKey string
	ListenPort int
	Address    string
}

// SystemInfo is the best-effort host identity returned by GetSystemInfo.
type SystemInfo struct {
	Hostname string
	Version  string
}

// RemoveOptions controls RemovePeer's handling of a missing peer.
type RemoveOptions struct {
	IgnoreIfMissing bool
}

// Adapter is the polymorphic contract over a live WireGuard host. Both
// CLIAdapter and WgctrlAdapter satisfy it, so callers in pkg/provisioning
// never depend on how peers are actually applied.
type Adapter interface {
	ListInterfaces(ctx context.Context) ([]string, error)
	GetInterface(ctx context.Context, name string) (*RuntimeInterface, error)
	AddPeer(ctx context.Context, iface string, peer PeerSpec) error
	RemovePeer(ctx context.Context, iface, publicKey string, opts RemoveOptions) error
	UpdatePeer(ctx context.Context, iface string, peer PeerSpec) error
	ToggleInterface(ctx context.Context, iface string, up bool) error
	UpInterface(ctx context.Context, iface string, opts UpOptions) error
	GetSystemInfo(ctx context.Context) SystemInfo
}
