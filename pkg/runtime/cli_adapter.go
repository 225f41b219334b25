package runtime

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"os"
	"os/exec"
	"strconv"
	"strings"
)

// CLIAdapter satisfies Adapter by shelling out to the host's wg and ip
// tools, per spec.md §6.4's runtime tool contract.
type CLIAdapter struct {
	WGPath string
	IPPath string
}

// NewCLIAdapter returns a CLIAdapter defaulting to "wg" and "ip" on PATH.
func NewCLIAdapter() *CLIAdapter {
	return &CLIAdapter{WGPath: "wg", IPPath: "ip"}
}

func (a *CLIAdapter) wg() string {
	if a.WGPath != "" {
		return a.WGPath
	}
	return "wg"
}

func (a *CLIAdapter) ip() string {
	if a.IPPath != "" {
		return a.IPPath
	}
	return "ip"
}

func (a *CLIAdapter) ListInterfaces(ctx context.Context) ([]string, error) {
	out, err := run(ctx, a.wg(), "show", "interfaces")
	if err != nil {
		return nil, err
	}
	fields := strings.Fields(out)
	return fields, nil
}

func (a *CLIAdapter) GetInterface(ctx context.Context, name string) (*RuntimeInterface, error) {
	out, err := run(ctx, a.wg(), "show", name, "dump")
	if err != nil {
		if isNotExistsDiagnostic(err) {
			return nil, ErrNotExists
		}
		return nil, err
	}
	return parseDump(out)
}

// parseDump parses "wg show <iface> dump" output: the first tab-separated
// line is interface info (private-key, public-key, listen-port, fwmark),
// each following line is one peer (public-key, preshared-key, endpoint,
// allowed-ips, latest-handshake, rx, tx, keepalive).
func parseDump(out string) (*RuntimeInterface, error) {
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	if len(lines) == 0 || strings.TrimSpace(lines[0]) == "" {
		return &RuntimeInterface{}, nil
	}

	head := strings.Split(lines[0], "\t")
	if len(head) < 4 {
		return nil, newRuntimeError("malformed wg dump header", nil, out)
	}
	iface := &RuntimeInterface{}
	if head[0] != "(none)" {
		iface.PrivateKey = head[0]
	}
	if head[1] != "(none)" {
		iface.PublicKey = head[1]
	}
	iface.ListenPort, _ = strconv.Atoi(head[2])
	if head[3] != "off" {
		iface.FwMark, _ = strconv.Atoi(head[3])
	}

	for _, line := range lines[1:] {
		if strings.TrimSpace(line) == "" {
			continue
		}
		f := strings.Split(line, "\t")
		if len(f) < 8 {
			continue
		}
		peer := RuntimePeer{PublicKey: f[0]}
		if f[1] != "(none)" {
			peer.PresharedKey = f[1]
		}
		if f[2] != "(none)" {
			peer.Endpoint = f[2]
		}
		if f[3] != "(none)" {
			peer.AllowedIPs = strings.Split(f[3], ",")
		}
		peer.LatestHandshake, _ = parseInt64(f[4])
		peer.TransferRx, _ = parseInt64(f[5])
		peer.TransferTx, _ = parseInt64(f[6])
		if f[7] != "off" {
			peer.PersistentKeepalive, _ = strconv.Atoi(f[7])
		}
		iface.Peers = append(iface.Peers, peer)
	}
	return iface, nil
}

func parseInt64(s string) (int64, error) {
	v, err := strconv.ParseInt(s, 10, 64)
	return v, err
}

func (a *CLIAdapter) AddPeer(ctx context.Context, iface string, peer PeerSpec) error {
	return a.setPeer(ctx, iface, peer)
}

func (a *CLIAdapter) UpdatePeer(ctx context.Context, iface string, peer PeerSpec) error {
	return a.setPeer(ctx, iface, peer)
}

func (a *CLIAdapter) setPeer(ctx context.Context, iface string, peer PeerSpec) error {
	args := []string{"set", iface, "peer", peer.PublicKey}
	if len(peer.AllowedIPs) > 0 {
		args = append(args, "allowed-ips", strings.Join(peer.AllowedIPs, ","))
	}
	if peer.Endpoint != "" {
		args = append(args, "endpoint", peer.Endpoint)
	}
	if peer.PersistentKeepalive > 0 {
		args = append(args, "persistent-keepalive", strconv.Itoa(peer.PersistentKeepalive))
	}

	if peer.PresharedKey == "" {
		_, err := run(ctx, a.wg(), args...)
		return err
	}

	path, cleanup, err := writeSecretTempFile(peer.PresharedKey)
	if err != nil {
		return err
	}
	defer cleanup()
	args = append(args, "preshared-key", path)
	_, err = run(ctx, a.wg(), args...)
	return err
}

func (a *CLIAdapter) RemovePeer(ctx context.Context, iface, publicKey string, opts RemoveOptions) error {
	_, err := run(ctx, a.wg(), "set", iface, "peer", publicKey, "remove")
	if err != nil && opts.IgnoreIfMissing && isNotExistsDiagnostic(err) {
		return nil
	}
	return err
}

func (a *CLIAdapter) ToggleInterface(ctx context.Context, iface string, up bool) error {
	state := "down"
	if up {
		state = "up"
	}
	_, err := run(ctx, a.ip(), "link", "set", iface, state)
	return err
}

func (a *CLIAdapter) UpInterface(ctx context.Context, iface string, opts UpOptions) error {
	if !a.ifaceExists(iface) {
		if _, err := run(ctx, a.ip(), "link", "add", "dev", iface, "type", "wireguard"); err != nil {
			return err
		}
	}

	if opts.PrivateKey != "" {
		path, cleanup, err := writeSecretTempFile(opts.PrivateKey)
		if err != nil {
			return err
		}
		args := []string{"set", iface, "private-key", path}
		if opts.ListenPort > 0 {
			args = append(args, "listen-port", strconv.Itoa(opts.ListenPort))
		}
		_, err = run(ctx, a.wg(), args...)
		cleanup()
		if err != nil {
			return err
		}
	}

	if opts.Address != "" {
		if _, err := run(ctx, a.ip(), "addr", "add", opts.Address, "dev", iface); err != nil && !strings.Contains(err.Error(), "File exists") {
			return err
		}
	}

	_, err := run(ctx, a.ip(), "link", "set", iface, "up")
	return err
}

func (a *CLIAdapter) GetSystemInfo(ctx context.Context) SystemInfo {
	info := SystemInfo{Hostname: "unknown", Version: "unknown"}
	if h, err := os.Hostname(); err == nil {
		info.Hostname = h
	}
	if out, err := run(ctx, a.wg(), "--version"); err == nil {
		if fields := strings.Fields(out); len(fields) > 0 {
			info.Version = fields[len(fields)-1]
		}
	}
	return info
}

func (a *CLIAdapter) ifaceExists(iface string) bool {
	if iface == "" {
		return false
	}
	_, err := net.InterfaceByName(iface)
	return err == nil
}

func run(ctx context.Context, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", newRuntimeError(fmt.Sprintf("%s %v failed", name, args), err, strings.TrimSpace(stderr.String()))
	}
	return stdout.String(), nil
}

func isNotExistsDiagnostic(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "No such device") || strings.Contains(msg, "Unable to access interface")
}

func writeSecretTempFile(secret string) (path string, cleanup func(), err error) {
	f, err := os.CreateTemp("", "wgmesh-secret-*")
	if err != nil {
		return "", nil, newRuntimeError("create secret temp file", err, "")
	}
	path = f.Name()
	cleanup = func() { os.Remove(path) }

	if err := f.Chmod(0600); err != nil {
		f.Close()
		cleanup()
		return "", nil, newRuntimeError("chmod secret temp file", err, "")
	}
	if _, err := f.WriteString(secret); err != nil {
		f.Close()
		cleanup()
		return "", nil, newRuntimeError("write secret temp file", err, "")
	}
	if err := f.Close(); err != nil {
		cleanup()
		return "", nil, newRuntimeError("close secret temp file", err, "")
	}
	return path, cleanup, nil
}
