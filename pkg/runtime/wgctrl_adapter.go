package runtime

import (
	"context"
	"net"
	"os"
	"strings"

	"golang.zx2c4.com/wireguard/wgctrl"
	"golang.zx2c4.com/wireguard/wgctrl/wgtypes"
)

// WgctrlAdapter satisfies Adapter through golang.zx2c4.com/wireguard/wgctrl,
// talking to the kernel directly instead of shelling out to wg/ip.
type WgctrlAdapter struct {
	client *wgctrl.Client
}

// NewWgctrlAdapter opens the underlying wgctrl client.
func NewWgctrlAdapter() (*WgctrlAdapter, error) {
	c, err := wgctrl.New()
	if err != nil {
		return nil, newRuntimeError("open wgctrl client", err, "")
	}
	return &WgctrlAdapter{client: c}, nil
}

func (a *WgctrlAdapter) Close() error { return a.client.Close() }

func (a *WgctrlAdapter) ListInterfaces(ctx context.Context) ([]string, error) {
	devices, err := a.client.Devices()
	if err != nil {
		return nil, newRuntimeError("list wireguard devices", err, "")
	}
	names := make([]string, 0, len(devices))
	for _, d := range devices {
		names = append(names, d.Name)
	}
	return names, nil
}

func (a *WgctrlAdapter) GetInterface(ctx context.Context, name string) (*RuntimeInterface, error) {
	dev, err := a.client.Device(name)
	if err != nil {
		if isWgctrlNotExists(err) {
			return nil, ErrNotExists
		}
		return nil, newRuntimeError("get wireguard device "+name, err, "")
	}

	iface := &RuntimeInterface{
		PrivateKey: dev.PrivateKey.String(),
		PublicKey:  dev.PublicKey.String(),
		ListenPort: dev.ListenPort,
		FwMark:     dev.FirewallMark,
	}
	for _, p := range dev.Peers {
		peer := RuntimePeer{
			PublicKey:           p.PublicKey.String(),
			LatestHandshake:     p.LastHandshakeTime.Unix(),
			TransferRx:          p.ReceiveBytes,
			TransferTx:          p.TransmitBytes,
			PersistentKeepalive: int(p.PersistentKeepaliveInterval.Seconds()),
		}
		if p.PresharedKey != (wgtypes.Key{}) {
			peer.PresharedKey = p.PresharedKey.String()
		}
		if p.Endpoint != nil {
			peer.Endpoint = p.Endpoint.String()
		}
		for _, ip := range p.AllowedIPs {
			peer.AllowedIPs = append(peer.AllowedIPs, ip.String())
		}
		iface.Peers = append(iface.Peers, peer)
	}
	return iface, nil
}

func (a *WgctrlAdapter) AddPeer(ctx context.Context, iface string, peer PeerSpec) error {
	cfg, err := peerConfig(peer, false)
	if err != nil {
		return err
	}
	return a.configure(iface, cfg)
}

func (a *WgctrlAdapter) UpdatePeer(ctx context.Context, iface string, peer PeerSpec) error {
	return a.AddPeer(ctx, iface, peer)
}

func (a *WgctrlAdapter) RemovePeer(ctx context.Context, iface, publicKey string, opts RemoveOptions) error {
	pub, err := wgtypes.ParseKey(publicKey)
	if err != nil {
		return newRuntimeError("parse peer public key", err, "")
	}
	cfg := wgtypes.Config{Peers: []wgtypes.PeerConfig{{PublicKey: pub, Remove: true}}}
	err = a.client.ConfigureDevice(iface, cfg)
	if err != nil && opts.IgnoreIfMissing && isWgctrlNotExists(err) {
		return nil
	}
	if err != nil {
		return newRuntimeError("remove peer on "+iface, err, "")
	}
	return nil
}

func (a *WgctrlAdapter) configure(iface string, cfg wgtypes.Config) error {
	if err := a.client.ConfigureDevice(iface, cfg); err != nil {
		if isWgctrlNotExists(err) {
			return ErrNotExists
		}
		return newRuntimeError("configure device "+iface, err, "")
	}
	return nil
}

func peerConfig(peer PeerSpec, remove bool) (wgtypes.Config, error) {
	pub, err := wgtypes.ParseKey(peer.PublicKey)
	if err != nil {
		return wgtypes.Config{}, newRuntimeError("parse peer public key", err, "")
	}

	pc := wgtypes.PeerConfig{
		PublicKey:         pub,
		ReplaceAllowedIPs: true,
	}
	for _, cidr := range peer.AllowedIPs {
		_, ipnet, err := net.ParseCIDR(cidr)
		if err != nil {
			return wgtypes.Config{}, newRuntimeError("parse allowed ip "+cidr, err, "")
		}
		pc.AllowedIPs = append(pc.AllowedIPs, *ipnet)
	}
	if peer.Endpoint != "" {
		addr, err := net.ResolveUDPAddr("udp", peer.Endpoint)
		if err != nil {
			return wgtypes.Config{}, newRuntimeError("resolve peer endpoint "+peer.Endpoint, err, "")
		}
		pc.Endpoint = addr
	}
	if peer.PresharedKey != "" {
		psk, err := wgtypes.ParseKey(peer.PresharedKey)
		if err != nil {
			return wgtypes.Config{}, newRuntimeError("parse preshared key", err, "")
		}
		pc.PresharedKey = &psk
	}
	if peer.PersistentKeepalive > 0 {
		d := secondsToDuration(peer.PersistentKeepalive)
		pc.PersistentKeepaliveInterval = &d
	}

	return wgtypes.Config{Peers: []wgtypes.PeerConfig{pc}}, nil
}

func (a *WgctrlAdapter) ToggleInterface(ctx context.Context, iface string, up bool) error {
	return toggleLink(ctx, iface, up)
}

func (a *WgctrlAdapter) UpInterface(ctx context.Context, iface string, opts UpOptions) error {
	if !linkExists(iface) {
		if err := addWireguardLink(ctx, iface); err != nil {
			return err
		}
	}

	cfg := wgtypes.Config{}
	if opts.PrivateKey != "" {
		priv, err := wgtypes.ParseKey(opts.PrivateKey)
		if err != nil {
			return newRuntimeError("parse interface private key", err, "")
		}
		cfg.PrivateKey = &priv
	}
	if opts.ListenPort > 0 {
		cfg.ListenPort = &opts.ListenPort
	}
	if err := a.client.ConfigureDevice(iface, cfg); err != nil {
		return newRuntimeError("configure device "+iface, err, "")
	}

	if opts.Address != "" {
		if err := addLinkAddress(ctx, iface, opts.Address); err != nil {
			return err
		}
	}

	return toggleLink(ctx, iface, true)
}

func (a *WgctrlAdapter) GetSystemInfo(ctx context.Context) SystemInfo {
	info := SystemInfo{Hostname: "unknown", Version: "unknown"}
	if h, err := os.Hostname(); err == nil {
		info.Hostname = h
	}
	return info
}

func isWgctrlNotExists(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "no such device") || strings.Contains(msg, "no such network interface")
}
