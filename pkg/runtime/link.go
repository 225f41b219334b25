package runtime

import (
	"context"
	"net"
	"strings"
	"time"
)

// wgctrl manages device crypto state but not link existence or link state;
// those still go through ip, same as CLIAdapter's link handling.

func linkExists(iface string) bool {
	_, err := net.InterfaceByName(iface)
	return err == nil
}

func addWireguardLink(ctx context.Context, iface string) error {
	_, err := run(ctx, "ip", "link", "add", "dev", iface, "type", "wireguard")
	return err
}

func toggleLink(ctx context.Context, iface string, up bool) error {
	state := "down"
	if up {
		state = "up"
	}
	_, err := run(ctx, "ip", "link", "set", iface, state)
	return err
}

func addLinkAddress(ctx context.Context, iface, cidr string) error {
	_, err := run(ctx, "ip", "addr", "add", cidr, "dev", iface)
	if err != nil && strings.Contains(err.Error(), "File exists") {
		return nil
	}
	return err
}

func secondsToDuration(seconds int) time.Duration {
	return time.Duration(seconds) * time.Second
}
