// Package synth renders a ResolvedMesh into per-peer WireGuard configuration
// text, an optional routing-daemon fragment, a manifest, and the archive
// that bundles them — the "Config Synthesizer" component.
package synth

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/meshwire/wgmesh/pkg/keys"
	"github.com/meshwire/wgmesh/pkg/model"
)

var filenameUnsafe = regexp.MustCompile(`[^A-Za-z0-9_-]+`)

// SanitizeFilename trims the input and collapses any run of characters
// outside [A-Za-z0-9_-] into a single underscore.
func SanitizeFilename(s string) string {
	s = strings.TrimSpace(s)
	return filenameUnsafe.ReplaceAllString(s, "_")
}

// FormatEndpoint renders a "host:port" pair, bracketing the host for IPv6
// endpoints and stripping any brackets the caller already supplied.
func FormatEndpoint(version, host string, port uint16) string {
	host = strings.TrimPrefix(strings.TrimSuffix(host, "]"), "[")
	if version == "ipv6" {
		return fmt.Sprintf("[%s]:%d", host, port)
	}
	return fmt.Sprintf("%s:%d", host, port)
}

// RenderNodeConfig builds the [Interface]/[Peer]... text for the node at
// index i: its own interface stanza, one peer section per mesh neighbor,
// and — if the node is a gateway — one additional peer section per client.
func RenderNodeConfig(mesh *model.ResolvedMesh, i int, psk keys.PSKStrategy) (string, error) {
	spec := mesh.Spec
	node := mesh.Nodes[i]

	var b strings.Builder
	b.WriteString("[Interface]\n")
	fmt.Fprintf(&b, "Address = %s\n", node.Address)
	fmt.Fprintf(&b, "ListenPort = %d\n", node.ListenPort)
	fmt.Fprintf(&b, "PrivateKey = %s\n", node.PrivateKey)
	if spec.IncludeIPForwarding {
		b.WriteString("PostUp = sysctl -w net.ipv4.ip_forward=1\n")
		b.WriteString("PostDown = sysctl -w net.ipv4.ip_forward=0\n")
	}

	for _, j := range mesh.NeighborsOf[i] {
		peer := mesh.Nodes[j]
		presharedKey, err := psk.DerivePSK(node.Name, peer.Name)
		if err != nil {
			return "", err
		}
		b.WriteString("\n")
		fmt.Fprintf(&b, "# %s\n", peer.Name)
		b.WriteString("[Peer]\n")
		fmt.Fprintf(&b, "PublicKey = %s\n", peer.PublicKey)
		fmt.Fprintf(&b, "PresharedKey = %s\n", presharedKey)
		fmt.Fprintf(&b, "AllowedIPs = %s\n", peer.Address)
		fmt.Fprintf(&b, "Endpoint = %s\n", FormatEndpoint(spec.EndpointVersion, peer.Endpoint, peer.ListenPort))
		fmt.Fprintf(&b, "PersistentKeepalive = %d\n", spec.PersistentKeepalive)
	}

	if mesh.IsGateway(i) {
		for _, client := range mesh.Clients {
			presharedKey, err := psk.DerivePSK(client.Name, node.Name)
			if err != nil {
				return "", err
			}
			b.WriteString("\n")
			fmt.Fprintf(&b, "# %s\n", client.Name)
			b.WriteString("[Peer]\n")
			fmt.Fprintf(&b, "PublicKey = %s\n", client.PublicKey)
			fmt.Fprintf(&b, "PresharedKey = %s\n", presharedKey)
			fmt.Fprintf(&b, "AllowedIPs = %s\n", client.Address)
		}
	}

	return b.String(), nil
}

// RenderClientConfig builds the [Interface]/[Peer]... text for the client
// at index i: its own interface stanza plus one peer section per gateway,
// each carrying the whole mesh CIDR as AllowedIPs.
func RenderClientConfig(mesh *model.ResolvedMesh, i int, psk keys.PSKStrategy) (string, error) {
	spec := mesh.Spec
	client := mesh.Clients[i]

	var b strings.Builder
	b.WriteString("[Interface]\n")
	fmt.Fprintf(&b, "Address = %s\n", client.Address)
	fmt.Fprintf(&b, "PrivateKey = %s\n", client.PrivateKey)

	for _, gw := range mesh.Gateways() {
		gateway := mesh.Nodes[gw]
		presharedKey, err := psk.DerivePSK(client.Name, gateway.Name)
		if err != nil {
			return "", err
		}
		b.WriteString("\n")
		fmt.Fprintf(&b, "# %s\n", gateway.Name)
		b.WriteString("[Peer]\n")
		fmt.Fprintf(&b, "PublicKey = %s\n", gateway.PublicKey)
		fmt.Fprintf(&b, "PresharedKey = %s\n", presharedKey)
		fmt.Fprintf(&b, "AllowedIPs = %s\n", spec.NetworkCIDR)
		fmt.Fprintf(&b, "Endpoint = %s\n", FormatEndpoint(spec.EndpointVersion, gateway.Endpoint, gateway.ListenPort))
		fmt.Fprintf(&b, "PersistentKeepalive = %d\n", spec.PersistentKeepalive)
	}

	return b.String(), nil
}

// RenderBabeld builds the optional three-line babeld fragment for a node,
// when the mesh spec requests it.
func RenderBabeld(mesh *model.ResolvedMesh) string {
	return fmt.Sprintf("interface %s\nredistribute local\nredistribute ip %s\n", mesh.Spec.InterfaceName, mesh.Spec.NetworkCIDR)
}
