package synth

import (
	"sort"

	"github.com/meshwire/wgmesh/pkg/keys"
	"github.com/meshwire/wgmesh/pkg/model"
)

// ManifestNode is one node's entry in the manifest.
type ManifestNode struct {
	Name       string `json:"name"`
	Address    string `json:"address"`
	Endpoint   string `json:"endpoint"`
	ListenPort uint16 `json:"listenPort"`
	PublicKey  string `json:"publicKey"`
}

// ManifestClient is one client's entry in the manifest.
type ManifestClient struct {
	Name      string   `json:"name"`
	Address   string   `json:"address"`
	PublicKey string   `json:"publicKey"`
	Gateways  []string `json:"gateways"`
}

// Manifest is the JSON document recording everything generateZip produced.
type Manifest struct {
	NetworkCIDR      string              `json:"networkCidr"`
	InterfaceName    string              `json:"interfaceName"`
	EndpointVersion  string              `json:"endpointVersion"`
	AutoGenerateKeys bool                `json:"autoGenerateKeys"`
	Nodes            []ManifestNode      `json:"nodes"`
	Clients          []ManifestClient    `json:"clients"`
	Neighbors        map[string][]string `json:"neighbors"`
	PSKPairs         map[string]string   `json:"pskPairs"`
}

// BuildManifest assembles the manifest for a resolved mesh, deriving every
// PSK pair exactly once via psk (pair-commutative, per-pair cached).
func BuildManifest(mesh *model.ResolvedMesh, psk keys.PSKStrategy) (Manifest, error) {
	m := Manifest{
		NetworkCIDR:      mesh.Spec.NetworkCIDR,
		InterfaceName:    mesh.Spec.InterfaceName,
		EndpointVersion:  mesh.Spec.EndpointVersion,
		AutoGenerateKeys: mesh.Spec.AutoGenerateKeys,
		Neighbors:        make(map[string][]string, len(mesh.Nodes)),
		PSKPairs:         make(map[string]string),
	}

	gatewayNames := make([]string, 0, len(mesh.Gateways()))
	for _, gw := range mesh.Gateways() {
		gatewayNames = append(gatewayNames, mesh.Nodes[gw].Name)
	}

	for i, n := range mesh.Nodes {
		m.Nodes = append(m.Nodes, ManifestNode{
			Name:       n.Name,
			Address:    n.Address,
			Endpoint:   n.Endpoint,
			ListenPort: n.ListenPort,
			PublicKey:  n.PublicKey,
		})
		names := make([]string, 0, len(mesh.NeighborsOf[i]))
		for _, j := range mesh.NeighborsOf[i] {
			names = append(names, mesh.Nodes[j].Name)
			if err := addPSKPair(m.PSKPairs, psk, n.Name, mesh.Nodes[j].Name); err != nil {
				return Manifest{}, err
			}
		}
		sort.Strings(names)
		m.Neighbors[n.Name] = names
	}

	for _, c := range mesh.Clients {
		m.Clients = append(m.Clients, ManifestClient{
			Name:      c.Name,
			Address:   c.Address,
			PublicKey: c.PublicKey,
			Gateways:  gatewayNames,
		})
		for _, gw := range mesh.Gateways() {
			if err := addPSKPair(m.PSKPairs, psk, c.Name, mesh.Nodes[gw].Name); err != nil {
				return Manifest{}, err
			}
		}
	}

	return m, nil
}

func addPSKPair(dest map[string]string, psk keys.PSKStrategy, a, b string) error {
	key := pairManifestKey(a, b)
	if _, ok := dest[key]; ok {
		return nil
	}
	v, err := psk.DerivePSK(a, b)
	if err != nil {
		return err
	}
	dest[key] = v
	return nil
}

func pairManifestKey(a, b string) string {
	names := []string{a, b}
	sort.Strings(names)
	return names[0] + "::" + names[1]
}
