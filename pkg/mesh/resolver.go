// Package mesh turns a declarative MeshSpec into a ResolvedMesh: addresses
// assigned by position, keys filled in according to the spec's
// auto-generate policy, and the closed-form neighbor adjacency that decides
// which nodes tunnel directly to each other.
package mesh

import (
	"fmt"
	"regexp"

	"github.com/meshwire/wgmesh/pkg/cidr"
	"github.com/meshwire/wgmesh/pkg/keys"
	"github.com/meshwire/wgmesh/pkg/meshapi"
	"github.com/meshwire/wgmesh/pkg/model"
)

var ifaceNamePattern = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)

// Resolve validates spec and computes its ResolvedMesh.
func Resolve(spec model.MeshSpec) (*model.ResolvedMesh, error) {
	block, err := validate(spec)
	if err != nil {
		return nil, err
	}

	resolved := &model.ResolvedMesh{Spec: spec}
	resolved.Nodes = make([]model.ResolvedNode, len(spec.Nodes))
	for i, n := range spec.Nodes {
		addr, err := block.NodeAddressAt(i)
		if err != nil {
			return nil, err
		}
		priv, pub, err := fillKeys(n.PrivateKey, n.PublicKey, spec.AutoGenerateKeys)
		if err != nil {
			return nil, err
		}
		n.PrivateKey, n.PublicKey = priv, pub
		resolved.Nodes[i] = model.ResolvedNode{NodeInput: n, Address: addr}
	}

	resolved.Clients = make([]model.ResolvedClient, len(spec.Clients))
	for i, c := range spec.Clients {
		addr, err := block.ClientAddressAt(i)
		if err != nil {
			return nil, err
		}
		priv, pub, err := fillKeys(c.PrivateKey, c.PublicKey, spec.AutoGenerateKeys)
		if err != nil {
			return nil, err
		}
		c.PrivateKey, c.PublicKey = priv, pub
		resolved.Clients[i] = model.ResolvedClient{ClientInput: c, Address: addr}
	}

	resolved.NeighborsOf = make([][]int, len(spec.Nodes))
	for i := range spec.Nodes {
		resolved.NeighborsOf[i] = NeighborsOf(i, len(spec.Nodes))
	}

	return resolved, nil
}

// NeighborsOf implements the closed-form symmetric adjacency relation:
// empty for n<=1, the single other node for n==2, the other two for n==3,
// a ring (i±1 mod n) for 4<=n<6, and a ring plus chords (i±1, i±3 mod n)
// for n>=6.
func NeighborsOf(i, n int) []int {
	switch {
	case n <= 1:
		return nil
	case n == 2:
		return []int{1 - i}
	case n == 3:
		out := make([]int, 0, 2)
		for _, j := range []int{0, 1, 2} {
			if j != i {
				out = append(out, j)
			}
		}
		return out
	case n < 6:
		return dedupSorted([]int{mod(i-1, n), mod(i+1, n)})
	default:
		return dedupSorted([]int{mod(i-1, n), mod(i+1, n), mod(i-3, n), mod(i+3, n)})
	}
}

func mod(v, n int) int {
	v %= n
	if v < 0 {
		v += n
	}
	return v
}

func dedupSorted(vals []int) []int {
	seen := make(map[int]bool, len(vals))
	out := make([]int, 0, len(vals))
	for _, v := range vals {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}

func fillKeys(priv, pub string, autoGenerate bool) (string, string, error) {
	if autoGenerate && priv == "" && pub == "" {
		kp, err := keys.GenerateKeypair()
		if err != nil {
			return "", "", err
		}
		return kp.PrivateKey, kp.PublicKey, nil
	}
	if priv != "" && pub == "" {
		derived, err := keys.DerivePublic(priv)
		if err != nil {
			return "", "", err
		}
		return priv, derived, nil
	}
	if priv == "" || pub == "" {
		return "", "", meshapi.New(meshapi.KindMissingKey, "peer is missing a private or public key")
	}
	if err := keys.ValidateKey(priv); err != nil {
		return "", "", err
	}
	if err := keys.ValidateKey(pub); err != nil {
		return "", "", err
	}
	return priv, pub, nil
}

func validate(spec model.MeshSpec) (cidr.Block, error) {
	block, err := cidr.Parse(spec.NetworkCIDR)
	if err != nil {
		return cidr.Block{}, err
	}

	name := spec.InterfaceName
	if name == "" || len(name) > 32 || !ifaceNamePattern.MatchString(name) {
		return cidr.Block{}, meshapi.New(meshapi.KindValidation, "invalid interfaceName: "+name)
	}

	if spec.EndpointVersion != "ipv4" && spec.EndpointVersion != "ipv6" {
		return cidr.Block{}, meshapi.New(meshapi.KindValidation, "endpointVersion must be ipv4 or ipv6")
	}

	if spec.PersistentKeepalive < 0 {
		return cidr.Block{}, meshapi.New(meshapi.KindValidation, "persistentKeepalive must be >= 0")
	}

	if err := requireUniqueNames(spec); err != nil {
		return cidr.Block{}, err
	}

	nodeNames := make(map[string]bool, len(spec.Nodes))
	for _, n := range spec.Nodes {
		nodeNames[n.Name] = true
	}
	for _, g := range spec.GatewayNodeNames {
		if !nodeNames[g] {
			return cidr.Block{}, meshapi.New(meshapi.KindUnknownGateway, "gateway references unknown node: "+g)
		}
	}

	// A roster fits only if the address after its last member is still
	// inside the block (base+1+len(nodes) and base+101+len(clients) must not
	// pass Last), so the block's last address is never assigned.
	if len(spec.Nodes) > 0 {
		if _, err := block.NodeAddressAt(len(spec.Nodes)); err != nil {
			return cidr.Block{}, meshapi.New(meshapi.KindCapacityExceeded, fmt.Sprintf("%d nodes exceed cidr %s capacity", len(spec.Nodes), spec.NetworkCIDR))
		}
	}
	if len(spec.Clients) > 0 {
		if _, err := block.ClientAddressAt(len(spec.Clients)); err != nil {
			return cidr.Block{}, meshapi.New(meshapi.KindCapacityExceeded, fmt.Sprintf("%d clients exceed cidr %s capacity", len(spec.Clients), spec.NetworkCIDR))
		}
	}

	return block, nil
}

func requireUniqueNames(spec model.MeshSpec) error {
	seen := make(map[string]bool, len(spec.Nodes))
	for _, n := range spec.Nodes {
		if n.Name == "" {
			return meshapi.New(meshapi.KindValidation, "node name must not be empty")
		}
		if seen[n.Name] {
			return meshapi.New(meshapi.KindValidation, "duplicate node name: "+n.Name)
		}
		seen[n.Name] = true
	}
	seen = make(map[string]bool, len(spec.Clients))
	for _, c := range spec.Clients {
		if c.Name == "" {
			return meshapi.New(meshapi.KindValidation, "client name must not be empty")
		}
		if seen[c.Name] {
			return meshapi.New(meshapi.KindValidation, "duplicate client name: "+c.Name)
		}
		seen[c.Name] = true
	}
	return nil
}
