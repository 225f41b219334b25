package model

// ResolvedMesh is the output of the resolver: every node and client with an
// assigned address and filled-in keys, plus the neighbor adjacency that
// governs which nodes tunnel directly to each other.
type ResolvedMesh struct {
	Spec        MeshSpec
	Nodes       []ResolvedNode
	Clients     []ResolvedClient
	NeighborsOf [][]int // NeighborsOf[i] = indices of Nodes that node i tunnels to
}

// ResolvedNode is a NodeInput with its assigned address and completed keypair.
type ResolvedNode struct {
	NodeInput
	Address string // a.b.c.d/32
}

// ResolvedClient is a ClientInput with its assigned address and completed keypair.
type ResolvedClient struct {
	ClientInput
	Address string // a.b.c.d/32
}

// IsGateway reports whether the node at index i is in the mesh's gateway set.
func (m *ResolvedMesh) IsGateway(i int) bool {
	name := m.Nodes[i].Name
	for _, g := range m.Spec.GatewayNodeNames {
		if g == name {
			return true
		}
	}
	return false
}

// Gateways returns the indices of nodes in the gateway set, in node order.
func (m *ResolvedMesh) Gateways() []int {
	var out []int
	for i := range m.Nodes {
		if m.IsGateway(i) {
			out = append(out, i)
		}
	}
	return out
}
