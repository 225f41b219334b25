package mesh

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meshwire/wgmesh/pkg/meshapi"
	"github.com/meshwire/wgmesh/pkg/model"
)

func baseSpec() model.MeshSpec {
	return model.MeshSpec{
		NetworkCIDR:         "10.20.0.0/24",
		InterfaceName:       "wg0",
		EndpointVersion:     "ipv4",
		PersistentKeepalive: 25,
		EnableBabel:         true,
		IncludeIPForwarding: true,
		AutoGenerateKeys:    true,
		Nodes: []model.NodeInput{
			{ID: "n1", Name: "N1", Endpoint: "1.1.1.1", ListenPort: 51820},
			{ID: "n2", Name: "N2", Endpoint: "2.2.2.2", ListenPort: 51820},
			{ID: "n3", Name: "N3", Endpoint: "3.3.3.3", ListenPort: 51820},
		},
		Clients:          []model.ClientInput{{ID: "c1", Name: "C1"}},
		GatewayNodeNames: []string{"N1"},
	}
}

func TestResolveBasicFullMesh(t *testing.T) {
	mesh, err := Resolve(baseSpec())
	require.NoError(t, err)

	assert.Equal(t, "10.20.0.1/32", mesh.Nodes[0].Address)
	assert.Equal(t, "10.20.0.2/32", mesh.Nodes[1].Address)
	assert.Equal(t, "10.20.0.3/32", mesh.Nodes[2].Address)
	assert.Equal(t, "10.20.0.101/32", mesh.Clients[0].Address)

	// n=3 special case: every other node is a neighbor.
	assert.ElementsMatch(t, []int{1, 2}, mesh.NeighborsOf[0])
	assert.True(t, mesh.IsGateway(0))
	assert.False(t, mesh.IsGateway(1))

	for _, n := range mesh.Nodes {
		assert.NotEmpty(t, n.PrivateKey)
		assert.NotEmpty(t, n.PublicKey)
	}
}

func TestNeighborAdjacencyIsSymmetric(t *testing.T) {
	for n := 0; n <= 12; n++ {
		for i := 0; i < n; i++ {
			for _, j := range NeighborsOf(i, n) {
				assert.Contains(t, NeighborsOf(j, n), i, "n=%d i=%d j=%d", n, i, j)
			}
		}
	}
}

func TestRingAtSix(t *testing.T) {
	got := NeighborsOf(0, 6)
	assert.ElementsMatch(t, []int{1, 5, 3}, got)
}

func TestPrefix30BoundarySucceedsWithOneNode(t *testing.T) {
	spec := baseSpec()
	spec.NetworkCIDR = "10.20.0.0/30"
	spec.Nodes = spec.Nodes[:1]
	spec.Clients = nil
	spec.GatewayNodeNames = nil
	_, err := Resolve(spec)
	assert.NoError(t, err)
}

func TestPrefix30BoundaryFailsWithTwoClients(t *testing.T) {
	spec := baseSpec()
	spec.NetworkCIDR = "10.20.0.0/30"
	spec.Nodes = spec.Nodes[:1]
	spec.Clients = []model.ClientInput{{ID: "c1", Name: "C1"}, {ID: "c2", Name: "C2"}}
	spec.GatewayNodeNames = nil
	_, err := Resolve(spec)
	assert.Error(t, err)
	assert.True(t, meshapi.As(err, meshapi.KindCapacityExceeded))
}

func TestUnknownGatewayFails(t *testing.T) {
	spec := baseSpec()
	spec.GatewayNodeNames = []string{"does-not-exist"}
	_, err := Resolve(spec)
	assert.Error(t, err)
	assert.True(t, meshapi.As(err, meshapi.KindUnknownGateway))
}

func TestMissingKeyWhenAutoGenerateDisabled(t *testing.T) {
	spec := baseSpec()
	spec.AutoGenerateKeys = false
	_, err := Resolve(spec)
	assert.Error(t, err)
	assert.True(t, meshapi.As(err, meshapi.KindMissingKey))
}

func TestDuplicateNodeNameFails(t *testing.T) {
	spec := baseSpec()
	spec.Nodes[1].Name = spec.Nodes[0].Name
	_, err := Resolve(spec)
	assert.Error(t, err)
}
