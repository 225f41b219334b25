package httpapi

import (
	"github.com/google/uuid"

	"github.com/meshwire/wgmesh/pkg/keys"
	"github.com/meshwire/wgmesh/pkg/model"
	"github.com/meshwire/wgmesh/pkg/synth"
)

// deployPeersFor builds the peer set /api/deploy persists for nodeName:
// one managed peer per mesh neighbor plus, if nodeName is a gateway, one
// per client — the same adjacency RenderNodeConfig uses, expressed as
// model.Peer records instead of config text. The second return value maps
// each peer's public key to its derived preshared key; it is applied at
// the runtime layer only and never persisted onto model.Peer.
func deployPeersFor(mesh *model.ResolvedMesh, nodeName string, psk keys.PSKStrategy) ([]model.Peer, map[string]string, error) {
	var selfIdx int = -1
	for i, n := range mesh.Nodes {
		if n.Name == nodeName {
			selfIdx = i
			break
		}
	}
	if selfIdx < 0 {
		return nil, nil, nil
	}
	self := mesh.Nodes[selfIdx]

	var peers []model.Peer
	psks := make(map[string]string)
	for _, j := range mesh.NeighborsOf[selfIdx] {
		n := mesh.Nodes[j]
		presharedKey, err := psk.DerivePSK(self.Name, n.Name)
		if err != nil {
			return nil, nil, err
		}
		psks[n.PublicKey] = presharedKey
		peers = append(peers, model.Peer{
			PeerID:              uuid.NewString(),
			Name:                n.Name,
			PublicKey:           n.PublicKey,
			AllowedIPs:          []string{n.Address},
			Endpoint:            synth.FormatEndpoint(mesh.Spec.EndpointVersion, n.Endpoint, n.ListenPort),
			PersistentKeepalive: uint16(mesh.Spec.PersistentKeepalive),
			IsActive:            true,
		})
	}

	if mesh.IsGateway(selfIdx) {
		for _, c := range mesh.Clients {
			presharedKey, err := psk.DerivePSK(c.Name, self.Name)
			if err != nil {
				return nil, nil, err
			}
			psks[c.PublicKey] = presharedKey
			peers = append(peers, model.Peer{
				PeerID:     uuid.NewString(),
				Name:       c.Name,
				PublicKey:  c.PublicKey,
				AllowedIPs: []string{c.Address},
				IsActive:   true,
			})
		}
	}

	return peers, psks, nil
}
