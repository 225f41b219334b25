package provisioning

import (
	"context"
	"time"

	"github.com/meshwire/wgmesh/pkg/meshapi"
	"github.com/meshwire/wgmesh/pkg/model"
	"github.com/meshwire/wgmesh/pkg/runtime"
	"github.com/meshwire/wgmesh/pkg/state"
)

// DeployRequest is the body of DeployMeshConfig: a full replace of one
// interface's record and peer set.
type DeployRequest struct {
	Interface  string
	ListenPort uint16
	Address    string
	PrivateKey string
	Peers      []model.Peer
	// PSKs carries a transient preshared key per peer public key, applied
	// at the runtime layer only; the persisted Peer record never stores it.
	PSKs map[string]string
}

// DeployMeshConfig persists the new interface record and peer set, brings
// the interface up, and purges+reapplies runtime peers wholesale, per
// §4.7(6). It does not take a revision: a deploy always wins.
func (s *Service) DeployMeshConfig(ctx context.Context, req DeployRequest) (model.InterfaceDetails, error) {
	name := normalizedInterface(req.Interface)

	_, err := state.Update(s.store, func(d *model.PersistedState) (struct{}, error) {
		rec := d.Interfaces[name]
		rec.ListenPort = req.ListenPort
		rec.AddressCIDR = req.Address
		rec.PrivateKey = req.PrivateKey
		rec.IsUp = true
		rec.Revision++
		d.Interfaces[name] = rec

		peers := make([]model.Peer, len(req.Peers))
		copy(peers, req.Peers)
		for i := range peers {
			peers[i].Interface = name
		}
		d.Peers = replacePeersForInterface(d.Peers, name, peers)
		d.UpdatedAt = time.Now()
		return struct{}{}, nil
	})
	if err != nil {
		return model.InterfaceDetails{}, err
	}

	if err := s.runtime.UpInterface(ctx, name, runtime.UpOptions{
		PrivateKey: req.PrivateKey,
		ListenPort: int(req.ListenPort),
		Address:    req.Address,
	}); err != nil {
		return model.InterfaceDetails{}, meshapi.Wrap(meshapi.KindRuntimeError, "bring up interface "+name, err)
	}

	if live, err := s.runtime.GetInterface(ctx, name); err == nil {
		for _, p := range live.Peers {
			if rbErr := s.runtime.RemovePeer(ctx, name, p.PublicKey, runtime.RemoveOptions{IgnoreIfMissing: true}); rbErr != nil {
				s.log.Warn().Err(rbErr).Str("interface", name).Msg("purge runtime peer failed during deploy")
			}
		}
	}

	for _, p := range req.Peers {
		spec := toPeerSpecPlain(p)
		spec.PresharedKey = req.PSKs[p.PublicKey]
		if err := s.runtime.AddPeer(ctx, name, spec); err != nil {
			return model.InterfaceDetails{}, meshapi.Wrap(meshapi.KindRuntimeError, "add peer during deploy", err)
		}
	}

	s.audit.append(name, "provisioning", "interface.deploy", name, "")
	return s.GetInterfaceDetails(ctx, name)
}
