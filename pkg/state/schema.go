package state

import (
	"encoding/json"

	"github.com/meshwire/wgmesh/pkg/meshapi"
	"github.com/meshwire/wgmesh/pkg/model"
)

// decodeAndValidate unmarshals data into a PersistedState and rejects any
// shape that isn't a recognizable document: a missing or non-positive
// version, a missing interfaces map, an empty interface name, or a peer
// without a peerId or publicKey. Unknown top-level fields are tolerated
// (forward compatibility); anything that fails to unmarshal at all (a
// negative revision, for instance) is always CorruptState.
func decodeAndValidate(data []byte) (model.PersistedState, error) {
	var doc model.PersistedState
	if err := json.Unmarshal(data, &doc); err != nil {
		return model.PersistedState{}, meshapi.Wrap(meshapi.KindCorruptState, "decode state document", err)
	}

	if doc.Version <= 0 {
		return model.PersistedState{}, meshapi.New(meshapi.KindCorruptState, "state document has invalid version")
	}
	if doc.Interfaces == nil {
		return model.PersistedState{}, meshapi.New(meshapi.KindCorruptState, "state document is missing interfaces map")
	}
	for name, rec := range doc.Interfaces {
		if name == "" {
			return model.PersistedState{}, meshapi.New(meshapi.KindCorruptState, "state document has an empty interface name")
		}
		_ = rec
	}
	for _, p := range doc.Peers {
		if p.PeerID == "" || p.PublicKey == "" {
			return model.PersistedState{}, meshapi.New(meshapi.KindCorruptState, "state document has a peer missing peerId or publicKey")
		}
	}

	return doc, nil
}
