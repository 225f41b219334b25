package model

import "time"

// PersistedState is the single on-disk document the state store owns.
type PersistedState struct {
	Version    int                        `json:"version"`
	UpdatedAt  time.Time                  `json:"updatedAt"`
	Interfaces map[string]InterfaceRecord `json:"interfaces"`
	Peers      []Peer                     `json:"peers"`
}

// NewPersistedState returns an empty, freshly-versioned document.
func NewPersistedState() PersistedState {
	return PersistedState{
		Version:    1,
		Interfaces: map[string]InterfaceRecord{},
		Peers:      []Peer{},
	}
}

// InterfaceRecord is the persisted metadata for one managed interface.
type InterfaceRecord struct {
	ListenPort  uint16 `json:"listenPort"`
	AddressCIDR string `json:"addressCidr"`
	Revision    uint64 `json:"revision"`
	IsUp        bool   `json:"isUp"`
	PrivateKey  string `json:"privateKey,omitempty"`
}

// DefaultInterfaceName is substituted for peers whose Interface field is
// empty, per the back-compat rule in the data model.
const DefaultInterfaceName = "wg0"

// PeersForInterface returns the peers belonging to name, applying the
// empty-interface-means-wg0 rule.
func PeersForInterface(peers []Peer, name string) []Peer {
	var out []Peer
	for _, p := range peers {
		if peerInterface(p) == name {
			out = append(out, p)
		}
	}
	return out
}

func peerInterface(p Peer) string {
	if p.Interface == "" {
		return DefaultInterfaceName
	}
	return p.Interface
}
