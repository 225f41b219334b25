package model

// Peer is a managed WireGuard peer belonging to one interface.
type Peer struct {
	PeerID              string   `json:"peerId"`
	Name                string   `json:"name"`
	PublicKey           string   `json:"publicKey"`
	PrivateKey          string   `json:"privateKey,omitempty"`
	AllowedIPs          []string `json:"allowedIps"`
	Endpoint            string   `json:"endpoint,omitempty"`
	PersistentKeepalive uint16   `json:"persistentKeepalive,omitempty"`
	IsActive            bool     `json:"isActive"`
	Interface           string   `json:"interface"`
}

// RuntimePeer is a peer as observed live on an interface by the runtime
// adapter, independent of whether the control plane manages it.
type RuntimePeer struct {
	PublicKey           string   `json:"publicKey"`
	PresharedKey        string   `json:"presharedKey,omitempty"`
	Endpoint            string   `json:"endpoint,omitempty"`
	AllowedIPs          []string `json:"allowedIps"`
	LatestHandshake     int64    `json:"latestHandshake"`
	TransferRx          uint64   `json:"transferRx"`
	TransferTx          uint64   `json:"transferTx"`
	PersistentKeepalive uint16   `json:"persistentKeepalive,omitempty"`
}

// RuntimeInterface is the live, adapter-observed view of an interface.
type RuntimeInterface struct {
	Name       string        `json:"name"`
	PrivateKey string        `json:"privateKey,omitempty"`
	PublicKey  string        `json:"publicKey,omitempty"`
	ListenPort int           `json:"listenPort"`
	FwMark     int           `json:"fwmark,omitempty"`
	MTU        int           `json:"mtu,omitempty"`
	DNS        []string      `json:"dns,omitempty"`
	Table      string        `json:"table,omitempty"`
	Peers      []RuntimePeer `json:"peers"`
}

// RuntimeInfo is the best-effort host identity the adapter can report.
type RuntimeInfo struct {
	Hostname string `json:"hostname"`
	Version  string `json:"version"`
}
