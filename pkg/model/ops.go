package model

// OpKind tags one variant of the applyPeerOperations discriminated union.
type OpKind string

const (
	OpAdd    OpKind = "add"
	OpUpdate OpKind = "update"
	OpToggle OpKind = "toggle"
	OpRemove OpKind = "remove"
)

// PeerPatch carries the fields an "update" op may change on an existing peer.
// Nil pointers mean "leave unchanged".
type PeerPatch struct {
	Name                *string   `json:"name,omitempty"`
	AllowedIPs          *[]string `json:"allowedIps,omitempty"`
	Endpoint            *string   `json:"endpoint,omitempty"`
	PersistentKeepalive *uint16   `json:"persistentKeepalive,omitempty"`
	IsActive            *bool     `json:"isActive,omitempty"`
}

// Apply returns a copy of p with the patch's non-nil fields overlaid.
func (patch PeerPatch) Apply(p Peer) Peer {
	if patch.Name != nil {
		p.Name = *patch.Name
	}
	if patch.AllowedIPs != nil {
		p.AllowedIPs = *patch.AllowedIPs
	}
	if patch.Endpoint != nil {
		p.Endpoint = *patch.Endpoint
	}
	if patch.PersistentKeepalive != nil {
		p.PersistentKeepalive = *patch.PersistentKeepalive
	}
	if patch.IsActive != nil {
		p.IsActive = *patch.IsActive
	}
	return p
}

// PeerOperation is one entry of the ordered operation list passed to
// applyPeerOperations. Exactly one of the fields matching Kind is populated.
type PeerOperation struct {
	Kind     OpKind    `json:"kind"`
	Peer     *Peer     `json:"peer,omitempty"`    // OpAdd
	PeerID   string    `json:"peerId,omitempty"`  // OpUpdate / OpToggle / OpRemove
	Patch    PeerPatch `json:"patch,omitempty"`    // OpUpdate
	IsActive bool      `json:"isActive,omitempty"` // OpToggle
}

// ApplyRequest is the body of applyPeerOperations.
type ApplyRequest struct {
	Revision   uint64          `json:"revision"`
	DryRun     bool            `json:"dryRun"`
	Operations []PeerOperation `json:"operations"`
}

// ApplySummary counts operations by kind, accumulated across a batch.
type ApplySummary struct {
	Added   int `json:"added"`
	Updated int `json:"updated"`
	Toggled int `json:"toggled"`
	Removed int `json:"removed"`
}

// ApplyResult is the response of a non-dry-run applyPeerOperations call.
type ApplyResult struct {
	Applied  bool         `json:"applied"`
	Revision uint64       `json:"revision"`
	Summary  ApplySummary `json:"summary"`
}

// DryRunResult is the response of a dry-run applyPeerOperations call.
type DryRunResult struct {
	DryRun          bool         `json:"dryRun"`
	CurrentRevision uint64       `json:"currentRevision"`
	NextRevision    uint64       `json:"nextRevision"`
	Plan            []string     `json:"plan"`
	Summary         ApplySummary `json:"summary"`
}

// ReconcileMode selects the direction drift correction flows.
type ReconcileMode string

const (
	ModeStateToRuntime ReconcileMode = "state_to_runtime"
	ModeRuntimeToState ReconcileMode = "runtime_to_state"
)

// ReconcileResult reports the drift found and whether it was corrected.
type ReconcileResult struct {
	DriftFound bool     `json:"driftFound"`
	Missing    []string `json:"missing"` // public keys missing from runtime
	Zombies    []string `json:"zombies"` // public keys with no managed peer
	Revision   uint64   `json:"revision"`
	Reconciled bool     `json:"reconciled"`
}

// InterfaceSummary is the list-view row returned by listInterfaces.
type InterfaceSummary struct {
	Name       string `json:"name"`
	IsUp       bool   `json:"isUp"`
	ListenPort int    `json:"listenPort"`
	PeerCount  int    `json:"peerCount"`
	LastSyncAt string `json:"lastSyncAt,omitempty"`
}

// InterfaceDetails is the merged view returned by getInterfaceDetails.
type InterfaceDetails struct {
	Name        string     `json:"name"`
	IsUp        bool       `json:"isUp"`
	ListenPort  int        `json:"listenPort"`
	AddressCIDR string     `json:"addressCidr,omitempty"`
	Revision    uint64     `json:"revision"`
	PrivateKey  string     `json:"privateKey,omitempty"` // masked
	PublicKey   string     `json:"publicKey,omitempty"`
	Peers       []PeerView `json:"peers"`
}

// PeerView is one row of the merged peer list: a managed peer plus its live
// counters, or a synthesized view of an unmanaged runtime peer.
type PeerView struct {
	Peer
	IsUnmanaged     bool   `json:"isUnmanaged,omitempty"`
	LatestHandshake int64  `json:"latestHandshake"`
	TransferRx      uint64 `json:"transferRx"`
	TransferTx      uint64 `json:"transferTx"`
}
