package provisioning

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meshwire/wgmesh/pkg/meshapi"
	"github.com/meshwire/wgmesh/pkg/model"
	"github.com/meshwire/wgmesh/pkg/runtime"
	"github.com/meshwire/wgmesh/pkg/state"
)

// fakeAdapter is an in-memory runtime.Adapter for exercising the
// provisioning service without a real wg/ip toolchain.
type fakeAdapter struct {
	mu         sync.Mutex
	interfaces map[string]*runtime.RuntimeInterface
	failOnAdd  map[string]bool // publicKey -> force AddPeer failure
}

func newFakeAdapter() *fakeAdapter {
	return &fakeAdapter{
		interfaces: map[string]*runtime.RuntimeInterface{},
		failOnAdd:  map[string]bool{},
	}
}

func (f *fakeAdapter) ensure(name string) *runtime.RuntimeInterface {
	if f.interfaces[name] == nil {
		f.interfaces[name] = &runtime.RuntimeInterface{}
	}
	return f.interfaces[name]
}

func (f *fakeAdapter) ListInterfaces(ctx context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var names []string
	for n := range f.interfaces {
		names = append(names, n)
	}
	return names, nil
}

func (f *fakeAdapter) GetInterface(ctx context.Context, name string) (*runtime.RuntimeInterface, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	iface, ok := f.interfaces[name]
	if !ok {
		return nil, runtime.ErrNotExists
	}
	copyPeers := append([]runtime.RuntimePeer{}, iface.Peers...)
	return &runtime.RuntimeInterface{PrivateKey: iface.PrivateKey, PublicKey: iface.PublicKey, ListenPort: iface.ListenPort, Peers: copyPeers}, nil
}

func (f *fakeAdapter) AddPeer(ctx context.Context, name string, peer runtime.PeerSpec) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failOnAdd[peer.PublicKey] {
		return assertError("simulated add failure for " + peer.PublicKey)
	}
	iface := f.ensure(name)
	for i, p := range iface.Peers {
		if p.PublicKey == peer.PublicKey {
			iface.Peers[i] = runtime.RuntimePeer{PublicKey: peer.PublicKey, AllowedIPs: peer.AllowedIPs, Endpoint: peer.Endpoint}
			return nil
		}
	}
	iface.Peers = append(iface.Peers, runtime.RuntimePeer{PublicKey: peer.PublicKey, AllowedIPs: peer.AllowedIPs, Endpoint: peer.Endpoint})
	return nil
}

func (f *fakeAdapter) UpdatePeer(ctx context.Context, name string, peer runtime.PeerSpec) error {
	return f.AddPeer(ctx, name, peer)
}

func (f *fakeAdapter) RemovePeer(ctx context.Context, name, publicKey string, opts runtime.RemoveOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	iface, ok := f.interfaces[name]
	if !ok {
		if opts.IgnoreIfMissing {
			return nil
		}
		return runtime.ErrNotExists
	}
	for i, p := range iface.Peers {
		if p.PublicKey == publicKey {
			iface.Peers = append(iface.Peers[:i], iface.Peers[i+1:]...)
			return nil
		}
	}
	if opts.IgnoreIfMissing {
		return nil
	}
	return assertError("peer not found: " + publicKey)
}

func (f *fakeAdapter) ToggleInterface(ctx context.Context, name string, up bool) error {
	return nil
}

func (f *fakeAdapter) UpInterface(ctx context.Context, name string, opts runtime.UpOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ensure(name)
	return nil
}

func (f *fakeAdapter) GetSystemInfo(ctx context.Context) runtime.SystemInfo {
	return runtime.SystemInfo{Hostname: "test", Version: "0.0.0"}
}

type simpleError string

func (e simpleError) Error() string { return string(e) }

func assertError(msg string) error { return simpleError(msg) }

func newTestService(t *testing.T) (*Service, *fakeAdapter) {
	store := state.NewStore(filepath.Join(t.TempDir(), "state.json"))
	adapter := newFakeAdapter()
	return New(store, adapter), adapter
}

func seedInterface(t *testing.T, svc *Service, name string, revision uint64, peers []model.Peer) {
	_, err := state.Update(svc.store, func(d *model.PersistedState) (struct{}, error) {
		d.Interfaces[name] = model.InterfaceRecord{Revision: revision, IsUp: true, ListenPort: 51820, AddressCIDR: "10.0.0.1/24"}
		d.Peers = peers
		return struct{}{}, nil
	})
	require.NoError(t, err)
}

func TestApplyDryRunPlanLeavesStateUnchanged(t *testing.T) {
	svc, _ := newTestService(t)
	seedInterface(t, svc, "wg0", 7, []model.Peer{
		{PeerID: "p1", Name: "P1", PublicKey: "P1PUB", AllowedIPs: []string{"10.0.0.2/32"}, IsActive: true, Interface: "wg0"},
	})

	result, err := svc.ApplyPeerOperations(context.Background(), "wg0", model.ApplyRequest{
		Revision: 7,
		DryRun:   true,
		Operations: []model.PeerOperation{
			{Kind: model.OpAdd, Peer: &model.Peer{PeerID: "p2", Name: "P2", PublicKey: "P2PUB", AllowedIPs: []string{"10.0.0.3/32"}, IsActive: true}},
			{Kind: model.OpToggle, PeerID: "p1", IsActive: false},
		},
	})
	require.NoError(t, err)

	dryRun, ok := result.(model.DryRunResult)
	require.True(t, ok)
	assert.True(t, dryRun.DryRun)
	assert.Equal(t, uint64(7), dryRun.CurrentRevision)
	assert.Equal(t, uint64(8), dryRun.NextRevision)
	assert.Equal(t, model.ApplySummary{Added: 1, Toggled: 1}, dryRun.Summary)
	require.Len(t, dryRun.Plan, 2)
	assert.Contains(t, dryRun.Plan[0], "[ADD]")
	assert.Contains(t, dryRun.Plan[1], "[REMOVE]")

	doc, err := svc.store.Load()
	require.NoError(t, err)
	assert.Equal(t, uint64(7), doc.Interfaces["wg0"].Revision)
	assert.Len(t, doc.Peers, 1)
}

func TestApplyRollsBackOnPartialFailure(t *testing.T) {
	svc, adapter := newTestService(t)
	seedInterface(t, svc, "wg0", 3, []model.Peer{
		{PeerID: "p1", Name: "P1", PublicKey: "P1PUB", AllowedIPs: []string{"10.0.0.2/32"}, IsActive: true, Interface: "wg0"},
	})
	require.NoError(t, adapter.UpInterface(context.Background(), "wg0", runtime.UpOptions{}))
	require.NoError(t, adapter.AddPeer(context.Background(), "wg0", runtime.PeerSpec{PublicKey: "P1PUB", AllowedIPs: []string{"10.0.0.2/32"}}))

	adapter.failOnAdd["P3PUB"] = true

	_, err := svc.ApplyPeerOperations(context.Background(), "wg0", model.ApplyRequest{
		Revision: 3,
		Operations: []model.PeerOperation{
			{Kind: model.OpAdd, Peer: &model.Peer{PeerID: "p2", Name: "P2", PublicKey: "P2PUB", AllowedIPs: []string{"10.0.0.3/32"}, IsActive: true}},
			{Kind: model.OpAdd, Peer: &model.Peer{PeerID: "p3", Name: "P3", PublicKey: "P3PUB", AllowedIPs: []string{"10.0.0.4/32"}, IsActive: true}},
		},
	})
	require.Error(t, err)
	assert.True(t, meshapi.As(err, meshapi.KindApplyFailed))

	live, err := adapter.GetInterface(context.Background(), "wg0")
	require.NoError(t, err)
	require.Len(t, live.Peers, 1)
	assert.Equal(t, "P1PUB", live.Peers[0].PublicKey)

	doc, err := svc.store.Load()
	require.NoError(t, err)
	assert.Equal(t, uint64(3), doc.Interfaces["wg0"].Revision)
	assert.Len(t, doc.Peers, 1)
}

func TestApplyRevisionConflict(t *testing.T) {
	svc, _ := newTestService(t)
	seedInterface(t, svc, "wg0", 5, nil)

	_, err := svc.ApplyPeerOperations(context.Background(), "wg0", model.ApplyRequest{Revision: 5, Operations: nil})
	require.NoError(t, err)

	doc, err := svc.store.Load()
	require.NoError(t, err)
	assert.Equal(t, uint64(6), doc.Interfaces["wg0"].Revision)

	_, err = svc.ApplyPeerOperations(context.Background(), "wg0", model.ApplyRequest{Revision: 5, Operations: nil})
	require.Error(t, err)
	assert.True(t, meshapi.As(err, meshapi.KindRevisionConflict))

	doc, err = svc.store.Load()
	require.NoError(t, err)
	assert.Equal(t, uint64(6), doc.Interfaces["wg0"].Revision)
}

func TestReconcileRuntimeToState(t *testing.T) {
	svc, adapter := newTestService(t)
	seedInterface(t, svc, "wg0", 2, []model.Peer{
		{PeerID: "p1", Name: "P1", PublicKey: "P1PUB", IsActive: true, Interface: "wg0"},
		{PeerID: "p2", Name: "P2", PublicKey: "P2PUB", IsActive: true, Interface: "wg0"},
	})
	require.NoError(t, adapter.UpInterface(context.Background(), "wg0", runtime.UpOptions{}))
	require.NoError(t, adapter.AddPeer(context.Background(), "wg0", runtime.PeerSpec{PublicKey: "P1PUB"}))
	require.NoError(t, adapter.AddPeer(context.Background(), "wg0", runtime.PeerSpec{PublicKey: "P3PUB"}))

	result, err := svc.ReconcileInterface(context.Background(), "wg0", ReconcileRequest{Revision: 2, Mode: model.ModeRuntimeToState})
	require.NoError(t, err)
	assert.True(t, result.DriftFound)
	assert.True(t, result.Reconciled)
	assert.Equal(t, uint64(3), result.Revision)
	assert.ElementsMatch(t, []string{"P2PUB"}, result.Missing)
	assert.ElementsMatch(t, []string{"P3PUB"}, result.Zombies)

	doc, err := svc.store.Load()
	require.NoError(t, err)
	byKey := map[string]model.Peer{}
	for _, p := range doc.Peers {
		byKey[p.PublicKey] = p
	}
	assert.True(t, byKey["P1PUB"].IsActive)
	assert.False(t, byKey["P2PUB"].IsActive)
	assert.True(t, byKey["P3PUB"].IsActive)
	assert.Contains(t, byKey["P3PUB"].Name, "runtime-")

	live, err := adapter.GetInterface(context.Background(), "wg0")
	require.NoError(t, err)
	assert.Len(t, live.Peers, 2, "runtime_to_state must not touch the runtime")
}

func TestAuditPagination(t *testing.T) {
	svc, _ := newTestService(t)
	for i := 0; i < 5; i++ {
		svc.audit.append("wg0", "test", "noop", "x", "")
	}

	page := svc.Audit("wg0", 2, "")
	assert.Len(t, page.Entries, 2)
	assert.NotEmpty(t, page.NextCursor)

	page2 := svc.Audit("wg0", 2, page.NextCursor)
	assert.Len(t, page2.Entries, 2)

	page3 := svc.Audit("wg0", 2, page2.NextCursor)
	assert.Len(t, page3.Entries, 1)
	assert.Empty(t, page3.NextCursor)
}

func TestAuditIsKeptPerInterface(t *testing.T) {
	svc, _ := newTestService(t)
	for i := 0; i < auditRingCap; i++ {
		svc.audit.append("wg0", "test", "noop", "x", "")
	}
	svc.audit.append("wg1", "test", "noop", "y", "")

	wg0Page := svc.Audit("wg0", auditRingCap, "")
	assert.Len(t, wg0Page.Entries, auditRingCap, "wg0's own history must not be evicted by wg1's unrelated append")

	wg1Page := svc.Audit("wg1", 10, "")
	require.Len(t, wg1Page.Entries, 1)
	assert.Equal(t, "wg1", wg1Page.Entries[0].Interface)
}
