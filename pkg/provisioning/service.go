// Package provisioning implements the provisioning service: the component
// that turns a revision-checked operation against one interface into a
// sequence of runtime adapter calls, a persisted state update, and an
// audit trail, with compensating rollback on partial failure.
package provisioning

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/meshwire/wgmesh/pkg/meshapi"
	"github.com/meshwire/wgmesh/pkg/model"
	"github.com/meshwire/wgmesh/pkg/runtime"
	"github.com/meshwire/wgmesh/pkg/state"
	"github.com/meshwire/wgmesh/pkg/wlog"
)

// Service is the provisioning service: a State Store, a Runtime Adapter,
// and the in-process audit ring binding them together.
type Service struct {
	store   *state.Store
	runtime runtime.Adapter
	audit   *auditRing
	log     zerolog.Logger
}

// New returns a Service over store and adapter.
func New(store *state.Store, adapter runtime.Adapter) *Service {
	return &Service{
		store:   store,
		runtime: adapter,
		audit:   newAuditRing(),
		log:     wlog.Component("provisioning"),
	}
}

// Subscribe registers fn to receive every audit entry appended from this
// point on; used by pkg/streaming to fan out over websocket.
func (s *Service) Subscribe(fn func(model.AuditEntry)) {
	s.audit.subscribe(fn)
}

func normalizedInterface(name string) string {
	if name == "" {
		return model.DefaultInterfaceName
	}
	return name
}

// ListInterfaces returns the union of interfaces known to persisted state,
// the runtime, and peer.interface references, per §4.7(1).
func (s *Service) ListInterfaces(ctx context.Context) ([]model.InterfaceSummary, error) {
	doc, err := s.store.Load()
	if err != nil {
		return nil, err
	}

	runtimeNames, err := s.runtime.ListInterfaces(ctx)
	if err != nil {
		return nil, meshapi.Wrap(meshapi.KindRuntimeError, "list runtime interfaces", err)
	}

	names := map[string]bool{}
	for name := range doc.Interfaces {
		names[name] = true
	}
	for _, name := range runtimeNames {
		names[name] = true
	}
	for _, p := range doc.Peers {
		names[peerInterfaceName(p)] = true
	}

	var out []model.InterfaceSummary
	for name := range names {
		summary, err := s.summarize(ctx, doc, name, runtimeNames)
		if err != nil {
			return nil, err
		}
		out = append(out, summary)
	}
	return out, nil
}

func peerInterfaceName(p model.Peer) string {
	return normalizedInterface(p.Interface)
}

func (s *Service) summarize(ctx context.Context, doc model.PersistedState, name string, runtimeNames []string) (model.InterfaceSummary, error) {
	rec, inState := doc.Interfaces[name]
	inRuntime := contains(runtimeNames, name)

	peerCount := len(model.PeersForInterface(doc.Peers, name))

	if inState {
		return model.InterfaceSummary{
			Name:       name,
			IsUp:       rec.IsUp,
			ListenPort: int(rec.ListenPort),
			PeerCount:  peerCount,
			LastSyncAt: doc.UpdatedAt.Format(time.RFC3339),
		}, nil
	}

	if inRuntime {
		live, err := s.runtime.GetInterface(ctx, name)
		if err != nil && err != runtime.ErrNotExists {
			return model.InterfaceSummary{}, meshapi.Wrap(meshapi.KindRuntimeError, "get runtime interface "+name, err)
		}
		livePeers := 0
		if live != nil {
			livePeers = len(live.Peers)
		}
		return model.InterfaceSummary{Name: name, IsUp: true, ListenPort: 0, PeerCount: livePeers}, nil
	}

	return model.InterfaceSummary{Name: name, IsUp: false, PeerCount: peerCount}, nil
}

func contains(names []string, target string) bool {
	for _, n := range names {
		if n == target {
			return true
		}
	}
	return false
}

// GetInterfaceDetails returns the merged persisted+runtime view of one
// interface, per §4.7(2).
func (s *Service) GetInterfaceDetails(ctx context.Context, name string) (model.InterfaceDetails, error) {
	name = normalizedInterface(name)
	doc, err := s.store.Load()
	if err != nil {
		return model.InterfaceDetails{}, err
	}

	rec, recExists := doc.Interfaces[name]
	live, liveErr := s.runtime.GetInterface(ctx, name)
	liveExists := liveErr == nil

	if !recExists && !liveExists {
		return model.InterfaceDetails{}, meshapi.New(meshapi.KindNotExists, "interface not found: "+name)
	}

	details := model.InterfaceDetails{Name: name}
	if recExists {
		details.IsUp = rec.IsUp
		details.ListenPort = int(rec.ListenPort)
		details.AddressCIDR = rec.AddressCIDR
		details.Revision = rec.Revision
		details.PrivateKey = maskKey(rec.PrivateKey)
	}
	if liveExists {
		details.IsUp = true
		if live.ListenPort != 0 {
			details.ListenPort = live.ListenPort
		}
		details.PublicKey = live.PublicKey
	}

	managedByKey := map[string]model.Peer{}
	for _, p := range model.PeersForInterface(doc.Peers, name) {
		managedByKey[p.PublicKey] = p
	}

	liveByKey := map[string]runtime.RuntimePeer{}
	if liveExists {
		for _, rp := range live.Peers {
			liveByKey[rp.PublicKey] = rp
		}
	}

	for _, p := range managedByKey {
		view := model.PeerView{Peer: p}
		if rp, ok := liveByKey[p.PublicKey]; ok {
			view.LatestHandshake = rp.LatestHandshake
			view.TransferRx = uint64(rp.TransferRx)
			view.TransferTx = uint64(rp.TransferTx)
		}
		details.Peers = append(details.Peers, view)
	}
	for pub, rp := range liveByKey {
		if _, managed := managedByKey[pub]; managed {
			continue
		}
		details.Peers = append(details.Peers, model.PeerView{
			Peer: model.Peer{
				PeerID:     "discovered_" + truncate(pub, 12),
				Name:       "discovered-" + truncate(pub, 8),
				PublicKey:  pub,
				AllowedIPs: rp.AllowedIPs,
				Interface:  name,
				IsActive:   true,
			},
			IsUnmanaged:     true,
			LatestHandshake: rp.LatestHandshake,
			TransferRx:      uint64(rp.TransferRx),
			TransferTx:      uint64(rp.TransferTx),
		})
	}

	return details, nil
}

func maskKey(key string) string {
	if len(key) < 8 {
		return key
	}
	return key[:4] + "..." + key[len(key)-4:]
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// interfaceOrSynthetic reads the persisted record for name, or constructs
// the synthetic "revision 0" record described by §4.7 when the interface
// is absent from state but visible at runtime.
func (s *Service) interfaceOrSynthetic(ctx context.Context, doc model.PersistedState, name string) (model.InterfaceRecord, bool, error) {
	if rec, ok := doc.Interfaces[name]; ok {
		return rec, true, nil
	}

	_, err := s.runtime.GetInterface(ctx, name)
	if err != nil {
		return model.InterfaceRecord{}, false, meshapi.New(meshapi.KindNotExists, "interface not found: "+name)
	}

	return model.InterfaceRecord{
		ListenPort:  0,
		AddressCIDR: "unknown/24",
		Revision:    0,
		IsUp:        true,
	}, false, nil
}

// scheduledOp is one runtime call staged by applyPeerOperations, carried
// on the rollback stack in the order it was successfully executed.
type scheduledOp struct {
	kind     model.OpKind
	spec     runtime.PeerSpec
	previous *runtime.PeerSpec
}

func planLine(op scheduledOp) string {
	switch op.kind {
	case model.OpRemove:
		return fmt.Sprintf("[REMOVE] wg set <iface> peer %s remove", op.spec.PublicKey)
	default:
		return fmt.Sprintf("[ADD] wg set <iface> peer %s allowed-ips %s", op.spec.PublicKey, strings.Join(op.spec.AllowedIPs, ","))
	}
}

