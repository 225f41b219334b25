package provisioning

import (
	"context"

	"github.com/google/uuid"

	"github.com/meshwire/wgmesh/pkg/meshapi"
	"github.com/meshwire/wgmesh/pkg/model"
	"github.com/meshwire/wgmesh/pkg/runtime"
	"github.com/meshwire/wgmesh/pkg/state"
)

// ReconcileRequest is the body of ReconcileInterface.
type ReconcileRequest struct {
	Revision uint64
	Mode     model.ReconcileMode
}

// ReconcileInterface computes drift between persisted state and the live
// runtime and, per Mode, corrects it in one direction, per §4.7(5).
func (s *Service) ReconcileInterface(ctx context.Context, name string, req ReconcileRequest) (model.ReconcileResult, error) {
	name = normalizedInterface(name)

	doc, err := s.store.Load()
	if err != nil {
		return model.ReconcileResult{}, err
	}
	rec, _, err := s.interfaceOrSynthetic(ctx, doc, name)
	if err != nil {
		return model.ReconcileResult{}, err
	}
	if rec.Revision != req.Revision {
		return model.ReconcileResult{}, meshapi.NewRevisionConflict(rec.Revision, req.Revision)
	}

	live, liveErr := s.runtime.GetInterface(ctx, name)
	runtimeKeys := map[string]runtime.RuntimePeer{}
	if liveErr == nil {
		for _, p := range live.Peers {
			runtimeKeys[p.PublicKey] = p
		}
	}

	statePeers := model.PeersForInterface(doc.Peers, name)
	stateKeys := map[string]bool{}
	for _, p := range statePeers {
		stateKeys[p.PublicKey] = true
	}

	var missing, zombies []string
	for _, p := range statePeers {
		if p.IsActive {
			if _, ok := runtimeKeys[p.PublicKey]; !ok {
				missing = append(missing, p.PublicKey)
			}
		}
	}
	for pub := range runtimeKeys {
		if !stateKeys[pub] {
			zombies = append(zombies, pub)
		}
	}

	result := model.ReconcileResult{
		DriftFound: len(missing)+len(zombies) > 0,
		Missing:    missing,
		Zombies:    zombies,
		Revision:   rec.Revision,
	}
	if !result.DriftFound {
		return result, nil
	}

	switch req.Mode {
	case model.ModeStateToRuntime:
		return s.reconcileStateToRuntime(ctx, name, rec, req, statePeers, missing, zombies, result)
	case model.ModeRuntimeToState:
		return s.reconcileRuntimeToState(ctx, name, rec, req, statePeers, runtimeKeys, zombies, result)
	default:
		return model.ReconcileResult{}, meshapi.New(meshapi.KindValidation, "unknown reconcile mode: "+string(req.Mode))
	}
}

func (s *Service) reconcileStateToRuntime(ctx context.Context, name string, rec model.InterfaceRecord, req ReconcileRequest, statePeers []model.Peer, missing, zombies []string, result model.ReconcileResult) (model.ReconcileResult, error) {
	byKey := map[string]model.Peer{}
	for _, p := range statePeers {
		byKey[p.PublicKey] = p
	}

	var ops []scheduledOp
	for _, pub := range missing {
		ops = append(ops, scheduledOp{kind: model.OpAdd, spec: toPeerSpecPlain(byKey[pub])})
	}
	for _, pub := range zombies {
		ops = append(ops, scheduledOp{kind: model.OpRemove, spec: runtime.PeerSpec{PublicKey: pub}})
	}

	executed, err := s.runScheduled(ctx, name, ops)
	if err != nil {
		s.rollback(ctx, name, executed)
		return model.ReconcileResult{}, meshapi.Wrap(meshapi.KindApplyFailed, "reconcile state_to_runtime", err)
	}

	newRevision := rec.Revision + 1
	_, err = state.Update(s.store, func(d *model.PersistedState) (struct{}, error) {
		fresh, ok := d.Interfaces[name]
		if !ok {
			fresh = rec
		}
		if fresh.Revision != req.Revision {
			return struct{}{}, meshapi.NewRevisionConflict(fresh.Revision, req.Revision)
		}
		fresh.Revision = newRevision
		d.Interfaces[name] = fresh
		return struct{}{}, nil
	})
	if err != nil {
		return model.ReconcileResult{}, err
	}

	s.audit.append(name, "provisioning", "reconcile.state_to_runtime", name, "")
	result.Revision = newRevision
	result.Reconciled = true
	return result, nil
}

func (s *Service) reconcileRuntimeToState(ctx context.Context, name string, rec model.InterfaceRecord, req ReconcileRequest, statePeers []model.Peer, runtimeKeys map[string]runtime.RuntimePeer, zombies []string, result model.ReconcileResult) (model.ReconcileResult, error) {
	newRevision := rec.Revision + 1
	_, err := state.Update(s.store, func(d *model.PersistedState) (struct{}, error) {
		fresh, ok := d.Interfaces[name]
		if !ok {
			fresh = rec
		}
		if fresh.Revision != req.Revision {
			return struct{}{}, meshapi.NewRevisionConflict(fresh.Revision, req.Revision)
		}

		updated := make([]model.Peer, 0, len(statePeers))
		for _, p := range statePeers {
			if p.IsActive {
				if _, ok := runtimeKeys[p.PublicKey]; !ok {
					p.IsActive = false
				}
			}
			updated = append(updated, p)
		}
		for _, pub := range zombies {
			rp := runtimeKeys[pub]
			updated = append(updated, model.Peer{
				PeerID:              uuid.NewString(),
				Name:                "runtime-" + truncate(pub, 8),
				PublicKey:           pub,
				AllowedIPs:          rp.AllowedIPs,
				Endpoint:            rp.Endpoint,
				PersistentKeepalive: uint16(rp.PersistentKeepalive),
				IsActive:            true,
				Interface:           name,
			})
		}

		fresh.Revision = newRevision
		d.Interfaces[name] = fresh
		d.Peers = replacePeersForInterface(d.Peers, name, updated)
		return struct{}{}, nil
	})
	if err != nil {
		return model.ReconcileResult{}, err
	}

	s.audit.append(name, "provisioning", "reconcile.runtime_to_state", name, "")
	result.Revision = newRevision
	result.Reconciled = true
	return result, nil
}
