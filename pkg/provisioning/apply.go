package provisioning

import (
	"context"
	"strconv"
	"time"

	"github.com/meshwire/wgmesh/pkg/meshapi"
	"github.com/meshwire/wgmesh/pkg/model"
	"github.com/meshwire/wgmesh/pkg/runtime"
	"github.com/meshwire/wgmesh/pkg/state"
)

// ApplyPeerOperations executes (or, if DryRun, merely plans) an ordered
// batch of peer mutations against name, per §4.7(3).
func (s *Service) ApplyPeerOperations(ctx context.Context, name string, req model.ApplyRequest) (interface{}, error) {
	name = normalizedInterface(name)

	doc, err := s.store.Load()
	if err != nil {
		return nil, err
	}

	rec, _, err := s.interfaceOrSynthetic(ctx, doc, name)
	if err != nil {
		return nil, err
	}
	if rec.Revision != req.Revision {
		return nil, meshapi.NewRevisionConflict(rec.Revision, req.Revision)
	}

	working := append([]model.Peer{}, model.PeersForInterface(doc.Peers, name)...)
	byID := map[string]int{}
	for i, p := range working {
		byID[p.PeerID] = i
	}

	var scheduled []scheduledOp
	var summary model.ApplySummary

	for _, op := range req.Operations {
		switch op.Kind {
		case model.OpAdd:
			if op.Peer == nil {
				continue
			}
			p := *op.Peer
			p.Interface = name
			working = append(working, p)
			byID[p.PeerID] = len(working) - 1
			summary.Added++
			if p.IsActive {
				scheduled = append(scheduled, scheduledOp{kind: model.OpAdd, spec: toPeerSpecPlain(p)})
			}

		case model.OpUpdate:
			idx, ok := byID[op.PeerID]
			if !ok {
				continue
			}
			previous := working[idx]
			next := op.Patch.Apply(previous)
			working[idx] = next
			summary.Updated++
			if next.IsActive {
				prevSpec := toPeerSpecPlain(previous)
				scheduled = append(scheduled, scheduledOp{kind: model.OpUpdate, spec: toPeerSpecPlain(next), previous: &prevSpec})
			}

		case model.OpToggle:
			idx, ok := byID[op.PeerID]
			if !ok {
				continue
			}
			working[idx].IsActive = op.IsActive
			summary.Toggled++
			if op.IsActive {
				scheduled = append(scheduled, scheduledOp{kind: model.OpAdd, spec: toPeerSpecPlain(working[idx])})
			} else {
				scheduled = append(scheduled, scheduledOp{kind: model.OpRemove, spec: toPeerSpecPlain(working[idx])})
			}

		case model.OpRemove:
			idx, ok := byID[op.PeerID]
			if !ok {
				continue
			}
			removed := working[idx]
			working = append(working[:idx], working[idx+1:]...)
			byID = map[string]int{}
			for i, p := range working {
				byID[p.PeerID] = i
			}
			summary.Removed++
			scheduled = append(scheduled, scheduledOp{kind: model.OpRemove, spec: toPeerSpecPlain(removed)})
		}
	}

	if req.DryRun {
		plan := make([]string, 0, len(scheduled))
		for _, op := range scheduled {
			plan = append(plan, planLine(op))
		}
		return model.DryRunResult{
			DryRun:          true,
			CurrentRevision: rec.Revision,
			NextRevision:    rec.Revision + 1,
			Plan:            plan,
			Summary:         summary,
		}, nil
	}

	executed, err := s.runScheduled(ctx, name, scheduled)
	if err != nil {
		s.rollback(ctx, name, executed)
		return nil, meshapi.Wrap(meshapi.KindApplyFailed, "apply peer operations", err)
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
		d.Peers = replacePeersForInterface(d.Peers, name, working)
		d.UpdatedAt = time.Now()
		return struct{}{}, nil
	})
	if err != nil {
		return nil, err
	}

	s.audit.append(name, "provisioning", "peers.apply", name, summaryDetail(summary))

	return model.ApplyResult{Applied: true, Revision: newRevision, Summary: summary}, nil
}

// runScheduled executes ops in order, returning the prefix that succeeded
// so the caller can roll it back on failure.
func (s *Service) runScheduled(ctx context.Context, iface string, ops []scheduledOp) ([]scheduledOp, error) {
	var executed []scheduledOp
	for _, op := range ops {
		var err error
		switch op.kind {
		case model.OpRemove:
			err = s.runtime.RemovePeer(ctx, iface, op.spec.PublicKey, runtime.RemoveOptions{})
		default:
			err = s.runtime.AddPeer(ctx, iface, op.spec)
		}
		if err != nil {
			return executed, err
		}
		executed = append(executed, op)
	}
	return executed, nil
}

// rollback undoes executed in reverse order with the compensating op for
// each kind. Each rollback failure is logged and does not interrupt the
// remaining rollback steps.
func (s *Service) rollback(ctx context.Context, iface string, executed []scheduledOp) {
	for i := len(executed) - 1; i >= 0; i-- {
		op := executed[i]
		var err error
		switch op.kind {
		case model.OpAdd:
			err = s.runtime.RemovePeer(ctx, iface, op.spec.PublicKey, runtime.RemoveOptions{IgnoreIfMissing: true})
		case model.OpRemove:
			err = s.runtime.AddPeer(ctx, iface, op.spec)
		case model.OpUpdate:
			if op.previous != nil {
				err = s.runtime.UpdatePeer(ctx, iface, *op.previous)
			}
		}
		if err != nil {
			s.log.Warn().Err(err).Str("interface", iface).Str("op", string(op.kind)).Msg("rollback step failed")
		}
	}
}

func toPeerSpecPlain(p model.Peer) runtime.PeerSpec {
	return runtime.PeerSpec{
		PublicKey:           p.PublicKey,
		Endpoint:            p.Endpoint,
		AllowedIPs:          p.AllowedIPs,
		PersistentKeepalive: int(p.PersistentKeepalive),
	}
}

func replacePeersForInterface(all []model.Peer, name string, replacement []model.Peer) []model.Peer {
	out := make([]model.Peer, 0, len(all))
	for _, p := range all {
		if normalizedInterface(p.Interface) != name {
			out = append(out, p)
		}
	}
	return append(out, replacement...)
}

func summaryDetail(s model.ApplySummary) string {
	return "added=" + strconv.Itoa(s.Added) + " updated=" + strconv.Itoa(s.Updated) +
		" toggled=" + strconv.Itoa(s.Toggled) + " removed=" + strconv.Itoa(s.Removed)
}
