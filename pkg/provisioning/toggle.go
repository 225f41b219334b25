package provisioning

import (
	"context"

	"github.com/meshwire/wgmesh/pkg/meshapi"
	"github.com/meshwire/wgmesh/pkg/model"
	"github.com/meshwire/wgmesh/pkg/state"
)

// ToggleRequest is the body of ToggleInterfaceState.
type ToggleRequest struct {
	Revision uint64
	IsUp     bool
	DryRun   bool
}

// ToggleInterfaceState brings an interface up or down, per §4.7(4). A
// dry run returns the current view unchanged.
func (s *Service) ToggleInterfaceState(ctx context.Context, name string, req ToggleRequest) (model.InterfaceDetails, error) {
	name = normalizedInterface(name)

	if req.DryRun {
		return s.GetInterfaceDetails(ctx, name)
	}

	doc, err := s.store.Load()
	if err != nil {
		return model.InterfaceDetails{}, err
	}
	rec, _, err := s.interfaceOrSynthetic(ctx, doc, name)
	if err != nil {
		return model.InterfaceDetails{}, err
	}
	if rec.Revision != req.Revision {
		return model.InterfaceDetails{}, meshapi.NewRevisionConflict(rec.Revision, req.Revision)
	}

	previousUp := rec.IsUp
	if err := s.runtime.ToggleInterface(ctx, name, req.IsUp); err != nil {
		return model.InterfaceDetails{}, meshapi.Wrap(meshapi.KindRuntimeError, "toggle interface "+name, err)
	}

	_, err = state.Update(s.store, func(d *model.PersistedState) (struct{}, error) {
		fresh, ok := d.Interfaces[name]
		if !ok {
			fresh = rec
		}
		if fresh.Revision != req.Revision {
			return struct{}{}, meshapi.NewRevisionConflict(fresh.Revision, req.Revision)
		}
		fresh.IsUp = req.IsUp
		fresh.Revision++
		d.Interfaces[name] = fresh
		return struct{}{}, nil
	})
	if err != nil {
		if rbErr := s.runtime.ToggleInterface(ctx, name, previousUp); rbErr != nil {
			s.log.Warn().Err(rbErr).Str("interface", name).Msg("toggle rollback failed")
		}
		return model.InterfaceDetails{}, err
	}

	s.audit.append(name, "provisioning", "interface.toggle", name, "")
	return s.GetInterfaceDetails(ctx, name)
}
