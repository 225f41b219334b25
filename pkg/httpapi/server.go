// Package httpapi is the thin net/http surface over the provisioning
// service, synthesizer, and resolver: one handler per route, an explicit
// method check, writeData/writeError helpers, and {ok,data}/{ok,error}
// envelopes.
package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/meshwire/wgmesh/pkg/keys"
	"github.com/meshwire/wgmesh/pkg/mesh"
	"github.com/meshwire/wgmesh/pkg/meshapi"
	"github.com/meshwire/wgmesh/pkg/model"
	"github.com/meshwire/wgmesh/pkg/provisioning"
	"github.com/meshwire/wgmesh/pkg/synth"
	"github.com/meshwire/wgmesh/pkg/wlog"
)

// Server wires every §6.1 route onto the provisioning service.
type Server struct {
	svc *provisioning.Service
	psk keys.PSKStrategy
}

// NewServer returns a Server backed by svc, deriving preshared keys via
// psk for /api/generate and /api/deploy.
func NewServer(svc *provisioning.Service, psk keys.PSKStrategy) *Server {
	return &Server{svc: svc, psk: psk}
}

// Routes registers every handler on mux.
func (s *Server) Routes(mux *http.ServeMux) {
	mux.HandleFunc("/api/interfaces", s.handleListInterfaces)
	mux.HandleFunc("/api/interface/", s.handleInterfaceSubroute)
	mux.HandleFunc("/api/generate", s.handleGenerate)
	mux.HandleFunc("/api/deploy", s.handleDeploy)
}

// handleInterfaceSubroute dispatches the whole "/api/interface/{name}..."
// family by splitting off the suffix after the name, since net/http's
// ServeMux (pre-1.22 patterns, matching the teacher's style) does not
// itself support path parameters.
func (s *Server) handleInterfaceSubroute(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/interface/")
	parts := strings.SplitN(rest, "/", 2)
	name := parts[0]
	if name == "" {
		writeError(w, meshapi.New(meshapi.KindValidation, "interface name is required"))
		return
	}

	var action string
	if len(parts) == 2 {
		action = parts[1]
	}

	switch {
	case action == "" && r.Method == http.MethodGet:
		s.handleGetInterface(w, r, name)
	case action == "peers/apply" && r.Method == http.MethodPost:
		s.handleApplyPeers(w, r, name)
	case action == "toggle" && r.Method == http.MethodPost:
		s.handleToggle(w, r, name)
	case action == "reconcile" && r.Method == http.MethodPost:
		s.handleReconcile(w, r, name)
	case action == "audit" && r.Method == http.MethodGet:
		s.handleAudit(w, r, name)
	default:
		http.Error(w, "not found", http.StatusNotFound)
	}
}

func (s *Server) handleListInterfaces(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	list, err := s.svc.ListInterfaces(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, map[string]interface{}{"interfaces": list})
}

func (s *Server) handleGetInterface(w http.ResponseWriter, r *http.Request, name string) {
	details, err := s.svc.GetInterfaceDetails(r.Context(), name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, details)
}

func (s *Server) handleApplyPeers(w http.ResponseWriter, r *http.Request, name string) {
	var req model.ApplyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, meshapi.Wrap(meshapi.KindValidation, "invalid request body", err))
		return
	}
	result, err := s.svc.ApplyPeerOperations(r.Context(), name, req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, result)
}

func (s *Server) handleToggle(w http.ResponseWriter, r *http.Request, name string) {
	var body struct {
		Revision uint64 `json:"revision"`
		IsUp     bool   `json:"isUp"`
		DryRun   bool   `json:"dryRun"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, meshapi.Wrap(meshapi.KindValidation, "invalid request body", err))
		return
	}
	result, err := s.svc.ToggleInterfaceState(r.Context(), name, provisioning.ToggleRequest{
		Revision: body.Revision, IsUp: body.IsUp, DryRun: body.DryRun,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, result)
}

func (s *Server) handleReconcile(w http.ResponseWriter, r *http.Request, name string) {
	var body struct {
		Revision uint64             `json:"revision"`
		Mode     model.ReconcileMode `json:"mode"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, meshapi.Wrap(meshapi.KindValidation, "invalid request body", err))
		return
	}
	result, err := s.svc.ReconcileInterface(r.Context(), name, provisioning.ReconcileRequest{
		Revision: body.Revision, Mode: body.Mode,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, result)
}

func (s *Server) handleAudit(w http.ResponseWriter, r *http.Request, name string) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	cursor := r.URL.Query().Get("cursor")
	page := s.svc.Audit(name, limit, cursor)

	body := map[string]interface{}{"items": page.Entries}
	if page.NextCursor != "" {
		body["nextCursor"] = page.NextCursor
	}
	writeData(w, http.StatusOK, body)
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var spec model.MeshSpec
	if err := json.NewDecoder(r.Body).Decode(&spec); err != nil {
		writeError(w, meshapi.Wrap(meshapi.KindValidation, "invalid mesh spec", err))
		return
	}
	resolved, err := mesh.Resolve(spec)
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", `attachment; filename="wg-mesh-config.zip"`)
	w.WriteHeader(http.StatusOK)
	if _, err := synth.GenerateZip(w, resolved, s.psk); err != nil {
		log := wlog.Component("httpapi")
		log.Error().Err(err).Msg("generate zip failed mid-stream")
	}
}

func (s *Server) handleDeploy(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var body struct {
		Payload  model.MeshSpec `json:"payload"`
		NodeName string         `json:"nodeName"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, meshapi.Wrap(meshapi.KindValidation, "invalid request body", err))
		return
	}

	resolved, err := mesh.Resolve(body.Payload)
	if err != nil {
		writeError(w, err)
		return
	}

	var target *model.ResolvedNode
	for i := range resolved.Nodes {
		if resolved.Nodes[i].Name == body.NodeName {
			target = &resolved.Nodes[i]
			break
		}
	}
	if target == nil {
		writeError(w, meshapi.New(meshapi.KindValidation, fmt.Sprintf("node %q not found in spec", body.NodeName)))
		return
	}

	peers, psks, err := deployPeersFor(resolved, target.Name, s.psk)
	if err != nil {
		writeError(w, err)
		return
	}

	details, err := s.svc.DeployMeshConfig(r.Context(), provisioning.DeployRequest{
		Interface:  resolved.Spec.InterfaceName,
		ListenPort: target.ListenPort,
		Address:    target.Address,
		PrivateKey: target.PrivateKey,
		Peers:      peers,
		PSKs:       psks,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, details)
}
