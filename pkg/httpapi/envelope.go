package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/meshwire/wgmesh/pkg/meshapi"
	"github.com/meshwire/wgmesh/pkg/wlog"
)

type envelope struct {
	OK    bool          `json:"ok"`
	Data  interface{}   `json:"data,omitempty"`
	Error *errorPayload `json:"error,omitempty"`
}

type errorPayload struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func writeData(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(envelope{OK: true, Data: data}); err != nil {
		log := wlog.Component("httpapi")
		log.Error().Err(err).Msg("failed to write response")
	}
}

func writeError(w http.ResponseWriter, err error) {
	var kind meshapi.Kind = meshapi.KindInternal
	var details map[string]interface{}
	if me, ok := err.(*meshapi.Error); ok {
		kind = me.Kind
		details = me.Details
	}

	status := meshapi.HTTPStatus(kind)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	body := envelope{OK: false, Error: &errorPayload{Code: string(kind), Message: err.Error(), Details: details}}
	if encErr := json.NewEncoder(w).Encode(body); encErr != nil {
		log := wlog.Component("httpapi")
		log.Error().Err(encErr).Msg("failed to write error response")
	}
}
