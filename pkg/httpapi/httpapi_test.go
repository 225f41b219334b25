package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meshwire/wgmesh/pkg/keys"
	"github.com/meshwire/wgmesh/pkg/model"
	"github.com/meshwire/wgmesh/pkg/provisioning"
	"github.com/meshwire/wgmesh/pkg/runtime"
	"github.com/meshwire/wgmesh/pkg/state"
)

// noopAdapter is a runtime.Adapter that reports every interface absent;
// enough to exercise the HTTP surface without a kernel WireGuard device.
type noopAdapter struct{}

func (noopAdapter) ListInterfaces(ctx context.Context) ([]string, error) { return nil, nil }
func (noopAdapter) GetInterface(ctx context.Context, name string) (*runtime.RuntimeInterface, error) {
	return nil, runtime.ErrNotExists
}
func (noopAdapter) AddPeer(ctx context.Context, name string, peer runtime.PeerSpec) error { return nil }
func (noopAdapter) UpdatePeer(ctx context.Context, name string, peer runtime.PeerSpec) error {
	return nil
}
func (noopAdapter) RemovePeer(ctx context.Context, name, publicKey string, opts runtime.RemoveOptions) error {
	return nil
}
func (noopAdapter) ToggleInterface(ctx context.Context, name string, up bool) error { return nil }
func (noopAdapter) UpInterface(ctx context.Context, name string, opts runtime.UpOptions) error {
	return nil
}
func (noopAdapter) GetSystemInfo(ctx context.Context) runtime.SystemInfo {
	return runtime.SystemInfo{Hostname: "test"}
}

func newTestServer(t *testing.T) *httptest.Server {
	store := state.NewStore(filepath.Join(t.TempDir(), "state.json"))
	svc := provisioning.New(store, noopAdapter{})
	srv := NewServer(svc, keys.DeterministicPSK{})

	mux := http.NewServeMux()
	srv.Routes(mux)
	return httptest.NewServer(mux)
}

func testSpec() model.MeshSpec {
	return model.MeshSpec{
		NetworkCIDR:      "10.20.0.0/24",
		InterfaceName:    "wg0",
		EndpointVersion:  "ipv4",
		AutoGenerateKeys: true,
		Nodes: []model.NodeInput{
			{ID: "n1", Name: "n1", Endpoint: "n1.example.com", ListenPort: 51820},
			{ID: "n2", Name: "n2", Endpoint: "n2.example.com", ListenPort: 51820},
		},
		GatewayNodeNames: []string{"n1"},
	}
}

func TestHandleListInterfacesEmpty(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/interfaces")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.True(t, body["ok"].(bool))
}

func TestHandleGetInterfaceNotFoundReturns404(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/interface/wg0")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.False(t, body["ok"].(bool))
}

func TestHandleGenerateReturnsZipArchive(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()

	payload, err := json.Marshal(testSpec())
	require.NoError(t, err)

	resp, err := http.Post(srv.URL+"/api/generate", "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/zip", resp.Header.Get("Content-Type"))
}

func TestHandleDeployPersistsAndBringsInterfaceUp(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()

	body := map[string]interface{}{
		"payload":  testSpec(),
		"nodeName": "n1",
	}
	payload, err := json.Marshal(body)
	require.NoError(t, err)

	resp, err := http.Post(srv.URL+"/api/deploy", "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var out map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.True(t, out["ok"].(bool))
	data := out["data"].(map[string]interface{})
	assert.Equal(t, "wg0", data["name"])

	get, err := http.Get(srv.URL + "/api/interface/wg0")
	require.NoError(t, err)
	defer get.Body.Close()
	assert.Equal(t, http.StatusOK, get.StatusCode)
}

func TestHandleDeployUnknownNodeNameIsValidationError(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()

	body := map[string]interface{}{
		"payload":  testSpec(),
		"nodeName": "does-not-exist",
	}
	payload, err := json.Marshal(body)
	require.NoError(t, err)

	resp, err := http.Post(srv.URL+"/api/deploy", "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
