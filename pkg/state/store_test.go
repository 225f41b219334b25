package state

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meshwire/wgmesh/pkg/meshapi"
	"github.com/meshwire/wgmesh/pkg/model"
)

func tempStatePath(t *testing.T) string {
	return filepath.Join(t.TempDir(), "state.json")
}

func TestLoadMissingFileReturnsFreshDocument(t *testing.T) {
	s := NewStore(tempStatePath(t))
	doc, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, 1, doc.Version)
	assert.Empty(t, doc.Interfaces)
	assert.Empty(t, doc.Peers)
}

func TestUpdateThenLoadRoundTrips(t *testing.T) {
	s := NewStore(tempStatePath(t))

	_, err := Update(s, func(doc *model.PersistedState) (struct{}, error) {
		doc.Interfaces["wg0"] = model.InterfaceRecord{ListenPort: 51820, AddressCIDR: "10.0.0.1/24", Revision: 1, IsUp: true}
		doc.Peers = append(doc.Peers, model.Peer{PeerID: "p1", Name: "n1", PublicKey: "pub1", Interface: "wg0", IsActive: true})
		doc.UpdatedAt = time.Now()
		return struct{}{}, nil
	})
	require.NoError(t, err)

	doc, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), doc.Interfaces["wg0"].Revision)
	require.Len(t, doc.Peers, 1)
	assert.Equal(t, "p1", doc.Peers[0].PeerID)
}

func TestUpdateFnErrorLeavesNoFile(t *testing.T) {
	path := tempStatePath(t)
	s := NewStore(path)

	_, err := Update(s, func(doc *model.PersistedState) (struct{}, error) {
		return struct{}{}, meshapi.New(meshapi.KindValidation, "boom")
	})
	assert.Error(t, err)
	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestLoadCorruptJSONIsCorruptState(t *testing.T) {
	path := tempStatePath(t)
	require.NoError(t, os.WriteFile(path, []byte("not json"), 0644))

	s := NewStore(path)
	_, err := s.Load()
	assert.Error(t, err)
	assert.True(t, meshapi.As(err, meshapi.KindCorruptState))
}

func TestLoadZeroVersionIsCorruptState(t *testing.T) {
	path := tempStatePath(t)
	require.NoError(t, os.WriteFile(path, []byte(`{"version":0,"interfaces":{},"peers":[]}`), 0644))

	s := NewStore(path)
	_, err := s.Load()
	assert.Error(t, err)
	assert.True(t, meshapi.As(err, meshapi.KindCorruptState))
}

func TestLockReclaimsStaleDeadPidLock(t *testing.T) {
	path := tempStatePath(t)
	lockPath := path + ".lock"

	// A PID that cannot currently exist, written far enough in the past to
	// be stale.
	content := "999999:" + strconv.FormatInt(time.Now().Add(-10*time.Second).UnixMilli(), 10)
	require.NoError(t, os.WriteFile(lockPath, []byte(content), 0600))

	s := NewStore(path)
	doc, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, 1, doc.Version)
	_, statErr := os.Stat(lockPath)
	assert.True(t, os.IsNotExist(statErr))
}

func TestLockTimesOutOnLiveHolder(t *testing.T) {
	path := tempStatePath(t)
	lockPath := path + ".lock"

	content := strconv.Itoa(os.Getpid()) + ":" + strconv.FormatInt(time.Now().UnixMilli(), 10)
	require.NoError(t, os.WriteFile(lockPath, []byte(content), 0600))

	s := NewStore(path)
	_, err := s.Load()
	assert.Error(t, err)
	assert.True(t, meshapi.As(err, meshapi.KindLockTimeout))
}
