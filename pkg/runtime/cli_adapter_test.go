package runtime

import (
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDumpHeaderAndPeers(t *testing.T) {
	dump := "privkeyb64\tpubkeyb64\t51820\toff\n" +
		"peerpub1\t(none)\t1.2.3.4:51820\t10.0.0.1/32\t1700000000\t100\t200\t25\n" +
		"peerpub2\tpskb64\t(none)\t10.0.0.2/32,10.0.0.3/32\t0\t0\t0\toff\n"

	iface, err := parseDump(dump)
	require.NoError(t, err)

	assert.Equal(t, "privkeyb64", iface.PrivateKey)
	assert.Equal(t, "pubkeyb64", iface.PublicKey)
	assert.Equal(t, 51820, iface.ListenPort)
	assert.Equal(t, 0, iface.FwMark)
	require.Len(t, iface.Peers, 2)

	p1 := iface.Peers[0]
	assert.Equal(t, "peerpub1", p1.PublicKey)
	assert.Empty(t, p1.PresharedKey)
	assert.Equal(t, "1.2.3.4:51820", p1.Endpoint)
	assert.Equal(t, []string{"10.0.0.1/32"}, p1.AllowedIPs)
	assert.Equal(t, int64(1700000000), p1.LatestHandshake)
	assert.Equal(t, 25, p1.PersistentKeepalive)

	p2 := iface.Peers[1]
	assert.Equal(t, "pskb64", p2.PresharedKey)
	assert.Empty(t, p2.Endpoint)
	assert.Equal(t, []string{"10.0.0.2/32", "10.0.0.3/32"}, p2.AllowedIPs)
	assert.Equal(t, 0, p2.PersistentKeepalive)
}

func TestParseDumpEmptyInterface(t *testing.T) {
	iface, err := parseDump("(none)\t(none)\toff\toff\n")
	require.NoError(t, err)
	assert.Empty(t, iface.PrivateKey)
	assert.Empty(t, iface.Peers)
}

func TestIsNotExistsDiagnostic(t *testing.T) {
	assert.True(t, isNotExistsDiagnostic(errors.New("wg show wg9 dump: No such device")))
	assert.True(t, isNotExistsDiagnostic(errors.New("Unable to access interface: wg9")))
	assert.False(t, isNotExistsDiagnostic(errors.New("permission denied")))
}

func TestWriteSecretTempFilePermissionsAndCleanup(t *testing.T) {
	path, cleanup, err := writeSecretTempFile("super-secret-psk")
	require.NoError(t, err)
	defer cleanup()

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}
