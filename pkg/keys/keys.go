// Package keys generates and derives WireGuard X25519 keypairs and
// pre-shared keys for unordered peer pairs.
package keys

import (
	"golang.zx2c4.com/wireguard/wgctrl/wgtypes"

	"github.com/meshwire/wgmesh/pkg/meshapi"
)

// Keypair is a base64-encoded X25519 private/public pair.
type Keypair struct {
	PrivateKey string
	PublicKey  string
}

// GenerateKeypair draws 32 cryptographically-random bytes and derives the
// matching X25519 public key, exactly as NiuStar-peer-wan's node-prepare
// flow does via wgctrl/wgtypes.
func GenerateKeypair() (Keypair, error) {
	priv, err := wgtypes.GeneratePrivateKey()
	if err != nil {
		return Keypair{}, meshapi.Wrap(meshapi.KindInternal, "generate keypair", err)
	}
	return Keypair{PrivateKey: priv.String(), PublicKey: priv.PublicKey().String()}, nil
}

// DerivePublic decodes a base64 private key and returns its public key.
// Fails with KindInvalidKey if the decoded length isn't 32 bytes.
func DerivePublic(base64Priv string) (string, error) {
	priv, err := wgtypes.ParseKey(base64Priv)
	if err != nil {
		return "", meshapi.Wrap(meshapi.KindInvalidKey, "parse private key", err)
	}
	return priv.PublicKey().String(), nil
}

// ValidateKey decodes a base64 key and confirms it is 32 bytes.
func ValidateKey(base64Key string) error {
	if _, err := wgtypes.ParseKey(base64Key); err != nil {
		return meshapi.Wrap(meshapi.KindInvalidKey, "parse key", err)
	}
	return nil
}
