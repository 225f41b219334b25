package keys

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndDerivePublic(t *testing.T) {
	kp, err := GenerateKeypair()
	require.NoError(t, err)
	assert.NotEmpty(t, kp.PrivateKey)
	assert.NotEmpty(t, kp.PublicKey)

	derived, err := DerivePublic(kp.PrivateKey)
	require.NoError(t, err)
	assert.Equal(t, kp.PublicKey, derived)
}

func TestDerivePublicInvalidKey(t *testing.T) {
	_, err := DerivePublic("not-base64-32-bytes")
	assert.Error(t, err)
}

func TestDeterministicPSKIsPairCommutative(t *testing.T) {
	s := DeterministicPSK{}
	ab, err := s.DerivePSK("alice", "bob")
	require.NoError(t, err)
	ba, err := s.DerivePSK("bob", "alice")
	require.NoError(t, err)
	assert.Equal(t, ab, ba)
}

func TestDeterministicPSKIsDeterministic(t *testing.T) {
	s := DeterministicPSK{}
	first, err := s.DerivePSK("n1", "n2")
	require.NoError(t, err)
	second, err := s.DerivePSK("n1", "n2")
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestRandomPSKCachesPerUnorderedPair(t *testing.T) {
	s := NewRandomPSK()
	ab, err := s.DerivePSK("alice", "bob")
	require.NoError(t, err)
	ba, err := s.DerivePSK("bob", "alice")
	require.NoError(t, err)
	assert.Equal(t, ab, ba)

	cd, err := s.DerivePSK("carol", "dave")
	require.NoError(t, err)
	assert.NotEqual(t, ab, cd)
}

func TestHKDFPSKIsReproducibleFromSalt(t *testing.T) {
	s1, err := NewHKDFPSK(nil)
	require.NoError(t, err)
	v1, err := s1.DerivePSK("a", "b")
	require.NoError(t, err)

	s2, err := NewHKDFPSK(s1.Salt())
	require.NoError(t, err)
	v2, err := s2.DerivePSK("b", "a")
	require.NoError(t, err)

	assert.Equal(t, v1, v2)
}
