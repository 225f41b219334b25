package keys

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"io"
	"sort"
	"strings"
	"sync"

	"golang.org/x/crypto/hkdf"

	"github.com/meshwire/wgmesh/pkg/meshapi"
)

// PSKStrategy derives a pre-shared key for an unordered peer pair. Every
// implementation must satisfy P(a,b) == P(b,a).
type PSKStrategy interface {
	DerivePSK(a, b string) (string, error)
}

func pairKey(a, b string) string {
	names := []string{a, b}
	sort.Strings(names)
	return strings.Join(names, "::")
}

// DeterministicPSK is the repository's historical default: a pure function
// of the unordered pair of names plus a fixed domain-separation constant.
// It is byte-compatible with prior exports but, per the design's security
// note, anyone who knows the peer names can reconstruct every PSK in the
// mesh. Kept for tests and exports that must remain reproducible; live
// deploys should prefer RandomPSK or HKDFPSK instead.
type DeterministicPSK struct{}

func (DeterministicPSK) DerivePSK(a, b string) (string, error) {
	h := sha256.Sum256([]byte("wg-mesh-psk::" + pairKey(a, b)))
	return base64.StdEncoding.EncodeToString(h[:]), nil
}

// RandomPSK draws a fresh 32-byte CSPRNG value per unordered pair and caches
// it for the lifetime of the strategy instance, so repeated calls for the
// same pair within one synthesis return the same value without ever being
// derivable from the pair's names.
type RandomPSK struct {
	mu    sync.Mutex
	cache map[string]string
}

// NewRandomPSK returns a strategy with an empty per-pair cache.
func NewRandomPSK() *RandomPSK {
	return &RandomPSK{cache: make(map[string]string)}
}

func (r *RandomPSK) DerivePSK(a, b string) (string, error) {
	key := pairKey(a, b)
	r.mu.Lock()
	defer r.mu.Unlock()
	if v, ok := r.cache[key]; ok {
		return v, nil
	}
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", meshapi.Wrap(meshapi.KindInternal, "generate random psk", err)
	}
	v := base64.StdEncoding.EncodeToString(buf)
	r.cache[key] = v
	return v, nil
}

// HKDFPSK derives each pair's key via HKDF-SHA256 from the instance's salt
// (random unless one is supplied) and the pair's names. Unlike
// DeterministicPSK the keys cannot be rebuilt from the names alone, yet
// they are a deterministic function of (salt, pair) — useful when a
// synthesis must be reproducible from a saved salt without persisting every
// derived PSK.
type HKDFPSK struct {
	salt  []byte
	mu    sync.Mutex
	cache map[string]string
}

// NewHKDFPSK returns a strategy keyed by salt, generating a fresh random
// salt if none is supplied.
func NewHKDFPSK(salt []byte) (*HKDFPSK, error) {
	if salt == nil {
		salt = make([]byte, 16)
		if _, err := rand.Read(salt); err != nil {
			return nil, meshapi.Wrap(meshapi.KindInternal, "generate hkdf salt", err)
		}
	}
	return &HKDFPSK{salt: salt, cache: make(map[string]string)}, nil
}

// Salt returns the salt in use, so callers can persist it for reproducible
// re-derivation later.
func (h *HKDFPSK) Salt() []byte { return h.salt }

func (h *HKDFPSK) DerivePSK(a, b string) (string, error) {
	key := pairKey(a, b)
	h.mu.Lock()
	defer h.mu.Unlock()
	if v, ok := h.cache[key]; ok {
		return v, nil
	}
	reader := hkdf.New(sha256.New, h.salt, nil, []byte(key))
	buf := make([]byte, 32)
	if _, err := io.ReadFull(reader, buf); err != nil {
		return "", meshapi.Wrap(meshapi.KindInternal, "hkdf derive psk", err)
	}
	v := base64.StdEncoding.EncodeToString(buf)
	h.cache[key] = v
	return v, nil
}
