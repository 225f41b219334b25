// Package cidr implements the IPv4 CIDR arithmetic the resolver and
// synthesizer build addresses on: parsing, integer/dotted conversion, and
// sequential allocation from a network base.
package cidr

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/meshwire/wgmesh/pkg/meshapi"
)

// Block is a parsed IPv4 CIDR.
type Block struct {
	Base   uint32 // network address, as an integer
	Prefix int    // 8..30
	Size   uint32 // 2^(32-prefix)
	Last   uint32 // Base + Size - 1
	Text   string // original "a.b.c.d/p" form
}

// Parse validates and decomposes an "A.B.C.D/p" string. Octets must be
// numeric and in [0,255]; the prefix must be in [8,30].
func Parse(text string) (Block, error) {
	parts := strings.SplitN(text, "/", 2)
	if len(parts) != 2 {
		return Block{}, meshapi.New(meshapi.KindInvalidCidr, "cidr missing prefix: "+text)
	}
	base, err := DottedToInt(parts[0])
	if err != nil {
		return Block{}, meshapi.Wrap(meshapi.KindInvalidCidr, "invalid address in cidr: "+text, err)
	}
	prefix, err := strconv.Atoi(parts[1])
	if err != nil {
		return Block{}, meshapi.Wrap(meshapi.KindInvalidCidr, "invalid prefix in cidr: "+text, err)
	}
	if prefix < 8 || prefix > 30 {
		return Block{}, meshapi.New(meshapi.KindInvalidCidr, fmt.Sprintf("prefix %d out of range [8,30]", prefix))
	}
	size := uint32(1) << uint(32-prefix)
	network := base &^ (size - 1)
	return Block{
		Base:   network,
		Prefix: prefix,
		Size:   size,
		Last:   network + size - 1,
		Text:   text,
	}, nil
}

// DottedToInt converts "A.B.C.D" to its big-endian uint32 form.
func DottedToInt(s string) (uint32, error) {
	octets := strings.Split(s, ".")
	if len(octets) != 4 {
		return 0, fmt.Errorf("expected 4 octets, got %d in %q", len(octets), s)
	}
	var out uint32
	for _, o := range octets {
		v, err := strconv.Atoi(o)
		if err != nil {
			return 0, fmt.Errorf("non-numeric octet %q in %q", o, s)
		}
		if v < 0 || v > 255 {
			return 0, fmt.Errorf("octet %d out of range [0,255] in %q", v, s)
		}
		out = out<<8 | uint32(v)
	}
	return out, nil
}

// IntToDotted renders a uint32 as "A.B.C.D".
func IntToDotted(v uint32) string {
	return fmt.Sprintf("%d.%d.%d.%d", v>>24&0xff, v>>16&0xff, v>>8&0xff, v&0xff)
}

// NodeAddressAt returns the "/32" address for the node at index i,
// base+1+i, failing if it would exceed the block's capacity.
func (b Block) NodeAddressAt(i int) (string, error) {
	addr := b.Base + 1 + uint32(i)
	if addr > b.Last {
		return "", meshapi.New(meshapi.KindCapacityExceeded, fmt.Sprintf("node index %d exceeds cidr %s capacity", i, b.Text))
	}
	return IntToDotted(addr) + "/32", nil
}

// ClientAddressAt returns the "/32" address for the client at index i,
// base+101+i, failing if it would exceed the block's capacity.
func (b Block) ClientAddressAt(i int) (string, error) {
	addr := b.Base + 101 + uint32(i)
	if addr > b.Last {
		return "", meshapi.New(meshapi.KindCapacityExceeded, fmt.Sprintf("client index %d exceeds cidr %s capacity", i, b.Text))
	}
	return IntToDotted(addr) + "/32", nil
}
