// Package interconnect provides the bus matrix that connects masters to
// slaves, and the address decoding that routes transfers between them.
package interconnect

import (
	"fmt"
	"math"
	"sort"

	"github.com/pkg/errors"

	"github.com/sarchlab/ahbsim/bus"
)

// SlaveTag identifies a slave port. Each SoC enumerates its slaves as a
// small closed set.
type SlaveTag uint8

// NoMatch is the slave that answers transfers no range claims.
const NoMatch SlaveTag = math.MaxUint8

func (t SlaveTag) String() string {
	if t == NoMatch {
		return "NoMatch"
	}

	return fmt.Sprintf("S%d", uint8(t))
}

// Decoder maps a bus address to the slave that serves it and to the address
// that slave expects.
type Decoder interface {
	Decode(addr bus.Address) (SlaveTag, bus.Address)
}

// DecoderFunc adapts a function to the Decoder interface.
type DecoderFunc func(addr bus.Address) (SlaveTag, bus.Address)

// Decode calls f.
func (f DecoderFunc) Decode(addr bus.Address) (SlaveTag, bus.Address) {
	return f(addr)
}

// Validator is implemented by decoders that can check their own
// consistency.
type Validator interface {
	Validate() error
}

// Region is one entry of an address map.
type Region struct {
	Range  bus.Range
	Tag    SlaveTag
	Target bus.Address
}

// Normalize translates an address inside the region to the canonical
// address of the slave.
func (r Region) Normalize(addr bus.Address) bus.Address {
	return r.Target.Add(addr.Offset(r.Range.Start))
}

// IsAlias reports whether the region is a second window onto a slave.
func (r Region) IsAlias() bool {
	return r.Target != r.Range.Start
}

// AddressMap is a list of non-overlapping regions.
type AddressMap struct {
	regions []Region
	sorted  bool
}

// NewAddressMap creates an empty map.
func NewAddressMap() *AddressMap {
	return &AddressMap{}
}

// Map claims a range for a slave. Addresses are forwarded unchanged.
func (m *AddressMap) Map(tag SlaveTag, start bus.Address, size uint64) *AddressMap {
	return m.add(Region{
		Range:  bus.Range{Start: start, Size: size},
		Tag:    tag,
		Target: start,
	})
}

// Alias claims a range that mirrors the slave at target. Addresses are
// normalized to the target range before forwarding.
func (m *AddressMap) Alias(
	tag SlaveTag,
	start bus.Address,
	size uint64,
	target bus.Address,
) *AddressMap {
	return m.add(Region{
		Range:  bus.Range{Start: start, Size: size},
		Tag:    tag,
		Target: target,
	})
}

func (m *AddressMap) add(r Region) *AddressMap {
	m.regions = append(m.regions, r)
	m.sorted = false

	return m
}

// Regions returns the regions ordered by start address.
func (m *AddressMap) Regions() []Region {
	m.sort()
	return append([]Region(nil), m.regions...)
}

func (m *AddressMap) sort() {
	if m.sorted {
		return
	}

	sort.SliceStable(m.regions, func(i, j int) bool {
		return m.regions[i].Range.Start < m.regions[j].Range.Start
	})
	m.sorted = true
}

// Validate reports empty regions, regions that run past the 4 GiB address
// space, regions claimed by NoMatch, and overlaps.
func (m *AddressMap) Validate() error {
	m.sort()

	for i, r := range m.regions {
		if r.Range.Size == 0 {
			return errors.Errorf("region %s of %s is empty", r.Range, r.Tag)
		}

		if r.Range.End() > 1<<32 {
			return errors.Errorf("region %s of %s wraps past 4 GiB",
				r.Range, r.Tag)
		}

		if uint64(r.Target)+r.Range.Size > 1<<32 {
			return errors.Errorf("alias %s of %s targets 0x%08x, which wraps "+
				"past 4 GiB", r.Range, r.Tag, uint32(r.Target))
		}

		if r.Tag == NoMatch {
			return errors.Errorf("region %s is claimed by NoMatch", r.Range)
		}

		if i > 0 && m.regions[i-1].Range.Overlaps(r.Range) {
			prev := m.regions[i-1]
			return errors.Errorf("region %s of %s overlaps region %s of %s",
				r.Range, r.Tag, prev.Range, prev.Tag)
		}
	}

	return nil
}

// Lookup returns the region containing addr.
func (m *AddressMap) Lookup(addr bus.Address) (Region, bool) {
	m.sort()

	i := sort.Search(len(m.regions), func(i int) bool {
		return uint64(addr) < m.regions[i].Range.End()
	})

	if i < len(m.regions) && m.regions[i].Range.Contains(addr) {
		return m.regions[i], true
	}

	return Region{}, false
}

// Decode returns the slave serving addr and the normalized address, or
// NoMatch and the address unchanged.
func (m *AddressMap) Decode(addr bus.Address) (SlaveTag, bus.Address) {
	r, ok := m.Lookup(addr)
	if !ok {
		return NoMatch, addr
	}

	return r.Tag, r.Normalize(addr)
}
