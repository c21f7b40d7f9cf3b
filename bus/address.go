// Package bus defines the wires of an AHB-Lite connection: the address
// phase a master drives, the data it writes, and the reply a slave returns.
package bus

import "fmt"

// Address is a 32-bit bus address.
type Address uint32

// Add returns the address offset by n bytes.
func (a Address) Add(n uint32) Address {
	return a + Address(n)
}

// AlignDown clears the low bits of the address that fall inside size.
func (a Address) AlignDown(size Size) Address {
	return a &^ Address(size.Bytes()-1)
}

// IsAligned reports whether the address is a multiple of size.
func (a Address) IsAligned(size Size) bool {
	return a&Address(size.Bytes()-1) == 0
}

// Offset returns the distance from base to the address.
func (a Address) Offset(base Address) uint32 {
	return uint32(a - base)
}

func (a Address) String() string {
	return fmt.Sprintf("0x%08x", uint32(a))
}

// Range is a contiguous span of the address space.
type Range struct {
	Start Address
	Size  uint64
}

// End returns the first address past the range, as a 64-bit value so that a
// range ending at the top of the address space can be expressed.
func (r Range) End() uint64 {
	return uint64(r.Start) + r.Size
}

// Contains reports whether addr is inside the range.
func (r Range) Contains(addr Address) bool {
	return addr >= r.Start && uint64(addr) < r.End()
}

// ContainsSpan reports whether the n bytes starting at addr are all inside the
// range.
func (r Range) ContainsSpan(addr Address, n uint64) bool {
	return r.Contains(addr) && uint64(addr)+n <= r.End()
}

// Overlaps reports whether the two ranges share at least one address.
func (r Range) Overlaps(o Range) bool {
	return uint64(r.Start) < o.End() && uint64(o.Start) < r.End()
}

func (r Range) String() string {
	return fmt.Sprintf("[0x%08x, 0x%09x)", uint32(r.Start), r.End())
}
