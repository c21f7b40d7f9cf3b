package bus

import (
	"encoding/binary"
	"fmt"
)

// MaxDataBytes is the widest beat the bus carries.
const MaxDataBytes = 16

// Data is the payload of a data phase. It is an immutable value; no slice
// handed out by its methods aliases its storage.
type Data struct {
	raw [MaxDataBytes]byte
	n   uint8
}

// DataFromBytes copies b into a Data value.
func DataFromBytes(b []byte) Data {
	if len(b) > MaxDataBytes {
		panic(fmt.Sprintf("bus: %d bytes do not fit a beat", len(b)))
	}

	var d Data
	copy(d.raw[:], b)
	d.n = uint8(len(b))

	return d
}

// DataFromUint64 encodes the low bytes of v, little endian, as a beat of the
// given size.
func DataFromUint64(v uint64, size Size) Data {
	n := size.Bytes()
	if n > 8 {
		panic(fmt.Sprintf("bus: cannot encode an integer as a %s beat", size))
	}

	var d Data
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	copy(d.raw[:], buf[:n])
	d.n = uint8(n)

	return d
}

// DataFromUint32 is DataFromUint64 for 32-bit values.
func DataFromUint32(v uint32, size Size) Data {
	return DataFromUint64(uint64(v), size)
}

// ZeroData returns n zero bytes.
func ZeroData(n uint32) Data {
	return DataFromBytes(make([]byte, n))
}

// Len returns the number of bytes.
func (d Data) Len() uint32 {
	return uint32(d.n)
}

// Bytes returns a copy of the bytes.
func (d Data) Bytes() []byte {
	out := make([]byte, d.n)
	copy(out, d.raw[:d.n])

	return out
}

// Uint64 decodes the bytes as a little-endian integer.
func (d Data) Uint64() uint64 {
	var buf [8]byte
	n := d.n
	if n > 8 {
		n = 8
	}
	copy(buf[:], d.raw[:n])

	return binary.LittleEndian.Uint64(buf[:])
}

// Uint32 decodes the low four bytes as a little-endian integer.
func (d Data) Uint32() uint32 {
	return uint32(d.Uint64())
}

// Slice returns n bytes starting at off.
func (d Data) Slice(off, n uint32) Data {
	if off+n > uint32(d.n) {
		panic(fmt.Sprintf("bus: slice [%d:%d] of %d bytes", off, off+n, d.n))
	}

	var out Data
	copy(out.raw[:], d.raw[off:off+n])
	out.n = uint8(n)

	return out
}

// Splice returns a copy of d with part written at off.
func (d Data) Splice(off uint32, part Data) Data {
	if off+part.Len() > uint32(d.n) {
		panic(fmt.Sprintf("bus: splice of %d bytes at %d into %d bytes",
			part.n, off, d.n))
	}

	out := d
	copy(out.raw[off:], part.raw[:part.n])

	return out
}

// Concat returns d followed by o.
func (d Data) Concat(o Data) Data {
	if int(d.n)+int(o.n) > MaxDataBytes {
		panic("bus: concatenation does not fit a beat")
	}

	out := d
	copy(out.raw[d.n:], o.raw[:o.n])
	out.n = d.n + o.n

	return out
}

func (d Data) String() string {
	return fmt.Sprintf("%x", d.raw[:d.n])
}
