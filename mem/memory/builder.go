package memory

import (
	"github.com/sarchlab/ahbsim/bus"
	"github.com/sarchlab/ahbsim/bus/slavedriver"
	"github.com/sarchlab/ahbsim/sim/power"
)

// Builder can build memories.
type Builder struct {
	base       bus.Address
	size       uint64
	nativeSize bus.Size
	waitStates int
	writable   bool
	writeMode  slavedriver.WriteMode
	fill       byte
	node       power.NodeID
	gating     bool
	storage    *Storage
}

// MakeBuilder returns a builder for a 64 KiB, zero wait-state, writable
// word memory.
func MakeBuilder() Builder {
	return Builder{
		size:       64 * 1024,
		nativeSize: bus.SizeWord,
		writable:   true,
		node:       power.NoNode,
		gating:     true,
	}
}

// WithRange sets the canonical address range of the memory.
func (b Builder) WithRange(base bus.Address, size uint64) Builder {
	b.base = base
	b.size = size
	return b
}

// WithNativeSize sets the physical width of the memory.
func (b Builder) WithNativeSize(size bus.Size) Builder {
	b.nativeSize = size
	return b
}

// WithWaitStates sets the number of wait-states per access.
func (b Builder) WithWaitStates(n int) Builder {
	b.waitStates = n
	return b
}

// WithWritable sets whether bus writes are allowed. Read-only memories
// answer writes with an error.
func (b Builder) WithWritable(writable bool) Builder {
	b.writable = writable
	return b
}

// WithWriteMode sets when bus writes become visible.
func (b Builder) WithWriteMode(mode slavedriver.WriteMode) Builder {
	b.writeMode = mode
	return b
}

// WithFill sets the value of bytes that were never written, such as 0xff
// for erased flash.
func (b Builder) WithFill(fill byte) Builder {
	b.fill = fill
	return b
}

// WithNodeID sets the clock-tree node of the memory.
func (b Builder) WithNodeID(id power.NodeID) Builder {
	b.node = id
	return b
}

// WithGating sets whether the memory gates its clock while idle.
func (b Builder) WithGating(gating bool) Builder {
	b.gating = gating
	return b
}

// WithStorage makes the memory use an existing storage.
func (b Builder) WithStorage(storage *Storage) Builder {
	b.storage = storage
	return b
}

// Build creates a memory with the given name.
func (b Builder) Build(name string) *Comp {
	c := &Comp{
		name:   name,
		node:   b.node,
		gating: b.gating,
		rng:    bus.Range{Start: b.base, Size: b.size},
	}

	c.storage = b.storage
	if c.storage == nil {
		c.storage = NewStorageWithFill(b.size, b.fill)
	}

	c.driver = slavedriver.NewDriver(name, storageHandler{c: c}, slavedriver.Config{
		NativeSize: b.nativeSize,
		WaitStates: b.waitStates,
		WriteMode:  b.writeMode,
		Writable:   b.writable,
	})
	c.driver.BindNode(b.node)

	return c
}
