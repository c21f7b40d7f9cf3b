package memory

import (
	"sync"

	"github.com/pkg/errors"

	"github.com/sarchlab/ahbsim/bus"
	"github.com/sarchlab/ahbsim/bus/slavedriver"
	"github.com/sarchlab/ahbsim/sim/power"
)

// Comp is a memory block on the bus.
type Comp struct {
	sync.Mutex

	name    string
	node    power.NodeID
	gating  bool
	rng     bus.Range
	storage *Storage
	driver  *slavedriver.Driver
}

// Name returns the name of the memory.
func (c *Comp) Name() string {
	return c.name
}

// Range returns the canonical address range of the memory.
func (c *Comp) Range() bus.Range {
	return c.rng
}

// Storage returns the backing storage.
func (c *Comp) Storage() *Storage {
	return c.storage
}

// Driver returns the slave driver in front of the storage.
func (c *Comp) Driver() *slavedriver.Driver {
	return c.driver
}

// Reply implements bus.Slave.
func (c *Comp) Reply(
	ctx *power.Context,
	dp bus.MasterToSlaveDataPhase,
) bus.SlaveToMasterWires {
	c.Lock()
	defer c.Unlock()

	return c.driver.Reply(ctx, dp)
}

// AddrPhase implements bus.Slave.
func (c *Comp) AddrPhase(ctx *power.Context, ap bus.MasterToSlaveAddrPhase) {
	c.driver.AddrPhase(ctx, ap)
}

// Tick does nothing; a memory only reacts to the wires it is handed.
func (c *Comp) Tick(*power.Context) {}

// Tock commits the cycle and gates the memory while it is idle.
func (c *Comp) Tock(ctx *power.Context) {
	c.Lock()
	c.driver.Tock(ctx)
	c.Unlock()

	if !c.gating || c.node == power.NoNode {
		return
	}

	if c.driver.Idle() {
		ctx.SetPowerState(c.node, power.Gated)
	} else {
		ctx.SetPowerState(c.node, power.Active)
	}
}

// CanBeGated reports whether the memory is idle.
func (c *Comp) CanBeGated() bool {
	return c.driver.Idle()
}

// SkippableCycles lets an idle memory sleep until it is addressed.
func (c *Comp) SkippableCycles() uint64 {
	if !c.driver.Idle() {
		return 0
	}

	return power.SkipForever
}

// CatchUp accounts for skipped idle cycles.
func (c *Comp) CatchUp(_ *power.Context, n uint64) {
	c.driver.CatchUp(n)
}

// WriteMemory stores data at addr without going through the bus. It is meant
// for loading images and for host-side inspection between steps.
func (c *Comp) WriteMemory(addr bus.Address, data []byte) error {
	if !c.rng.ContainsSpan(addr, uint64(len(data))) {
		return errors.Errorf("%s: write of %d bytes at %s is outside %s",
			c.name, len(data), addr, c.rng)
	}

	c.Lock()
	defer c.Unlock()

	return c.storage.Write(uint64(addr.Offset(c.rng.Start)), data)
}

// ReadMemory returns n bytes at addr without going through the bus.
func (c *Comp) ReadMemory(addr bus.Address, n uint64) ([]byte, error) {
	if !c.rng.ContainsSpan(addr, n) {
		return nil, errors.Errorf("%s: read of %d bytes at %s is outside %s",
			c.name, n, addr, c.rng)
	}

	c.Lock()
	defer c.Unlock()

	b, err := c.storage.Read(uint64(addr.Offset(c.rng.Start)), n)
	if err != nil {
		return nil, err
	}

	c.driver.ForEachStaged(func(meta bus.TransferMeta, data bus.Data) {
		overlay(b, addr, meta.Addr, data.Bytes())
	})

	return b, nil
}

// overlay copies the part of src, located at srcAddr, that falls inside dst,
// located at dstAddr.
func overlay(dst []byte, dstAddr, srcAddr bus.Address, src []byte) {
	dstStart, dstEnd := uint64(dstAddr), uint64(dstAddr)+uint64(len(dst))
	srcStart, srcEnd := uint64(srcAddr), uint64(srcAddr)+uint64(len(src))

	lo := max(dstStart, srcStart)
	hi := min(dstEnd, srcEnd)
	if lo >= hi {
		return
	}

	copy(dst[lo-dstStart:hi-dstStart], src[lo-srcStart:hi-srcStart])
}

// storageHandler is the aligned view of the storage the driver works on.
type storageHandler struct {
	c *Comp
}

func (h storageHandler) inRange(addr bus.Address, size bus.Size) bool {
	return h.c.rng.ContainsSpan(addr, uint64(size.Bytes()))
}

func (h storageHandler) PreRead(
	_ *power.Context,
	addr bus.Address,
	size bus.Size,
) slavedriver.AccessStatus {
	if !h.inRange(addr, size) {
		return slavedriver.AccessError
	}

	return slavedriver.AccessOk
}

func (h storageHandler) PreWrite(
	_ *power.Context,
	addr bus.Address,
	size bus.Size,
) slavedriver.AccessStatus {
	if !h.inRange(addr, size) {
		return slavedriver.AccessError
	}

	return slavedriver.AccessOk
}

func (h storageHandler) Write(ctx *power.Context, addr bus.Address, data bus.Data) {
	err := h.c.storage.Write(uint64(addr.Offset(h.c.rng.Start)), data.Bytes())
	if err != nil {
		bus.Violate(ctx, h.c.name, err.Error(), addr, data)
	}
}

func (h storageHandler) Read(ctx *power.Context, addr bus.Address) bus.Data {
	n := h.c.driver.Config().NativeSize.Bytes()

	b, err := h.c.storage.Read(uint64(addr.Offset(h.c.rng.Start)), uint64(n))
	if err != nil {
		bus.Violate(ctx, h.c.name, err.Error(), addr)
	}

	return bus.DataFromBytes(b)
}

var (
	_ bus.Slave             = (*Comp)(nil)
	_ power.Node            = (*Comp)(nil)
	_ power.Gateable        = (*Comp)(nil)
	_ power.Skippable       = (*Comp)(nil)
	_ slavedriver.PreReader = storageHandler{}
)
