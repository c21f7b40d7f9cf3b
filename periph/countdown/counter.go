package countdown

// counter is the clocked state of the timer.
type counter struct {
	enabled bool
	load    uint32
	val     uint32
	flag    bool
	wraps   uint64
}

func (c *counter) running() bool {
	return c.enabled && c.load > 0
}

// step advances the counter by one cycle. A counter at zero is reloaded
// without raising the flag; one that counts down to zero raises the flag
// and is reloaded in the same cycle.
func (c *counter) step() {
	if !c.running() {
		return
	}

	if c.val == 0 {
		c.val = c.load
		return
	}

	c.val--
	if c.val == 0 {
		c.flag = true
		c.wraps++
		c.val = c.load
	}
}

// advance is step applied n times.
func (c *counter) advance(n uint64) {
	if !c.running() || n == 0 {
		return
	}

	if c.val == 0 {
		c.val = c.load
		n--
	}

	if n < uint64(c.val) {
		c.val -= uint32(n)
		return
	}

	n -= uint64(c.val)
	c.flag = true
	c.wraps += 1 + n/uint64(c.load)
	c.val = c.load - uint32(n%uint64(c.load))
}

// quietCycles returns how many cycles can pass before the counter raises its
// flag.
func (c *counter) quietCycles() uint64 {
	if !c.running() {
		return ^uint64(0)
	}

	if c.val <= 1 {
		return 0
	}

	return uint64(c.val) - 1
}
