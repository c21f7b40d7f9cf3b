package bus

import (
	"fmt"
	"strings"

	"github.com/sarchlab/ahbsim/sim/power"
)

// ProtocolViolation describes a wiring or protocol bug in the model. It is
// raised with panic; the simulation cannot continue past one.
type ProtocolViolation struct {
	Conn   string
	Cycle  uint64
	Detail string
	Wires  []any
}

func (v *ProtocolViolation) Error() string {
	var b strings.Builder

	fmt.Fprintf(&b, "protocol violation on %s at cycle %d: %s",
		v.Conn, v.Cycle, v.Detail)

	for i, w := range v.Wires {
		fmt.Fprintf(&b, "\n  wire[%d] = %v", i, w)
	}

	return b.String()
}

// Violate panics with a ProtocolViolation.
func Violate(ctx *power.Context, conn, detail string, wires ...any) {
	var cycle uint64
	if ctx != nil {
		cycle = ctx.Cycle()
	}

	panic(&ProtocolViolation{
		Conn:   conn,
		Cycle:  cycle,
		Detail: detail,
		Wires:  wires,
	})
}
