package bus

import "fmt"

// RespKind is the HRESP value of a reply.
type RespKind uint8

// The response kinds.
const (
	Okay RespKind = iota
	Error
)

func (r RespKind) String() string {
	if r == Error {
		return "Error"
	}

	return "Okay"
}

// SlaveToMasterWires is the reply a slave drives in one cycle. A reply with
// Ready low is a wait-state, or the first cycle of an error response.
type SlaveToMasterWires struct {
	Meta  TransferMeta
	Resp  RespKind
	Ready bool
	Data  Data
}

// Success completes a data phase.
func Success(meta TransferMeta, data Data) SlaveToMasterWires {
	return SlaveToMasterWires{Meta: meta, Resp: Okay, Ready: true, Data: data}
}

// Pending inserts one wait-state.
func Pending(meta TransferMeta) SlaveToMasterWires {
	return SlaveToMasterWires{Meta: meta, Resp: Okay}
}

// ErrorFirst is the first cycle of an error response.
func ErrorFirst(meta TransferMeta) SlaveToMasterWires {
	return SlaveToMasterWires{Meta: meta, Resp: Error}
}

// ErrorSecond is the second, completing cycle of an error response.
func ErrorSecond(meta TransferMeta) SlaveToMasterWires {
	return SlaveToMasterWires{Meta: meta, Resp: Error, Ready: true}
}

// IdleReply is the reply to a data phase that carries no transfer.
func IdleReply() SlaveToMasterWires {
	return SlaveToMasterWires{Resp: Okay, Ready: true}
}

// IsSuccess reports whether the reply completes a transfer without error.
func (r SlaveToMasterWires) IsSuccess() bool {
	return r.Ready && r.Resp == Okay
}

// IsPending reports whether the reply is a wait-state.
func (r SlaveToMasterWires) IsPending() bool {
	return !r.Ready && r.Resp == Okay
}

func (r SlaveToMasterWires) String() string {
	return fmt.Sprintf("{%s ready=%t data=%s}", r.Resp, r.Ready, r.Data)
}
