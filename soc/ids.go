package soc

import (
	"github.com/sarchlab/ahbsim/bus"
	"github.com/sarchlab/ahbsim/bus/interconnect"
	"github.com/sarchlab/ahbsim/sim/power"
)

// The nodes of the clock tree, in evaluation order: masters first, then the
// interconnect, the stages in front of slaves and finally the slaves.
const (
	NodeMasterCode power.NodeID = iota
	NodeMasterSys
	NodeMasterDMA
	NodeMatrix
	NodeFlashLineBuffer
	NodeSRAMWriteBuffer
	NodePPBAligner
	NodeFlash
	NodeSRAM
	NodeROM
	NodeGPRAM
	NodeCacheRAM
	NodeSysTick
	NodeBusError

	NumNodes int = iota
)

// The masters.
const (
	MasterCode bus.MasterTag = iota
	MasterSys
	MasterDMA

	NumMasters int = iota
)

// The slave ports.
const (
	SlaveFlash interconnect.SlaveTag = iota
	SlaveSRAM
	SlaveROM
	SlaveGPRAM
	SlaveCacheRAM
	SlavePPB
)

var masterNames = [NumMasters]string{"Code", "Sys", "DMA"}

var masterNodes = [NumMasters]power.NodeID{
	NodeMasterCode,
	NodeMasterSys,
	NodeMasterDMA,
}

// MasterNode returns the node of a master.
func MasterNode(tag bus.MasterTag) power.NodeID {
	return masterNodes[tag]
}

// MasterName returns the name of a master.
func MasterName(tag bus.MasterTag) string {
	return masterNames[tag]
}

// MasterByName returns the master with the given name.
func MasterByName(name string) (bus.MasterTag, bool) {
	for i, n := range masterNames {
		if n == name {
			return bus.MasterTag(i), true
		}
	}

	return 0, false
}
