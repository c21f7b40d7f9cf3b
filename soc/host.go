package soc

import (
	"github.com/pkg/errors"

	"github.com/sarchlab/ahbsim/bus"
	"github.com/sarchlab/ahbsim/bus/interconnect"
	"github.com/sarchlab/ahbsim/mem/memory"
)

// memoryAt resolves a bus address to the memory that backs it, following
// aliases and the cache mode.
func (s *SoC) memoryAt(addr bus.Address) (*memory.Comp, bus.Address, error) {
	tag, norm := s.decode(addr)

	var m *memory.Comp
	switch tag {
	case SlaveFlash:
		m = s.Flash
	case SlaveSRAM:
		m = s.SRAM
	case SlaveROM:
		m = s.ROM
	case SlaveGPRAM:
		m = s.GPRAM
	case SlaveCacheRAM:
		m = s.CacheRAM
	case interconnect.NoMatch:
		return nil, 0, errors.Errorf("%s: %s is not mapped", s.name, addr)
	default:
		return nil, 0, errors.Errorf("%s: %s is not backed by memory (%s)",
			s.name, addr, tag)
	}

	return m, norm, nil
}

// WriteMemory stores data directly into the memory at addr. Read-only
// memories can be loaded this way. A flash line held by the line buffer is
// dropped if the write touches it.
func (s *SoC) WriteMemory(addr bus.Address, data []byte) error {
	m, norm, err := s.memoryAt(addr)
	if err != nil {
		return err
	}

	if err := m.WriteMemory(norm, data); err != nil {
		return err
	}

	if m == s.Flash {
		s.FlashLineBuffer.Invalidate(
			bus.Range{Start: norm, Size: uint64(len(data))})
	}

	return nil
}

// ReadMemory returns n bytes at addr, bypassing the bus. Writes still posted
// in the SRAM write buffer are not visible.
func (s *SoC) ReadMemory(addr bus.Address, n uint64) ([]byte, error) {
	m, norm, err := s.memoryAt(addr)
	if err != nil {
		return nil, err
	}

	return m.ReadMemory(norm, n)
}
