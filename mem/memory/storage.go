// Package memory provides the generic memory block used for flash, SRAM,
// ROM and the other on-chip memories.
package memory

import (
	"sync"

	"github.com/pkg/errors"
)

// A Storage keeps the bytes of a memory.
//
// The storage is managed in units. Units that have never been written are not
// allocated and read back as the fill byte. The capacity is fixed when the
// storage is created.
type Storage struct {
	sync.Mutex

	unitSize uint64
	capacity uint64
	fill     byte
	data     map[uint64][]byte
}

// NewStorage creates a storage with the given capacity, in bytes.
func NewStorage(capacity uint64) *Storage {
	return NewStorageWithFill(capacity, 0)
}

// NewStorageWithFill creates a storage whose untouched bytes read as fill.
func NewStorageWithFill(capacity uint64, fill byte) *Storage {
	return &Storage{
		unitSize: 4096,
		capacity: capacity,
		fill:     fill,
		data:     make(map[uint64][]byte),
	}
}

// Capacity returns the size of the storage.
func (s *Storage) Capacity() uint64 {
	return s.capacity
}

func (s *Storage) mustFit(address, length uint64) error {
	if address+length > s.capacity || address+length < address {
		return errors.Errorf(
			"accessing [0x%x, 0x%x) beyond the storage capacity 0x%x",
			address, address+length, s.capacity)
	}

	return nil
}

func (s *Storage) parseAddress(addr uint64) (baseAddr, inUnitAddr uint64) {
	inUnitAddr = addr % s.unitSize
	baseAddr = addr - inUnitAddr

	return
}

func (s *Storage) getOrCreateUnit(baseAddr uint64) []byte {
	unit, ok := s.data[baseAddr]
	if !ok {
		unit = make([]byte, s.unitSize)
		if s.fill != 0 {
			for i := range unit {
				unit[i] = s.fill
			}
		}
		s.data[baseAddr] = unit
	}

	return unit
}

// Read returns length bytes starting at address.
func (s *Storage) Read(address uint64, length uint64) ([]byte, error) {
	s.Lock()
	defer s.Unlock()

	if err := s.mustFit(address, length); err != nil {
		return nil, err
	}

	res := make([]byte, length)
	for offset := uint64(0); offset < length; {
		baseAddr, inUnitAddr := s.parseAddress(address + offset)
		n := min(length-offset, s.unitSize-inUnitAddr)

		unit, ok := s.data[baseAddr]
		if ok {
			copy(res[offset:offset+n], unit[inUnitAddr:inUnitAddr+n])
		} else {
			for i := offset; i < offset+n; i++ {
				res[i] = s.fill
			}
		}

		offset += n
	}

	return res, nil
}

// Write stores data starting at address.
func (s *Storage) Write(address uint64, data []byte) error {
	s.Lock()
	defer s.Unlock()

	length := uint64(len(data))
	if err := s.mustFit(address, length); err != nil {
		return err
	}

	for offset := uint64(0); offset < length; {
		baseAddr, inUnitAddr := s.parseAddress(address + offset)
		n := min(length-offset, s.unitSize-inUnitAddr)

		unit := s.getOrCreateUnit(baseAddr)
		copy(unit[inUnitAddr:inUnitAddr+n], data[offset:offset+n])

		offset += n
	}

	return nil
}
