package timing

import (
	"errors"
	"fmt"
)

// FreqInHz is a clock frequency in Hertz.
type FreqInHz uint64

// Common frequency units.
const (
	Hz  FreqInHz = 1
	KHz FreqInHz = 1e3
	MHz FreqInHz = 1e6
	GHz FreqInHz = 1e9
)

// PsPerSecond is the number of picoseconds in a second.
const PsPerSecond VTimeInPs = 1e12

var (
	// ErrZeroFrequency is returned when a clock frequency of zero is given.
	ErrZeroFrequency = errors.New("timing: frequency must be positive")

	// ErrTickPrecisionLoss is returned when a clock period cannot be
	// represented as an even number of picoseconds.
	ErrTickPrecisionLoss = errors.New("timing: period is not representable")
)

// Period returns the clock period in picoseconds. The period must be a whole
// and even number of picoseconds so that the falling edge also lands on the
// picosecond grid.
func (f FreqInHz) Period() (VTimeInPs, error) {
	if f == 0 {
		return 0, ErrZeroFrequency
	}

	if PsPerSecond%VTimeInPs(f) != 0 {
		return 0, fmt.Errorf("%w: %d Hz", ErrTickPrecisionLoss, f)
	}

	period := PsPerSecond / VTimeInPs(f)
	if period%2 != 0 {
		return 0, fmt.Errorf("%w: odd period %d ps", ErrTickPrecisionLoss, period)
	}

	return period, nil
}

// Clock maps cycle numbers onto the timeline.
type Clock struct {
	Origin VTimeInPs
	Period VTimeInPs
}

// NewClock creates a clock whose cycle 0 starts at origin.
func NewClock(freq FreqInHz, origin VTimeInPs) (Clock, error) {
	period, err := freq.Period()
	if err != nil {
		return Clock{}, err
	}

	return Clock{Origin: origin, Period: period}, nil
}

// CycleStart returns the time of the rising edge of the given cycle.
func (c Clock) CycleStart(cycle uint64) VTimeInPs {
	return c.Origin + VTimeInPs(cycle)*c.Period
}

// CycleMid returns the time of the falling edge of the given cycle.
func (c Clock) CycleMid(cycle uint64) VTimeInPs {
	return c.CycleStart(cycle) + c.Period/2
}

// CycleAtOrAfter returns the first cycle whose rising edge is not earlier
// than t.
func (c Clock) CycleAtOrAfter(t VTimeInPs) uint64 {
	if t <= c.Origin {
		return 0
	}

	elapsed := t - c.Origin

	return uint64((elapsed + c.Period - 1) / c.Period)
}
