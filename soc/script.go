package soc

import (
	"encoding/hex"
	"os"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/sarchlab/ahbsim/bus"
	"github.com/sarchlab/ahbsim/bus/busagent"
)

// Preload is a memory image written by the host before the run.
type Preload struct {
	Addr uint32 `yaml:"addr"`
	Hex  string `yaml:"hex"`
}

// ScriptedTransfer is one access issued by a named master.
type ScriptedTransfer struct {
	Master string `yaml:"master"`
	Op     string `yaml:"op"`
	Addr   uint32 `yaml:"addr"`
	Size   uint32 `yaml:"size"`
	Value  uint64 `yaml:"value"`
	Lock   bool   `yaml:"lock"`
	Delay  int    `yaml:"delay"`
}

// Script is the traffic of a run: memory images and the transfers of every
// master, in issue order.
type Script struct {
	CacheMode bool               `yaml:"cache_mode"`
	Memory    []Preload          `yaml:"memory"`
	Transfers []ScriptedTransfer `yaml:"transfers"`
}

// LoadScript reads a YAML traffic script.
func LoadScript(path string) (Script, error) {
	var sc Script

	raw, err := os.ReadFile(path)
	if err != nil {
		return sc, errors.Wrapf(err, "reading script %s", path)
	}

	if err := yaml.Unmarshal(raw, &sc); err != nil {
		return sc, errors.Wrapf(err, "parsing script %s", path)
	}

	return sc, nil
}

// Apply loads the memory images and submits the transfers. Nothing is
// submitted if any entry is invalid.
func (sc Script) Apply(s *SoC) error {
	images := make([][]byte, len(sc.Memory))
	for i, m := range sc.Memory {
		b, err := hex.DecodeString(m.Hex)
		if err != nil {
			return errors.Wrapf(err, "memory image %d", i)
		}

		images[i] = b
	}

	perMaster := make(map[bus.MasterTag][]busagent.Transfer)
	for i, st := range sc.Transfers {
		tag, t, err := st.transfer()
		if err != nil {
			return errors.Wrapf(err, "transfer %d", i)
		}

		perMaster[tag] = append(perMaster[tag], t)
	}

	s.SetCacheMode(sc.CacheMode)

	for i, m := range sc.Memory {
		if err := s.WriteMemory(bus.Address(m.Addr), images[i]); err != nil {
			return err
		}
	}

	for i := 0; i < NumMasters; i++ {
		tag := bus.MasterTag(i)
		if ts := perMaster[tag]; len(ts) > 0 {
			s.Submit(tag, ts...)
		}
	}

	return nil
}

func (st ScriptedTransfer) transfer() (bus.MasterTag, busagent.Transfer, error) {
	tag, ok := MasterByName(st.Master)
	if !ok {
		return 0, busagent.Transfer{},
			errors.Errorf("unknown master %q", st.Master)
	}

	if st.Size == 0 {
		st.Size = 4
	}

	size, ok := bus.SizeOf(st.Size)
	if !ok || st.Size > 8 {
		return 0, busagent.Transfer{},
			errors.Errorf("unsupported size %d", st.Size)
	}

	var t busagent.Transfer

	switch strings.ToLower(st.Op) {
	case "read", "":
		t = busagent.Read(bus.Address(st.Addr), size)
	case "write":
		t = busagent.Write(bus.Address(st.Addr), size,
			bus.DataFromUint64(st.Value, size))
	default:
		return 0, busagent.Transfer{}, errors.Errorf("unknown op %q", st.Op)
	}

	if st.Lock {
		t = t.Locked()
	}

	if st.Delay > 0 {
		t = t.After(st.Delay)
	}

	return tag, t, nil
}
