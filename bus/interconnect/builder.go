package interconnect

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/sarchlab/ahbsim/bus"
	"github.com/sarchlab/ahbsim/bus/arbitration"
	"github.com/sarchlab/ahbsim/bus/stages"
	"github.com/sarchlab/ahbsim/sim/power"
)

type masterSpec struct {
	name string
	tag  bus.MasterTag
}

// Builder can build interconnects.
type Builder struct {
	decoder Decoder
	node    power.NodeID
	masters []masterSpec
	ports   []SlavePort
	granter bus.Granter
}

// MakeBuilder returns a builder with no masters and no slaves.
func MakeBuilder() Builder {
	return Builder{node: power.NoNode}
}

// WithDecoder sets the address decoder.
func (b Builder) WithDecoder(d Decoder) Builder {
	b.decoder = d
	return b
}

// WithNodeID sets the clock-tree node of the interconnect.
func (b Builder) WithNodeID(id power.NodeID) Builder {
	b.node = id
	return b
}

// WithMaster adds a master. Its input stage is named after it.
func (b Builder) WithMaster(name string, tag bus.MasterTag) Builder {
	b.masters = append(append([]masterSpec(nil), b.masters...),
		masterSpec{name: name, tag: tag})
	return b
}

// WithSlave adds a slave port.
func (b Builder) WithSlave(p SlavePort) Builder {
	b.ports = append(append([]SlavePort(nil), b.ports...), p)
	return b
}

// WithGranter sets the hook that observes every grant decision.
func (b Builder) WithGranter(g bus.Granter) Builder {
	b.granter = g
	return b
}

// Validate checks the configuration.
func (b Builder) Validate() error {
	if b.decoder == nil {
		return errors.New("no address decoder")
	}

	if v, ok := b.decoder.(Validator); ok {
		if err := v.Validate(); err != nil {
			return errors.Wrap(err, "invalid address map")
		}
	}

	if len(b.masters) == 0 {
		return errors.New("no masters")
	}

	var declared [bus.MaxMasters]bool
	for _, m := range b.masters {
		if m.tag >= bus.MaxMasters {
			return errors.Errorf("master %s has tag %d, the limit is %d",
				m.name, m.tag, bus.MaxMasters)
		}

		if declared[m.tag] {
			return errors.Errorf("master tag M%d is used twice", m.tag)
		}

		declared[m.tag] = true
	}

	seen := make(map[SlaveTag]bool)
	for _, p := range b.ports {
		if seen[p.Tag] {
			return errors.Errorf("slave tag %s is used twice", p.Tag)
		}
		seen[p.Tag] = true

		if p.Slave == nil {
			return errors.Errorf("slave port %s has no slave", p.Tag)
		}

		if err := b.validatePort(p, declared); err != nil {
			return err
		}
	}

	if !seen[NoMatch] {
		return errors.New("no NoMatch slave port")
	}

	return nil
}

func (b Builder) validatePort(p SlavePort, declared [bus.MaxMasters]bool) error {
	for _, m := range p.Masters {
		if m >= bus.MaxMasters || !declared[m] {
			return errors.Errorf("slave port %s is wired to unknown master M%d",
				p.Tag, m)
		}
	}

	wired := b.wiredMasters(p)

	switch a := p.Arbiter.(type) {
	case nil:
		if len(wired) > 1 {
			return errors.Errorf(
				"slave port %s has %d masters but no arbiter", p.Tag, len(wired))
		}
	case *arbitration.None:
		if len(wired) > 1 {
			return errors.Errorf(
				"slave port %s has %d masters behind a None arbiter",
				p.Tag, len(wired))
		}
	case arbitration.MasterLister:
		listed := make(map[bus.MasterTag]bool)
		for _, m := range a.Masters() {
			listed[m] = true
		}

		for _, m := range wired {
			if !listed[m] {
				return errors.Errorf(
					"arbiter of slave port %s does not serve master M%d",
					p.Tag, m)
			}
		}
	}

	return nil
}

func (b Builder) wiredMasters(p SlavePort) []bus.MasterTag {
	if len(p.Masters) > 0 && p.Tag != NoMatch {
		return p.Masters
	}

	out := make([]bus.MasterTag, 0, len(b.masters))
	for _, m := range b.masters {
		out = append(out, m.tag)
	}

	return out
}

// Build creates an interconnect with the given name. It panics if the
// configuration is invalid.
func (b Builder) Build(name string) *Comp {
	if err := b.Validate(); err != nil {
		panic(errors.Wrapf(err, "interconnect %s", name))
	}

	c := &Comp{
		name:    name,
		node:    b.node,
		decoder: b.decoder,
		portOf:  make(map[SlaveTag]int),
	}

	for i := range c.last {
		c.last[i] = -1
	}

	for _, m := range b.masters {
		s := stages.NewInputStage(m.name, m.tag)
		s.BindNode(b.node)
		s.SetGranter(b.granter)

		c.stages = append(c.stages, s)
		c.byTag[m.tag] = s
	}

	for i, sp := range b.ports {
		p := &port{
			tag:     sp.Tag,
			slave:   sp.Slave,
			arbiter: sp.Arbiter,
		}

		if p.arbiter == nil {
			p.arbiter = arbitration.NewNone(fmt.Sprintf("%s.%s", name, sp.Tag))
		}

		for _, m := range b.wiredMasters(sp) {
			p.wired[m] = true
		}

		c.ports = append(c.ports, p)
		c.portOf[sp.Tag] = i

		if sp.Tag == NoMatch {
			c.noMatch = i
		}
	}

	return c
}
