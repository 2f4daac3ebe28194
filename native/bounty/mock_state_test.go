package bounty

import (
	"bytes"
	"fmt"

	"contractorium/core/events"
)

type holdingKey struct {
	holder [20]byte
	id     uint64
}

type mockState struct {
	config      *Config
	programs    map[[20]byte]*Program
	claims      map[uint64]*ClaimToken
	holdings    map[holdingKey]uint64
	balances    map[[20]byte]uint64
	settlements map[uint64]*SettlementRecord
	byProgram   map[[20]byte][]uint64
	byReporter  map[[20]byte][]uint64
	nextClaim   uint64
	commits     int
}

func newMockState() *mockState {
	return &mockState{
		programs:    make(map[[20]byte]*Program),
		claims:      make(map[uint64]*ClaimToken),
		holdings:    make(map[holdingKey]uint64),
		balances:    make(map[[20]byte]uint64),
		settlements: make(map[uint64]*SettlementRecord),
		byProgram:   make(map[[20]byte][]uint64),
		byReporter:  make(map[[20]byte][]uint64),
		nextClaim:   1,
	}
}

func (m *mockState) clone() *mockState {
	c := newMockState()
	if m.config != nil {
		cfg := *m.config
		c.config = &cfg
	}
	for k, v := range m.programs {
		c.programs[k] = v.Clone()
	}
	for k, v := range m.claims {
		c.claims[k] = v.Clone()
	}
	for k, v := range m.holdings {
		c.holdings[k] = v
	}
	for k, v := range m.balances {
		c.balances[k] = v
	}
	for k, v := range m.settlements {
		rec := *v
		c.settlements[k] = &rec
	}
	for k, v := range m.byProgram {
		c.byProgram[k] = append([]uint64(nil), v...)
	}
	for k, v := range m.byReporter {
		c.byReporter[k] = append([]uint64(nil), v...)
	}
	c.nextClaim = m.nextClaim
	c.commits = m.commits
	return c
}

func (m *mockState) BountyConfig() (*Config, bool, error) {
	if m.config == nil {
		return nil, false, nil
	}
	cfg := *m.config
	return &cfg, true, nil
}

func (m *mockState) BountyProgram(owner [20]byte) (*Program, bool, error) {
	p, ok := m.programs[owner]
	if !ok {
		return nil, false, nil
	}
	return p.Clone(), true, nil
}

func (m *mockState) BountyClaim(id uint64) (*ClaimToken, bool, error) {
	c, ok := m.claims[id]
	if !ok {
		return nil, false, nil
	}
	return c.Clone(), true, nil
}

func (m *mockState) BountyClaimHolding(holder [20]byte, id uint64) (uint64, error) {
	return m.holdings[holdingKey{holder, id}], nil
}

func (m *mockState) BountyBalance(addr [20]byte) (uint64, error) {
	return m.balances[addr], nil
}

func (m *mockState) BountyNextClaimID() (uint64, error) { return m.nextClaim, nil }

func (m *mockState) BountySettlement(id uint64) (*SettlementRecord, bool, error) {
	rec, ok := m.settlements[id]
	if !ok {
		return nil, false, nil
	}
	clone := *rec
	return &clone, true, nil
}

func (m *mockState) PutBountyConfig(cfg Config) error {
	m.config = &cfg
	return nil
}

func (m *mockState) PutBountyProgram(p *Program) error {
	if p == nil {
		return fmt.Errorf("nil program")
	}
	m.programs[p.Owner] = p.Clone()
	return nil
}

func (m *mockState) DeleteBountyProgram(owner [20]byte) error {
	delete(m.programs, owner)
	return nil
}

func (m *mockState) PutBountyClaim(c *ClaimToken) error {
	m.claims[c.ID] = c.Clone()
	return nil
}

func (m *mockState) SetBountyClaimHolding(holder [20]byte, id uint64, units uint64) error {
	if units == 0 {
		delete(m.holdings, holdingKey{holder, id})
		return nil
	}
	m.holdings[holdingKey{holder, id}] = units
	return nil
}

func (m *mockState) SetBountyBalance(addr [20]byte, amount uint64) error {
	m.balances[addr] = amount
	return nil
}

func (m *mockState) SetBountyNextClaimID(id uint64) error {
	m.nextClaim = id
	return nil
}

func (m *mockState) PutBountySettlement(rec *SettlementRecord) error {
	clone := *rec
	m.settlements[rec.ClaimID] = &clone
	return nil
}

func (m *mockState) IndexBountyClaim(program, reporter [20]byte, id uint64) error {
	m.byProgram[program] = append(m.byProgram[program], id)
	m.byReporter[reporter] = append(m.byReporter[reporter], id)
	return nil
}

// BountyCommit applies effects to a scratch copy and only adopts it when every
// effect succeeds.
func (m *mockState) BountyCommit(effects []Effect) error {
	scratch := m.clone()
	if err := ApplyEffects(scratch, effects); err != nil {
		return err
	}
	scratch.commits++
	*m = *scratch
	return nil
}

type capturingEmitter struct {
	events []events.Event
}

func (c *capturingEmitter) Emit(evt events.Event) {
	c.events = append(c.events, evt)
}

func (c *capturingEmitter) types() []string {
	out := make([]string, 0, len(c.events))
	for _, evt := range c.events {
		out = append(out, evt.EventType())
	}
	return out
}

func newTestAddress(fill byte) [20]byte {
	var addr [20]byte
	copy(addr[:], bytes.Repeat([]byte{fill}, 20))
	return addr
}

var (
	deployerAddr = newTestAddress(0xD0)
	contractAddr = newTestAddress(0xC0)
	programAddr  = newTestAddress(0xA1)
	finderAddr   = newTestAddress(0xF1)
	otherAddr    = newTestAddress(0x0E)
)

// newTestEngine returns an initialised engine whose manager is the deployer.
func newTestEngine() (*Engine, *mockState, *capturingEmitter) {
	st := newMockState()
	engine := NewEngine()
	engine.SetState(st)
	emitter := &capturingEmitter{}
	if _, err := engine.Initialize(DefaultConfig(deployerAddr, contractAddr)); err != nil {
		panic(err)
	}
	engine.SetEmitter(emitter)
	return engine, st, emitter
}
