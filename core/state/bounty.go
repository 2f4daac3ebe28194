package state

import (
	"encoding/binary"
	"fmt"

	"contractorium/native/bounty"
)

func (m *Manager) BountyConfig() (*bounty.Config, bool, error) {
	var cfg bounty.Config
	ok, err := m.KVGet(bounty.ConfigStorageKey(), &cfg)
	if err != nil || !ok {
		return nil, false, err
	}
	return &cfg, true, nil
}

func (m *Manager) BountyProgram(owner [20]byte) (*bounty.Program, bool, error) {
	var p bounty.Program
	ok, err := m.KVGet(bounty.ProgramStorageKey(owner), &p)
	if err != nil || !ok {
		return nil, false, err
	}
	return &p, true, nil
}

func (m *Manager) BountyClaim(id uint64) (*bounty.ClaimToken, bool, error) {
	var c bounty.ClaimToken
	ok, err := m.KVGet(bounty.ClaimStorageKey(id), &c)
	if err != nil || !ok {
		return nil, false, err
	}
	return &c, true, nil
}

func (m *Manager) BountyClaimHolding(holder [20]byte, id uint64) (uint64, error) {
	var units uint64
	if _, err := m.KVGet(bounty.ClaimHoldingKey(holder, id), &units); err != nil {
		return 0, err
	}
	return units, nil
}

func (m *Manager) BountyBalance(addr [20]byte) (uint64, error) {
	return m.Balance(addr)
}

// BountyNextClaimID returns the id the next minted claim will receive. Ids
// start at 1.
func (m *Manager) BountyNextClaimID() (uint64, error) {
	var next uint64
	ok, err := m.KVGet(bounty.ClaimSequenceKey(), &next)
	if err != nil {
		return 0, err
	}
	if !ok || next == 0 {
		return 1, nil
	}
	return next, nil
}

func (m *Manager) BountySettlement(id uint64) (*bounty.SettlementRecord, bool, error) {
	var rec bounty.SettlementRecord
	ok, err := m.KVGet(bounty.SettlementStorageKey(id), &rec)
	if err != nil || !ok {
		return nil, false, err
	}
	return &rec, true, nil
}

func (m *Manager) PutBountyConfig(cfg bounty.Config) error {
	return m.KVPut(bounty.ConfigStorageKey(), &cfg)
}

func (m *Manager) PutBountyProgram(p *bounty.Program) error {
	if p == nil {
		return fmt.Errorf("state: nil program")
	}
	return m.KVPut(bounty.ProgramStorageKey(p.Owner), p)
}

func (m *Manager) DeleteBountyProgram(owner [20]byte) error {
	return m.KVDelete(bounty.ProgramStorageKey(owner))
}

func (m *Manager) PutBountyClaim(c *bounty.ClaimToken) error {
	if c == nil {
		return fmt.Errorf("state: nil claim")
	}
	return m.KVPut(bounty.ClaimStorageKey(c.ID), c)
}

func (m *Manager) SetBountyClaimHolding(holder [20]byte, id uint64, units uint64) error {
	key := bounty.ClaimHoldingKey(holder, id)
	if units == 0 {
		return m.KVDelete(key)
	}
	return m.KVPut(key, units)
}

func (m *Manager) SetBountyBalance(addr [20]byte, amount uint64) error {
	return m.SetBalance(addr, amount)
}

func (m *Manager) SetBountyNextClaimID(id uint64) error {
	return m.KVPut(bounty.ClaimSequenceKey(), id)
}

func (m *Manager) PutBountySettlement(rec *bounty.SettlementRecord) error {
	if rec == nil {
		return fmt.Errorf("state: nil settlement")
	}
	return m.KVPut(bounty.SettlementStorageKey(rec.ClaimID), rec)
}

func encodeClaimID(id uint64) []byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], id)
	return buf[:]
}

func (m *Manager) IndexBountyClaim(program, reporter [20]byte, id uint64) error {
	if err := m.KVAppend(bounty.ProgramClaimsIndexKey(program), encodeClaimID(id)); err != nil {
		return err
	}
	return m.KVAppend(bounty.ReporterClaimsIndexKey(reporter), encodeClaimID(id))
}

func (m *Manager) claimIndex(key []byte) ([]uint64, error) {
	var raw [][]byte
	if err := m.KVGetList(key, &raw); err != nil {
		return nil, err
	}
	ids := make([]uint64, 0, len(raw))
	for _, entry := range raw {
		if len(entry) != 8 {
			return nil, fmt.Errorf("state: malformed claim index entry")
		}
		ids = append(ids, binary.BigEndian.Uint64(entry))
	}
	return ids, nil
}

// BountyClaimsByProgram lists claim ids filed against owner, oldest first.
func (m *Manager) BountyClaimsByProgram(owner [20]byte) ([]uint64, error) {
	return m.claimIndex(bounty.ProgramClaimsIndexKey(owner))
}

// BountyClaimsByReporter lists claim ids filed by reporter, oldest first.
func (m *Manager) BountyClaimsByReporter(reporter [20]byte) ([]uint64, error) {
	return m.claimIndex(bounty.ReporterClaimsIndexKey(reporter))
}

// BountyCommit applies effects atomically: on any failure the trie is
// restored to its state before the call.
func (m *Manager) BountyCommit(effects []bounty.Effect) error {
	snapshot := m.trie.Snapshot()
	if err := bounty.ApplyEffects(m, effects); err != nil {
		m.trie.Restore(snapshot)
		return err
	}
	return nil
}

var (
	_ bounty.Writer = (*Manager)(nil)
	_ bounty.State  = (*Manager)(nil)
)
