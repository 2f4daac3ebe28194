package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"contractorium/core/events"
	"contractorium/core/types"
	"contractorium/native/bounty"
	"contractorium/storage"
)

// ErrSettlementNotFound is returned when a claim has no settlement record.
var ErrSettlementNotFound = errors.New("core: settlement not found")

// ChainID returns the network identifier transactions must be signed for.
func (n *Node) ChainID() uint64 { return n.chainID }

// Feed exposes the committed event stream.
func (n *Node) Feed() *events.Feed { return n.feed }

// Height returns the number of applied transactions.
func (n *Node) Height() uint64 {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return n.height
}

// StateRoot returns the last committed state root.
func (n *Node) StateRoot() string {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return n.ledger.Root().Hex()
}

// Config returns the platform configuration in effect.
func (n *Node) Config() (*bounty.Config, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return n.engine.Config()
}

// Program returns the program owned by owner.
func (n *Node) Program(owner [20]byte) (*bounty.Program, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	program, ok, err := n.ledger.BountyProgram(owner)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, bounty.ErrProgramNotFound
	}
	return program, nil
}

// Claim returns the claim token with id, including destroyed tombstones.
func (n *Node) Claim(id uint64) (*bounty.ClaimToken, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	claim, ok, err := n.ledger.BountyClaim(id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, bounty.ErrClaimNotFound
	}
	return claim, nil
}

// ClaimsByProgram lists the ids of claims filed against owner's program.
func (n *Node) ClaimsByProgram(owner [20]byte) ([]uint64, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return n.ledger.BountyClaimsByProgram(owner)
}

// ClaimsByReporter lists the ids of claims filed by reporter.
func (n *Node) ClaimsByReporter(reporter [20]byte) ([]uint64, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return n.ledger.BountyClaimsByReporter(reporter)
}

// Settlement returns the settlement record of a paid claim.
func (n *Node) Settlement(claimID uint64) (*bounty.SettlementRecord, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	rec, ok, err := n.ledger.BountySettlement(claimID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrSettlementNotFound
	}
	return rec, nil
}

// Account returns the nonce and balance of addr.
func (n *Node) Account(addr [20]byte) (*types.Account, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return n.ledger.GetAccount(addr)
}

// PreviewCut reports the split a settlement of amount would produce now.
func (n *Node) PreviewCut(amount uint64) (payout, revenue uint64, err error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return n.engine.PreviewCut(amount)
}

// Receipt loads the receipt stored for txHash.
func (n *Node) Receipt(txHash string) (*types.Receipt, error) {
	hash := strings.ToLower(strings.TrimSpace(txHash))
	if !strings.HasPrefix(hash, "0x") {
		hash = "0x" + hash
	}
	raw, err := n.db.Get(receiptKey(hash))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrReceiptNotFound
	}
	if err != nil {
		return nil, err
	}
	var receipt types.Receipt
	if err := json.Unmarshal(raw, &receipt); err != nil {
		return nil, fmt.Errorf("decode receipt: %w", err)
	}
	return &receipt, nil
}

// Events returns retained feed records with sequence numbers above after.
func (n *Node) Events(after uint64, limit int) []events.Record {
	return n.feed.Since(after, limit)
}
