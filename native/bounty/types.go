package bounty

import (
	"fmt"
	"strings"
)

const (
	MaxNameLength        = 64
	MaxDescriptionLength = 1024
	MaxImageLength       = 256
	MaxTitleLength       = 128
	MaxNoteLength        = 1024

	// PaydayNote is attached to every revenue sweep.
	PaydayNote = "Payment from Contractorium"
)

// ContractLabel derives the platform contract's ledger address.
const ContractLabel = "contractorium/platform"

// Config is the platform configuration singleton.
type Config struct {
	Manager  [20]byte
	Deployer [20]byte
	Contract [20]byte
	CutBps   uint32
}

// DefaultConfig returns the deployment configuration: the deployer is also the
// manager and the finder receives DefaultCutBps.
func DefaultConfig(deployer, contract [20]byte) Config {
	return Config{
		Manager:  deployer,
		Deployer: deployer,
		Contract: contract,
		CutBps:   DefaultCutBps,
	}
}

// Validate checks the invariants every stored config must satisfy.
func (c Config) Validate() error {
	if isZero(c.Manager) {
		return fmt.Errorf("%w: manager required", ErrInvalidConfig)
	}
	if isZero(c.Deployer) {
		return fmt.Errorf("%w: deployer required", ErrInvalidConfig)
	}
	if isZero(c.Contract) {
		return fmt.Errorf("%w: contract address required", ErrInvalidConfig)
	}
	if c.Contract == c.Manager || c.Contract == c.Deployer {
		return fmt.Errorf("%w: contract address must be distinct", ErrInvalidConfig)
	}
	return ValidateCutBps(c.CutBps)
}

// Program is a registered bounty program keyed by its owner.
type Program struct {
	Owner       [20]byte
	Name        string
	Description string
	Image       string
	Verified    bool
}

// Clone returns a copy of the program.
func (p *Program) Clone() *Program {
	if p == nil {
		return nil
	}
	clone := *p
	return &clone
}

// ClaimStatus is the lifecycle stage of a claim token.
type ClaimStatus uint8

const (
	ClaimStatusUnknown ClaimStatus = iota
	ClaimStatusOpen
	ClaimStatusSettled
	ClaimStatusDestroyed
)

func (s ClaimStatus) String() string {
	switch s {
	case ClaimStatusOpen:
		return "open"
	case ClaimStatusSettled:
		return "settled"
	case ClaimStatusDestroyed:
		return "destroyed"
	default:
		return "unknown"
	}
}

// ParseClaimStatus maps a status name back to its value.
func ParseClaimStatus(s string) (ClaimStatus, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "open":
		return ClaimStatusOpen, nil
	case "settled":
		return ClaimStatusSettled, nil
	case "destroyed":
		return ClaimStatusDestroyed, nil
	default:
		return ClaimStatusUnknown, fmt.Errorf("bounty: unknown claim status %q", s)
	}
}

// ClaimToken is the single-unit asset minted for a filed report. Holder may
// reconfigure the token, Reporter is the finder and Program the owner entitled
// to it on settlement. A cleared authority stays cleared.
type ClaimToken struct {
	ID          uint64
	Title       string
	Description string
	MetaHash    [32]byte
	Holder      [20]byte
	Reporter    [20]byte
	Program     [20]byte
	Clawback    [20]byte
	Supply      uint64
	Status      ClaimStatus
}

// Clone returns a copy of the claim token.
func (c *ClaimToken) Clone() *ClaimToken {
	if c == nil {
		return nil
	}
	clone := *c
	return &clone
}

// Payment is the value leg submitted together with a settlement request.
type Payment struct {
	Sender   [20]byte
	Receiver [20]byte
	Amount   uint64
}

// SettlementRecord is written once per settled claim.
type SettlementRecord struct {
	ClaimID  uint64
	Reporter [20]byte
	Program  [20]byte
	Gross    uint64
	Payout   uint64
	Revenue  uint64
	CutBps   uint32
	Note     string
}

func isZero(addr [20]byte) bool {
	return addr == [20]byte{}
}

func checkLength(field, value string, max int) error {
	if len(value) > max {
		return fmt.Errorf("%w: %s exceeds %d bytes", ErrFieldTooLong, field, max)
	}
	return nil
}
