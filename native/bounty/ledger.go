package bounty

// Ledger is the read view of the substrate a decision consults. Lookups
// report absence through the boolean rather than an error.
type Ledger interface {
	BountyConfig() (*Config, bool, error)
	BountyProgram(owner [20]byte) (*Program, bool, error)
	BountyClaim(id uint64) (*ClaimToken, bool, error)
	BountyClaimHolding(holder [20]byte, id uint64) (uint64, error)
	BountyBalance(addr [20]byte) (uint64, error)
	BountyNextClaimID() (uint64, error)
	BountySettlement(id uint64) (*SettlementRecord, bool, error)
}

// Writer is the mutable view ApplyEffects drives. Implementations are not
// expected to validate; every check lives in ApplyEffects.
type Writer interface {
	Ledger
	PutBountyConfig(cfg Config) error
	PutBountyProgram(p *Program) error
	DeleteBountyProgram(owner [20]byte) error
	PutBountyClaim(c *ClaimToken) error
	SetBountyClaimHolding(holder [20]byte, id uint64, units uint64) error
	SetBountyBalance(addr [20]byte, amount uint64) error
	SetBountyNextClaimID(id uint64) error
	PutBountySettlement(rec *SettlementRecord) error
	IndexBountyClaim(program, reporter [20]byte, id uint64) error
}

// State is what the engine needs from the substrate: reads plus an atomic
// commit of an effect batch. BountyCommit must apply every effect or none.
type State interface {
	Ledger
	BountyCommit(effects []Effect) error
}
