package bounty

import "contractorium/core/types"

// Context carries everything one decision needs: the platform config in
// effect, the verified transaction sender and a read view of the ledger.
// Decisions never mutate anything; they return an Outcome.
type Context struct {
	Config Config
	Sender [20]byte
	Ledger Ledger
}

// NewContext builds a decision context for sender.
func NewContext(cfg Config, sender [20]byte, ledger Ledger) *Context {
	return &Context{Config: cfg, Sender: sender, Ledger: ledger}
}

// Outcome is the accepted result of a decision. Effects must be committed as
// one atomic batch before Events are published.
type Outcome struct {
	Effects []Effect
	Events  []*types.Event

	// Refunded is set when a settlement was accepted only to return the
	// payment; RefundReason wraps the failed check.
	Refunded     bool
	RefundReason error

	ClaimID    uint64
	Program    *Program
	Claim      *ClaimToken
	Settlement *SettlementRecord
	Config     *Config
	Amount     uint64
}

func (o *Outcome) add(effects ...Effect) {
	o.Effects = append(o.Effects, effects...)
}

func (o *Outcome) emit(evt *types.Event) {
	if evt != nil {
		o.Events = append(o.Events, evt)
	}
}

func (c *Context) isManager() bool {
	return c.Sender == c.Config.Manager
}

func (c *Context) requireManager() error {
	if !c.isManager() {
		return ErrUnauthorized
	}
	return nil
}

func (c *Context) program(owner [20]byte) (*Program, error) {
	p, ok, err := c.Ledger.BountyProgram(owner)
	if err != nil {
		return nil, err
	}
	if !ok || p == nil {
		return nil, ErrProgramNotFound
	}
	return p.Clone(), nil
}

func (c *Context) claim(id uint64) (*ClaimToken, error) {
	if id == 0 {
		return nil, ErrClaimNotFound
	}
	claim, ok, err := c.Ledger.BountyClaim(id)
	if err != nil {
		return nil, err
	}
	if !ok || claim == nil {
		return nil, ErrClaimNotFound
	}
	return claim.Clone(), nil
}
