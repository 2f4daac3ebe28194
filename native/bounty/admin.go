package bounty

// ResignManager hands the manager role to next immediately.
func (c *Context) ResignManager(next [20]byte) (*Outcome, error) {
	if err := c.requireManager(); err != nil {
		return nil, err
	}
	if isZero(next) {
		return nil, ErrNullIdentity
	}
	cfg := c.Config
	cfg.Manager = next
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	out := &Outcome{Config: &cfg}
	out.add(PutConfig{Config: cfg})
	out.emit(NewManagerChangedEvent(c.Config.Manager, next))
	return out, nil
}

// SetCut replaces the finder's share in basis points.
func (c *Context) SetCut(rateBps uint32) (*Outcome, error) {
	if err := c.requireManager(); err != nil {
		return nil, err
	}
	if err := ValidateCutBps(rateBps); err != nil {
		return nil, err
	}
	cfg := c.Config
	cfg.CutBps = rateBps
	out := &Outcome{Config: &cfg}
	out.add(PutConfig{Config: cfg})
	out.emit(NewCutUpdatedEvent(c.Config.CutBps, rateBps))
	return out, nil
}

// Payday sweeps Cut(contract balance, CutBps) to the deployer.
func (c *Context) Payday() (*Outcome, error) {
	if err := c.requireManager(); err != nil {
		return nil, err
	}
	balance, err := c.Ledger.BountyBalance(c.Config.Contract)
	if err != nil {
		return nil, err
	}
	amount, err := Cut(balance, c.Config.CutBps)
	if err != nil {
		return nil, err
	}
	out := &Outcome{Amount: amount}
	out.add(Transfer{From: c.Config.Contract, To: c.Config.Deployer, Amount: amount, Note: PaydayNote})
	out.emit(NewPaydayEvent(c.Config.Deployer, amount, balance))
	return out, nil
}
