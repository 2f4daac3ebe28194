package bounty

import (
	"strings"

	"lukechampine.com/blake3"
)

// CreateReport mints a claim token for a finding against the program owned by
// to. The platform contract holds the token until it is settled or deleted.
func (c *Context) CreateReport(to [20]byte, title, description string) (*Outcome, error) {
	title = displayText(title)
	if isZero(c.Sender) || isZero(to) {
		return nil, ErrNullIdentity
	}
	if strings.TrimSpace(description) == "" {
		return nil, ErrEmptyDescription
	}
	if err := checkLength("title", title, MaxTitleLength); err != nil {
		return nil, err
	}
	if err := checkLength("description", description, MaxDescriptionLength); err != nil {
		return nil, err
	}
	if _, err := c.program(to); err != nil {
		return nil, err
	}
	id, err := c.Ledger.BountyNextClaimID()
	if err != nil {
		return nil, err
	}
	claim := ClaimToken{
		ID:          id,
		Title:       title,
		Description: description,
		MetaHash:    blake3.Sum256([]byte(description)),
		Holder:      c.Config.Contract,
		Reporter:    c.Sender,
		Program:     to,
		Clawback:    c.Config.Contract,
		Supply:      1,
		Status:      ClaimStatusOpen,
	}
	out := &Outcome{ClaimID: id, Claim: claim.Clone()}
	out.add(MintClaim{Claim: claim})
	out.emit(NewReportCreatedEvent(&claim))
	return out, nil
}

// DeleteReport destroys an open claim. Only its reporter or the program it was
// filed against may do so.
func (c *Context) DeleteReport(claimID uint64) (*Outcome, error) {
	claim, err := c.openClaim(claimID)
	if err != nil {
		return nil, err
	}
	if c.Sender != claim.Reporter && c.Sender != claim.Program {
		return nil, ErrNotClaimParty
	}
	return c.destroy(claim), nil
}

// DeleteReportAdmin destroys any open claim. Manager only.
func (c *Context) DeleteReportAdmin(claimID uint64) (*Outcome, error) {
	if err := c.requireManager(); err != nil {
		return nil, err
	}
	claim, err := c.openClaim(claimID)
	if err != nil {
		return nil, err
	}
	return c.destroy(claim), nil
}

// openClaim loads a claim that is still escrowed by the contract.
func (c *Context) openClaim(claimID uint64) (*ClaimToken, error) {
	claim, err := c.claim(claimID)
	if err != nil {
		return nil, err
	}
	if err := c.checkEscrowed(claim); err != nil {
		return nil, err
	}
	return claim, nil
}

// checkEscrowed verifies the claim's authorities still resolve to an open,
// contract-held token.
func (c *Context) checkEscrowed(claim *ClaimToken) error {
	if claim.Status != ClaimStatusOpen || claim.Holder != c.Config.Contract {
		return ErrClaimNotOpen
	}
	if isZero(claim.Reporter) || isZero(claim.Program) {
		return ErrClaimNotOpen
	}
	held, err := c.Ledger.BountyClaimHolding(c.Config.Contract, claim.ID)
	if err != nil {
		return err
	}
	if held == 0 {
		return ErrClaimNotOpen
	}
	return nil
}

func (c *Context) destroy(claim *ClaimToken) *Outcome {
	out := &Outcome{ClaimID: claim.ID, Claim: claim.Clone()}
	out.add(DestroyClaim{ClaimID: claim.ID, Issuer: c.Config.Contract})
	out.emit(NewReportDeletedEvent(claim, c.Sender))
	return out
}
