package bounty

import (
	"fmt"
	"math"
)

// Effect is one ledger mutation requested by a decision.
type Effect interface {
	effect()
}

// Transfer moves native balance. Zero amounts are no-ops.
type Transfer struct {
	From   [20]byte
	To     [20]byte
	Amount uint64
	Note   string
}

// MintClaim creates a claim token and credits its single unit to the holder.
type MintClaim struct {
	Claim ClaimToken
}

// TransferClaim moves the claim unit between holders.
type TransferClaim struct {
	ClaimID uint64
	From    [20]byte
	To      [20]byte
}

// ReconfigureClaim rewrites a claim's authority fields and status. Issuer must
// be the current holder.
type ReconfigureClaim struct {
	ClaimID  uint64
	Issuer   [20]byte
	Holder   [20]byte
	Reporter [20]byte
	Program  [20]byte
	Clawback [20]byte
	Status   ClaimStatus
}

// DestroyClaim burns the claim supply. The issuer must be the holder and must
// own the whole supply.
type DestroyClaim struct {
	ClaimID uint64
	Issuer  [20]byte
}

type PutProgram struct {
	Program Program
}

type DeleteProgram struct {
	Owner [20]byte
}

type PutConfig struct {
	Config Config
}

type RecordSettlement struct {
	Record SettlementRecord
}

func (Transfer) effect()         {}
func (MintClaim) effect()        {}
func (TransferClaim) effect()    {}
func (ReconfigureClaim) effect() {}
func (DestroyClaim) effect()     {}
func (PutProgram) effect()       {}
func (DeleteProgram) effect()    {}
func (PutConfig) effect()        {}
func (RecordSettlement) effect() {}

// ApplyEffects executes effects in order against w, stopping at the first
// failure. Callers provide atomicity by discarding w's changes on error.
func ApplyEffects(w Writer, effects []Effect) error {
	if w == nil {
		return ErrNilState
	}
	for i, eff := range effects {
		if err := applyEffect(w, eff); err != nil {
			return fmt.Errorf("effect %d (%T): %w", i, eff, err)
		}
	}
	return nil
}

func applyEffect(w Writer, eff Effect) error {
	switch e := eff.(type) {
	case Transfer:
		return applyTransfer(w, e)
	case MintClaim:
		return applyMint(w, e)
	case TransferClaim:
		return applyClaimTransfer(w, e)
	case ReconfigureClaim:
		return applyReconfigure(w, e)
	case DestroyClaim:
		return applyDestroy(w, e)
	case PutProgram:
		if isZero(e.Program.Owner) {
			return ErrNullIdentity
		}
		p := e.Program
		return w.PutBountyProgram(&p)
	case DeleteProgram:
		if _, ok, err := w.BountyProgram(e.Owner); err != nil {
			return err
		} else if !ok {
			return ErrProgramNotFound
		}
		return w.DeleteBountyProgram(e.Owner)
	case PutConfig:
		if err := e.Config.Validate(); err != nil {
			return err
		}
		return w.PutBountyConfig(e.Config)
	case RecordSettlement:
		if _, ok, err := w.BountySettlement(e.Record.ClaimID); err != nil {
			return err
		} else if ok {
			return ErrSettlementExists
		}
		rec := e.Record
		return w.PutBountySettlement(&rec)
	default:
		return fmt.Errorf("bounty: unsupported effect %T", eff)
	}
}

func applyTransfer(w Writer, e Transfer) error {
	if e.Amount == 0 {
		return nil
	}
	from, err := w.BountyBalance(e.From)
	if err != nil {
		return err
	}
	if from < e.Amount {
		return fmt.Errorf("%w: have %d, need %d", ErrInsufficientBalance, from, e.Amount)
	}
	if e.From == e.To {
		return nil
	}
	to, err := w.BountyBalance(e.To)
	if err != nil {
		return err
	}
	if to > math.MaxUint64-e.Amount {
		return ErrBalanceOverflow
	}
	if err := w.SetBountyBalance(e.From, from-e.Amount); err != nil {
		return err
	}
	return w.SetBountyBalance(e.To, to+e.Amount)
}

func applyMint(w Writer, e MintClaim) error {
	claim := e.Claim
	next, err := w.BountyNextClaimID()
	if err != nil {
		return err
	}
	if claim.ID != next {
		return fmt.Errorf("%w: got %d, want %d", ErrClaimSequence, claim.ID, next)
	}
	if isZero(claim.Holder) {
		return ErrNullIdentity
	}
	if claim.Supply != 1 {
		return fmt.Errorf("bounty: claim supply must be 1, got %d", claim.Supply)
	}
	if err := w.PutBountyClaim(&claim); err != nil {
		return err
	}
	if err := w.SetBountyClaimHolding(claim.Holder, claim.ID, claim.Supply); err != nil {
		return err
	}
	if err := w.SetBountyNextClaimID(next + 1); err != nil {
		return err
	}
	return w.IndexBountyClaim(claim.Program, claim.Reporter, claim.ID)
}

func applyClaimTransfer(w Writer, e TransferClaim) error {
	if _, ok, err := w.BountyClaim(e.ClaimID); err != nil {
		return err
	} else if !ok {
		return ErrClaimNotFound
	}
	if isZero(e.To) {
		return ErrNullIdentity
	}
	held, err := w.BountyClaimHolding(e.From, e.ClaimID)
	if err != nil {
		return err
	}
	if held == 0 {
		return fmt.Errorf("%w: claim %d not held by sender", ErrInsufficientBalance, e.ClaimID)
	}
	if e.From == e.To {
		return nil
	}
	received, err := w.BountyClaimHolding(e.To, e.ClaimID)
	if err != nil {
		return err
	}
	if err := w.SetBountyClaimHolding(e.From, e.ClaimID, held-1); err != nil {
		return err
	}
	return w.SetBountyClaimHolding(e.To, e.ClaimID, received+1)
}

func applyReconfigure(w Writer, e ReconfigureClaim) error {
	claim, ok, err := w.BountyClaim(e.ClaimID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrClaimNotFound
	}
	if isZero(claim.Holder) || claim.Holder != e.Issuer {
		return ErrNotClaimHolder
	}
	if err := checkAuthority(claim.Reporter, e.Reporter); err != nil {
		return fmt.Errorf("reporter: %w", err)
	}
	if err := checkAuthority(claim.Program, e.Program); err != nil {
		return fmt.Errorf("program: %w", err)
	}
	if err := checkAuthority(claim.Clawback, e.Clawback); err != nil {
		return fmt.Errorf("clawback: %w", err)
	}
	claim.Holder = e.Holder
	claim.Reporter = e.Reporter
	claim.Program = e.Program
	claim.Clawback = e.Clawback
	if e.Status != ClaimStatusUnknown {
		claim.Status = e.Status
	}
	return w.PutBountyClaim(claim)
}

func checkAuthority(current, next [20]byte) error {
	if isZero(current) && !isZero(next) {
		return ErrAuthorityLocked
	}
	return nil
}

func applyDestroy(w Writer, e DestroyClaim) error {
	claim, ok, err := w.BountyClaim(e.ClaimID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrClaimNotFound
	}
	if isZero(claim.Holder) || claim.Holder != e.Issuer {
		return ErrNotClaimHolder
	}
	held, err := w.BountyClaimHolding(claim.Holder, claim.ID)
	if err != nil {
		return err
	}
	if held != claim.Supply {
		return fmt.Errorf("%w: holder owns %d of %d units", ErrNotClaimHolder, held, claim.Supply)
	}
	if err := w.SetBountyClaimHolding(claim.Holder, claim.ID, 0); err != nil {
		return err
	}
	claim.Supply = 0
	claim.Status = ClaimStatusDestroyed
	claim.Holder = [20]byte{}
	claim.Reporter = [20]byte{}
	claim.Program = [20]byte{}
	claim.Clawback = [20]byte{}
	return w.PutBountyClaim(claim)
}
