package bounty

import (
	"errors"
	"math"
	"testing"
)

func TestApplyTransfer(t *testing.T) {
	st := newMockState()
	st.balances[programAddr] = 10

	if err := ApplyEffects(st, []Effect{Transfer{From: programAddr, To: finderAddr, Amount: 11}}); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
	if err := ApplyEffects(st, []Effect{Transfer{From: otherAddr, To: finderAddr}}); err != nil {
		t.Fatalf("zero transfer must be a no-op: %v", err)
	}
	st.balances[finderAddr] = math.MaxUint64
	if err := ApplyEffects(st, []Effect{Transfer{From: programAddr, To: finderAddr, Amount: 1}}); !errors.Is(err, ErrBalanceOverflow) {
		t.Fatalf("expected ErrBalanceOverflow, got %v", err)
	}
}

func TestApplyMintRequiresSequence(t *testing.T) {
	st := newMockState()
	claim := ClaimToken{ID: 2, Holder: contractAddr, Supply: 1, Status: ClaimStatusOpen}
	if err := ApplyEffects(st, []Effect{MintClaim{Claim: claim}}); !errors.Is(err, ErrClaimSequence) {
		t.Fatalf("expected ErrClaimSequence, got %v", err)
	}
	claim.ID = 1
	claim.Supply = 2
	if err := ApplyEffects(st, []Effect{MintClaim{Claim: claim}}); err == nil {
		t.Fatalf("expected supply check to fail")
	}
}

func TestReconfigureRules(t *testing.T) {
	st := newMockState()
	claim := ClaimToken{ID: 1, Holder: contractAddr, Reporter: finderAddr, Program: programAddr, Clawback: contractAddr, Supply: 1, Status: ClaimStatusOpen}
	if err := ApplyEffects(st, []Effect{MintClaim{Claim: claim}}); err != nil {
		t.Fatalf("mint: %v", err)
	}

	notHolder := ReconfigureClaim{ClaimID: 1, Issuer: programAddr, Holder: programAddr}
	if err := ApplyEffects(st, []Effect{notHolder}); !errors.Is(err, ErrNotClaimHolder) {
		t.Fatalf("expected ErrNotClaimHolder, got %v", err)
	}

	dropReporter := ReconfigureClaim{ClaimID: 1, Issuer: contractAddr, Holder: contractAddr, Program: programAddr}
	if err := ApplyEffects(st, []Effect{dropReporter}); err != nil {
		t.Fatalf("clear reporter: %v", err)
	}
	reset := ReconfigureClaim{ClaimID: 1, Issuer: contractAddr, Holder: contractAddr, Reporter: finderAddr, Program: programAddr}
	if err := ApplyEffects(st, []Effect{reset}); !errors.Is(err, ErrAuthorityLocked) {
		t.Fatalf("expected ErrAuthorityLocked, got %v", err)
	}
}

func TestDestroyRequiresFullSupply(t *testing.T) {
	st := newMockState()
	claim := ClaimToken{ID: 1, Holder: contractAddr, Reporter: finderAddr, Program: programAddr, Clawback: contractAddr, Supply: 1, Status: ClaimStatusOpen}
	if err := ApplyEffects(st, []Effect{MintClaim{Claim: claim}}); err != nil {
		t.Fatalf("mint: %v", err)
	}
	moveOut := TransferClaim{ClaimID: 1, From: contractAddr, To: otherAddr}
	if err := ApplyEffects(st, []Effect{moveOut}); err != nil {
		t.Fatalf("transfer claim: %v", err)
	}
	if err := ApplyEffects(st, []Effect{DestroyClaim{ClaimID: 1, Issuer: contractAddr}}); !errors.Is(err, ErrNotClaimHolder) {
		t.Fatalf("expected ErrNotClaimHolder, got %v", err)
	}
}

func TestBountyCommitRollsBackOnFailure(t *testing.T) {
	st := newMockState()
	st.balances[programAddr] = 100
	batch := []Effect{
		Transfer{From: programAddr, To: contractAddr, Amount: 60},
		Transfer{From: contractAddr, To: finderAddr, Amount: 61},
	}
	if err := st.BountyCommit(batch); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
	if st.balances[programAddr] != 100 || st.balances[contractAddr] != 0 {
		t.Fatalf("partial batch leaked: %v", st.balances)
	}
}

func TestPutConfigValidates(t *testing.T) {
	st := newMockState()
	bad := DefaultConfig(deployerAddr, contractAddr)
	bad.CutBps = BasisPoints + 1
	if err := ApplyEffects(st, []Effect{PutConfig{Config: bad}}); !errors.Is(err, ErrCutOutOfRange) {
		t.Fatalf("expected ErrCutOutOfRange, got %v", err)
	}
	if err := ApplyEffects(st, []Effect{DeleteProgram{Owner: programAddr}}); !errors.Is(err, ErrProgramNotFound) {
		t.Fatalf("expected ErrProgramNotFound, got %v", err)
	}
}
