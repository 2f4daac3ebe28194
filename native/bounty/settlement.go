package bounty

import (
	"errors"
	"fmt"
	"strings"
)

const refundNotePrefix = "refund: "

// CloseAndPayReport settles claimID with payment. Checks run in a fixed order:
//
//  1. the claim must exist
//  2. the note must be non-empty
//  3. the claim must still be open and held by the contract
//  4. the sender must be the claim's program
//  5. the program must still be registered
//  6. the payment must come from the sender and be addressed to the contract
//
// Failures of 1, 2 and 6 reject the request. Failures of 3 to 5 with a
// well-formed payment are accepted as a full refund, leaving the claim and the
// registry untouched. On success the payment, the finder payout, the claim
// transfer, the authority revocation and the settlement record form a single
// effect batch.
func (c *Context) CloseAndPayReport(payment Payment, claimID uint64, note string) (*Outcome, error) {
	claim, err := c.claim(claimID)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(note) == "" {
		return nil, ErrEmptyNote
	}
	if err := checkLength("note", note, MaxNoteLength); err != nil {
		return nil, err
	}

	refundReason, err := c.settlementRefundReason(claim)
	if err != nil {
		return nil, err
	}

	if payment.Sender != c.Sender {
		return nil, ErrPaymentSender
	}
	if payment.Receiver != c.Config.Contract {
		return nil, ErrPaymentReceiver
	}
	balance, err := c.Ledger.BountyBalance(payment.Sender)
	if err != nil {
		return nil, err
	}
	if balance < payment.Amount {
		return nil, fmt.Errorf("%w: payment of %d exceeds balance %d", ErrInsufficientBalance, payment.Amount, balance)
	}

	deposit := Transfer{From: payment.Sender, To: payment.Receiver, Amount: payment.Amount, Note: note}
	if refundReason != nil {
		return c.refund(claim.ID, deposit, refundReason), nil
	}

	payout, revenue, err := Split(payment.Amount, c.Config.CutBps)
	if err != nil {
		return nil, err
	}
	record := SettlementRecord{
		ClaimID:  claim.ID,
		Reporter: claim.Reporter,
		Program:  claim.Program,
		Gross:    payment.Amount,
		Payout:   payout,
		Revenue:  revenue,
		CutBps:   c.Config.CutBps,
		Note:     note,
	}
	contract := c.Config.Contract
	out := &Outcome{ClaimID: claim.ID, Amount: payout, Settlement: &record}
	out.add(
		deposit,
		Transfer{From: contract, To: claim.Reporter, Amount: payout, Note: note},
		TransferClaim{ClaimID: claim.ID, From: contract, To: claim.Program},
		ReconfigureClaim{
			ClaimID: claim.ID,
			Issuer:  contract,
			Holder:  claim.Program,
			Status:  ClaimStatusSettled,
		},
		RecordSettlement{Record: record},
	)
	settled := claim.Clone()
	settled.Holder = claim.Program
	settled.Reporter = [20]byte{}
	settled.Program = [20]byte{}
	settled.Clawback = [20]byte{}
	settled.Status = ClaimStatusSettled
	out.Claim = settled
	out.emit(NewReportSettledEvent(&record))
	return out, nil
}

// settlementRefundReason runs the checks whose failure converts the request
// into a refund. A nil reason means settlement may proceed.
func (c *Context) settlementRefundReason(claim *ClaimToken) (error, error) {
	if err := c.checkEscrowed(claim); err != nil {
		if errors.Is(err, ErrClaimNotOpen) {
			return err, nil
		}
		return nil, err
	}
	if claim.Program != c.Sender {
		return ErrNotClaimProgram, nil
	}
	if _, err := c.program(claim.Program); err != nil {
		if errors.Is(err, ErrProgramNotFound) {
			return err, nil
		}
		return nil, err
	}
	return nil, nil
}

func (c *Context) refund(claimID uint64, deposit Transfer, reason error) *Outcome {
	out := &Outcome{ClaimID: claimID, Amount: deposit.Amount, Refunded: true, RefundReason: reason}
	out.add(
		deposit,
		Transfer{From: deposit.To, To: deposit.From, Amount: deposit.Amount, Note: refundNotePrefix + reason.Error()},
	)
	out.emit(NewReportRefundedEvent(claimID, deposit.From, deposit.Amount, reason))
	return out
}
