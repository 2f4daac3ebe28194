package core

import (
	"fmt"

	"contractorium/core/events"
	"contractorium/core/types"
	"contractorium/crypto"
	"contractorium/native/bounty"
)

// txResult summarises what an accepted transaction did, for the receipt and
// for metrics.
type txResult struct {
	Refunded     bool
	RefundReason error
	ClaimID      uint64
	Amount       uint64
	Settlement   *bounty.SettlementRecord
}

func addressString(addr [20]byte) string {
	return crypto.AddressFromRaw(addr).String()
}

func payloadAddress(field string, raw []byte) ([20]byte, error) {
	var out [20]byte
	if len(raw) != len(out) {
		return out, fmt.Errorf("%w: %s must be 20 bytes, got %d", ErrInvalidPayload, field, len(raw))
	}
	copy(out[:], raw)
	return out, nil
}

func decodePayload(tx *types.Transaction, out interface{}) error {
	if err := tx.DecodePayload(out); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return nil
}

// dispatch routes tx to its handler. Any error rejects the transaction and
// the caller discards every pending write.
func (n *Node) dispatch(sender [20]byte, tx *types.Transaction) (*txResult, error) {
	switch tx.Type {
	case types.TxTypeTransfer:
		return n.applyTransfer(sender, tx)
	case types.TxTypeCreateProgram:
		var p types.ProgramPayload
		if err := decodePayload(tx, &p); err != nil {
			return nil, err
		}
		_, err := n.engine.CreateProgram(sender, p.Name, p.Description, p.Image)
		return &txResult{}, err
	case types.TxTypeEditProgram:
		var p types.ProgramPayload
		if err := decodePayload(tx, &p); err != nil {
			return nil, err
		}
		_, err := n.engine.EditProgram(sender, p.Name, p.Description, p.Image)
		return &txResult{}, err
	case types.TxTypeDeleteProgram:
		return &txResult{}, n.engine.DeleteProgram(sender)
	case types.TxTypeVerifyProgram:
		target, err := n.targetPayload(tx)
		if err != nil {
			return nil, err
		}
		_, err = n.engine.VerifyProgram(sender, target)
		return &txResult{}, err
	case types.TxTypeDeleteProgramAdmin:
		target, err := n.targetPayload(tx)
		if err != nil {
			return nil, err
		}
		return &txResult{}, n.engine.DeleteProgramAdmin(sender, target)
	case types.TxTypeCreateReport:
		var p types.CreateReportPayload
		if err := decodePayload(tx, &p); err != nil {
			return nil, err
		}
		to, err := payloadAddress("to", p.To)
		if err != nil {
			return nil, err
		}
		id, err := n.engine.CreateReport(sender, to, p.Title, p.Description)
		if err != nil {
			return nil, err
		}
		return &txResult{ClaimID: id}, nil
	case types.TxTypeCloseAndPayReport:
		return n.applyCloseAndPay(sender, tx)
	case types.TxTypeDeleteReport:
		var p types.ClaimPayload
		if err := decodePayload(tx, &p); err != nil {
			return nil, err
		}
		return &txResult{ClaimID: p.ClaimID}, n.engine.DeleteReport(sender, p.ClaimID)
	case types.TxTypeDeleteReportAdmin:
		var p types.ClaimPayload
		if err := decodePayload(tx, &p); err != nil {
			return nil, err
		}
		return &txResult{ClaimID: p.ClaimID}, n.engine.DeleteReportAdmin(sender, p.ClaimID)
	case types.TxTypeResignManager:
		next, err := n.targetPayload(tx)
		if err != nil {
			return nil, err
		}
		return &txResult{}, n.engine.ResignManager(sender, next)
	case types.TxTypeSetCut:
		var p types.SetCutPayload
		if err := decodePayload(tx, &p); err != nil {
			return nil, err
		}
		return &txResult{}, n.engine.SetCut(sender, p.CutBps)
	case types.TxTypePayday:
		amount, err := n.engine.Payday(sender)
		if err != nil {
			return nil, err
		}
		return &txResult{Amount: amount}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownTxType, tx.Type)
	}
}

func (n *Node) targetPayload(tx *types.Transaction) ([20]byte, error) {
	var p types.TargetPayload
	if err := decodePayload(tx, &p); err != nil {
		return [20]byte{}, err
	}
	return payloadAddress("target", p.Target)
}

func (n *Node) applyTransfer(sender [20]byte, tx *types.Transaction) (*txResult, error) {
	to, err := payloadAddress("to", tx.To)
	if err != nil {
		return nil, err
	}
	transfer := bounty.Transfer{From: sender, To: to, Amount: tx.Value}
	if err := n.ledger.BountyCommit([]bounty.Effect{transfer}); err != nil {
		return nil, err
	}
	if tx.Value > 0 {
		n.pending = append(n.pending, events.Transfer{From: sender, To: to, Amount: tx.Value}.Event())
	}
	return &txResult{Amount: tx.Value}, nil
}

func (n *Node) applyCloseAndPay(sender [20]byte, tx *types.Transaction) (*txResult, error) {
	var p types.CloseAndPayPayload
	if err := decodePayload(tx, &p); err != nil {
		return nil, err
	}
	payer, err := payloadAddress("payment.sender", p.Payment.Sender)
	if err != nil {
		return nil, err
	}
	receiver, err := payloadAddress("payment.receiver", p.Payment.Receiver)
	if err != nil {
		return nil, err
	}
	payment := bounty.Payment{Sender: payer, Receiver: receiver, Amount: p.Payment.Amount}
	out, err := n.engine.CloseAndPayReport(sender, payment, p.ClaimID, p.Note)
	if err != nil {
		return nil, err
	}
	return &txResult{
		Refunded:     out.Refunded,
		RefundReason: out.RefundReason,
		ClaimID:      out.ClaimID,
		Amount:       out.Amount,
		Settlement:   out.Settlement,
	}, nil
}
