package types

// Receipt status values.
const (
	ReceiptStatusApplied  = "applied"
	ReceiptStatusRefunded = "refunded"
)

// Receipt records the outcome of an accepted transaction. Rejected
// transactions leave no receipt because they never touch state.
type Receipt struct {
	TxHash       string   `json:"txHash"`
	Height       uint64   `json:"height"`
	Type         string   `json:"type"`
	Sender       string   `json:"sender"`
	Nonce        uint64   `json:"nonce"`
	Status       string   `json:"status"`
	RefundReason string   `json:"refundReason,omitempty"`
	ClaimID      uint64   `json:"claimId,omitempty"`
	Amount       uint64   `json:"amount,omitempty"`
	StateRoot    string   `json:"stateRoot"`
	Events       []*Event `json:"events"`
}
