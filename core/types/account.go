package types

// Account is the ledger record kept for every identity. Balances are held in
// the ledger's native integer width so payout arithmetic never has to widen
// past 64 bits when persisting.
type Account struct {
	Nonce   uint64 `json:"nonce"`
	Balance uint64 `json:"balance"`
}
