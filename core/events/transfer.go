package events

import (
	"strconv"

	"contractorium/core/types"
	"contractorium/crypto"
)

const (
	// TypeTransfer is emitted for plain balance movements between accounts.
	TypeTransfer = "transfer.native"
)

type Transfer struct {
	From   [20]byte
	To     [20]byte
	Amount uint64
}

func (Transfer) EventType() string { return TypeTransfer }

func (e Transfer) Event() *types.Event {
	return &types.Event{Type: TypeTransfer, Attributes: map[string]string{
		"from":   crypto.AddressFromRaw(e.From).String(),
		"to":     crypto.AddressFromRaw(e.To).String(),
		"amount": strconv.FormatUint(e.Amount, 10),
	}}
}
