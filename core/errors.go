package core

import "errors"

var (
	// ErrChainIDMismatch rejects transactions signed for another network.
	ErrChainIDMismatch = errors.New("core: chain id mismatch")
	// ErrNonceMismatch rejects transactions whose nonce is not the sender's
	// next expected nonce.
	ErrNonceMismatch = errors.New("core: nonce mismatch")
	// ErrInvalidSignature rejects unsigned or unrecoverable transactions.
	ErrInvalidSignature = errors.New("core: invalid signature")
	// ErrUnknownTxType rejects transaction types the node does not apply.
	ErrUnknownTxType = errors.New("core: unknown transaction type")
	// ErrInvalidPayload rejects transactions whose payload cannot be decoded.
	ErrInvalidPayload = errors.New("core: invalid payload")
	// ErrReceiptNotFound is returned when no receipt exists for a hash.
	ErrReceiptNotFound = errors.New("core: receipt not found")
	// ErrNilTransaction guards SubmitTransaction against nil input.
	ErrNilTransaction = errors.New("core: nil transaction")
)
