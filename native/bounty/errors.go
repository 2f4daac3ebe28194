package bounty

import "errors"

var (
	ErrNilState        = errors.New("bounty: state not configured")
	ErrNotInitialized  = errors.New("bounty: platform config not initialised")
	ErrUnauthorized    = errors.New("bounty: unauthorized")
	ErrInvalidConfig   = errors.New("bounty: invalid config")
	ErrCutOutOfRange   = errors.New("bounty: cut basis points out of range")
	ErrCutOverflow     = errors.New("bounty: cut overflows ledger width")
	ErrNullIdentity    = errors.New("bounty: null identity")
	ErrFieldTooLong    = errors.New("bounty: field too long")
	ErrEmptyName       = errors.New("bounty: program name required")
	ErrProgramExists   = errors.New("bounty: program already exists")
	ErrProgramNotFound = errors.New("bounty: program not found")

	ErrEmptyDescription = errors.New("bounty: report description required")
	ErrEmptyNote        = errors.New("bounty: settlement note required")
	ErrClaimNotFound    = errors.New("bounty: claim not found")
	ErrClaimNotOpen     = errors.New("bounty: claim not open")
	ErrNotClaimProgram  = errors.New("bounty: sender is not the claim's program")
	ErrNotClaimParty    = errors.New("bounty: sender is neither reporter nor program")

	ErrPaymentSender   = errors.New("bounty: payment sender does not match transaction sender")
	ErrPaymentReceiver = errors.New("bounty: payment receiver is not the platform contract")

	ErrInsufficientBalance = errors.New("bounty: insufficient balance")
	ErrBalanceOverflow     = errors.New("bounty: balance overflow")
	ErrClaimSequence       = errors.New("bounty: claim id out of sequence")
	ErrNotClaimHolder      = errors.New("bounty: issuer is not the claim holder")
	ErrAuthorityLocked     = errors.New("bounty: cleared authority cannot be reassigned")
	ErrSettlementExists    = errors.New("bounty: settlement already recorded")
)
