package rpc

import (
	"errors"
	"net/http"

	"contractorium/core"
	"contractorium/native/bounty"
)

const (
	codeBountyInvalidParams = -32030
	codeBountyNotFound      = -32031
	codeBountyForbidden     = -32032
	codeBountyConflict      = -32033
	codeBountyFunds         = -32034
	codeTxRejected          = -32035
)

type errorMapping struct {
	status int
	code   int
	errs   []error
}

var errorMappings = []errorMapping{
	{http.StatusNotFound, codeBountyNotFound, []error{
		bounty.ErrProgramNotFound, bounty.ErrClaimNotFound, core.ErrSettlementNotFound, core.ErrReceiptNotFound,
	}},
	{http.StatusForbidden, codeBountyForbidden, []error{
		bounty.ErrUnauthorized, bounty.ErrNotClaimParty, bounty.ErrNotClaimProgram, bounty.ErrNotClaimHolder, bounty.ErrAuthorityLocked,
	}},
	{http.StatusConflict, codeBountyConflict, []error{
		bounty.ErrProgramExists, bounty.ErrClaimNotOpen, bounty.ErrSettlementExists, bounty.ErrClaimSequence,
	}},
	{http.StatusUnprocessableEntity, codeBountyFunds, []error{
		bounty.ErrInsufficientBalance, bounty.ErrBalanceOverflow, bounty.ErrCutOverflow,
	}},
	{http.StatusBadRequest, codeBountyInvalidParams, []error{
		bounty.ErrCutOutOfRange, bounty.ErrNullIdentity, bounty.ErrFieldTooLong, bounty.ErrEmptyName,
		bounty.ErrEmptyDescription, bounty.ErrEmptyNote, bounty.ErrPaymentSender, bounty.ErrPaymentReceiver,
		bounty.ErrInvalidConfig, core.ErrInvalidPayload, core.ErrUnknownTxType,
	}},
	{http.StatusBadRequest, codeTxRejected, []error{
		core.ErrChainIDMismatch, core.ErrNonceMismatch, core.ErrInvalidSignature, core.ErrNilTransaction,
	}},
}

// classify maps a node or engine error onto an HTTP status and JSON-RPC code.
func classify(err error) (int, int) {
	for _, m := range errorMappings {
		for _, target := range m.errs {
			if errors.Is(err, target) {
				return m.status, m.code
			}
		}
	}
	return http.StatusInternalServerError, codeServerError
}

func (s *Server) writeNodeError(w http.ResponseWriter, id interface{}, err error) {
	status, code := classify(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		s.logger.Error("rpc internal error", "error", err)
		message = "internal error"
	}
	writeError(w, status, id, code, message, nil)
}
