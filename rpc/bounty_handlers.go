package rpc

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"contractorium/core/events"
	"contractorium/core/types"
	"contractorium/crypto"
	"contractorium/native/bounty"
)

const maxListEvents = 500

type StatusResult struct {
	ChainID   uint64 `json:"chainId"`
	Height    uint64 `json:"height"`
	StateRoot string `json:"stateRoot"`
}

type ConfigResult struct {
	Manager  string `json:"manager"`
	Deployer string `json:"deployer"`
	Contract string `json:"contract"`
	CutBps   uint32 `json:"cutBps"`
}

type ProgramResult struct {
	Owner       string `json:"owner"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Image       string `json:"image,omitempty"`
	Verified    bool   `json:"verified"`
}

type ClaimResult struct {
	ID          uint64 `json:"id"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description"`
	MetaHash    string `json:"metaHash"`
	Holder      string `json:"holder,omitempty"`
	Reporter    string `json:"reporter,omitempty"`
	Program     string `json:"program,omitempty"`
	Clawback    string `json:"clawback,omitempty"`
	Supply      uint64 `json:"supply"`
	Status      string `json:"status"`
}

type SettlementResult struct {
	ClaimID  uint64 `json:"claimId"`
	Reporter string `json:"reporter"`
	Program  string `json:"program"`
	Gross    uint64 `json:"gross"`
	Payout   uint64 `json:"payout"`
	Revenue  uint64 `json:"revenue"`
	CutBps   uint32 `json:"cutBps"`
	Note     string `json:"note"`
}

type BalanceResult struct {
	Address string `json:"address"`
	Balance uint64 `json:"balance"`
	Nonce   uint64 `json:"nonce"`
}

type PreviewCutResult struct {
	Amount  uint64 `json:"amount"`
	Payout  uint64 `json:"payout"`
	Revenue uint64 `json:"revenue"`
	CutBps  uint32 `json:"cutBps"`
}

type addressParams struct {
	Address string `json:"address"`
}

type claimParams struct {
	ClaimID uint64 `json:"claimId"`
}

type listClaimsParams struct {
	Program  string `json:"program,omitempty"`
	Reporter string `json:"reporter,omitempty"`
	Status   string `json:"status,omitempty"`
}

type previewCutParams struct {
	Amount uint64 `json:"amount"`
}

type receiptParams struct {
	TxHash string `json:"txHash"`
}

type listEventsParams struct {
	After uint64 `json:"after"`
	Limit int    `json:"limit"`
}

func formatAddress(addr [20]byte) string {
	return crypto.AddressFromRaw(addr).String()
}

func optionalAddress(addr [20]byte) string {
	if addr == ([20]byte{}) {
		return ""
	}
	return formatAddress(addr)
}

func configResult(cfg *bounty.Config) ConfigResult {
	return ConfigResult{
		Manager:  formatAddress(cfg.Manager),
		Deployer: formatAddress(cfg.Deployer),
		Contract: formatAddress(cfg.Contract),
		CutBps:   cfg.CutBps,
	}
}

func programResult(p *bounty.Program) ProgramResult {
	return ProgramResult{
		Owner:       formatAddress(p.Owner),
		Name:        p.Name,
		Description: p.Description,
		Image:       p.Image,
		Verified:    p.Verified,
	}
}

func claimResult(c *bounty.ClaimToken) ClaimResult {
	return ClaimResult{
		ID:          c.ID,
		Title:       c.Title,
		Description: c.Description,
		MetaHash:    "0x" + hex.EncodeToString(c.MetaHash[:]),
		Holder:      optionalAddress(c.Holder),
		Reporter:    optionalAddress(c.Reporter),
		Program:     optionalAddress(c.Program),
		Clawback:    optionalAddress(c.Clawback),
		Supply:      c.Supply,
		Status:      c.Status.String(),
	}
}

func settlementResult(rec *bounty.SettlementRecord) SettlementResult {
	return SettlementResult{
		ClaimID:  rec.ClaimID,
		Reporter: formatAddress(rec.Reporter),
		Program:  formatAddress(rec.Program),
		Gross:    rec.Gross,
		Payout:   rec.Payout,
		Revenue:  rec.Revenue,
		CutBps:   rec.CutBps,
		Note:     rec.Note,
	}
}

// decodeParam unmarshals the first positional parameter into out.
func decodeParam(req *RPCRequest, out interface{}) error {
	if len(req.Params) != 1 {
		return fmt.Errorf("expected exactly one parameter object")
	}
	decoder := json.NewDecoder(bytes.NewReader(req.Params[0]))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(out); err != nil {
		return fmt.Errorf("invalid parameter object: %w", err)
	}
	return nil
}

func (s *Server) invalidParams(w http.ResponseWriter, req *RPCRequest, err error) {
	writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
}

func (s *Server) addressParam(w http.ResponseWriter, req *RPCRequest) ([20]byte, bool) {
	var params addressParams
	if err := decodeParam(req, &params); err != nil {
		s.invalidParams(w, req, err)
		return [20]byte{}, false
	}
	addr, err := crypto.ParseIdentity(params.Address)
	if err != nil {
		s.invalidParams(w, req, err)
		return [20]byte{}, false
	}
	return addr, true
}

func (s *Server) handleSendTransaction(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var tx types.Transaction
	if err := decodeParam(req, &tx); err != nil {
		s.invalidParams(w, req, err)
		return
	}
	receipt, err := s.node.SubmitTransaction(r.Context(), &tx)
	if err != nil {
		s.writeNodeError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, receipt)
}

func (s *Server) handleGetStatus(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	writeResult(w, req.ID, StatusResult{
		ChainID:   s.node.ChainID(),
		Height:    s.node.Height(),
		StateRoot: s.node.StateRoot(),
	})
}

func (s *Server) handleGetConfig(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	cfg, err := s.node.Config()
	if err != nil {
		s.writeNodeError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, configResult(cfg))
}

func (s *Server) handleGetProgram(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	owner, ok := s.addressParam(w, req)
	if !ok {
		return
	}
	program, err := s.node.Program(owner)
	if err != nil {
		s.writeNodeError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, programResult(program))
}

func (s *Server) handleGetClaim(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params claimParams
	if err := decodeParam(req, &params); err != nil {
		s.invalidParams(w, req, err)
		return
	}
	claim, err := s.node.Claim(params.ClaimID)
	if err != nil {
		s.writeNodeError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, claimResult(claim))
}

func (s *Server) handleGetSettlement(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params claimParams
	if err := decodeParam(req, &params); err != nil {
		s.invalidParams(w, req, err)
		return
	}
	rec, err := s.node.Settlement(params.ClaimID)
	if err != nil {
		s.writeNodeError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, settlementResult(rec))
}

func (s *Server) handleListClaims(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params listClaimsParams
	if err := decodeParam(req, &params); err != nil {
		s.invalidParams(w, req, err)
		return
	}
	program := strings.TrimSpace(params.Program)
	reporter := strings.TrimSpace(params.Reporter)
	if (program == "") == (reporter == "") {
		s.invalidParams(w, req, fmt.Errorf("exactly one of program or reporter is required"))
		return
	}
	var (
		status   bounty.ClaimStatus
		byStatus = strings.TrimSpace(params.Status) != ""
	)
	if byStatus {
		parsed, err := bounty.ParseClaimStatus(params.Status)
		if err != nil {
			s.invalidParams(w, req, err)
			return
		}
		status = parsed
	}
	var (
		ids []uint64
		err error
	)
	if program != "" {
		addr, parseErr := crypto.ParseIdentity(program)
		if parseErr != nil {
			s.invalidParams(w, req, parseErr)
			return
		}
		ids, err = s.node.ClaimsByProgram(addr)
	} else {
		addr, parseErr := crypto.ParseIdentity(reporter)
		if parseErr != nil {
			s.invalidParams(w, req, parseErr)
			return
		}
		ids, err = s.node.ClaimsByReporter(addr)
	}
	if err != nil {
		s.writeNodeError(w, req.ID, err)
		return
	}
	out := make([]ClaimResult, 0, len(ids))
	for _, id := range ids {
		claim, err := s.node.Claim(id)
		if err != nil {
			s.writeNodeError(w, req.ID, err)
			return
		}
		if byStatus && claim.Status != status {
			continue
		}
		out = append(out, claimResult(claim))
	}
	writeResult(w, req.ID, out)
}

func (s *Server) handleGetBalance(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	addr, ok := s.addressParam(w, req)
	if !ok {
		return
	}
	acc, err := s.node.Account(addr)
	if err != nil {
		s.writeNodeError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, BalanceResult{Address: formatAddress(addr), Balance: acc.Balance, Nonce: acc.Nonce})
}

func (s *Server) handleGetNonce(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	addr, ok := s.addressParam(w, req)
	if !ok {
		return
	}
	acc, err := s.node.Account(addr)
	if err != nil {
		s.writeNodeError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, acc.Nonce)
}

func (s *Server) handlePreviewCut(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params previewCutParams
	if err := decodeParam(req, &params); err != nil {
		s.invalidParams(w, req, err)
		return
	}
	cfg, err := s.node.Config()
	if err != nil {
		s.writeNodeError(w, req.ID, err)
		return
	}
	payout, revenue, err := s.node.PreviewCut(params.Amount)
	if err != nil {
		s.writeNodeError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, PreviewCutResult{Amount: params.Amount, Payout: payout, Revenue: revenue, CutBps: cfg.CutBps})
}

func (s *Server) handleGetReceipt(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params receiptParams
	if err := decodeParam(req, &params); err != nil {
		s.invalidParams(w, req, err)
		return
	}
	if strings.TrimSpace(params.TxHash) == "" {
		s.invalidParams(w, req, fmt.Errorf("txHash required"))
		return
	}
	receipt, err := s.node.Receipt(params.TxHash)
	if err != nil {
		s.writeNodeError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, receipt)
}

func (s *Server) handleListEvents(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	params := listEventsParams{}
	if len(req.Params) > 0 {
		if err := decodeParam(req, &params); err != nil {
			s.invalidParams(w, req, err)
			return
		}
	}
	if params.Limit <= 0 || params.Limit > maxListEvents {
		params.Limit = maxListEvents
	}
	records := s.node.Events(params.After, params.Limit)
	if records == nil {
		records = []events.Record{}
	}
	writeResult(w, req.ID, records)
}
