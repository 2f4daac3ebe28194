package core

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"contractorium/core/events"
	"contractorium/core/state"
	"contractorium/core/types"
	"contractorium/native/bounty"
	"contractorium/observability"
	"contractorium/observability/logging"
	"contractorium/observability/metrics"
	telemetry "contractorium/observability/otel"
	"contractorium/storage"
	"contractorium/storage/trie"
)

var (
	headKey       = []byte("contractorium/head")
	receiptPrefix = []byte("contractorium/receipt/")
)

// Genesis seeds an empty ledger: the platform configuration and the opening
// native balances.
type Genesis struct {
	Config   bounty.Config
	Balances map[[20]byte]uint64
}

// Options configures a Node.
type Options struct {
	ChainID     uint64
	Genesis     Genesis
	Logger      *slog.Logger
	FeedHistory int
}

type head struct {
	ChainID uint64 `json:"chainId"`
	Height  uint64 `json:"height"`
	Root    string `json:"root"`
}

// Node is the central controller, wiring the ledger, the bounty engine and
// the event feed together. Every transaction is applied under stateMu so each
// operation is one serialised, atomic step.
type Node struct {
	db      storage.Database
	stateMu sync.Mutex
	trie    *trie.Trie
	ledger  *state.Manager
	engine  *bounty.Engine
	chainID uint64
	height  uint64
	feed    *events.Feed
	pending []*types.Event
	logger  *slog.Logger
	metrics *metrics.BountyMetrics
}

// NewNode opens the ledger stored in db, bootstrapping it from opts.Genesis
// when the database is empty.
func NewNode(db storage.Database, opts Options) (*Node, error) {
	if db == nil {
		return nil, fmt.Errorf("database must not be nil")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	stored, found, err := loadHead(db)
	if err != nil {
		return nil, err
	}
	var root []byte
	if found {
		if stored.ChainID != opts.ChainID {
			return nil, fmt.Errorf("%w: database holds chain %d, node configured for %d", ErrChainIDMismatch, stored.ChainID, opts.ChainID)
		}
		root, err = hex.DecodeString(stored.Root)
		if err != nil {
			return nil, fmt.Errorf("decode head root: %w", err)
		}
	}
	stateTrie, err := trie.NewTrie(db, root)
	if err != nil {
		return nil, fmt.Errorf("open state trie: %w", err)
	}

	n := &Node{
		db:      db,
		trie:    stateTrie,
		ledger:  state.NewManager(stateTrie),
		chainID: opts.ChainID,
		feed:    events.NewFeed(opts.FeedHistory),
		logger:  logger.With("component", "node"),
		metrics: metrics.Bounty(),
	}
	n.engine = bounty.NewEngine()
	n.engine.SetState(n.ledger)
	n.engine.SetEmitter(nodeEmitter{node: n})

	if found {
		n.height = stored.Height
		n.logger.Info("ledger opened", "height", n.height, "root", stored.Root)
		return n, nil
	}
	if err := n.applyGenesis(opts.Genesis); err != nil {
		return nil, err
	}
	return n, nil
}

func (n *Node) applyGenesis(genesis Genesis) error {
	if _, err := n.engine.Initialize(genesis.Config); err != nil {
		_ = n.ledger.Discard()
		return fmt.Errorf("genesis config: %w", err)
	}
	for addr, amount := range genesis.Balances {
		if err := n.ledger.SetBalance(addr, amount); err != nil {
			_ = n.ledger.Discard()
			return fmt.Errorf("genesis balance: %w", err)
		}
	}
	root, err := n.ledger.Commit(0)
	if err != nil {
		return fmt.Errorf("commit genesis: %w", err)
	}
	if err := n.writeHead(0, root.Bytes()); err != nil {
		return err
	}
	genesisEvents := n.takePending()
	n.feed.Publish(0, "", genesisEvents)
	n.logger.Info("genesis applied",
		"root", root.Hex(),
		"accounts", len(genesis.Balances),
		"cutBps", genesis.Config.CutBps)
	return nil
}

func loadHead(db storage.Database) (*head, bool, error) {
	raw, err := db.Get(headKey)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("load head: %w", err)
	}
	var h head
	if err := json.Unmarshal(raw, &h); err != nil {
		return nil, false, fmt.Errorf("decode head: %w", err)
	}
	return &h, true, nil
}

func (n *Node) writeHead(height uint64, root []byte) error {
	encoded, err := json.Marshal(head{ChainID: n.chainID, Height: height, Root: hex.EncodeToString(root)})
	if err != nil {
		return err
	}
	if err := n.db.Put(headKey, encoded); err != nil {
		return fmt.Errorf("persist head: %w", err)
	}
	return nil
}

func receiptKey(txHash string) []byte {
	key := make([]byte, 0, len(receiptPrefix)+len(txHash))
	key = append(key, receiptPrefix...)
	return append(key, txHash...)
}

// persistBlock writes the new head and the receipt that produced it in one
// batch so neither is visible without the other.
func (n *Node) persistBlock(root []byte, r *types.Receipt) error {
	encodedHead, err := json.Marshal(head{ChainID: n.chainID, Height: r.Height, Root: hex.EncodeToString(root)})
	if err != nil {
		return err
	}
	encodedReceipt, err := json.Marshal(r)
	if err != nil {
		return err
	}
	batch := n.db.NewBatch()
	if err := batch.Put(headKey, encodedHead); err != nil {
		return err
	}
	if err := batch.Put(receiptKey(r.TxHash), encodedReceipt); err != nil {
		return err
	}
	if err := batch.Write(); err != nil {
		return fmt.Errorf("persist block %d: %w", r.Height, err)
	}
	return nil
}

// nodeEmitter collects events raised while a transaction is applied so they
// are published only after the state commit succeeds.
type nodeEmitter struct {
	node *Node
}

func (e nodeEmitter) Emit(evt events.Event) {
	if e.node == nil || evt == nil {
		return
	}
	if payload := events.ToPayload(evt); payload != nil {
		e.node.pending = append(e.node.pending, payload)
	}
}

func (n *Node) takePending() []*types.Event {
	out := n.pending
	n.pending = nil
	return out
}

// SubmitTransaction verifies, applies and persists tx. Rejected transactions
// leave no trace in state: no receipt, no nonce bump and no events.
func (n *Node) SubmitTransaction(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
	if tx == nil {
		return nil, ErrNilTransaction
	}
	ctx, span := telemetry.Tracer().Start(ctx, "core.SubmitTransaction",
		trace.WithAttributes(attribute.String("tx.type", tx.Type.String())))
	defer span.End()
	start := time.Now()

	n.stateMu.Lock()
	defer n.stateMu.Unlock()

	receipt, res, err := n.applyTransaction(tx)
	if err != nil {
		_ = n.ledger.Discard()
		n.pending = nil
		n.metrics.RecordTransaction(tx.Type.String(), "rejected")
		observability.ModuleMetrics().Observe("core", tx.Type.String(), 1, time.Since(start))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		n.logger.WarnContext(ctx, "transaction rejected",
			"txType", tx.Type.String(),
			"nonce", tx.Nonce,
			"error", err)
		return nil, err
	}

	n.feed.Publish(receipt.Height, receipt.TxHash, receipt.Events)
	n.recordMetrics(receipt, res)
	observability.ModuleMetrics().Observe("core", tx.Type.String(), 0, time.Since(start))
	span.SetAttributes(
		attribute.String("tx.hash", receipt.TxHash),
		attribute.String("tx.status", receipt.Status),
		attribute.Int64("height", int64(receipt.Height)))
	attrs := []any{
		"txType", receipt.Type,
		"txHash", receipt.TxHash,
		"height", receipt.Height,
		"status", receipt.Status,
	}
	if receipt.ClaimID != 0 {
		attrs = append(attrs, "claimId", receipt.ClaimID)
	}
	if receipt.RefundReason != "" {
		attrs = append(attrs, logging.MaskField("reason", receipt.RefundReason))
	}
	if res.Settlement != nil {
		attrs = append(attrs, logging.MaskField("note", res.Settlement.Note))
	}
	n.logger.InfoContext(ctx, "transaction applied", attrs...)
	return receipt, nil
}

func (n *Node) applyTransaction(tx *types.Transaction) (*types.Receipt, *txResult, error) {
	if tx.ChainID != n.chainID {
		return nil, nil, fmt.Errorf("%w: got %d, want %d", ErrChainIDMismatch, tx.ChainID, n.chainID)
	}
	from, err := tx.From()
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	var sender [20]byte
	copy(sender[:], from)

	account, err := n.ledger.GetAccount(sender)
	if err != nil {
		return nil, nil, err
	}
	if tx.Nonce != account.Nonce {
		return nil, nil, fmt.Errorf("%w: got %d, want %d", ErrNonceMismatch, tx.Nonce, account.Nonce)
	}
	id, err := tx.ID()
	if err != nil {
		return nil, nil, err
	}

	n.pending = nil
	res, err := n.dispatch(sender, tx)
	if err != nil {
		return nil, nil, err
	}
	if err := n.ledger.IncrementNonce(sender); err != nil {
		return nil, nil, err
	}
	height := n.height + 1
	parent := n.trie.Root()
	root, err := n.ledger.Commit(height)
	if err != nil {
		return nil, nil, fmt.Errorf("commit state: %w", err)
	}

	receipt := &types.Receipt{
		TxHash:    "0x" + hex.EncodeToString(id),
		Height:    height,
		Type:      tx.Type.String(),
		Sender:    addressString(sender),
		Nonce:     tx.Nonce,
		Status:    types.ReceiptStatusApplied,
		ClaimID:   res.ClaimID,
		Amount:    res.Amount,
		StateRoot: root.Hex(),
		Events:    n.takePending(),
	}
	if res.Refunded {
		receipt.Status = types.ReceiptStatusRefunded
		if res.RefundReason != nil {
			receipt.RefundReason = res.RefundReason.Error()
		}
	}
	if receipt.Events == nil {
		receipt.Events = []*types.Event{}
	}
	if err := n.persistBlock(root.Bytes(), receipt); err != nil {
		// The committed trie nodes stay unreferenced; rewind to the last head.
		if resetErr := n.trie.Reset(parent); resetErr != nil {
			return nil, nil, errors.Join(err, fmt.Errorf("rewind state: %w", resetErr))
		}
		return nil, nil, err
	}
	n.height = height
	return receipt, res, nil
}

func (n *Node) recordMetrics(receipt *types.Receipt, res *txResult) {
	n.metrics.RecordTransaction(receipt.Type, receipt.Status)
	for _, evt := range receipt.Events {
		observability.Events().RecordEvent(evt.Type)
	}
	switch {
	case res.Refunded:
		n.metrics.RecordRefund(refundLabel(res.RefundReason))
	case res.Settlement != nil:
		n.metrics.RecordSettlement(res.Settlement.Payout, res.Settlement.Revenue)
	case receipt.Type == types.TxTypePayday.String():
		n.metrics.RecordPayday(res.Amount)
	}
	if cfg, err := n.engine.Config(); err == nil {
		if balance, err := n.ledger.Balance(cfg.Contract); err == nil {
			n.metrics.SetContractBalance(balance)
		}
	}
}

func refundLabel(reason error) string {
	switch {
	case errors.Is(reason, bounty.ErrClaimNotOpen):
		return "claim_not_open"
	case errors.Is(reason, bounty.ErrNotClaimProgram):
		return "not_claim_program"
	case errors.Is(reason, bounty.ErrProgramNotFound):
		return "program_not_found"
	default:
		return ""
	}
}
