// Package indexer mirrors committed bounty events into a SQL database so
// settlements and refunds can be queried and exported without replaying the
// ledger.
package indexer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"contractorium/core/events"
	"contractorium/integrations/webhooks"
	"contractorium/native/bounty"
)

const (
	subscriptionBuffer = 256
	defaultQueryLimit  = 100
	maxQueryLimit      = 1000
	retryInterval      = 2 * time.Second
)

// ErrMalformedRecord reports an event whose attributes cannot be decoded into
// a settlement or refund row. Such records are never retried.
var ErrMalformedRecord = errors.New("indexer: malformed record")

// Source is the committed event stream. *events.Feed satisfies it.
type Source interface {
	Since(after uint64, limit int) []events.Record
	Subscribe(buffer int) (<-chan events.Record, func())
}

// Notifier receives settlement outcomes after they are indexed.
type Notifier interface {
	EnqueueSettled(webhooks.SettledPayload) error
	EnqueueRefunded(webhooks.RefundedPayload) error
}

// Indexer writes feed records into the database.
type Indexer struct {
	db       *gorm.DB
	logger   *slog.Logger
	notifier Notifier
	now      func() time.Time

	retryInterval time.Duration
}

// Option configures an Indexer.
type Option func(*Indexer)

// WithNotifier forwards newly indexed settlements and refunds.
func WithNotifier(n Notifier) Option {
	return func(i *Indexer) { i.notifier = n }
}

// WithLogger overrides the default logger.
func WithLogger(logger *slog.Logger) Option {
	return func(i *Indexer) {
		if logger != nil {
			i.logger = logger
		}
	}
}

// New returns an indexer writing to db.
func New(db *gorm.DB, opts ...Option) (*Indexer, error) {
	if db == nil {
		return nil, errors.New("indexer: database required")
	}
	idx := &Indexer{
		db:            db,
		logger:        slog.Default(),
		now:           func() time.Time { return time.Now().UTC() },
		retryInterval: retryInterval,
	}
	for _, opt := range opts {
		opt(idx)
	}
	return idx, nil
}

// Run indexes the retained backlog of src and then follows it until ctx is
// cancelled. Records already present are skipped. Subscription deliveries only
// wake the follower: every pass re-reads src above the last indexed seq, so
// records a full subscription buffer dropped are still picked up. A failed
// write is retried from the same seq after retryInterval.
func (i *Indexer) Run(ctx context.Context, src Source) error {
	updates, cancel := src.Subscribe(subscriptionBuffer)
	defer cancel()

	var (
		last  uint64
		retry <-chan time.Time
	)
	advance := func() {
		next, err := i.catchUp(ctx, src, last)
		last = next
		retry = nil
		if err != nil && ctx.Err() == nil {
			i.logger.Error("index record failed", "seq", last+1, "error", err)
			retry = time.After(i.retryInterval)
		}
	}
	advance()
	i.logger.Info("indexer caught up", "seq", last)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-retry:
			advance()
		case rec, ok := <-updates:
			if !ok {
				return nil
			}
			if rec.Seq <= last || retry != nil {
				continue
			}
			advance()
		}
	}
}

// catchUp indexes every retained record above last in order and returns the
// highest seq written. It stops at the first write failure so the record is
// retried instead of skipped. Malformed records are logged and passed over.
func (i *Indexer) catchUp(ctx context.Context, src Source, last uint64) (uint64, error) {
	for _, rec := range src.Since(last, 0) {
		if rec.Seq > last+1 && last > 0 {
			i.logger.Warn("indexer gap beyond feed retention", "from", last+1, "to", rec.Seq-1)
		}
		if err := i.Index(ctx, rec); err != nil {
			if !errors.Is(err, ErrMalformedRecord) {
				return last, err
			}
			i.logger.Error("skipping malformed record", "seq", rec.Seq, "type", eventType(rec), "error", err)
		}
		last = rec.Seq
	}
	return last, nil
}

// Index stores rec and any settlement or refund it describes. Indexing the
// same record twice is a no-op.
func (i *Indexer) Index(ctx context.Context, rec events.Record) error {
	if rec.Event == nil {
		return nil
	}
	attrs, err := json.Marshal(rec.Event.Attributes)
	if err != nil {
		return fmt.Errorf("indexer: encode attributes: %w", err)
	}
	var (
		settled  *Settlement
		refunded *Refund
	)
	err = i.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row := EventRow{
			ID:         uuid.New(),
			Height:     rec.Height,
			Seq:        rec.Seq,
			TxHash:     rec.TxHash,
			Type:       rec.Event.Type,
			Attributes: string(attrs),
			CreatedAt:  i.now(),
		}
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&row)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		switch rec.Event.Type {
		case bounty.EventTypeReportSettled:
			s, err := settlementFromRecord(rec, i.now())
			if err != nil {
				return err
			}
			res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(s)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected > 0 {
				settled = s
			}
		case bounty.EventTypeReportRefunded:
			r, err := refundFromRecord(rec, i.now())
			if err != nil {
				return err
			}
			res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(r)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected > 0 {
				refunded = r
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	i.notify(settled, refunded)
	return nil
}

func (i *Indexer) notify(settled *Settlement, refunded *Refund) {
	if i.notifier == nil {
		return
	}
	if settled != nil {
		err := i.notifier.EnqueueSettled(webhooks.SettledPayload{
			ClaimID:   settled.ClaimID,
			Reporter:  settled.Reporter,
			Program:   settled.Program,
			Gross:     settled.Gross,
			Payout:    settled.Payout,
			Revenue:   settled.Revenue,
			CutBps:    settled.CutBps,
			Height:    settled.Height,
			TxHash:    settled.TxHash,
			SettledAt: settled.SettledAt,
		})
		if err != nil {
			i.logger.Warn("settlement webhook not queued", "claim_id", settled.ClaimID, "error", err)
		}
	}
	if refunded != nil {
		err := i.notifier.EnqueueRefunded(webhooks.RefundedPayload{
			ClaimID:    refunded.ClaimID,
			Payer:      refunded.Payer,
			Amount:     refunded.Amount,
			Reason:     refunded.Reason,
			Height:     refunded.Height,
			TxHash:     refunded.TxHash,
			RefundedAt: refunded.CreatedAt,
		})
		if err != nil {
			i.logger.Warn("refund webhook not queued", "claim_id", refunded.ClaimID, "error", err)
		}
	}
}

func settlementFromRecord(rec events.Record, at time.Time) (*Settlement, error) {
	attrs := rec.Event.Attributes
	nums, err := parseUints(attrs, "claimId", "gross", "payout", "revenue", "cutBps")
	if err != nil {
		return nil, err
	}
	return &Settlement{
		ClaimID:   nums[0],
		Reporter:  attrs["reporter"],
		Program:   attrs["program"],
		Gross:     nums[1],
		Payout:    nums[2],
		Revenue:   nums[3],
		CutBps:    uint32(nums[4]),
		Note:      attrs["note"],
		Height:    rec.Height,
		TxHash:    rec.TxHash,
		SettledAt: at,
	}, nil
}

func refundFromRecord(rec events.Record, at time.Time) (*Refund, error) {
	attrs := rec.Event.Attributes
	nums, err := parseUints(attrs, "claimId", "amount")
	if err != nil {
		return nil, err
	}
	return &Refund{
		ID:        uuid.New(),
		ClaimID:   nums[0],
		Payer:     attrs["payer"],
		Amount:    nums[1],
		Reason:    attrs["reason"],
		Height:    rec.Height,
		TxHash:    rec.TxHash,
		CreatedAt: at,
	}, nil
}

func parseUints(attrs map[string]string, keys ...string) ([]uint64, error) {
	out := make([]uint64, len(keys))
	for idx, key := range keys {
		v, err := strconv.ParseUint(strings.TrimSpace(attrs[key]), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: attribute %s: %w", ErrMalformedRecord, key, err)
		}
		out[idx] = v
	}
	return out, nil
}

func eventType(rec events.Record) string {
	if rec.Event == nil {
		return ""
	}
	return rec.Event.Type
}

// Filter narrows settlement queries. Empty fields match everything.
type Filter struct {
	Program  string
	Reporter string
	Limit    int
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultQueryLimit
	}
	if limit > maxQueryLimit {
		return maxQueryLimit
	}
	return limit
}

// Settlements lists indexed settlements ordered by claim id.
func (i *Indexer) Settlements(ctx context.Context, f Filter) ([]Settlement, error) {
	q := i.db.WithContext(ctx).Model(&Settlement{})
	if f.Program != "" {
		q = q.Where("program = ?", f.Program)
	}
	if f.Reporter != "" {
		q = q.Where("reporter = ?", f.Reporter)
	}
	var out []Settlement
	if err := q.Order("claim_id ASC").Limit(clampLimit(f.Limit)).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// Refunds lists refunds recorded against claimID.
func (i *Indexer) Refunds(ctx context.Context, claimID uint64) ([]Refund, error) {
	var out []Refund
	err := i.db.WithContext(ctx).Where("claim_id = ?", claimID).Order("height ASC").Find(&out).Error
	return out, err
}

// Events lists indexed events whose type starts with prefix, oldest first.
func (i *Indexer) Events(ctx context.Context, prefix string, limit int) ([]EventRow, error) {
	q := i.db.WithContext(ctx).Model(&EventRow{})
	if prefix != "" {
		q = q.Where("type LIKE ?", prefix+"%")
	}
	var out []EventRow
	if err := q.Order("height ASC").Order("seq ASC").Limit(clampLimit(limit)).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// Totals aggregates indexed settlement amounts.
type Totals struct {
	Count   int64
	Gross   uint64
	Payout  uint64
	Revenue uint64
}

// Summary aggregates all indexed settlements.
func (i *Indexer) Summary(ctx context.Context) (Totals, error) {
	var totals Totals
	err := i.db.WithContext(ctx).Model(&Settlement{}).
		Select("COUNT(*) AS count, COALESCE(SUM(gross),0) AS gross, COALESCE(SUM(payout),0) AS payout, COALESCE(SUM(revenue),0) AS revenue").
		Scan(&totals).Error
	return totals, err
}
