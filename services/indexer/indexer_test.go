package indexer

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"contractorium/core/events"
	"contractorium/core/types"
	"contractorium/integrations/webhooks"
	"contractorium/native/bounty"
)

type recordingNotifier struct {
	mu       sync.Mutex
	settled  []webhooks.SettledPayload
	refunded []webhooks.RefundedPayload
}

func (r *recordingNotifier) EnqueueSettled(p webhooks.SettledPayload) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.settled = append(r.settled, p)
	return nil
}

func (r *recordingNotifier) EnqueueRefunded(p webhooks.RefundedPayload) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.refunded = append(r.refunded, p)
	return nil
}

func (r *recordingNotifier) counts() (int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.settled), len(r.refunded)
}

func newTestIndexer(t *testing.T, opts ...Option) *Indexer {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "indexer.db"))
	require.NoError(t, err)
	idx, err := New(db, opts...)
	require.NoError(t, err)
	return idx
}

func addr(b byte) [20]byte {
	var a [20]byte
	a[19] = b
	return a
}

func settledEvent(claimID uint64) *types.Event {
	return bounty.NewReportSettledEvent(&bounty.SettlementRecord{
		ClaimID:  claimID,
		Reporter: addr(1),
		Program:  addr(2),
		Gross:    1000,
		Payout:   980,
		Revenue:  20,
		CutBps:   9800,
		Note:     "paid",
	})
}

func TestIndexSettlementAndRefund(t *testing.T) {
	notifier := &recordingNotifier{}
	idx := newTestIndexer(t, WithNotifier(notifier))
	ctx := context.Background()

	settled := events.Record{Seq: 1, Height: 3, TxHash: "0xaa", Event: settledEvent(1)}
	refunded := events.Record{Seq: 2, Height: 4, TxHash: "0xbb",
		Event: bounty.NewReportRefundedEvent(1, addr(2), 1000, bounty.ErrClaimNotOpen)}

	require.NoError(t, idx.Index(ctx, settled))
	require.NoError(t, idx.Index(ctx, refunded))
	// Re-indexing is idempotent and does not notify again.
	require.NoError(t, idx.Index(ctx, settled))

	rows, err := idx.Settlements(ctx, Filter{})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, uint64(980), rows[0].Payout)
	require.Equal(t, uint32(9800), rows[0].CutBps)
	require.Equal(t, "0xaa", rows[0].TxHash)

	refunds, err := idx.Refunds(ctx, 1)
	require.NoError(t, err)
	require.Len(t, refunds, 1)
	require.Equal(t, bounty.ErrClaimNotOpen.Error(), refunds[0].Reason)

	settledCount, refundedCount := notifier.counts()
	require.Equal(t, 1, settledCount)
	require.Equal(t, 1, refundedCount)

	all, err := idx.Events(ctx, "bounty.report", 0)
	require.NoError(t, err)
	require.Len(t, all, 2)

	totals, err := idx.Summary(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), totals.Count)
	require.Equal(t, uint64(20), totals.Revenue)
}

func TestSettlementFilters(t *testing.T) {
	idx := newTestIndexer(t)
	ctx := context.Background()
	for i := uint64(1); i <= 3; i++ {
		require.NoError(t, idx.Index(ctx, events.Record{Seq: i, Height: i, TxHash: "0x", Event: settledEvent(i)}))
	}
	program := settledEvent(1).Attributes["program"]
	rows, err := idx.Settlements(ctx, Filter{Program: program, Limit: 2})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, uint64(1), rows[0].ClaimID)

	rows, err = idx.Settlements(ctx, Filter{Reporter: "ctm1nobody"})
	require.NoError(t, err)
	require.Empty(t, rows)
}

func TestIndexRejectsMalformedSettlement(t *testing.T) {
	idx := newTestIndexer(t)
	evt := &types.Event{Type: bounty.EventTypeReportSettled, Attributes: map[string]string{"claimId": "x"}}
	err := idx.Index(context.Background(), events.Record{Seq: 1, Height: 1, Event: evt})
	require.ErrorIs(t, err, ErrMalformedRecord)

	rows, err := idx.Events(context.Background(), "", 0)
	require.NoError(t, err)
	require.Empty(t, rows)
}

func TestRunFollowsFeed(t *testing.T) {
	idx := newTestIndexer(t)
	feed := events.NewFeed(16)
	feed.Publish(1, "0x01", []*types.Event{settledEvent(1)})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- idx.Run(ctx, feed) }()

	require.Eventually(t, func() bool {
		rows, err := idx.Settlements(context.Background(), Filter{})
		return err == nil && len(rows) == 1
	}, 2*time.Second, 10*time.Millisecond)

	feed.Publish(2, "0x02", []*types.Event{settledEvent(2)})
	require.Eventually(t, func() bool {
		rows, err := idx.Settlements(context.Background(), Filter{})
		return err == nil && len(rows) == 2
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}

// burstSource publishes a burst of settlements the first time the backlog is
// read, overflowing the subscription buffer before the follower drains it.
type burstSource struct {
	*events.Feed
	burst int
	once  sync.Once
}

func (b *burstSource) Since(after uint64, limit int) []events.Record {
	snapshot := b.Feed.Since(after, limit)
	b.once.Do(func() {
		for id := 1; id <= b.burst; id++ {
			b.Feed.Publish(uint64(id), "0x", []*types.Event{settledEvent(uint64(id))})
		}
	})
	return snapshot
}

func runIndexer(t *testing.T, idx *Indexer, src Source) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- idx.Run(ctx, src) }()
	t.Cleanup(func() {
		cancel()
		require.NoError(t, <-done)
	})
}

func settlementCount(idx *Indexer) int64 {
	totals, err := idx.Summary(context.Background())
	if err != nil {
		return -1
	}
	return totals.Count
}

func TestRunIndexesRecordsDroppedBySubscription(t *testing.T) {
	notifier := &recordingNotifier{}
	idx := newTestIndexer(t, WithNotifier(notifier))
	burst := subscriptionBuffer + 44
	runIndexer(t, idx, &burstSource{Feed: events.NewFeed(0), burst: burst})

	require.Eventually(t, func() bool {
		return settlementCount(idx) == int64(burst)
	}, 10*time.Second, 20*time.Millisecond)
	settled, _ := notifier.counts()
	require.Equal(t, burst, settled)
}

func TestRunRetriesFailedWrite(t *testing.T) {
	idx := newTestIndexer(t)
	idx.retryInterval = 20 * time.Millisecond
	require.NoError(t, idx.db.Migrator().DropTable(&Settlement{}))

	feed := events.NewFeed(16)
	feed.Publish(1, "0x01", []*types.Event{settledEvent(1)})
	runIndexer(t, idx, feed)

	time.Sleep(100 * time.Millisecond)
	rows, err := idx.Events(context.Background(), "", 0)
	require.NoError(t, err)
	require.Empty(t, rows)

	require.NoError(t, AutoMigrate(idx.db))
	require.Eventually(t, func() bool {
		return settlementCount(idx) == 1
	}, 5*time.Second, 20*time.Millisecond)
}

func TestRunSkipsMalformedRecord(t *testing.T) {
	idx := newTestIndexer(t)
	feed := events.NewFeed(16)
	bad := &types.Event{Type: bounty.EventTypeReportSettled, Attributes: map[string]string{"claimId": "x"}}
	feed.Publish(1, "0x01", []*types.Event{bad, settledEvent(2)})
	runIndexer(t, idx, feed)

	require.Eventually(t, func() bool {
		return settlementCount(idx) == 1
	}, 5*time.Second, 20*time.Millisecond)
	rows, err := idx.Events(context.Background(), "", 0)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, uint64(2), rows[0].Seq)
}

func TestOpenRequiresDSN(t *testing.T) {
	_, err := Open("  ")
	require.Error(t, err)
	require.True(t, isPostgres("postgres://user@localhost/db"))
	require.True(t, isPostgres("PostgreSQL://host/db"))
	require.False(t, isPostgres("indexer.db"))
}

func TestSQLiteDSNAddsBusyTimeout(t *testing.T) {
	require.Equal(t, "a.db?_pragma=busy_timeout(5000)", sqliteDSN("a.db"))
	require.Equal(t, "file:a.db?mode=rwc&_pragma=busy_timeout(5000)", sqliteDSN("file:a.db?mode=rwc"))
	require.Equal(t, "a.db?_pragma=busy_timeout(100)", sqliteDSN("a.db?_pragma=busy_timeout(100)"))
}
