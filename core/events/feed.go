package events

import (
	"sync"

	"contractorium/core/types"
)

// Record is an event as published on the feed, tagged with the height of the
// transaction that produced it.
type Record struct {
	Seq    uint64       `json:"seq"`
	Height uint64       `json:"height"`
	TxHash string       `json:"txHash"`
	Event  *types.Event `json:"event"`
}

// Feed is an in-memory, bounded event log with live subscriptions. Slow
// subscribers drop events rather than block publishers.
type Feed struct {
	mu      sync.RWMutex
	history []Record
	limit   int
	nextSeq uint64
	subs    map[uint64]chan Record
	nextSub uint64
}

const defaultFeedHistory = 1024

// NewFeed returns a feed retaining at most limit historical records.
func NewFeed(limit int) *Feed {
	if limit <= 0 {
		limit = defaultFeedHistory
	}
	return &Feed{limit: limit, nextSeq: 1, subs: make(map[uint64]chan Record)}
}

// Publish appends the events and fans them out to subscribers.
func (f *Feed) Publish(height uint64, txHash string, evts []*types.Event) {
	if f == nil || len(evts) == 0 {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, evt := range evts {
		if evt == nil {
			continue
		}
		rec := Record{Seq: f.nextSeq, Height: height, TxHash: txHash, Event: evt.Clone()}
		f.nextSeq++
		f.history = append(f.history, rec)
		if len(f.history) > f.limit {
			f.history = f.history[len(f.history)-f.limit:]
		}
		for _, ch := range f.subs {
			select {
			case ch <- rec:
			default:
			}
		}
	}
}

// Since returns up to limit retained records with Seq greater than after.
func (f *Feed) Since(after uint64, limit int) []Record {
	if f == nil {
		return nil
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]Record, 0)
	for _, rec := range f.history {
		if rec.Seq <= after {
			continue
		}
		out = append(out, rec)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out
}

// Subscribe registers a buffered channel receiving future records. The
// returned function unsubscribes and closes the channel.
func (f *Feed) Subscribe(buffer int) (<-chan Record, func()) {
	if buffer <= 0 {
		buffer = 64
	}
	ch := make(chan Record, buffer)
	f.mu.Lock()
	id := f.nextSub
	f.nextSub++
	f.subs[id] = ch
	f.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			f.mu.Lock()
			delete(f.subs, id)
			f.mu.Unlock()
			close(ch)
		})
	}
}
