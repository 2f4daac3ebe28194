package events

import (
	"testing"

	"contractorium/core/types"
)

func TestFeedHistoryAndSince(t *testing.T) {
	feed := NewFeed(3)
	for i := 0; i < 5; i++ {
		feed.Publish(uint64(i+1), "0xabc", []*types.Event{{Type: "bounty.test", Attributes: map[string]string{}}})
	}
	all := feed.Since(0, 0)
	if len(all) != 3 {
		t.Fatalf("expected 3 retained records, got %d", len(all))
	}
	if all[0].Seq != 3 || all[2].Seq != 5 {
		t.Fatalf("unexpected retained sequence %d..%d", all[0].Seq, all[2].Seq)
	}
	if got := feed.Since(4, 0); len(got) != 1 || got[0].Height != 5 {
		t.Fatalf("unexpected since result %+v", got)
	}
	if got := feed.Since(0, 2); len(got) != 2 {
		t.Fatalf("limit not applied: %d", len(got))
	}
}

func TestFeedSubscribe(t *testing.T) {
	feed := NewFeed(10)
	ch, cancel := feed.Subscribe(4)
	feed.Publish(1, "0x01", []*types.Event{{Type: "bounty.report.created"}})

	select {
	case rec := <-ch:
		if rec.Event.Type != "bounty.report.created" {
			t.Fatalf("unexpected event %q", rec.Event.Type)
		}
	default:
		t.Fatalf("expected a buffered record")
	}

	cancel()
	cancel()
	if _, ok := <-ch; ok {
		t.Fatalf("channel should be closed after cancel")
	}
	feed.Publish(2, "0x02", []*types.Event{{Type: "bounty.report.settled"}})
}

func TestTransferPayload(t *testing.T) {
	payload := ToPayload(Transfer{Amount: 5})
	if payload.Type != TypeTransfer || payload.Attributes["amount"] != "5" {
		t.Fatalf("unexpected payload %+v", payload)
	}
}
