package observability

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestModuleMetricsObserve(t *testing.T) {
	m := ModuleMetrics()
	m.Observe("bounty", "bounty_getClaim", 0, time.Millisecond)
	m.Observe("bounty", "bounty_getClaim", -32602, time.Millisecond)
	if got := testutil.ToFloat64(m.requests.WithLabelValues("bounty", "bounty_getClaim", "success")); got < 1 {
		t.Fatalf("success not recorded")
	}
	if got := testutil.ToFloat64(m.errors.WithLabelValues("bounty", "bounty_getClaim", "-32602")); got < 1 {
		t.Fatalf("error not recorded")
	}
	m.RecordThrottle("", "")
	if got := testutil.ToFloat64(m.throttles.WithLabelValues("unknown", "unspecified")); got < 1 {
		t.Fatalf("throttle not recorded")
	}
}

func TestEventMetrics(t *testing.T) {
	Events().RecordEvent("bounty.report.settled")
	if got := testutil.ToFloat64(Events().emitted.WithLabelValues("bounty.report.settled")); got < 1 {
		t.Fatalf("event not recorded")
	}
}
