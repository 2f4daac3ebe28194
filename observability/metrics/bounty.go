package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// BountyMetrics tracks the settlement engine's financial activity.
type BountyMetrics struct {
	transactions *prometheus.CounterVec
	settlements  prometheus.Counter
	refunds      *prometheus.CounterVec
	payouts      prometheus.Counter
	revenue      prometheus.Counter
	sweeps       prometheus.Counter
	contractBal  prometheus.Gauge
}

var (
	bountyOnce     sync.Once
	bountyRegistry *BountyMetrics
)

func Bounty() *BountyMetrics {
	bountyOnce.Do(func() {
		bountyRegistry = &BountyMetrics{
			transactions: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "bounty_transactions_total",
				Help: "Transactions processed segmented by type and outcome.",
			}, []string{"type", "outcome"}),
			settlements: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "bounty_settlements_total",
				Help: "Claims settled with a payout.",
			}),
			refunds: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "bounty_refunds_total",
				Help: "Settlement attempts converted into refunds by reason.",
			}, []string{"reason"}),
			payouts: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "bounty_payout_units_total",
				Help: "Units paid to finders.",
			}),
			revenue: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "bounty_revenue_units_total",
				Help: "Units retained by the platform contract from settlements.",
			}),
			sweeps: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "bounty_payday_units_total",
				Help: "Units swept to the deployer by payday.",
			}),
			contractBal: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "bounty_contract_balance_units",
				Help: "Current balance held by the platform contract.",
			}),
		}
		prometheus.MustRegister(
			bountyRegistry.transactions,
			bountyRegistry.settlements,
			bountyRegistry.refunds,
			bountyRegistry.payouts,
			bountyRegistry.revenue,
			bountyRegistry.sweeps,
			bountyRegistry.contractBal,
		)
	})
	return bountyRegistry
}

// RecordTransaction counts an applied, refunded or rejected transaction.
func (m *BountyMetrics) RecordTransaction(txType, outcome string) {
	if m == nil {
		return
	}
	m.transactions.WithLabelValues(txType, outcome).Inc()
}

func (m *BountyMetrics) RecordSettlement(payout, revenue uint64) {
	if m == nil {
		return
	}
	m.settlements.Inc()
	m.payouts.Add(float64(payout))
	m.revenue.Add(float64(revenue))
}

func (m *BountyMetrics) RecordRefund(reason string) {
	if m == nil {
		return
	}
	if reason == "" {
		reason = "unspecified"
	}
	m.refunds.WithLabelValues(reason).Inc()
}

func (m *BountyMetrics) RecordPayday(amount uint64) {
	if m == nil {
		return
	}
	m.sweeps.Add(float64(amount))
}

func (m *BountyMetrics) SetContractBalance(balance uint64) {
	if m == nil {
		return
	}
	m.contractBal.Set(float64(balance))
}
