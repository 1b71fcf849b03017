package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the audit module.
type Metrics struct {
	AuditsDecided        *prometheus.CounterVec
	ChallengesRaised     prometheus.Counter
	ArbitrationsResolved *prometheus.CounterVec
	RewardsPaid          prometheus.Counter
}

// New creates a new Metrics instance with all audit module metrics registered.
func New() *Metrics {
	return &Metrics{
		AuditsDecided: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "safemint_audits_decided_total",
			Help: "Total number of audit decisions, by outcome",
		}, []string{"decision"}),
		ChallengesRaised: promauto.NewCounter(prometheus.CounterOpts{
			Name: "safemint_challenges_raised_total",
			Help: "Total number of challenges raised against rejections",
		}),
		ArbitrationsResolved: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "safemint_arbitrations_resolved_total",
			Help: "Total number of arbitration rulings, by outcome",
		}, []string{"decision"}),
		RewardsPaid: promauto.NewCounter(prometheus.CounterOpts{
			Name: "safemint_rewards_paid_total",
			Help: "Total number of dispute reward payouts",
		}),
	}
}

// IncrementAuditsDecided records an audit decision by outcome.
func (m *Metrics) IncrementAuditsDecided(decision string) {
	m.AuditsDecided.WithLabelValues(decision).Inc()
}

// IncrementChallengesRaised records a raised challenge.
func (m *Metrics) IncrementChallengesRaised() {
	m.ChallengesRaised.Inc()
}

// IncrementArbitrationsResolved records an arbitration ruling by outcome.
func (m *Metrics) IncrementArbitrationsResolved(decision string) {
	m.ArbitrationsResolved.WithLabelValues(decision).Inc()
}

// IncrementRewardsPaid records a reward payout.
func (m *Metrics) IncrementRewardsPaid() {
	m.RewardsPaid.Inc()
}
