package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// SettlementMetrics tracks fare settlement outcomes.
type SettlementMetrics struct {
	settled    *prometheus.CounterVec
	duplicates prometheus.Counter
	amounts    *prometheus.CounterVec
}

// NewSettlementMetrics registers the settlement metrics on the provided registerer.
func NewSettlementMetrics(reg prometheus.Registerer) *SettlementMetrics {
	if reg == nil {
		return &SettlementMetrics{}
	}
	settled := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "settlements_total",
		Help: "Completed fare settlements by source type.",
	}, []string{"source"})
	duplicates := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "settlement_duplicates_total",
		Help: "Settlement attempts skipped because the source was already settled.",
	})
	amounts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "settlement_amount_cents_total",
		Help: "Settled amounts in cents by beneficiary.",
	}, []string{"beneficiary"})
	reg.MustRegister(settled, duplicates, amounts)
	return &SettlementMetrics{
		settled:    settled,
		duplicates: duplicates,
		amounts:    amounts,
	}
}

// IncSettled increments the settlement counter for the given source type.
func (s *SettlementMetrics) IncSettled(source string) {
	if s == nil || s.settled == nil {
		return
	}
	s.settled.WithLabelValues(normalizeLabel(source)).Inc()
}

// IncDuplicate increments the duplicate-settlement counter.
func (s *SettlementMetrics) IncDuplicate() {
	if s == nil || s.duplicates == nil {
		return
	}
	s.duplicates.Inc()
}

// AddAmount records settled cents for a beneficiary ("driver" or "platform").
func (s *SettlementMetrics) AddAmount(beneficiary string, cents int64) {
	if s == nil || s.amounts == nil || cents <= 0 {
		return
	}
	s.amounts.WithLabelValues(normalizeLabel(beneficiary)).Add(float64(cents))
}
