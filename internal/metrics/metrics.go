// Package metrics exposes Prometheus counters for the ledger engine.
// Counters only: balances themselves live in Postgres and are not gauges
// here, so a scrape can never disagree with the ledger.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	movementsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quotaledger_movements_total",
		Help: "Committed ledger movements by pool kind and direction.",
	}, []string{"pool", "direction"})

	movementDenials = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quotaledger_movement_denials_total",
		Help: "Rejected ledger movements by pool kind and error code.",
	}, []string{"pool", "code"})

	slotsConsumed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quotaledger_cohort_slots_consumed_total",
		Help: "Cohort slots handed out, by city.",
	}, []string{"city"})

	poolResets = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quotaledger_pool_resets_total",
		Help: "Period resets applied to pools, by outcome.",
	}, []string{"outcome"})

	entitlementDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quotaledger_entitlement_decisions_total",
		Help: "Entitlement consumption decisions, by class and outcome.",
	}, []string{"class", "outcome"})
)

func MovementCommitted(pool string, delta int64) {
	direction := "credit"
	if delta < 0 {
		direction = "debit"
	}
	movementsTotal.WithLabelValues(pool, direction).Inc()
}

func MovementDenied(pool, code string) {
	movementDenials.WithLabelValues(pool, code).Inc()
}

func SlotConsumed(city string) {
	slotsConsumed.WithLabelValues(city).Inc()
}

func PoolReset(outcome string) {
	poolResets.WithLabelValues(outcome).Inc()
}

func EntitlementDecision(premium bool, consumed bool) {
	class := "standard"
	if premium {
		class = "premium"
	}
	outcome := "denied"
	if consumed {
		outcome = "consumed"
	}
	entitlementDecisions.WithLabelValues(class, outcome).Inc()
}
