package model

import "time"

// PeriodType is the accounting window length for an entitlement ledger.
type PeriodType string

const (
	PeriodMonthly   PeriodType = "MONTHLY"
	PeriodQuarterly PeriodType = "QUARTERLY"
)

// EntitlementLedger tracks period-scoped free event-registration credits.
// Unlike a Pool it is bound to one calendar period; a new period means a
// new row, the old one is superseded, never deleted.
type EntitlementLedger struct {
	ID              string     `json:"ledger_id"`
	AccountID       string     `json:"account_id"`
	PeriodType      PeriodType `json:"period_type"`
	PeriodStart     time.Time  `json:"period_start"`
	PeriodEnd       time.Time  `json:"period_end"`
	StandardAllowed int        `json:"standard_allowed"`
	StandardUsed    int        `json:"standard_used"`
	PremiumAllowed  int        `json:"premium_allowed"`
	PremiumUsed     int        `json:"premium_used"`
	ConsumedIDs     []string   `json:"consumed_ids"`
}

// EntitlementRemaining is the per-class headroom reported back to callers.
type EntitlementRemaining struct {
	Standard int `json:"standard"`
	Premium  int `json:"premium"`
}

// Remaining computes the current headroom of the ledger.
func (l *EntitlementLedger) Remaining() EntitlementRemaining {
	return EntitlementRemaining{
		Standard: l.StandardAllowed - l.StandardUsed,
		Premium:  l.PremiumAllowed - l.PremiumUsed,
	}
}
