package model

import "time"

// Common transaction reasons. The reason field is free-form so that
// workflow handlers can pass their own labels; these constants cover the
// movements the engine itself originates.
const (
	ReasonPeriodReset      = "period_reset"
	ReasonOnboardingGrant  = "onboarding_grant"
	ReasonRedemption       = "reward_redemption"
	ReasonMissionFunding   = "mission_funding"
	ReasonRegistrationHold = "registration_hold"
)

// Transaction is one append-only ledger row. Rows are never mutated or
// deleted; they are the sole source of truth for reconciliation.
type Transaction struct {
	ID            string    `json:"tx_id"`
	AccountID     string    `json:"account_id"`
	PoolKind      PoolKind  `json:"pool_kind"`
	Delta         int64     `json:"delta"`
	BalanceBefore int64     `json:"balance_before"`
	BalanceAfter  int64     `json:"balance_after"`
	Reason        string    `json:"reason"`
	RelatedID     string    `json:"related_id,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// TransferResult carries both sides of an atomic two-account movement.
type TransferResult struct {
	FromBalance int64  `json:"from_balance"`
	ToBalance   int64  `json:"to_balance"`
	DebitTxID   string `json:"debit_tx_id"`
	CreditTxID  string `json:"credit_tx_id"`
}
