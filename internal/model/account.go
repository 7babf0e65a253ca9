package model

import "time"

// Tier is the subscription level of an account. Allowances and period
// lengths are derived from it through the policy tables, never hardcoded
// at call sites.
type Tier string

const (
	TierBasic    Tier = "BASIC"
	TierSilver   Tier = "SILVER"
	TierGold     Tier = "GOLD"
	TierPlatinum Tier = "PLATINUM"
)

// ValidTier reports whether t is one of the known tiers.
func ValidTier(t Tier) bool {
	switch t {
	case TierBasic, TierSilver, TierGold, TierPlatinum:
		return true
	}
	return false
}

// PoolKind names one scarce resource balance owned by an account.
type PoolKind string

const (
	PoolPoints              PoolKind = "points"
	PoolGrowthCredits       PoolKind = "growth_credits"
	PoolParticipantCapacity PoolKind = "participant_capacity"
	PoolMissionEnergy       PoolKind = "mission_energy"
	PoolEventCredits        PoolKind = "event_credits"
)

// AllPoolKinds lists every pool kind seeded at onboarding.
var AllPoolKinds = []PoolKind{
	PoolPoints,
	PoolGrowthCredits,
	PoolParticipantCapacity,
	PoolMissionEnergy,
	PoolEventCredits,
}

// ValidPoolKind reports whether k names a known pool kind.
func ValidPoolKind(k PoolKind) bool {
	for _, kind := range AllPoolKinds {
		if k == kind {
			return true
		}
	}
	return false
}

// Account is the per-identity aggregate. Pools hang off it by kind and are
// only ever mutated through the transfer engine.
type Account struct {
	ID        string    `json:"account_id"`
	Tier      Tier      `json:"tier"`
	Level     int       `json:"level"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Pool is one scarce resource instance. Available never goes below zero;
// lifetime totals never reset; usedThisPeriod resets at periodEnd.
type Pool struct {
	AccountID           string    `json:"account_id"`
	Kind                PoolKind  `json:"kind"`
	Available           int64     `json:"available"`
	UsedThisPeriod      int64     `json:"used_this_period"`
	UsedLastPeriod      int64     `json:"used_last_period"`
	TotalEarnedLifetime int64     `json:"total_earned_lifetime"`
	TotalSpentLifetime  int64     `json:"total_spent_lifetime"`
	PeriodStart         time.Time `json:"period_start"`
	PeriodEnd           time.Time `json:"period_end"`
	IsUnlimited         bool      `json:"is_unlimited"`
}
