// Package policy is the single source of truth for tier and level derived
// allocation rules. Everything here is a pure lookup: no I/O, no clocks of
// its own. Both the period reset job and the allowance-preview checks go
// through these tables so the two can never diverge.
package policy

import (
	"time"

	"quotaledger/internal/model"
)

// Unlimited marks a pool that is never capped and never recomputed at reset.
const Unlimited int64 = -1

// allowances maps pool kind → tier → base per-period allowance. Level acts
// as a multiplier on top (see AllowanceFor). Unlimited entries are the
// escape hatch for top tiers.
var allowances = map[model.PoolKind]map[model.Tier]int64{
	model.PoolPoints: {
		model.TierBasic:    500,
		model.TierSilver:   2000,
		model.TierGold:     10000,
		model.TierPlatinum: Unlimited,
	},
	model.PoolGrowthCredits: {
		model.TierBasic:    0,
		model.TierSilver:   50,
		model.TierGold:     200,
		model.TierPlatinum: 1000,
	},
	model.PoolParticipantCapacity: {
		model.TierBasic:    25,
		model.TierSilver:   100,
		model.TierGold:     500,
		model.TierPlatinum: Unlimited,
	},
	model.PoolMissionEnergy: {
		model.TierBasic:    3,
		model.TierSilver:   10,
		model.TierGold:     30,
		model.TierPlatinum: 100,
	},
	model.PoolEventCredits: {
		model.TierBasic:    0,
		model.TierSilver:   2,
		model.TierGold:     5,
		model.TierPlatinum: 12,
	},
}

// quarterlyPools marks the pool kinds that roll on a quarterly window.
// Everything else is monthly.
var quarterlyPools = map[model.PoolKind]bool{
	model.PoolGrowthCredits: true,
}

// levelMultiplier scales a base allowance by account level (1–6).
// Level 1 is the baseline; each level adds 25%.
func levelMultiplier(base int64, level int) int64 {
	if level < 1 {
		level = 1
	}
	if level > 6 {
		level = 6
	}
	return base + base*int64(level-1)/4
}

// AllowanceFor returns the per-period allowance for the given pool kind,
// tier and level. unlimited is true when the tier has no cap on this kind.
func AllowanceFor(kind model.PoolKind, tier model.Tier, level int) (amount int64, unlimited bool) {
	tiers, ok := allowances[kind]
	if !ok {
		return 0, false
	}
	base, ok := tiers[tier]
	if !ok {
		return 0, false
	}
	if base == Unlimited {
		return 0, true
	}
	return levelMultiplier(base, level), false
}

// PeriodLength returns the accounting window type for a pool kind.
func PeriodLength(kind model.PoolKind) model.PeriodType {
	if quarterlyPools[kind] {
		return model.PeriodQuarterly
	}
	return model.PeriodMonthly
}

// PeriodFor computes the calendar accounting window containing now, in UTC.
func PeriodFor(kind model.PoolKind, now time.Time) (start, end time.Time) {
	return periodBounds(PeriodLength(kind), now)
}

func periodBounds(pt model.PeriodType, now time.Time) (start, end time.Time) {
	now = now.UTC()
	switch pt {
	case model.PeriodQuarterly:
		qm := time.Month((int(now.Month())-1)/3*3 + 1)
		start = time.Date(now.Year(), qm, 1, 0, 0, 0, 0, time.UTC)
		end = start.AddDate(0, 3, 0)
	default:
		start = time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
		end = start.AddDate(0, 1, 0)
	}
	return start, end
}

// EntitlementPeriodType returns the free-credit window for a tier, or false
// if the tier carries no free event credits at all.
func EntitlementPeriodType(tier model.Tier) (model.PeriodType, bool) {
	switch tier {
	case model.TierPlatinum:
		return model.PeriodMonthly, true
	case model.TierGold:
		return model.PeriodQuarterly, true
	default:
		return "", false
	}
}

// EntitlementPeriodFor computes the entitlement window containing now for
// the tier. ok is false for tiers without free credits.
func EntitlementPeriodFor(tier model.Tier, now time.Time) (pt model.PeriodType, start, end time.Time, ok bool) {
	pt, ok = EntitlementPeriodType(tier)
	if !ok {
		return "", time.Time{}, time.Time{}, false
	}
	start, end = periodBounds(pt, now)
	return pt, start, end, true
}

// EntitlementAllowance returns the per-period free registration credits for
// a tier and level. Tiers without an entitlement window get zero of both.
func EntitlementAllowance(tier model.Tier, level int) (standard, premium int) {
	switch tier {
	case model.TierPlatinum:
		standard, premium = 6, 2
	case model.TierGold:
		standard, premium = 3, 1
	default:
		return 0, 0
	}
	if level >= 4 {
		standard++
	}
	if level >= 6 {
		premium++
	}
	return standard, premium
}
