package policy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quotaledger/internal/model"
)

func TestAllowanceFor(t *testing.T) {
	tests := []struct {
		name      string
		kind      model.PoolKind
		tier      model.Tier
		level     int
		want      int64
		unlimited bool
	}{
		{"basic points level 1", model.PoolPoints, model.TierBasic, 1, 500, false},
		{"basic points level 5 scales", model.PoolPoints, model.TierBasic, 5, 1000, false},
		{"platinum points unlimited", model.PoolPoints, model.TierPlatinum, 1, 0, true},
		{"basic growth credits are zero", model.PoolGrowthCredits, model.TierBasic, 3, 0, false},
		{"gold mission energy", model.PoolMissionEnergy, model.TierGold, 1, 30, false},
		{"platinum capacity unlimited", model.PoolParticipantCapacity, model.TierPlatinum, 6, 0, true},
		{"unknown tier", model.PoolPoints, model.Tier("BRONZE"), 1, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, unlimited := AllowanceFor(tt.kind, tt.tier, tt.level)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.unlimited, unlimited)
		})
	}
}

func TestAllowanceFor_LevelClamped(t *testing.T) {
	atZero, _ := AllowanceFor(model.PoolPoints, model.TierSilver, 0)
	atOne, _ := AllowanceFor(model.PoolPoints, model.TierSilver, 1)
	assert.Equal(t, atOne, atZero)

	atSeven, _ := AllowanceFor(model.PoolPoints, model.TierSilver, 7)
	atSix, _ := AllowanceFor(model.PoolPoints, model.TierSilver, 6)
	assert.Equal(t, atSix, atSeven)
}

func TestPeriodFor_Monthly(t *testing.T) {
	now := time.Date(2024, time.March, 15, 13, 45, 0, 0, time.UTC)
	start, end := PeriodFor(model.PoolPoints, now)

	assert.Equal(t, time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2024, time.April, 1, 0, 0, 0, 0, time.UTC), end)
}

func TestPeriodFor_Quarterly(t *testing.T) {
	now := time.Date(2024, time.May, 2, 8, 0, 0, 0, time.UTC)
	start, end := PeriodFor(model.PoolGrowthCredits, now)

	assert.Equal(t, time.Date(2024, time.April, 1, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2024, time.July, 1, 0, 0, 0, 0, time.UTC), end)
}

func TestPeriodFor_YearBoundary(t *testing.T) {
	now := time.Date(2024, time.December, 31, 23, 59, 59, 0, time.UTC)

	start, end := PeriodFor(model.PoolPoints, now)
	assert.Equal(t, time.Date(2024, time.December, 1, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC), end)

	start, end = PeriodFor(model.PoolGrowthCredits, now)
	assert.Equal(t, time.Date(2024, time.October, 1, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC), end)
}

func TestEntitlementPeriodType(t *testing.T) {
	pt, ok := EntitlementPeriodType(model.TierPlatinum)
	require.True(t, ok)
	assert.Equal(t, model.PeriodMonthly, pt)

	pt, ok = EntitlementPeriodType(model.TierGold)
	require.True(t, ok)
	assert.Equal(t, model.PeriodQuarterly, pt)

	_, ok = EntitlementPeriodType(model.TierSilver)
	assert.False(t, ok)
	_, ok = EntitlementPeriodType(model.TierBasic)
	assert.False(t, ok)
}

func TestEntitlementAllowance(t *testing.T) {
	standard, premium := EntitlementAllowance(model.TierPlatinum, 1)
	assert.Equal(t, 6, standard)
	assert.Equal(t, 2, premium)

	standard, premium = EntitlementAllowance(model.TierGold, 4)
	assert.Equal(t, 4, standard)
	assert.Equal(t, 1, premium)

	standard, premium = EntitlementAllowance(model.TierPlatinum, 6)
	assert.Equal(t, 7, standard)
	assert.Equal(t, 3, premium)

	standard, premium = EntitlementAllowance(model.TierBasic, 6)
	assert.Zero(t, standard)
	assert.Zero(t, premium)
}

func TestEntitlementPeriodFor_NoFreeTier(t *testing.T) {
	_, _, _, ok := EntitlementPeriodFor(model.TierBasic, time.Now())
	assert.False(t, ok)
}
