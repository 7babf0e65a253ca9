package model

import "time"

// CohortStatus is the cohort state machine. PENDING cohorts are created by
// an administrator and accept nobody; an explicit open moves them to OPEN;
// CLOSED is terminal. A full or force-closed batch never reopens.
type CohortStatus string

const (
	CohortPending CohortStatus = "PENDING"
	CohortOpen    CohortStatus = "OPEN"
	CohortClosed  CohortStatus = "CLOSED"
)

// Cohort is one city's fixed-size onboarding batch.
type Cohort struct {
	ID                string       `json:"cohort_id"`
	City              string       `json:"city"`
	MaxSlots          int          `json:"max_slots"`
	UsedSlots         int          `json:"used_slots"`
	Status            CohortStatus `json:"status"`
	PricingLockMonths int          `json:"pricing_lock_months"`
	FoundingBadge     string       `json:"founding_badge"`
	CreatedAt         time.Time    `json:"created_at"`
	ClosedAt          *time.Time   `json:"closed_at,omitempty"`
}

// MembershipStatus marks whether a cohort membership is still in force.
// Revoking a membership does not free its slot; slot numbers are never
// reused.
type MembershipStatus string

const (
	MembershipActive  MembershipStatus = "ACTIVE"
	MembershipRevoked MembershipStatus = "REVOKED"
)

// CohortMembership ties an account to its slot in a cohort.
type CohortMembership struct {
	CohortID   string           `json:"cohort_id"`
	AccountID  string           `json:"account_id"`
	SlotNumber int              `json:"slot_number"`
	Status     MembershipStatus `json:"status"`
	JoinedAt   time.Time        `json:"joined_at"`
}

// SlotGrant is what a successful slot consumption returns to the caller.
type SlotGrant struct {
	SlotNumber       int       `json:"slot_number"`
	FoundingBadge    string    `json:"founding_badge"`
	PricingLockUntil time.Time `json:"pricing_lock_until"`
}
