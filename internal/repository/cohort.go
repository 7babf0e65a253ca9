package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"quotaledger/internal/metrics"
	"quotaledger/internal/model"
)

// CreateCohort provisions a PENDING city batch. A partial unique index on
// the city keeps at most one non-closed cohort per city, so the selection
// policy "join the city's open cohort" is unambiguous.
func (r *Repo) CreateCohort(ctx context.Context, req model.CreateCohortRequest) (*model.Cohort, error) {
	if req.City == "" || req.MaxSlots <= 0 || req.PricingLockMonths < 0 {
		return nil, model.ErrInvalidArgument
	}
	now := r.now().UTC()
	cohort := &model.Cohort{
		ID:                uuid.NewString(),
		City:              req.City,
		MaxSlots:          req.MaxSlots,
		Status:            model.CohortPending,
		PricingLockMonths: req.PricingLockMonths,
		FoundingBadge:     req.FoundingBadge,
		CreatedAt:         now,
	}

	err := r.withTx(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO cohorts (id, city, max_slots, used_slots, status, pricing_lock_months, founding_badge, created_at)
			VALUES ($1, $2, $3, 0, $4, $5, $6, $7)`,
			cohort.ID, cohort.City, cohort.MaxSlots, cohort.Status,
			cohort.PricingLockMonths, cohort.FoundingBadge, now,
		)
		if err != nil {
			if isUniqueViolation(err) {
				return model.ErrCohortCityTaken
			}
			return normalizeErr(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return cohort, nil
}

// OpenCohort moves PENDING to OPEN. CLOSED is terminal: a full or
// force-closed batch never reopens, so this rejects everything but PENDING.
func (r *Repo) OpenCohort(ctx context.Context, cohortID string) error {
	return r.withTx(ctx, func(tx pgx.Tx) error {
		cohort, err := lockCohort(ctx, tx, cohortID)
		if err != nil {
			return err
		}
		if cohort.Status != model.CohortPending {
			return model.ErrCohortNotOpen
		}
		_, err = tx.Exec(ctx, `UPDATE cohorts SET status = $2 WHERE id = $1`,
			cohortID, model.CohortOpen)
		return normalizeErr(err)
	})
}

// ForceCloseCohort closes an open or pending cohort early. Idempotent on
// already-closed cohorts.
func (r *Repo) ForceCloseCohort(ctx context.Context, cohortID string) error {
	return r.withTx(ctx, func(tx pgx.Tx) error {
		cohort, err := lockCohort(ctx, tx, cohortID)
		if err != nil {
			return err
		}
		if cohort.Status == model.CohortClosed {
			return nil
		}
		_, err = tx.Exec(ctx, `UPDATE cohorts SET status = $2, closed_at = $3 WHERE id = $1`,
			cohortID, model.CohortClosed, r.now().UTC())
		return normalizeErr(err)
	})
}

// GetCohort loads a cohort by id.
func (r *Repo) GetCohort(ctx context.Context, cohortID string) (*model.Cohort, error) {
	var c model.Cohort
	err := r.dbPool.QueryRow(ctx, `
		SELECT id, city, max_slots, used_slots, status, pricing_lock_months, founding_badge, created_at, closed_at
		FROM cohorts WHERE id = $1`,
		cohortID,
	).Scan(&c.ID, &c.City, &c.MaxSlots, &c.UsedSlots, &c.Status,
		&c.PricingLockMonths, &c.FoundingBadge, &c.CreatedAt, &c.ClosedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrCohortNotFound
		}
		return nil, normalizeErr(err)
	}
	return &c, nil
}

// ConsumeSlot hands out the next sequential slot. The capacity check, the
// slot increment, the membership insert and the auto-close all commit in
// one transaction: there is no window where the cohort is full but still
// OPEN, and two racing calls on the last slot serialize behind the row
// lock so exactly one wins.
func (r *Repo) ConsumeSlot(ctx context.Context, cohortID, accountID string) (*model.SlotGrant, error) {
	if accountID == "" {
		return nil, model.ErrInvalidArgument
	}
	now := r.now().UTC()

	var grant model.SlotGrant
	var city string
	err := r.withTx(ctx, func(tx pgx.Tx) error {
		cohort, err := lockCohort(ctx, tx, cohortID)
		if err != nil {
			return err
		}
		city = cohort.City

		switch cohort.Status {
		case model.CohortOpen:
			// proceed
		case model.CohortClosed:
			if cohort.UsedSlots >= cohort.MaxSlots {
				return model.ErrCohortFull
			}
			return model.ErrCohortNotOpen
		default:
			return model.ErrCohortNotOpen
		}

		var active bool
		err = tx.QueryRow(ctx, `
			SELECT EXISTS (
				SELECT 1 FROM cohort_memberships
				WHERE cohort_id = $1 AND account_id = $2 AND status = $3
			)`,
			cohortID, accountID, model.MembershipActive,
		).Scan(&active)
		if err != nil {
			return normalizeErr(err)
		}
		if active {
			return model.ErrAlreadyMember
		}

		slot := cohort.UsedSlots + 1
		status := model.CohortOpen
		var closedAt *time.Time
		if slot >= cohort.MaxSlots {
			status = model.CohortClosed
			closedAt = &now
		}
		_, err = tx.Exec(ctx, `
			UPDATE cohorts SET used_slots = $2, status = $3, closed_at = COALESCE($4, closed_at)
			WHERE id = $1`,
			cohortID, slot, status, closedAt,
		)
		if err != nil {
			return normalizeErr(err)
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO cohort_memberships (cohort_id, account_id, slot_number, status, joined_at)
			VALUES ($1, $2, $3, $4, $5)`,
			cohortID, accountID, slot, model.MembershipActive, now,
		)
		if err != nil {
			if isUniqueViolation(err) {
				return model.ErrAlreadyMember
			}
			return normalizeErr(err)
		}

		grant = model.SlotGrant{
			SlotNumber:       slot,
			FoundingBadge:    cohort.FoundingBadge,
			PricingLockUntil: now.AddDate(0, cohort.PricingLockMonths, 0),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	metrics.SlotConsumed(city)
	return &grant, nil
}

// RevokeMembership marks the membership REVOKED. The slot number is not
// freed and used_slots does not decrease; scarcity is monotonic.
func (r *Repo) RevokeMembership(ctx context.Context, cohortID, accountID string) error {
	return r.withTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE cohort_memberships SET status = $3
			WHERE cohort_id = $1 AND account_id = $2 AND status = $4`,
			cohortID, accountID, model.MembershipRevoked, model.MembershipActive,
		)
		if err != nil {
			return normalizeErr(err)
		}
		if tag.RowsAffected() == 0 {
			return model.ErrCohortNotFound
		}
		return nil
	})
}

// lockCohort reads the cohort row under FOR UPDATE.
func lockCohort(ctx context.Context, tx pgx.Tx, cohortID string) (*model.Cohort, error) {
	var c model.Cohort
	err := tx.QueryRow(ctx, `
		SELECT id, city, max_slots, used_slots, status, pricing_lock_months, founding_badge, created_at, closed_at
		FROM cohorts WHERE id = $1
		FOR UPDATE`,
		cohortID,
	).Scan(&c.ID, &c.City, &c.MaxSlots, &c.UsedSlots, &c.Status,
		&c.PricingLockMonths, &c.FoundingBadge, &c.CreatedAt, &c.ClosedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrCohortNotFound
		}
		return nil, normalizeErr(err)
	}
	return &c, nil
}
