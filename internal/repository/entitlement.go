package repository

import (
	"context"
	"errors"
	"slices"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"quotaledger/internal/metrics"
	"quotaledger/internal/model"
	"quotaledger/internal/policy"
)

// ensureLedger creates-or-loads the entitlement ledger for the account's
// current period inside tx, returning it locked. Idempotent under
// concurrency: the INSERT is ON CONFLICT DO NOTHING against the
// (account, period) uniqueness, so racing callers converge on one row.
// ok is false when the tier carries no free credits at all.
func (r *Repo) ensureLedger(ctx context.Context, tx pgx.Tx, acct *model.Account) (led *model.EntitlementLedger, ok bool, err error) {
	now := r.now().UTC()
	pt, start, end, ok := policy.EntitlementPeriodFor(acct.Tier, now)
	if !ok {
		return nil, false, nil
	}
	standard, premium := policy.EntitlementAllowance(acct.Tier, acct.Level)

	_, err = tx.Exec(ctx, `
		INSERT INTO entitlement_ledgers
			(id, account_id, period_type, period_start, period_end,
			 standard_allowed, standard_used, premium_allowed, premium_used, consumed_ids)
		VALUES ($1, $2, $3, $4, $5, $6, 0, $7, 0, '{}')
		ON CONFLICT (account_id, period_type, period_start) DO NOTHING`,
		uuid.NewString(), acct.ID, pt, start, end, standard, premium,
	)
	if err != nil {
		return nil, false, normalizeErr(err)
	}

	var l model.EntitlementLedger
	err = tx.QueryRow(ctx, `
		SELECT id, account_id, period_type, period_start, period_end,
		       standard_allowed, standard_used, premium_allowed, premium_used, consumed_ids
		FROM entitlement_ledgers
		WHERE account_id = $1 AND period_type = $2 AND period_start = $3
		FOR UPDATE`,
		acct.ID, pt, start,
	).Scan(&l.ID, &l.AccountID, &l.PeriodType, &l.PeriodStart, &l.PeriodEnd,
		&l.StandardAllowed, &l.StandardUsed, &l.PremiumAllowed, &l.PremiumUsed, &l.ConsumedIDs)
	if err != nil {
		return nil, false, normalizeErr(err)
	}
	if !l.PeriodEnd.Equal(end) {
		// A row for this period key with a different end means policy and
		// storage disagree; refuse rather than consume against the wrong window.
		return nil, false, model.ErrLedgerPeriodMismatch
	}
	return &l, true, nil
}

// ConsumeEntitlement spends one free registration credit for the account's
// current period, creating the period ledger on first use. A denial is a
// normal outcome, not an error: the caller falls back to paid registration.
func (r *Repo) ConsumeEntitlement(ctx context.Context, req model.EntitlementConsumeRequest) (*model.EntitlementConsumeResult, error) {
	if req.AccountID == "" || req.EntityID == "" {
		return nil, model.ErrInvalidArgument
	}

	var out model.EntitlementConsumeResult
	err := r.withTx(ctx, func(tx pgx.Tx) error {
		acct, err := getAccountInTx(ctx, tx, req.AccountID)
		if err != nil {
			return err
		}
		led, ok, err := r.ensureLedger(ctx, tx, acct)
		if err != nil {
			return err
		}
		if !ok {
			out = model.EntitlementConsumeResult{Consumed: false}
			return nil
		}

		// Replaying the same entity id reports success without a second
		// increment; registrations retry through here.
		if slices.Contains(led.ConsumedIDs, req.EntityID) {
			out = model.EntitlementConsumeResult{Consumed: true, Remaining: led.Remaining()}
			return nil
		}

		if req.IsPremium {
			if led.PremiumUsed >= led.PremiumAllowed {
				out = model.EntitlementConsumeResult{Consumed: false, Remaining: led.Remaining()}
				return nil
			}
			led.PremiumUsed++
		} else {
			if led.StandardUsed >= led.StandardAllowed {
				out = model.EntitlementConsumeResult{Consumed: false, Remaining: led.Remaining()}
				return nil
			}
			led.StandardUsed++
		}
		led.ConsumedIDs = append(led.ConsumedIDs, req.EntityID)

		_, err = tx.Exec(ctx, `
			UPDATE entitlement_ledgers
			SET standard_used = $2, premium_used = $3, consumed_ids = $4
			WHERE id = $1`,
			led.ID, led.StandardUsed, led.PremiumUsed, led.ConsumedIDs,
		)
		if err != nil {
			return normalizeErr(err)
		}
		out = model.EntitlementConsumeResult{Consumed: true, Remaining: led.Remaining()}
		return nil
	})
	if err != nil {
		return nil, err
	}
	metrics.EntitlementDecision(req.IsPremium, out.Consumed)
	return &out, nil
}

// ReverseEntitlement gives back a credit when a free-funded registration is
// cancelled. Safe to call when the entity id is not present (the period may
// have rolled over underneath the cancellation): that is a no-op, not an
// error.
func (r *Repo) ReverseEntitlement(ctx context.Context, req model.EntitlementConsumeRequest) (*model.EntitlementConsumeResult, error) {
	if req.AccountID == "" || req.EntityID == "" {
		return nil, model.ErrInvalidArgument
	}

	var out model.EntitlementConsumeResult
	err := r.withTx(ctx, func(tx pgx.Tx) error {
		acct, err := getAccountInTx(ctx, tx, req.AccountID)
		if err != nil {
			return err
		}
		now := r.now().UTC()
		pt, start, _, ok := policy.EntitlementPeriodFor(acct.Tier, now)
		if !ok {
			out = model.EntitlementConsumeResult{Consumed: false}
			return nil
		}

		var l model.EntitlementLedger
		err = tx.QueryRow(ctx, `
			SELECT id, standard_allowed, standard_used, premium_allowed, premium_used, consumed_ids
			FROM entitlement_ledgers
			WHERE account_id = $1 AND period_type = $2 AND period_start = $3
			FOR UPDATE`,
			req.AccountID, pt, start,
		).Scan(&l.ID, &l.StandardAllowed, &l.StandardUsed, &l.PremiumAllowed, &l.PremiumUsed, &l.ConsumedIDs)
		if errors.Is(err, pgx.ErrNoRows) {
			// No ledger for the current period: the consumption happened in a
			// superseded window. Nothing to give back.
			out = model.EntitlementConsumeResult{Consumed: false}
			return nil
		}
		if err != nil {
			return normalizeErr(err)
		}

		idx := slices.Index(l.ConsumedIDs, req.EntityID)
		if idx < 0 {
			out = model.EntitlementConsumeResult{Consumed: false, Remaining: l.Remaining()}
			return nil
		}
		l.ConsumedIDs = slices.Delete(l.ConsumedIDs, idx, idx+1)
		if req.IsPremium {
			if l.PremiumUsed > 0 {
				l.PremiumUsed--
			}
		} else {
			if l.StandardUsed > 0 {
				l.StandardUsed--
			}
		}

		_, err = tx.Exec(ctx, `
			UPDATE entitlement_ledgers
			SET standard_used = $2, premium_used = $3, consumed_ids = $4
			WHERE id = $1`,
			l.ID, l.StandardUsed, l.PremiumUsed, l.ConsumedIDs,
		)
		if err != nil {
			return normalizeErr(err)
		}
		out = model.EntitlementConsumeResult{Consumed: true, Remaining: l.Remaining()}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func getAccountInTx(ctx context.Context, tx pgx.Tx, accountID string) (*model.Account, error) {
	var acct model.Account
	err := tx.QueryRow(ctx, `
		SELECT id, tier, level, created_at, updated_at FROM accounts WHERE id = $1`,
		accountID,
	).Scan(&acct.ID, &acct.Tier, &acct.Level, &acct.CreatedAt, &acct.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrAccountNotFound
		}
		return nil, normalizeErr(err)
	}
	return &acct, nil
}
