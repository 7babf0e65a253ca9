package repository

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"quotaledger/internal/metrics"
	"quotaledger/internal/model"
	"quotaledger/internal/policy"
)

type poolKey struct {
	AccountID string
	Kind      model.PoolKind
}

// ResetDuePools rolls every pool whose period has ended into its next
// accounting window. Each pool is reset in its own transaction: one broken
// pool cannot abort the rest, and re-running the whole pass is safe because
// a pool whose period_end already moved past now is skipped on recheck.
func (r *Repo) ResetDuePools(ctx context.Context) (*model.ResetSummary, error) {
	started := r.now().UTC()

	rows, err := r.dbPool.Query(ctx, `
		SELECT account_id, kind FROM pools WHERE period_end <= $1 ORDER BY account_id, kind`,
		started,
	)
	if err != nil {
		return nil, normalizeErr(err)
	}
	var due []poolKey
	for rows.Next() {
		var k poolKey
		if err := rows.Scan(&k.AccountID, &k.Kind); err != nil {
			rows.Close()
			return nil, normalizeErr(err)
		}
		due = append(due, k)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, normalizeErr(err)
	}

	summary := model.ResetSummary{
		RunID:     uuid.NewString(),
		Scanned:   len(due),
		StartedAt: started,
	}
	for _, key := range due {
		if err := r.resetOnePool(ctx, key); err != nil {
			summary.Failed++
			metrics.PoolReset("failed")
			slog.Error("reset: pool roll failed",
				"account_id", key.AccountID, "pool", key.Kind, "error", err)
			continue
		}
		summary.Reset++
		metrics.PoolReset("reset")
		r.invalidateBalance(ctx, key.AccountID, key.Kind)
	}
	summary.FinishedAt = r.now().UTC()

	r.publish(model.TopicPeriodResetDone, summary)
	return &summary, nil
}

// resetOnePool rolls a single pool, serialized against in-flight movements
// by the same row lock Debit and Credit take. Idempotent: once period_end
// has been advanced past now, the recheck makes a second run a no-op.
func (r *Repo) resetOnePool(ctx context.Context, key poolKey) error {
	now := r.now().UTC()
	return r.withTx(ctx, func(tx pgx.Tx) error {
		var due bool
		var oldAvailable int64
		err := tx.QueryRow(ctx, `
			SELECT period_end <= $3, available FROM pools
			WHERE account_id = $1 AND kind = $2
			FOR UPDATE`,
			key.AccountID, key.Kind, now,
		).Scan(&due, &oldAvailable)
		if err != nil {
			return normalizeErr(err)
		}
		if !due {
			// Already rolled by a concurrent or earlier run.
			return nil
		}

		acct, err := getAccountInTx(ctx, tx, key.AccountID)
		if err != nil {
			return err
		}

		// Recompute from current policy, not from the old allowance: a tier
		// change between periods takes numeric effect here.
		allowance, unlimited := policy.AllowanceFor(key.Kind, acct.Tier, acct.Level)
		start, end := policy.PeriodFor(key.Kind, now)
		available := allowance
		if unlimited {
			available = 0
		}

		_, err = tx.Exec(ctx, `
			UPDATE pools
			SET used_last_period = used_this_period,
			    used_this_period = 0,
			    available = $3,
			    is_unlimited = $4,
			    period_start = $5,
			    period_end = $6
			WHERE account_id = $1 AND kind = $2`,
			key.AccountID, key.Kind, available, unlimited, start, end,
		)
		if err != nil {
			return normalizeErr(err)
		}

		// Record the recomputation in the log so balances stay reconcilable
		// against the sum of deltas across period boundaries. Lifetime
		// counters are untouched: a reset is not an earn or a spend.
		if delta := available - oldAvailable; delta != 0 {
			adj := &model.Transaction{
				ID:            uuid.NewString(),
				AccountID:     key.AccountID,
				PoolKind:      key.Kind,
				Delta:         delta,
				BalanceBefore: oldAvailable,
				BalanceAfter:  available,
				Reason:        model.ReasonPeriodReset,
				CreatedAt:     now,
			}
			if err := insertTransaction(ctx, tx, adj); err != nil {
				return err
			}
		}
		return nil
	})
}
