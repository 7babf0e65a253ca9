package repository

import (
	"context"

	"quotaledger/internal/model"
)

// RecordTransactionEvent mirrors a committed movement into the audit table
// and drops the stale cache entry on this instance. Called by the worker
// for every bus event; ON CONFLICT makes redelivery harmless.
func (r *Repo) RecordTransactionEvent(ctx context.Context, ev model.TransactionEvent) error {
	_, err := r.dbPool.Exec(ctx, `
		INSERT INTO transactions_audit (tx_id, account_id, pool_kind, delta, balance_after, reason, related_id, created_at, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (tx_id) DO NOTHING`,
		ev.TxID, ev.AccountID, ev.PoolKind, ev.Delta, ev.BalanceAfter,
		ev.Reason, ev.RelatedID, ev.CreatedAt, r.now().UTC(),
	)
	if err != nil {
		return normalizeErr(err)
	}
	r.invalidateBalance(ctx, ev.AccountID, ev.PoolKind)
	return nil
}

// RecordResetSummary persists one scheduler run into the operational log.
// Redelivered events hit the run id conflict and are dropped.
func (r *Repo) RecordResetSummary(ctx context.Context, s model.ResetSummary) error {
	_, err := r.dbPool.Exec(ctx, `
		INSERT INTO reset_runs (run_id, scanned, reset, failed, started_at, finished_at, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (run_id) DO NOTHING`,
		s.RunID, s.Scanned, s.Reset, s.Failed, s.StartedAt, s.FinishedAt, r.now().UTC(),
	)
	return normalizeErr(err)
}
