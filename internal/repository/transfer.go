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

// poolRow is the locked working copy of a pool inside a transaction.
type poolRow struct {
	Available           int64
	UsedThisPeriod      int64
	TotalEarnedLifetime int64
	TotalSpentLifetime  int64
	IsUnlimited         bool
}

// lockPool reads the pool row under FOR UPDATE, serializing every movement
// and reset on the same (account, kind) behind a single row lock.
func lockPool(ctx context.Context, tx pgx.Tx, accountID string, kind model.PoolKind) (*poolRow, error) {
	var p poolRow
	err := tx.QueryRow(ctx, `
		SELECT available, used_this_period, total_earned_lifetime, total_spent_lifetime, is_unlimited
		FROM pools
		WHERE account_id = $1 AND kind = $2
		FOR UPDATE`,
		accountID, kind,
	).Scan(&p.Available, &p.UsedThisPeriod, &p.TotalEarnedLifetime, &p.TotalSpentLifetime, &p.IsUnlimited)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrPoolNotFound
		}
		return nil, normalizeErr(err)
	}
	return &p, nil
}

// findReplay looks for an earlier committed movement with the same related
// id and direction. A hit means the caller is retrying after a timeout and
// must get the original result back instead of a second movement.
func findReplay(ctx context.Context, tx pgx.Tx, accountID string, kind model.PoolKind, relatedID string, debit bool) (*model.MovementResult, error) {
	if relatedID == "" {
		return nil, nil
	}
	cmp := "> 0"
	if debit {
		cmp = "< 0"
	}
	var res model.MovementResult
	err := tx.QueryRow(ctx, `
		SELECT id, balance_after
		FROM transactions
		WHERE account_id = $1 AND pool_kind = $2 AND related_id = $3 AND delta `+cmp,
		accountID, kind, relatedID,
	).Scan(&res.TxID, &res.Balance)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, normalizeErr(err)
	}
	return &res, nil
}

func insertTransaction(ctx context.Context, tx pgx.Tx, t *model.Transaction) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO transactions (id, account_id, pool_kind, delta, balance_before, balance_after, reason, related_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		t.ID, t.AccountID, t.PoolKind, t.Delta, t.BalanceBefore, t.BalanceAfter, t.Reason, t.RelatedID, t.CreatedAt,
	)
	return normalizeErr(err)
}

// debitInTx applies one debit against an already-open transaction. It is
// shared between Debit and Transfer so both enforce identical rules.
func (r *Repo) debitInTx(ctx context.Context, tx pgx.Tx, req model.DebitRequest, at time.Time) (*model.MovementResult, error) {
	pool, err := lockPool(ctx, tx, req.AccountID, req.Pool)
	if err != nil {
		return nil, err
	}
	if replay, err := findReplay(ctx, tx, req.AccountID, req.Pool, req.RelatedID, true); err != nil {
		return nil, err
	} else if replay != nil {
		return replay, nil
	}
	if !pool.IsUnlimited && pool.Available < req.Amount {
		return nil, model.ErrInsufficientBalance
	}

	before := pool.Available
	after := before
	if !pool.IsUnlimited {
		after = before - req.Amount
	}

	_, err = tx.Exec(ctx, `
		UPDATE pools
		SET available = $3,
		    used_this_period = used_this_period + $4,
		    total_spent_lifetime = total_spent_lifetime + $4
		WHERE account_id = $1 AND kind = $2`,
		req.AccountID, req.Pool, after, req.Amount,
	)
	if err != nil {
		return nil, normalizeErr(err)
	}

	txn := &model.Transaction{
		ID:            uuid.NewString(),
		AccountID:     req.AccountID,
		PoolKind:      req.Pool,
		Delta:         -req.Amount,
		BalanceBefore: before,
		BalanceAfter:  after,
		Reason:        req.Reason,
		RelatedID:     req.RelatedID,
		CreatedAt:     at,
	}
	if err := insertTransaction(ctx, tx, txn); err != nil {
		if isUniqueViolation(err) {
			// A concurrent retry with the same related id won the race; the
			// re-run will hit the replay fast path and return its result.
			return nil, errReplayRace
		}
		return nil, err
	}
	return &model.MovementResult{Balance: after, TxID: txn.ID}, nil
}

func (r *Repo) creditInTx(ctx context.Context, tx pgx.Tx, req model.CreditRequest, at time.Time) (*model.MovementResult, error) {
	pool, err := lockPool(ctx, tx, req.AccountID, req.Pool)
	if err != nil {
		return nil, err
	}
	if replay, err := findReplay(ctx, tx, req.AccountID, req.Pool, req.RelatedID, false); err != nil {
		return nil, err
	} else if replay != nil {
		return replay, nil
	}

	before := pool.Available
	after := before + req.Amount

	_, err = tx.Exec(ctx, `
		UPDATE pools
		SET available = $3,
		    total_earned_lifetime = total_earned_lifetime + $4
		WHERE account_id = $1 AND kind = $2`,
		req.AccountID, req.Pool, after, req.Amount,
	)
	if err != nil {
		return nil, normalizeErr(err)
	}

	txn := &model.Transaction{
		ID:            uuid.NewString(),
		AccountID:     req.AccountID,
		PoolKind:      req.Pool,
		Delta:         req.Amount,
		BalanceBefore: before,
		BalanceAfter:  after,
		Reason:        req.Reason,
		RelatedID:     req.RelatedID,
		CreatedAt:     at,
	}
	if err := insertTransaction(ctx, tx, txn); err != nil {
		if isUniqueViolation(err) {
			return nil, errReplayRace
		}
		return nil, err
	}
	return &model.MovementResult{Balance: after, TxID: txn.ID}, nil
}

// Debit atomically removes amount from the pool. All three effects
// (available, usedThisPeriod + lifetime counters, transaction append)
// commit together or not at all.
func (r *Repo) Debit(ctx context.Context, req model.DebitRequest) (*model.MovementResult, error) {
	if req.Amount <= 0 {
		return nil, model.ErrInvalidAmount
	}
	var res *model.MovementResult
	at := r.now().UTC()
	err := r.withTx(ctx, func(tx pgx.Tx) error {
		var err error
		res, err = r.debitInTx(ctx, tx, req, at)
		return err
	})
	if err != nil {
		metrics.MovementDenied(string(req.Pool), model.ErrorCode(err))
		return nil, err
	}
	r.afterMovement(ctx, req.AccountID, req.Pool, -req.Amount, res, req.Reason, req.RelatedID, at)
	return res, nil
}

// Credit atomically adds amount to the pool. No cap is enforced here:
// credits double as refunds and reversals, which must always succeed.
// Allowance caps bind at period-reset time instead. Callers crediting on
// the back of a business event must commit that event first; the engine
// never issues optimistic credits.
func (r *Repo) Credit(ctx context.Context, req model.CreditRequest) (*model.MovementResult, error) {
	if req.Amount <= 0 {
		return nil, model.ErrInvalidAmount
	}
	var res *model.MovementResult
	at := r.now().UTC()
	err := r.withTx(ctx, func(tx pgx.Tx) error {
		var err error
		res, err = r.creditInTx(ctx, tx, req, at)
		return err
	})
	if err != nil {
		metrics.MovementDenied(string(req.Pool), model.ErrorCode(err))
		return nil, err
	}
	r.afterMovement(ctx, req.AccountID, req.Pool, req.Amount, res, req.Reason, req.RelatedID, at)
	return res, nil
}

// Transfer moves amount between two accounts as one atomic unit. If the
// debit side fails nothing is written for either side. Pool rows are locked
// in account-id order so two opposing transfers cannot deadlock.
func (r *Repo) Transfer(ctx context.Context, req model.TransferRequest) (*model.TransferResult, error) {
	if req.Amount <= 0 {
		return nil, model.ErrInvalidAmount
	}
	if req.FromAccountID == req.ToAccountID {
		return nil, model.ErrInvalidAmount
	}

	at := r.now().UTC()
	var out model.TransferResult
	err := r.withTx(ctx, func(tx pgx.Tx) error {
		// Deterministic lock order across both pool rows.
		first, second := req.FromAccountID, req.ToAccountID
		if second < first {
			first, second = second, first
		}
		if _, err := lockPool(ctx, tx, first, req.Pool); err != nil {
			return err
		}
		if _, err := lockPool(ctx, tx, second, req.Pool); err != nil {
			return err
		}

		debit, err := r.debitInTx(ctx, tx, model.DebitRequest{
			AccountID: req.FromAccountID,
			Pool:      req.Pool,
			Amount:    req.Amount,
			Reason:    req.Reason,
			RelatedID: req.RelatedID,
		}, at)
		if err != nil {
			return err
		}
		credit, err := r.creditInTx(ctx, tx, model.CreditRequest{
			AccountID: req.ToAccountID,
			Pool:      req.Pool,
			Amount:    req.Amount,
			Reason:    req.Reason,
			RelatedID: req.RelatedID,
		}, at)
		if err != nil {
			return err
		}

		out = model.TransferResult{
			FromBalance: debit.Balance,
			ToBalance:   credit.Balance,
			DebitTxID:   debit.TxID,
			CreditTxID:  credit.TxID,
		}
		return nil
	})
	if err != nil {
		metrics.MovementDenied(string(req.Pool), model.ErrorCode(err))
		return nil, err
	}

	r.afterMovement(ctx, req.FromAccountID, req.Pool, -req.Amount,
		&model.MovementResult{Balance: out.FromBalance, TxID: out.DebitTxID}, req.Reason, req.RelatedID, at)
	r.afterMovement(ctx, req.ToAccountID, req.Pool, req.Amount,
		&model.MovementResult{Balance: out.ToBalance, TxID: out.CreditTxID}, req.Reason, req.RelatedID, at)
	return &out, nil
}

// afterMovement runs the post-commit side effects: cache invalidation,
// metrics, event publication.
func (r *Repo) afterMovement(ctx context.Context, accountID string, kind model.PoolKind, delta int64, res *model.MovementResult, reason, relatedID string, at time.Time) {
	r.invalidateBalance(ctx, accountID, kind)
	metrics.MovementCommitted(string(kind), delta)
	r.publish(model.TopicTransactionCreated, model.TransactionEvent{
		TxID:         res.TxID,
		AccountID:    accountID,
		PoolKind:     kind,
		Delta:        delta,
		BalanceAfter: res.Balance,
		Reason:       reason,
		RelatedID:    relatedID,
		CreatedAt:    at,
	})
}
