package repository

import (
	"context"
	"errors"
	"strconv"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"

	"quotaledger/internal/model"
	"quotaledger/internal/policy"
)

// CreateAccount provisions the account row and one pool per kind, each
// seeded from policy with an onboarding-grant transaction so lifetime
// totals reconcile against the transaction log from day one.
func (r *Repo) CreateAccount(ctx context.Context, req model.CreateAccountRequest) (*model.Account, error) {
	if req.AccountID == "" || !model.ValidTier(req.Tier) {
		return nil, model.ErrInvalidArgument
	}
	if req.Level < 1 {
		req.Level = 1
	}
	now := r.now().UTC()

	acct := &model.Account{
		ID:        req.AccountID,
		Tier:      req.Tier,
		Level:     req.Level,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err := r.withTx(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO accounts (id, tier, level, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $4)`,
			acct.ID, acct.Tier, acct.Level, now,
		)
		if err != nil {
			if isUniqueViolation(err) {
				return model.ErrAccountExists
			}
			return normalizeErr(err)
		}

		for _, kind := range model.AllPoolKinds {
			allowance, unlimited := policy.AllowanceFor(kind, acct.Tier, acct.Level)
			start, end := policy.PeriodFor(kind, now)

			available := allowance
			if unlimited {
				available = 0
			}
			_, err := tx.Exec(ctx, `
				INSERT INTO pools (account_id, kind, available, used_this_period, used_last_period,
				                   total_earned_lifetime, total_spent_lifetime, period_start, period_end, is_unlimited)
				VALUES ($1, $2, $3, 0, 0, $4, 0, $5, $6, $7)`,
				acct.ID, kind, available, available, start, end, unlimited,
			)
			if err != nil {
				return normalizeErr(err)
			}

			if available > 0 {
				grant := &model.Transaction{
					ID:            uuid.NewString(),
					AccountID:     acct.ID,
					PoolKind:      kind,
					Delta:         available,
					BalanceBefore: 0,
					BalanceAfter:  available,
					Reason:        model.ReasonOnboardingGrant,
					CreatedAt:     now,
				}
				if err := insertTransaction(ctx, tx, grant); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return acct, nil
}

// ChangeTier records the new tier and level immediately. Pool balances are
// untouched: the new allowances take numeric effect at the next period
// reset, which recomputes available from current policy.
func (r *Repo) ChangeTier(ctx context.Context, accountID string, tier model.Tier, level int) error {
	if !model.ValidTier(tier) || level < 1 || level > 6 {
		return model.ErrInvalidArgument
	}
	return r.withTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE accounts SET tier = $2, level = $3, updated_at = $4 WHERE id = $1`,
			accountID, tier, level, r.now().UTC(),
		)
		if err != nil {
			return normalizeErr(err)
		}
		if tag.RowsAffected() == 0 {
			return model.ErrAccountNotFound
		}
		return nil
	})
}

// GetAccount loads tier and level for an account.
func (r *Repo) GetAccount(ctx context.Context, accountID string) (*model.Account, error) {
	var acct model.Account
	err := r.dbPool.QueryRow(ctx, `
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

// GetPools returns every pool of the account with its period window, for
// the balances readout.
func (r *Repo) GetPools(ctx context.Context, accountID string) ([]model.Pool, error) {
	rows, err := r.dbPool.Query(ctx, `
		SELECT account_id, kind, available, used_this_period, used_last_period,
		       total_earned_lifetime, total_spent_lifetime, period_start, period_end, is_unlimited
		FROM pools
		WHERE account_id = $1
		ORDER BY kind`,
		accountID,
	)
	if err != nil {
		return nil, normalizeErr(err)
	}
	defer rows.Close()

	var pools []model.Pool
	for rows.Next() {
		var p model.Pool
		if err := rows.Scan(&p.AccountID, &p.Kind, &p.Available, &p.UsedThisPeriod, &p.UsedLastPeriod,
			&p.TotalEarnedLifetime, &p.TotalSpentLifetime, &p.PeriodStart, &p.PeriodEnd, &p.IsUnlimited); err != nil {
			return nil, normalizeErr(err)
		}
		pools = append(pools, p)
	}
	if err := rows.Err(); err != nil {
		return nil, normalizeErr(err)
	}
	if len(pools) == 0 {
		if _, err := r.GetAccount(ctx, accountID); err != nil {
			return nil, err
		}
	}
	return pools, nil
}

// GetBalance returns the available balance of one pool, served from the
// Redis cache when warm. On a miss the balance is fetched from Postgres and
// written back without a TTL; movements and the worker invalidate it.
func (r *Repo) GetBalance(ctx context.Context, accountID string, kind model.PoolKind) (int64, error) {
	key := balanceCacheKey(accountID, kind)

	if r.redisClient != nil {
		cached, err := r.redisClient.Get(ctx, key).Result()
		if err == nil {
			if bal, perr := strconv.ParseInt(cached, 10, 64); perr == nil {
				return bal, nil
			}
		} else if !errors.Is(err, redis.Nil) {
			return 0, normalizeErr(err)
		}
	}

	var balance int64
	err := r.dbPool.QueryRow(ctx, `
		SELECT available FROM pools WHERE account_id = $1 AND kind = $2`,
		accountID, kind,
	).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, model.ErrPoolNotFound
		}
		return 0, normalizeErr(err)
	}

	if r.redisClient != nil {
		_ = r.redisClient.Set(ctx, key, balance, 0).Err()
	}
	return balance, nil
}
