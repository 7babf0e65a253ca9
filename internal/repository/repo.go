// Package repository is the storage engine: every balance, cohort slot and
// entitlement credit is mutated here and nowhere else, inside a Postgres
// transaction that locks exactly the rows it touches. Redis is a read-side
// cache only; it never holds authoritative state.
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/sethvargo/go-retry"

	"quotaledger/internal/model"
)

type Repo struct {
	dbPool      *pgxpool.Pool
	redisClient *redis.Client
	bus         MessageBus

	// now is swappable in tests; everything period-related flows through it.
	now func() time.Time
}

func NewRepo(db *pgxpool.Pool, rdb *redis.Client, bus MessageBus) *Repo {
	if bus == nil {
		bus = NopBus{}
	}
	return &Repo{
		dbPool:      db,
		redisClient: rdb,
		bus:         bus,
		now:         time.Now,
	}
}

// errReplayRace marks a movement that lost an insert race against a
// concurrent retry carrying the same related id. The transaction is doomed;
// re-running it hits the idempotent replay fast path instead.
var errReplayRace = errors.New("movement raced with idempotent replay")

// withTx runs fn inside a transaction and retries it when Postgres aborts
// the transaction with a serialization or deadlock failure. Retrying re-runs
// fn from scratch, so fn must not carry state across attempts.
func (r *Repo) withTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	backoff := retry.WithMaxRetries(3, retry.NewExponential(25*time.Millisecond))

	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		tx, err := r.dbPool.Begin(ctx)
		if err != nil {
			return normalizeErr(err)
		}
		defer func() { _ = tx.Rollback(ctx) }()

		if err := fn(tx); err != nil {
			if isRetryableTxErr(err) || errors.Is(err, errReplayRace) {
				return retry.RetryableError(err)
			}
			return err
		}

		if err := tx.Commit(ctx); err != nil {
			if isRetryableTxErr(err) {
				return retry.RetryableError(err)
			}
			return normalizeErr(err)
		}
		return nil
	})
}

// isRetryableTxErr reports whether the transaction was aborted for a reason
// that a fresh attempt can resolve (serialization failure, deadlock).
func isRetryableTxErr(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "40001" || pgErr.Code == "40P01"
	}
	return false
}

// normalizeErr folds connection-level failures into the transient
// ErrStorageUnavailable class so callers can distinguish "retry me" from
// domain denials. Domain errors pass through untouched.
func normalizeErr(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// Class 08: connection exceptions, 53: insufficient resources,
		// 57: operator intervention (shutdown).
		switch pgErr.Code[:2] {
		case "08", "53", "57":
			return fmt.Errorf("%w: %s", model.ErrStorageUnavailable, pgErr.Code)
		}
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return err
	}
	// Anything else from the driver at this level is a broken connection.
	return fmt.Errorf("%w: %v", model.ErrStorageUnavailable, err)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func balanceCacheKey(accountID string, kind model.PoolKind) string {
	return fmt.Sprintf("balance:%s:%s", accountID, kind)
}

// invalidateBalance drops the cached balance after a committed movement.
// Best effort: a failed DEL only means one stale read until the worker's
// event-driven invalidation catches up.
func (r *Repo) invalidateBalance(ctx context.Context, accountID string, kind model.PoolKind) {
	if r.redisClient == nil {
		return
	}
	if err := r.redisClient.Del(ctx, balanceCacheKey(accountID, kind)).Err(); err != nil {
		slog.Warn("repository: cache invalidation failed",
			"account_id", accountID, "pool", kind, "error", err)
	}
}

// publish serializes and publishes a bus event. Publication happens after
// commit; a lost event degrades the audit mirror, never the ledger itself.
func (r *Repo) publish(topic string, event any) {
	data, err := json.Marshal(event)
	if err != nil {
		slog.Error("repository: event marshal failed", "topic", topic, "error", err)
		return
	}
	if err := r.bus.Publish(topic, data); err != nil {
		slog.Warn("repository: event publish failed", "topic", topic, "error", err)
	}
}
