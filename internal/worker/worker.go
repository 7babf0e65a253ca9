// Package worker maintains the operational log: it consumes committed
// ledger events off the bus and mirrors them into the audit tables. The
// ledger itself never depends on the worker being up.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"

	"quotaledger/internal/model"
	"quotaledger/internal/service"
)

// AuditWorker listens on the transaction and reset topics and syncs them
// into Postgres.
type AuditWorker struct {
	svc      service.Engine
	natsConn *nats.Conn
}

func NewAuditWorker(svc service.Engine, nc *nats.Conn) *AuditWorker {
	return &AuditWorker{
		svc:      svc,
		natsConn: nc,
	}
}

// Run subscribes to the audit topics and blocks until ctx is cancelled.
func (w *AuditWorker) Run(ctx context.Context) error {
	// QueueSubscribe ensures that with several API instances running, each
	// event is recorded by exactly one worker in the group.
	txSub, err := w.natsConn.QueueSubscribe(model.TopicTransactionCreated, "audit_group", func(m *nats.Msg) {
		var event model.TransactionEvent
		if err := json.Unmarshal(m.Data, &event); err != nil {
			slog.Error("worker: failed to unmarshal transaction event", "error", err)
			return
		}

		if err := w.svc.RecordTransactionEvent(ctx, event); err != nil {
			slog.Error("worker: failed to mirror transaction",
				"account_id", event.AccountID,
				"tx_id", event.TxID,
				"error", err,
			)
			return
		}

		slog.Info("worker: transaction mirrored",
			"account_id", event.AccountID,
			"tx_id", event.TxID,
		)
	})
	if err != nil {
		return fmt.Errorf("worker: failed to subscribe to NATS: %w", err)
	}

	resetSub, err := w.natsConn.QueueSubscribe(model.TopicPeriodResetDone, "audit_group", func(m *nats.Msg) {
		var summary model.ResetSummary
		if err := json.Unmarshal(m.Data, &summary); err != nil {
			slog.Error("worker: failed to unmarshal reset summary", "error", err)
			return
		}
		if err := w.svc.RecordResetSummary(ctx, summary); err != nil {
			slog.Error("worker: failed to record reset summary",
				"run_id", summary.RunID, "error", err)
			return
		}
		slog.Info("worker: reset summary recorded",
			"run_id", summary.RunID,
			"scanned", summary.Scanned,
			"reset", summary.Reset,
			"failed", summary.Failed,
		)
	})
	if err != nil {
		_ = txSub.Drain()
		return fmt.Errorf("worker: failed to subscribe to NATS: %w", err)
	}

	slog.Info("Audit worker is running")

	// Wait for shutdown signal.
	<-ctx.Done()

	slog.Info("Worker received shutdown signal, draining subscriptions...")
	// Close subscriptions gracefully, waiting for current processing to complete.
	_ = txSub.Drain()
	return resetSub.Drain()
}

// Start implements the infrastructure.Server interface.
func (w *AuditWorker) Start(ctx context.Context) error {
	return w.Run(ctx)
}

// Stop implements the infrastructure.Server interface (no-op, shutdown is via ctx).
func (w *AuditWorker) Stop(ctx context.Context) error {
	return nil
}
