package nats

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/nats-io/nats.go"

	"quotaledger/internal/model"
	"quotaledger/internal/service"
)

// Handler subscribes to NATS command topics and delegates to the engine.
// Commands are fire-and-forget from the caller's side; results surface in
// the transaction log, not in a reply.
type Handler struct {
	svc  service.Engine
	nc   *nats.Conn
	subs []*nats.Subscription
}

func NewHandler(svc service.Engine, nc *nats.Conn) *Handler {
	return &Handler{svc: svc, nc: nc}
}

// Start subscribes to command topics and blocks until ctx is cancelled
// (graceful shutdown).
func (h *Handler) Start(ctx context.Context) error {
	s1, err := h.nc.QueueSubscribe(model.TopicCommandDebit, "ledger_group", func(m *nats.Msg) {
		var req model.DebitRequest
		if err := json.Unmarshal(m.Data, &req); err != nil {
			slog.Error("nats: failed to unmarshal debit command", "error", err)
			return
		}
		if _, err := h.svc.Debit(ctx, req); err != nil {
			slog.Error("nats: debit failed", "error", err, "account_id", req.AccountID)
		}
	})
	if err != nil {
		return err
	}
	h.subs = append(h.subs, s1)

	s2, err := h.nc.QueueSubscribe(model.TopicCommandCredit, "ledger_group", func(m *nats.Msg) {
		var req model.CreditRequest
		if err := json.Unmarshal(m.Data, &req); err != nil {
			slog.Error("nats: failed to unmarshal credit command", "error", err)
			return
		}
		if _, err := h.svc.Credit(ctx, req); err != nil {
			slog.Error("nats: credit failed", "error", err, "account_id", req.AccountID)
		}
	})
	if err != nil {
		return err
	}
	h.subs = append(h.subs, s2)

	slog.Info("NATS command handler is running")

	// Block until context is cancelled.
	<-ctx.Done()
	slog.Info("NATS command handler shutting down, draining subscriptions...")

	for _, s := range h.subs {
		_ = s.Drain()
	}
	return nil
}

func (h *Handler) Stop(ctx context.Context) error {
	for _, s := range h.subs {
		_ = s.Unsubscribe()
	}
	return nil
}
