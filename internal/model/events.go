package model

import "time"

// Bus topics. Transports and the worker must agree on these.
const (
	TopicTransactionCreated = "transactions.created"
	TopicPeriodResetDone    = "periodreset.completed"
	TopicCommandDebit       = "commands.debit"
	TopicCommandCredit      = "commands.credit"
)

// TransactionEvent is published after a ledger movement commits. The worker
// mirrors it into the audit table and drops the stale cache entry on every
// instance.
type TransactionEvent struct {
	TxID         string    `json:"tx_id"`
	AccountID    string    `json:"account_id"`
	PoolKind     PoolKind  `json:"pool_kind"`
	Delta        int64     `json:"delta"`
	BalanceAfter int64     `json:"balance_after"`
	Reason       string    `json:"reason"`
	RelatedID    string    `json:"related_id,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// ResetSummary is emitted once per scheduler run.
type ResetSummary struct {
	RunID      string    `json:"run_id"`
	Scanned    int       `json:"scanned"`
	Reset      int       `json:"reset"`
	Failed     int       `json:"failed"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}
