package service

import (
	"context"

	"quotaledger/internal/model"
)

// Engine defines the business operations of the quota and ledger core.
// All transport layers (HTTP, NATS) and the scheduler depend on this
// interface, not on the concrete repo.
type Engine interface {
	// Transfer engine
	Debit(ctx context.Context, req model.DebitRequest) (*model.MovementResult, error)
	Credit(ctx context.Context, req model.CreditRequest) (*model.MovementResult, error)
	Transfer(ctx context.Context, req model.TransferRequest) (*model.TransferResult, error)

	// Accounts and pools
	CreateAccount(ctx context.Context, req model.CreateAccountRequest) (*model.Account, error)
	ChangeTier(ctx context.Context, accountID string, tier model.Tier, level int) error
	GetPools(ctx context.Context, accountID string) ([]model.Pool, error)
	GetBalance(ctx context.Context, accountID string, kind model.PoolKind) (int64, error)

	// Scarcity cohorts
	CreateCohort(ctx context.Context, req model.CreateCohortRequest) (*model.Cohort, error)
	OpenCohort(ctx context.Context, cohortID string) error
	ForceCloseCohort(ctx context.Context, cohortID string) error
	ConsumeSlot(ctx context.Context, cohortID, accountID string) (*model.SlotGrant, error)
	RevokeMembership(ctx context.Context, cohortID, accountID string) error

	// Entitlement ledger
	ConsumeEntitlement(ctx context.Context, req model.EntitlementConsumeRequest) (*model.EntitlementConsumeResult, error)
	ReverseEntitlement(ctx context.Context, req model.EntitlementConsumeRequest) (*model.EntitlementConsumeResult, error)

	// Period reset and operational log
	ResetDuePools(ctx context.Context) (*model.ResetSummary, error)
	RecordTransactionEvent(ctx context.Context, ev model.TransactionEvent) error
	RecordResetSummary(ctx context.Context, s model.ResetSummary) error
}
