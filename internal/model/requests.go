package model

// Request and response shapes shared by the HTTP and NATS transports.

type DebitRequest struct {
	AccountID string   `json:"account_id"`
	Pool      PoolKind `json:"pool"`
	Amount    int64    `json:"amount"`
	Reason    string   `json:"reason"`
	RelatedID string   `json:"related_id"`
}

type CreditRequest struct {
	AccountID string   `json:"account_id"`
	Pool      PoolKind `json:"pool"`
	Amount    int64    `json:"amount"`
	Reason    string   `json:"reason"`
	RelatedID string   `json:"related_id"`
}

type TransferRequest struct {
	FromAccountID string   `json:"from_account_id"`
	ToAccountID   string   `json:"to_account_id"`
	Pool          PoolKind `json:"pool"`
	Amount        int64    `json:"amount"`
	Reason        string   `json:"reason"`
	RelatedID     string   `json:"related_id"`
}

type MovementResult struct {
	Balance int64  `json:"balance"`
	TxID    string `json:"tx_id"`
}

type CreateAccountRequest struct {
	AccountID string `json:"account_id"`
	Tier      Tier   `json:"tier"`
	Level     int    `json:"level"`
}

type ChangeTierRequest struct {
	Tier  Tier `json:"tier"`
	Level int  `json:"level"`
}

type CreateCohortRequest struct {
	City              string `json:"city"`
	MaxSlots          int    `json:"max_slots"`
	PricingLockMonths int    `json:"pricing_lock_months"`
	FoundingBadge     string `json:"founding_badge"`
}

type ConsumeSlotRequest struct {
	CohortID  string `json:"cohort_id"`
	AccountID string `json:"account_id"`
}

type EntitlementConsumeRequest struct {
	AccountID string `json:"account_id"`
	IsPremium bool   `json:"is_premium"`
	EntityID  string `json:"entity_id"`
}

type EntitlementConsumeResult struct {
	Consumed  bool                 `json:"consumed"`
	Remaining EntitlementRemaining `json:"remaining"`
}
