package model

import "errors"

var (
	// ErrInvalidAmount indicates a non-positive movement amount.
	ErrInvalidAmount = errors.New("amount must be positive")
	// ErrInvalidArgument indicates a malformed request field.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrInsufficientBalance indicates the pool cannot cover the requested debit.
	ErrInsufficientBalance = errors.New("insufficient balance")
	// ErrPoolNotFound indicates the account has no pool of the requested kind.
	ErrPoolNotFound = errors.New("pool not found")
	// ErrAccountNotFound indicates the account does not exist.
	ErrAccountNotFound = errors.New("account not found")
	// ErrAccountExists indicates onboarding was attempted twice for one identity.
	ErrAccountExists = errors.New("account already exists")
	// ErrCohortNotFound indicates the cohort does not exist.
	ErrCohortNotFound = errors.New("cohort not found")
	// ErrCohortNotOpen indicates the cohort is not accepting members.
	ErrCohortNotOpen = errors.New("cohort not open")
	// ErrCohortFull indicates every slot has been consumed.
	ErrCohortFull = errors.New("cohort full")
	// ErrCohortCityTaken indicates the city already has an open cohort.
	ErrCohortCityTaken = errors.New("city already has an open cohort")
	// ErrAlreadyMember indicates the account already holds an active slot.
	ErrAlreadyMember = errors.New("already a cohort member")
	// ErrLedgerPeriodMismatch indicates the entitlement ledger belongs to a
	// different accounting period than the caller expected.
	ErrLedgerPeriodMismatch = errors.New("entitlement ledger period mismatch")
	// ErrStorageUnavailable is the transient storage failure class. It is the
	// only error a caller may retry with the same relatedId and expect
	// idempotent convergence.
	ErrStorageUnavailable = errors.New("storage unavailable")
)

// ErrorCode maps a domain error to its wire code. Unknown errors map to
// INTERNAL so transport layers never leak driver details to callers.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrInvalidAmount):
		return "INVALID_AMOUNT"
	case errors.Is(err, ErrInvalidArgument):
		return "INVALID_ARGUMENT"
	case errors.Is(err, ErrInsufficientBalance):
		return "INSUFFICIENT_BALANCE"
	case errors.Is(err, ErrPoolNotFound):
		return "POOL_NOT_FOUND"
	case errors.Is(err, ErrAccountNotFound):
		return "ACCOUNT_NOT_FOUND"
	case errors.Is(err, ErrAccountExists):
		return "ACCOUNT_EXISTS"
	case errors.Is(err, ErrCohortNotFound):
		return "COHORT_NOT_FOUND"
	case errors.Is(err, ErrCohortNotOpen):
		return "COHORT_NOT_OPEN"
	case errors.Is(err, ErrCohortFull):
		return "COHORT_FULL"
	case errors.Is(err, ErrCohortCityTaken):
		return "COHORT_CITY_TAKEN"
	case errors.Is(err, ErrAlreadyMember):
		return "ALREADY_MEMBER"
	case errors.Is(err, ErrLedgerPeriodMismatch):
		return "LEDGER_PERIOD_MISMATCH"
	case errors.Is(err, ErrStorageUnavailable):
		return "STORAGE_UNAVAILABLE"
	default:
		return "INTERNAL"
	}
}
