package models

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Ledger error taxonomy. Caller errors (InvalidRequest, SettlementLocked) are
// surfaced immediately; ConcurrencyConflict is retryable with the same input;
// FifoOrderViolation is reported for manual remediation, never auto-corrected.

type InvalidRequestError struct {
	Reason string
}

func (e *InvalidRequestError) Error() string {
	return "invalid request: " + e.Reason
}

type InsufficientStockError struct {
	MaterialId int
	BrandId    int
	Requested  decimal.Decimal
	Available  decimal.Decimal
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for material_id=%d brand_id=%d requested=%s available=%s shortfall=%s",
		e.MaterialId, e.BrandId, e.Requested, e.Available, e.Shortfall())
}

func (e *InsufficientStockError) Shortfall() decimal.Decimal {
	return e.Requested.Sub(e.Available)
}

type SettlementLockedError struct {
	Kind   ObligationKind
	ID     int
	Status SettlementStatus
}

func (e *SettlementLockedError) Error() string {
	return fmt.Sprintf("settlement locked: %s obligation id=%d is %s", e.Kind, e.ID, e.Status)
}

type FifoOrderViolationError struct {
	SiteId        int
	SettledKind   ObligationKind
	SettledID     int
	EarlierKind   ObligationKind
	EarlierID     int
	EarlierStatus SettlementStatus
}

func (e *FifoOrderViolationError) Error() string {
	return fmt.Sprintf("fifo order violation for site_id=%d: %s obligation id=%d is Settled while earlier %s obligation id=%d is %s",
		e.SiteId, e.SettledKind, e.SettledID, e.EarlierKind, e.EarlierID, e.EarlierStatus)
}

type ConcurrencyConflictError struct {
	Operation string
	Detail    string
}

func (e *ConcurrencyConflictError) Error() string {
	return fmt.Sprintf("concurrency conflict in %s: %s", e.Operation, e.Detail)
}
