package models

// BatchOwnership says who may consume a cost batch.
// Own batches belong to exactly one site and never create settlement
// obligations. Shared batches are funded by one site but consumable by any
// site in the business; cross-site draws become payable obligations.
type BatchOwnership string

const (
	BatchOwnershipOwn    BatchOwnership = "Own"
	BatchOwnershipShared BatchOwnership = "Shared"
)

// PricingMode controls how a batch's effective per-unit cost is derived.
type PricingMode string

const (
	PricingModePerUnit   PricingMode = "PerUnit"
	PricingModePerWeight PricingMode = "PerWeight"
)

// SettlementStatus is monotonic: Unsettled -> PartiallyPaid -> Settled.
// Only an explicit reversal can take an obligation out of the waterfall.
type SettlementStatus string

const (
	SettlementStatusUnsettled     SettlementStatus = "Unsettled"
	SettlementStatusPartiallyPaid SettlementStatus = "PartiallyPaid"
	SettlementStatusSettled       SettlementStatus = "Settled"
)

// ObligationKind distinguishes the two payable shapes the waterfall engine
// walks: batch-derived allocation records and pool-derived shares.
type ObligationKind string

const (
	ObligationKindAllocation ObligationKind = "Allocation"
	ObligationKindPool       ObligationKind = "Pool"
)

// NumberSeriesModule keys the per-fiscal-period reference number sequences.
type NumberSeriesModule string

const (
	NumberModuleBatch      NumberSeriesModule = "BATCH"
	NumberModuleAllocation NumberSeriesModule = "ALLOC"
	NumberModulePool       NumberSeriesModule = "POOL"
	NumberModulePayment    NumberSeriesModule = "PAY"
)

// Audit check types written to ledger_audit_reports.
const (
	AuditCheckOrphanObligation   = "ORPHAN_OBLIGATION"
	AuditCheckPoolDiscrepancy    = "POOL_DISCREPANCY"
	AuditCheckFifoOrder          = "FIFO_ORDER"
	AuditCheckBatchConservation  = "BATCH_CONSERVATION"
	AuditCheckAllocationReversal = "ALLOCATION_REVERSAL"
	AuditCheckPoolReversal       = "POOL_REVERSAL"
)
