package workflow

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/sitebooks/siteledger_backend/config"
	"github.com/sitebooks/siteledger_backend/models"
	"github.com/sitebooks/siteledger_backend/utils"
	"gorm.io/gorm"
)

// checkReversalAllowed is the settlement-lock guard shared by both reversal
// paths. A row that any payment has touched, or whose status moved past
// Unsettled, is immutable until the site's waterfall is rebuilt.
func checkReversalAllowed(kind models.ObligationKind, id int, status models.SettlementStatus, amountPaid decimal.Decimal) error {
	if status != models.SettlementStatusUnsettled || amountPaid.IsPositive() {
		return &models.SettlementLockedError{
			Kind:   kind,
			ID:     id,
			Status: status,
		}
	}
	return nil
}

// redistributionShares collects the split inputs for re-running the splitter
// after a share reversal. Refuses when no active beneficiary remains or when
// any remaining share has already absorbed payment, since re-splitting would
// rewrite history the waterfall already applied.
func redistributionShares(remaining []*models.PoolAllocation) ([]ShareInput, error) {
	if len(remaining) == 0 {
		return nil, &models.InvalidRequestError{Reason: "cannot redistribute: no active beneficiaries remain"}
	}
	beneficiaries := make([]ShareInput, 0, len(remaining))
	for _, r := range remaining {
		if r.AmountPaid.IsPositive() {
			return nil, &models.SettlementLockedError{
				Kind:   models.ObligationKindPool,
				ID:     r.ID,
				Status: r.SettlementStatus,
			}
		}
		beneficiaries = append(beneficiaries, ShareInput{SiteId: r.BeneficiarySiteId, Weight: r.Weight})
	}
	return beneficiaries, nil
}

// ReverseAllocation tombstones one allocation record and restores its
// quantity to the source batch. Only Unsettled allocations can be reversed:
// any payment against the row locks it, and the caller must rebuild the
// site's waterfall first if they really need the reversal.
func ReverseAllocation(tx *gorm.DB, logger *logrus.Logger, businessId string, allocationId int, reason string) (*models.AllocationRecord, error) {
	if logger == nil {
		logger = config.GetLogger()
	}
	if businessId == "" || allocationId <= 0 {
		return nil, &models.InvalidRequestError{Reason: "business and allocation are required"}
	}
	if reason == "" {
		return nil, &models.InvalidRequestError{Reason: "reversal reason is required"}
	}

	record, err := models.GetAllocationForUpdate(tx, businessId, allocationId)
	if err != nil {
		return nil, err
	}
	if record.IsReversed {
		return nil, utils.ErrorDuplicateRequest
	}
	if err := checkReversalAllowed(models.ObligationKindAllocation, record.ID, record.SettlementStatus, record.AmountPaid); err != nil {
		return nil, err
	}

	if err := AcquireSitePostingLock(tx, businessId, record.ConsumerSiteId); err != nil {
		return nil, err
	}
	defer ReleaseSitePostingLock(tx, businessId, record.ConsumerSiteId)

	batch, err := models.GetCostBatchForUpdate(tx, businessId, record.BatchId)
	if err != nil {
		return nil, err
	}

	// Guarded restore: the batch must be able to take the quantity back
	// without overshooting what was ever acquired.
	res := tx.Model(&models.CostBatch{}).
		Where("id = ? AND remaining_quantity + ? <= total_quantity", batch.ID, record.Quantity).
		Update("remaining_quantity", gorm.Expr("remaining_quantity + ?", record.Quantity))
	if res.Error != nil {
		config.LogError(logger, "reversal.go", "ReverseAllocation", "RestoreBatchQuantity", batch.ID, res.Error)
		return nil, res.Error
	}
	if res.RowsAffected != 1 {
		return nil, &models.ConcurrencyConflictError{
			Operation: "ReverseAllocation",
			Detail:    "restoring the quantity would exceed the batch's acquired total",
		}
	}

	now := time.Now()
	if err := tx.Model(record).Updates(map[string]interface{}{
		"is_reversed":     true,
		"reversed_at":     now,
		"reversal_reason": reason,
	}).Error; err != nil {
		config.LogError(logger, "reversal.go", "ReverseAllocation", "TombstoneAllocation", record.ID, err)
		return nil, err
	}
	record.IsReversed = true
	record.ReversedAt = &now
	record.ReversalReason = &reason

	if err := tx.Create(&models.LedgerAuditReport{
		BusinessId:    businessId,
		CheckType:     models.AuditCheckAllocationReversal,
		EntityType:    "AllocationRecord",
		EntityId:      record.ID,
		SiteId:        record.ConsumerSiteId,
		Details:       reason,
		CorrelationId: record.AllocationNumber,
	}).Error; err != nil {
		config.LogError(logger, "reversal.go", "ReverseAllocation", "CreateLedgerAuditReport", record.ID, err)
		return nil, err
	}

	InvalidateConsolidationCache(businessId, batch.MaterialId)

	logger.WithFields(logrus.Fields{
		"business_id":       businessId,
		"allocation_id":     record.ID,
		"allocation_number": record.AllocationNumber,
		"batch_id":          batch.ID,
		"quantity":          record.Quantity.String(),
	}).Info("ledger.allocation.reversed")

	return record, nil
}

// ReversePoolAllocation tombstones one beneficiary's share of a pool. With
// redistribute set, the share is re-split across the remaining active
// beneficiaries by their original weights, but only when none of them has
// been paid against yet, because re-splitting under a partial payment would
// rewrite history the waterfall already applied.
func ReversePoolAllocation(tx *gorm.DB, logger *logrus.Logger, businessId string, poolAllocationId int, reason string, redistribute bool) error {
	if logger == nil {
		logger = config.GetLogger()
	}
	if businessId == "" || poolAllocationId <= 0 {
		return &models.InvalidRequestError{Reason: "business and pool allocation are required"}
	}
	if reason == "" {
		return &models.InvalidRequestError{Reason: "reversal reason is required"}
	}

	share, err := models.GetPoolAllocationForUpdate(tx, businessId, poolAllocationId)
	if err != nil {
		return err
	}
	if share.IsReversed {
		return utils.ErrorDuplicateRequest
	}
	if err := checkReversalAllowed(models.ObligationKindPool, share.ID, share.SettlementStatus, share.AmountPaid); err != nil {
		return err
	}

	pool, err := models.GetSharedPoolForUpdate(tx, businessId, share.PoolId)
	if err != nil {
		return err
	}

	if err := AcquireSitePostingLock(tx, businessId, share.BeneficiarySiteId); err != nil {
		return err
	}
	defer ReleaseSitePostingLock(tx, businessId, share.BeneficiarySiteId)

	now := time.Now()
	if err := tx.Model(share).Updates(map[string]interface{}{
		"is_reversed":     true,
		"reversed_at":     now,
		"reversal_reason": reason,
	}).Error; err != nil {
		config.LogError(logger, "reversal.go", "ReversePoolAllocation", "TombstoneShare", share.ID, err)
		return err
	}

	if redistribute {
		remaining, err := models.ListPoolAllocations(tx, businessId, pool.ID, true)
		if err != nil {
			config.LogError(logger, "reversal.go", "ReversePoolAllocation", "ListPoolAllocations", pool.ID, err)
			return err
		}
		beneficiaries, err := redistributionShares(remaining)
		if err != nil {
			return err
		}
		results, err := ComputeSplit(pool.TotalAmount, beneficiaries)
		if err != nil {
			return err
		}
		for i, r := range remaining {
			// A share that was born Settled at zero can pick up a real amount
			// here, so the status is re-derived alongside it.
			status := models.SettlementStatusUnsettled
			if results[i].Amount.IsZero() {
				status = models.SettlementStatusSettled
			}
			if err := tx.Model(r).Updates(map[string]interface{}{
				"percentage":        results[i].Percentage,
				"amount":            results[i].Amount,
				"settlement_status": status,
			}).Error; err != nil {
				config.LogError(logger, "reversal.go", "ReversePoolAllocation", "UpdateShare", r.ID, err)
				return err
			}
		}
	}

	detail := reason
	if redistribute {
		detail = reason + " (share redistributed to remaining beneficiaries)"
	}
	if err := tx.Create(&models.LedgerAuditReport{
		BusinessId:    businessId,
		CheckType:     models.AuditCheckPoolReversal,
		EntityType:    "PoolAllocation",
		EntityId:      share.ID,
		SiteId:        share.BeneficiarySiteId,
		Details:       detail,
		CorrelationId: pool.PoolNumber,
	}).Error; err != nil {
		config.LogError(logger, "reversal.go", "ReversePoolAllocation", "CreateLedgerAuditReport", share.ID, err)
		return err
	}

	if pool.MaterialId > 0 {
		InvalidateConsolidationCache(businessId, pool.MaterialId)
	}

	logger.WithFields(logrus.Fields{
		"business_id":        businessId,
		"pool_allocation_id": share.ID,
		"pool_number":        pool.PoolNumber,
		"site_id":            share.BeneficiarySiteId,
		"redistributed":      redistribute,
		"amount":             share.Amount.String(),
	}).Info("ledger.pool_share.reversed")

	return nil
}
