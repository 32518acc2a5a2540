package workflow

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/sitebooks/siteledger_backend/config"
	"github.com/sitebooks/siteledger_backend/models"
	"github.com/sitebooks/siteledger_backend/utils"
	"gorm.io/gorm"
)

// DrawPlan is one intended draw from one batch, costed at plan time.
type DrawPlan struct {
	Batch     *models.CostBatch
	Quantity  decimal.Decimal
	UnitCost  decimal.Decimal
	TotalCost decimal.Decimal
}

// PlanFifoDraws selects which batches a consumption request draws from and
// how much each draw costs. The consumer's own batches are always preferred
// over shared ones regardless of date; within each tier, strictly oldest
// first. Own batches belonging to another site are never drawable. Draw cost
// is rounded to 2 decimals per draw, never at the batch level, so rounding
// error does not compound across many small draws.
//
// The returned quantities sum exactly to requestedQty, or the call fails as
// a whole: InvalidRequest for a non-positive request, InsufficientStock with
// the shortfall when the drawable batches cannot cover it.
func PlanFifoDraws(batches []*models.CostBatch, materialId int, brandId int, consumerSiteId int, requestedQty decimal.Decimal) ([]DrawPlan, error) {
	if requestedQty.IsZero() || requestedQty.IsNegative() {
		return nil, &models.InvalidRequestError{Reason: "requested quantity must be positive"}
	}

	ordered := make([]*models.CostBatch, 0, len(batches))
	for _, b := range batches {
		if b.Ownership == models.BatchOwnershipOwn && b.FundingSiteId != consumerSiteId {
			continue
		}
		ordered = append(ordered, b)
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		a, b := ordered[i], ordered[j]
		aTier, bTier := ownershipTier(a.Ownership), ownershipTier(b.Ownership)
		if aTier != bTier {
			return aTier < bTier
		}
		if !a.AcquisitionDate.Equal(b.AcquisitionDate) {
			return a.AcquisitionDate.Before(b.AcquisitionDate)
		}
		return a.ID < b.ID
	})

	remaining := requestedQty
	plans := make([]DrawPlan, 0, len(ordered))
	for _, batch := range ordered {
		if remaining.IsZero() {
			break
		}
		if batch.RemainingQuantity.IsZero() || batch.RemainingQuantity.IsNegative() {
			continue
		}
		qty := decimal.Min(remaining, batch.RemainingQuantity)
		unitCost := batch.EffectiveUnitCost()
		plans = append(plans, DrawPlan{
			Batch:     batch,
			Quantity:  qty,
			UnitCost:  unitCost,
			TotalCost: qty.Mul(unitCost).Round(2),
		})
		remaining = remaining.Sub(qty)
	}

	if remaining.IsPositive() {
		return nil, &models.InsufficientStockError{
			MaterialId: materialId,
			BrandId:    brandId,
			Requested:  requestedQty,
			Available:  requestedQty.Sub(remaining),
		}
	}
	return plans, nil
}

func ownershipTier(o models.BatchOwnership) int {
	if o == models.BatchOwnershipOwn {
		return 0
	}
	return 1
}

type AllocateStockInput struct {
	BusinessId     string
	MaterialId     int
	BrandId        int
	ConsumerSiteId int
	UsageDate      time.Time
	Quantity       decimal.Decimal
}

// AllocateStock posts one consumption event: it plans the FIFO draws, writes
// the allocation records and decrements the drawn batches, all inside the
// caller's transaction. Any failure leaves zero mutations behind (the caller
// rolls back). A draw against a shared batch by a site other than the funder
// becomes a payable obligation.
func AllocateStock(tx *gorm.DB, logger *logrus.Logger, input AllocateStockInput) ([]*models.AllocationRecord, error) {
	if logger == nil {
		logger = config.GetLogger()
	}
	if input.BusinessId == "" || input.MaterialId <= 0 || input.ConsumerSiteId <= 0 {
		return nil, &models.InvalidRequestError{Reason: "business, material and consumer site are required"}
	}

	if err := AcquireSitePostingLock(tx, input.BusinessId, input.ConsumerSiteId); err != nil {
		return nil, err
	}
	defer ReleaseSitePostingLock(tx, input.BusinessId, input.ConsumerSiteId)

	batches, err := models.ListOpenBatches(tx, input.BusinessId, input.MaterialId, input.BrandId, input.ConsumerSiteId, true)
	if err != nil {
		config.LogError(logger, "fifoAllocation.go", "AllocateStock", "ListOpenBatches", input, err)
		return nil, err
	}

	plans, err := PlanFifoDraws(batches, input.MaterialId, input.BrandId, input.ConsumerSiteId, input.Quantity)
	if err != nil {
		return nil, err
	}

	records := make([]*models.AllocationRecord, 0, len(plans))
	for _, plan := range plans {
		// Guarded decrement: the row is already locked, but the remaining >= qty
		// predicate still backstops any missed serialization. A failed guard
		// means the batch would have gone negative; abort the whole allocation.
		res := tx.Model(&models.CostBatch{}).
			Where("id = ? AND remaining_quantity >= ?", plan.Batch.ID, plan.Quantity).
			Update("remaining_quantity", gorm.Expr("remaining_quantity - ?", plan.Quantity))
		if res.Error != nil {
			config.LogError(logger, "fifoAllocation.go", "AllocateStock", "DecrementBatch", plan.Batch.ID, res.Error)
			return nil, res.Error
		}
		if res.RowsAffected != 1 {
			return nil, &models.ConcurrencyConflictError{
				Operation: "AllocateStock",
				Detail:    "batch remaining quantity changed underneath the allocation",
			}
		}

		allocationNumber, err := models.NextReferenceNumber(tx, input.BusinessId, models.NumberModuleAllocation, input.UsageDate)
		if err != nil {
			config.LogError(logger, "fifoAllocation.go", "AllocateStock", "NextReferenceNumber", input, err)
			return nil, err
		}

		requiresSettlement := plan.Batch.Ownership == models.BatchOwnershipShared &&
			plan.Batch.FundingSiteId != input.ConsumerSiteId
		// A free draw (zero-cost batch) has nothing to settle: paid equals
		// total from the start, so it is born Settled and never blocks the
		// waterfall walk.
		status := models.SettlementStatusUnsettled
		if plan.TotalCost.IsZero() {
			status = models.SettlementStatusSettled
		}
		record := &models.AllocationRecord{
			BusinessId:         input.BusinessId,
			AllocationNumber:   allocationNumber,
			BatchId:            plan.Batch.ID,
			ConsumerSiteId:     input.ConsumerSiteId,
			UsageDate:          input.UsageDate,
			Quantity:           plan.Quantity,
			UnitCostAtDraw:     plan.UnitCost,
			TotalCost:          plan.TotalCost,
			RequiresSettlement: &requiresSettlement,
			SettlementStatus:   status,
			AmountPaid:         decimal.Zero,
		}
		if err := tx.Create(record).Error; err != nil {
			config.LogError(logger, "fifoAllocation.go", "AllocateStock", "CreateAllocationRecord", record, err)
			return nil, err
		}
		records = append(records, record)
	}

	if config.StrictConservationChecks() {
		if err := verifyBatchConservation(tx, input.BusinessId, plans); err != nil {
			config.LogError(logger, "fifoAllocation.go", "AllocateStock", "VerifyBatchConservation", input, err)
			return nil, err
		}
	}

	InvalidateConsolidationCache(input.BusinessId, input.MaterialId)

	logger.WithFields(logrus.Fields{
		"business_id": input.BusinessId,
		"material_id": input.MaterialId,
		"site_id":     input.ConsumerSiteId,
		"usage_date":  input.UsageDate.Format("2006-01-02"),
		"quantity":    input.Quantity.String(),
		"draws":       len(records),
	}).Info("ledger.allocate.posted")

	return records, nil
}

// verifyBatchConservation re-reads the touched batches and re-derives their
// consumed quantity from active allocation rows.
func verifyBatchConservation(tx *gorm.DB, businessId string, plans []DrawPlan) error {
	batchIds := make([]int, 0, len(plans))
	for _, plan := range plans {
		batchIds = append(batchIds, plan.Batch.ID)
	}
	for _, batchId := range utils.UniqueSlice(batchIds) {
		var batch models.CostBatch
		if err := tx.Where("business_id = ? AND id = ?", businessId, batchId).First(&batch).Error; err != nil {
			return err
		}
		if batch.RemainingQuantity.IsNegative() || batch.RemainingQuantity.GreaterThan(batch.TotalQuantity) {
			return &models.ConcurrencyConflictError{
				Operation: "AllocateStock",
				Detail:    "batch remaining quantity out of range after decrement",
			}
		}

		var allocated decimal.Decimal
		row := tx.Model(&models.AllocationRecord{}).
			Where("business_id = ? AND batch_id = ? AND is_reversed = 0", businessId, batchId).
			Select("COALESCE(SUM(quantity), 0)")
		if err := row.Scan(&allocated).Error; err != nil {
			return err
		}
		if !allocated.Equal(batch.ConsumedQuantity()) {
			return &models.ConcurrencyConflictError{
				Operation: "AllocateStock",
				Detail:    "allocated quantity does not match batch consumption",
			}
		}
	}
	return nil
}
