package workflow

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/sitebooks/siteledger_backend/config"
	"github.com/sitebooks/siteledger_backend/models"
	"gorm.io/gorm"
)

// CheckFifoOrder verifies the waterfall invariant over a site's obligations:
// in the canonical walk order, no Settled obligation may follow one that is
// still owed money. An earlier row with nothing outstanding (zero-cost, or
// fully paid under a stale status label) blocks nothing. Pure; the caller's
// slice is left in its original order.
func CheckFifoOrder(obligations []models.Obligation) *models.FifoOrderViolationError {
	ordered := make([]models.Obligation, len(obligations))
	copy(ordered, obligations)
	models.SortObligations(ordered)
	for i := 1; i < len(ordered); i++ {
		if ordered[i].Status != models.SettlementStatusSettled {
			continue
		}
		for j := 0; j < i; j++ {
			if ordered[j].Status != models.SettlementStatusSettled && ordered[j].Outstanding().IsPositive() {
				return &models.FifoOrderViolationError{
					SiteId:        ordered[i].SiteId,
					SettledKind:   ordered[i].Kind,
					SettledID:     ordered[i].ID,
					EarlierKind:   ordered[j].Kind,
					EarlierID:     ordered[j].ID,
					EarlierStatus: ordered[j].Status,
				}
			}
		}
	}
	return nil
}

// IntegrityRunSummary counts the findings of one integrity sweep.
type IntegrityRunSummary struct {
	CorrelationId     string `json:"correlation_id"`
	OrphanObligations int    `json:"orphan_obligations"`
	PoolDiscrepancies int    `json:"pool_discrepancies"`
	FifoViolations    int    `json:"fifo_violations"`
	BatchConservation int    `json:"batch_conservation"`
	TotalFindings     int    `json:"total_findings"`
}

func writeAuditFinding(db *gorm.DB, logger *logrus.Logger, report *models.LedgerAuditReport) {
	if err := db.Create(report).Error; err != nil {
		config.LogError(logger, "integrityChecks.go", "RunLedgerIntegrityChecks", "CreateLedgerAuditReport", report, err)
	}
}

// RunLedgerIntegrityChecks sweeps one business for settlement and stock
// inconsistencies and writes a LedgerAuditReport row per finding. Findings
// are reported for manual remediation; nothing is modified.
func RunLedgerIntegrityChecks(ctx context.Context, db *gorm.DB, logger *logrus.Logger, businessId string) (*IntegrityRunSummary, error) {
	if logger == nil {
		logger = config.GetLogger()
	}
	if businessId == "" {
		return nil, &models.InvalidRequestError{Reason: "business is required"}
	}

	summary := &IntegrityRunSummary{CorrelationId: uuid.NewString()}
	db = db.WithContext(ctx)

	// Orphan obligations: paid amount with no application trail backing it.
	type orphanRow struct {
		Kind       models.ObligationKind
		ID         int
		SiteId     int
		AmountPaid decimal.Decimal
		Applied    decimal.Decimal
	}
	var orphans []orphanRow
	if err := db.Raw(`
		SELECT 'Allocation' AS kind, ar.id, ar.consumer_site_id AS site_id, ar.amount_paid,
		       COALESCE(SUM(pa.applied_amount), 0) AS applied
		FROM allocation_records ar
		LEFT JOIN payment_applications pa
		  ON pa.obligation_kind = 'Allocation' AND pa.obligation_id = ar.id AND pa.business_id = ar.business_id
		WHERE ar.business_id = ? AND ar.is_reversed = 0 AND ar.amount_paid > 0
		GROUP BY ar.id, ar.consumer_site_id, ar.amount_paid
		HAVING applied <> ar.amount_paid
		UNION ALL
		SELECT 'Pool' AS kind, pl.id, pl.beneficiary_site_id AS site_id, pl.amount_paid,
		       COALESCE(SUM(pa.applied_amount), 0) AS applied
		FROM pool_allocations pl
		LEFT JOIN payment_applications pa
		  ON pa.obligation_kind = 'Pool' AND pa.obligation_id = pl.id AND pa.business_id = pl.business_id
		WHERE pl.business_id = ? AND pl.is_reversed = 0 AND pl.amount_paid > 0
		GROUP BY pl.id, pl.beneficiary_site_id, pl.amount_paid
		HAVING applied <> pl.amount_paid`, businessId, businessId).Scan(&orphans).Error; err != nil {
		config.LogError(logger, "integrityChecks.go", "RunLedgerIntegrityChecks", "OrphanObligations", businessId, err)
		return nil, err
	}
	for _, o := range orphans {
		summary.OrphanObligations++
		writeAuditFinding(db, logger, &models.LedgerAuditReport{
			BusinessId:    businessId,
			CheckType:     models.AuditCheckOrphanObligation,
			EntityType:    string(o.Kind),
			EntityId:      o.ID,
			SiteId:        o.SiteId,
			Details:       fmt.Sprintf("amount_paid=%s has no matching payment application trail (applied=%s)", o.AmountPaid, o.Applied),
			CorrelationId: summary.CorrelationId,
		})
	}

	// Pool discrepancy: active shares no longer summing to the pool total.
	type poolRow struct {
		PoolId      int
		SiteId      int
		TotalAmount decimal.Decimal
		ShareSum    decimal.Decimal
	}
	var pools []poolRow
	if err := db.Raw(`
		SELECT p.id AS pool_id, p.funding_site_id AS site_id, p.total_amount,
		       COALESCE(SUM(pl.amount), 0) AS share_sum
		FROM shared_pool_entries p
		LEFT JOIN pool_allocations pl ON pl.pool_id = p.id AND pl.is_reversed = 0
		WHERE p.business_id = ?
		GROUP BY p.id, p.funding_site_id, p.total_amount
		HAVING share_sum <> p.total_amount`, businessId).Scan(&pools).Error; err != nil {
		config.LogError(logger, "integrityChecks.go", "RunLedgerIntegrityChecks", "PoolDiscrepancy", businessId, err)
		return nil, err
	}
	for _, p := range pools {
		summary.PoolDiscrepancies++
		writeAuditFinding(db, logger, &models.LedgerAuditReport{
			BusinessId:    businessId,
			CheckType:     models.AuditCheckPoolDiscrepancy,
			EntityType:    "SharedPoolEntry",
			EntityId:      p.PoolId,
			SiteId:        p.SiteId,
			Details:       fmt.Sprintf("active shares sum to %s, pool total is %s", p.ShareSum, p.TotalAmount),
			CorrelationId: summary.CorrelationId,
		})
	}

	// FIFO order, per site with any obligation.
	var siteIds []int
	if err := db.Raw(`
		SELECT DISTINCT consumer_site_id FROM allocation_records
		WHERE business_id = ? AND requires_settlement = 1 AND is_reversed = 0
		UNION
		SELECT DISTINCT beneficiary_site_id FROM pool_allocations
		WHERE business_id = ? AND is_reversed = 0`, businessId, businessId).Scan(&siteIds).Error; err != nil {
		config.LogError(logger, "integrityChecks.go", "RunLedgerIntegrityChecks", "ListObligationSites", businessId, err)
		return nil, err
	}
	for _, siteId := range siteIds {
		obligations, err := models.ListObligationsForSite(db, businessId, siteId, false, false)
		if err != nil {
			config.LogError(logger, "integrityChecks.go", "RunLedgerIntegrityChecks", "ListObligationsForSite", siteId, err)
			return nil, err
		}
		if violation := CheckFifoOrder(obligations); violation != nil {
			summary.FifoViolations++
			writeAuditFinding(db, logger, &models.LedgerAuditReport{
				BusinessId:    businessId,
				CheckType:     models.AuditCheckFifoOrder,
				EntityType:    string(violation.SettledKind),
				EntityId:      violation.SettledID,
				SiteId:        siteId,
				Details:       violation.Error(),
				CorrelationId: summary.CorrelationId,
			})
		}
	}

	// Batch conservation: consumed+remaining must reproduce the acquired
	// quantity, with consumed re-derived from active allocation rows.
	type batchRow struct {
		ID                int
		FundingSiteId     int
		TotalQuantity     decimal.Decimal
		RemainingQuantity decimal.Decimal
		Allocated         decimal.Decimal
	}
	var batches []batchRow
	if err := db.Raw(`
		SELECT b.id, b.funding_site_id, b.total_quantity, b.remaining_quantity,
		       COALESCE(SUM(ar.quantity), 0) AS allocated
		FROM cost_batches b
		LEFT JOIN allocation_records ar ON ar.batch_id = b.id AND ar.is_reversed = 0
		WHERE b.business_id = ?
		GROUP BY b.id, b.funding_site_id, b.total_quantity, b.remaining_quantity
		HAVING allocated + b.remaining_quantity <> b.total_quantity
		    OR b.remaining_quantity < 0
		    OR b.remaining_quantity > b.total_quantity`, businessId).Scan(&batches).Error; err != nil {
		config.LogError(logger, "integrityChecks.go", "RunLedgerIntegrityChecks", "BatchConservation", businessId, err)
		return nil, err
	}
	for _, b := range batches {
		summary.BatchConservation++
		writeAuditFinding(db, logger, &models.LedgerAuditReport{
			BusinessId:    businessId,
			CheckType:     models.AuditCheckBatchConservation,
			EntityType:    "CostBatch",
			EntityId:      b.ID,
			SiteId:        b.FundingSiteId,
			Details:       fmt.Sprintf("allocated=%s remaining=%s total=%s", b.Allocated, b.RemainingQuantity, b.TotalQuantity),
			CorrelationId: summary.CorrelationId,
		})
	}

	summary.TotalFindings = summary.OrphanObligations + summary.PoolDiscrepancies +
		summary.FifoViolations + summary.BatchConservation

	logger.WithFields(logrus.Fields{
		"business_id":    businessId,
		"correlation_id": summary.CorrelationId,
		"findings":       summary.TotalFindings,
	}).Info("ledger.integrity.completed")

	return summary, nil
}
