package workflow

import (
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/sitebooks/siteledger_backend/config"
	"github.com/sitebooks/siteledger_backend/models"
	"gorm.io/gorm"
)

// ReplayPayment is the payment shape the pure replay works on: amount plus
// the identity used to emit fresh application rows.
type ReplayPayment struct {
	PaymentId int
	Amount    decimal.Decimal
}

// ReplayResult is the full derived state after replaying every payment of a
// site against its obligations from scratch.
type ReplayResult struct {
	// Plans holds one waterfall plan per payment, in replay order.
	Plans map[int]*WaterfallPlan
	// Obligations carries the final paid amounts and statuses.
	Obligations []models.Obligation
}

// ReplayWaterfall rebuilds the settlement state of a set of obligations by
// running every payment through the waterfall in order, starting from zero
// paid. Replaying the same payments over the same obligations always lands
// on the same state, so a rebuild after data repair converges instead of
// drifting.
func ReplayWaterfall(obligations []models.Obligation, payments []ReplayPayment) (*ReplayResult, error) {
	for i := range obligations {
		obligations[i].AmountPaid = decimal.Zero
		obligations[i].Status = models.SettlementStatusUnsettled
		// A zero-total obligation is fully paid from the start; leaving it
		// Unsettled would block every later obligation in the walk order.
		if obligations[i].TotalAmount.IsZero() {
			obligations[i].Status = models.SettlementStatusSettled
		}
	}
	models.SortObligations(obligations)

	result := &ReplayResult{Plans: make(map[int]*WaterfallPlan, len(payments))}
	for _, p := range payments {
		plan, err := PlanWaterfall(obligations, p.Amount)
		if err != nil {
			return nil, err
		}
		result.Plans[p.PaymentId] = plan
	}
	result.Obligations = obligations
	return result, nil
}

// RebuildWaterfall throws away the derived settlement state of one site
// (paid amounts, statuses, application rows) and re-derives it from the
// payment history. Payments are the source of truth; everything downstream
// of them is rebuildable. New payments or allocations landing mid-rebuild
// abort it with a conflict rather than racing.
func RebuildWaterfall(tx *gorm.DB, logger *logrus.Logger, businessId string, siteId int) error {
	if logger == nil {
		logger = config.GetLogger()
	}
	if businessId == "" || siteId <= 0 {
		return &models.InvalidRequestError{Reason: "business and site are required"}
	}

	if err := acquireWaterfallRebuildLock(tx, businessId, siteId); err != nil {
		return err
	}
	defer releaseWaterfallRebuildLock(tx, businessId, siteId)

	if err := AcquireSitePostingLock(tx, businessId, siteId); err != nil {
		return err
	}
	defer ReleaseSitePostingLock(tx, businessId, siteId)

	logger.WithFields(logrus.Fields{
		"business_id": businessId,
		"site_id":     siteId,
	}).Info("ledger.rebuild.start")

	payments, err := models.ListPaymentsForSite(tx, businessId, siteId)
	if err != nil {
		config.LogError(logger, "waterfallRebuild.go", "RebuildWaterfall", "ListPaymentsForSite", siteId, err)
		return err
	}
	paymentCount := len(payments)
	maxPaymentId := 0
	if paymentCount > 0 {
		maxPaymentId = payments[paymentCount-1].ID
	}

	if err := models.ResetObligationsForSite(tx, businessId, siteId); err != nil {
		config.LogError(logger, "waterfallRebuild.go", "RebuildWaterfall", "ResetObligationsForSite", siteId, err)
		return err
	}
	if len(payments) > 0 {
		paymentIds := make([]int, 0, len(payments))
		for _, p := range payments {
			paymentIds = append(paymentIds, p.ID)
		}
		if err := tx.
			Where("business_id = ? AND payment_id IN ?", businessId, paymentIds).
			Delete(&models.PaymentApplication{}).Error; err != nil {
			config.LogError(logger, "waterfallRebuild.go", "RebuildWaterfall", "DeletePaymentApplications", siteId, err)
			return err
		}
	}

	obligations, err := models.ListObligationsForSite(tx, businessId, siteId, false, true)
	if err != nil {
		config.LogError(logger, "waterfallRebuild.go", "RebuildWaterfall", "ListObligationsForSite", siteId, err)
		return err
	}

	replays := make([]ReplayPayment, 0, len(payments))
	for _, p := range payments {
		replays = append(replays, ReplayPayment{PaymentId: p.ID, Amount: p.Amount})
	}
	result, err := ReplayWaterfall(obligations, replays)
	if err != nil {
		return err
	}

	for _, p := range payments {
		plan := result.Plans[p.ID]
		for _, app := range plan.Applications {
			application := &models.PaymentApplication{
				BusinessId:     businessId,
				PaymentId:      p.ID,
				ObligationKind: app.Kind,
				ObligationId:   app.ObligationId,
				AppliedAmount:  app.AppliedAmount,
			}
			if err := tx.Create(application).Error; err != nil {
				config.LogError(logger, "waterfallRebuild.go", "RebuildWaterfall", "CreatePaymentApplication", application, err)
				return err
			}
		}
		if !p.UnappliedAmount.Equal(plan.Unapplied) {
			if err := tx.Model(&models.Payment{}).
				Where("business_id = ? AND id = ?", businessId, p.ID).
				Update("unapplied_amount", plan.Unapplied).Error; err != nil {
				config.LogError(logger, "waterfallRebuild.go", "RebuildWaterfall", "UpdateUnappliedAmount", p.ID, err)
				return err
			}
		}
	}

	for _, o := range result.Obligations {
		if err := models.UpdateObligationSettlement(tx, businessId, o.Kind, o.ID, o.AmountPaid, o.Status); err != nil {
			config.LogError(logger, "waterfallRebuild.go", "RebuildWaterfall", "UpdateObligationSettlement", o, err)
			return err
		}
	}

	// Re-check the payment set: a payment posted after the snapshot but before
	// our locks means someone skipped the posting lock path.
	after, err := models.ListPaymentsForSite(tx, businessId, siteId)
	if err != nil {
		return err
	}
	afterMax := 0
	if len(after) > 0 {
		afterMax = after[len(after)-1].ID
	}
	if len(after) != paymentCount || afterMax != maxPaymentId {
		return &models.ConcurrencyConflictError{
			Operation: "RebuildWaterfall",
			Detail:    "payment history changed during rebuild",
		}
	}

	if violation := CheckFifoOrder(result.Obligations); violation != nil {
		config.LogError(logger, "waterfallRebuild.go", "RebuildWaterfall", "CheckFifoOrder", siteId, violation)
		return violation
	}

	logger.WithFields(logrus.Fields{
		"business_id": businessId,
		"site_id":     siteId,
		"payments":    paymentCount,
		"obligations": len(result.Obligations),
	}).Info("ledger.rebuild.end")

	return nil
}
