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

// WaterfallApplication is one planned hit of a payment against an obligation.
type WaterfallApplication struct {
	Kind          models.ObligationKind
	ObligationId  int
	AppliedAmount decimal.Decimal
	NewAmountPaid decimal.Decimal
	NewStatus     models.SettlementStatus
}

// WaterfallPlan is the outcome of walking a payment across a site's
// obligations. Unapplied is the credit left when the payment exceeded what
// was outstanding. That is a structured result, not an error.
type WaterfallPlan struct {
	Applications []WaterfallApplication
	Unapplied    decimal.Decimal
}

// PlanWaterfall walks the obligations oldest-first and applies amount until
// it runs out. Each obligation absorbs the lesser of the payment remainder
// and its own outstanding balance; an obligation becomes Settled only when
// its paid amount reaches its total exactly, otherwise PartiallyPaid. The
// input slice is re-sorted into the canonical walk order.
func PlanWaterfall(obligations []models.Obligation, amount decimal.Decimal) (*WaterfallPlan, error) {
	if amount.IsZero() || amount.IsNegative() {
		return nil, &models.InvalidRequestError{Reason: "payment amount must be positive"}
	}

	models.SortObligations(obligations)

	// An obligation whose paid amount already matches its total is settled,
	// whether or not a payment ever touched it. Zero-cost draws are born that
	// way (paid 0 of 0) and must never hold up later obligations.
	for i := range obligations {
		o := &obligations[i]
		if o.Status != models.SettlementStatusSettled && o.AmountPaid.Equal(o.TotalAmount) {
			o.Status = models.SettlementStatusSettled
		}
	}

	plan := &WaterfallPlan{}
	remaining := amount
	for i := range obligations {
		if remaining.IsZero() {
			break
		}
		o := &obligations[i]
		outstanding := o.Outstanding()
		if outstanding.IsZero() || outstanding.IsNegative() {
			continue
		}

		applied := decimal.Min(remaining, outstanding)
		newPaid := o.AmountPaid.Add(applied)
		status := models.SettlementStatusPartiallyPaid
		if newPaid.Equal(o.TotalAmount) {
			status = models.SettlementStatusSettled
		}

		plan.Applications = append(plan.Applications, WaterfallApplication{
			Kind:          o.Kind,
			ObligationId:  o.ID,
			AppliedAmount: applied,
			NewAmountPaid: newPaid,
			NewStatus:     status,
		})
		o.AmountPaid = newPaid
		o.Status = status
		remaining = remaining.Sub(applied)
	}
	plan.Unapplied = remaining
	return plan, nil
}

type ApplyPaymentInput struct {
	BusinessId  string
	PayerSiteId int
	PaymentDate time.Time
	Amount      decimal.Decimal
	Notes       string
	// RequestKey makes the call idempotent: a retry with the same key is
	// rejected as a duplicate instead of paying twice. Empty disables the
	// check (internal callers such as the rebuild replay).
	RequestKey string
}

const applyPaymentHandler = "ApplyPayment"

// ApplyPayment records a payment from a site and settles its obligations
// oldest-unpaid-first, all inside the caller's transaction. Overpayment is
// reported in the returned plan's Unapplied and stored on the payment row.
func ApplyPayment(tx *gorm.DB, logger *logrus.Logger, input ApplyPaymentInput) (*models.Payment, *WaterfallPlan, error) {
	if logger == nil {
		logger = config.GetLogger()
	}
	if input.BusinessId == "" || input.PayerSiteId <= 0 {
		return nil, nil, &models.InvalidRequestError{Reason: "business and payer site are required"}
	}
	if input.Amount.IsZero() || input.Amount.IsNegative() {
		return nil, nil, &models.InvalidRequestError{Reason: "payment amount must be positive"}
	}

	if input.RequestKey != "" {
		key := &models.IdempotencyKey{
			BusinessId:  input.BusinessId,
			HandlerName: applyPaymentHandler,
			RequestKey:  input.RequestKey,
			Status:      models.IdempotencyStatusStarted,
		}
		if err := tx.Create(key).Error; err != nil {
			if models.IsDuplicateKeyError(err) {
				return nil, nil, utils.ErrorDuplicateRequest
			}
			config.LogError(logger, "settlementWaterfall.go", "ApplyPayment", "CreateIdempotencyKey", input.RequestKey, err)
			return nil, nil, err
		}
		defer func() {
			// The row's final status rides on the caller's commit/rollback, so
			// a failed payment never blocks the retry.
			tx.Model(key).Update("status", models.IdempotencyStatusSucceeded)
		}()
	}

	if err := AcquireSitePostingLock(tx, input.BusinessId, input.PayerSiteId); err != nil {
		return nil, nil, err
	}
	defer ReleaseSitePostingLock(tx, input.BusinessId, input.PayerSiteId)

	obligations, err := models.ListObligationsForSite(tx, input.BusinessId, input.PayerSiteId, true, true)
	if err != nil {
		config.LogError(logger, "settlementWaterfall.go", "ApplyPayment", "ListObligationsForSite", input, err)
		return nil, nil, err
	}

	plan, err := PlanWaterfall(obligations, input.Amount)
	if err != nil {
		return nil, nil, err
	}

	paymentNumber, err := models.NextReferenceNumber(tx, input.BusinessId, models.NumberModulePayment, input.PaymentDate)
	if err != nil {
		config.LogError(logger, "settlementWaterfall.go", "ApplyPayment", "NextReferenceNumber", input, err)
		return nil, nil, err
	}

	payment := &models.Payment{
		BusinessId:      input.BusinessId,
		PaymentNumber:   paymentNumber,
		PayerSiteId:     input.PayerSiteId,
		PaymentDate:     input.PaymentDate,
		Amount:          input.Amount,
		UnappliedAmount: plan.Unapplied,
		Notes:           input.Notes,
	}
	if err := tx.Create(payment).Error; err != nil {
		config.LogError(logger, "settlementWaterfall.go", "ApplyPayment", "CreatePayment", payment, err)
		return nil, nil, err
	}

	for _, app := range plan.Applications {
		application := &models.PaymentApplication{
			BusinessId:     input.BusinessId,
			PaymentId:      payment.ID,
			ObligationKind: app.Kind,
			ObligationId:   app.ObligationId,
			AppliedAmount:  app.AppliedAmount,
		}
		if err := tx.Create(application).Error; err != nil {
			config.LogError(logger, "settlementWaterfall.go", "ApplyPayment", "CreatePaymentApplication", application, err)
			return nil, nil, err
		}
		if err := models.UpdateObligationSettlement(tx, input.BusinessId, app.Kind, app.ObligationId, app.NewAmountPaid, app.NewStatus); err != nil {
			config.LogError(logger, "settlementWaterfall.go", "ApplyPayment", "UpdateObligationSettlement", app, err)
			return nil, nil, err
		}
	}

	logger.WithFields(logrus.Fields{
		"business_id":    input.BusinessId,
		"site_id":        input.PayerSiteId,
		"payment_number": payment.PaymentNumber,
		"amount":         input.Amount.String(),
		"applications":   len(plan.Applications),
		"unapplied":      plan.Unapplied.String(),
	}).Info("ledger.payment.applied")

	return payment, plan, nil
}
