package workflow

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/sitebooks/siteledger_backend/config"
	"github.com/sitebooks/siteledger_backend/models"
	"gorm.io/gorm"
)

var hundred = decimal.NewFromInt(100)

type ShareInput struct {
	SiteId int
	Weight decimal.Decimal
}

type ManualShareInput struct {
	SiteId     int
	Percentage decimal.Decimal
}

type ShareResult struct {
	SiteId     int
	Weight     decimal.Decimal
	Percentage decimal.Decimal
	Amount     decimal.Decimal
}

// ComputeSplit partitions totalAmount across the beneficiaries by weight
// (attendance day-units). Each amount is rounded to 2 decimals except the
// last beneficiary in list order, which takes totalAmount minus the sum of
// the previous amounts: the individual roundings are inexact but the sum is
// conserved exactly. A pool with zero total weight falls back to equal split.
func ComputeSplit(totalAmount decimal.Decimal, beneficiaries []ShareInput) ([]ShareResult, error) {
	if totalAmount.IsZero() || totalAmount.IsNegative() {
		return nil, &models.InvalidRequestError{Reason: "pool amount must be positive"}
	}
	if len(beneficiaries) == 0 {
		return nil, &models.InvalidRequestError{Reason: "at least one beneficiary is required"}
	}

	totalWeight := decimal.Zero
	for _, b := range beneficiaries {
		if b.Weight.IsNegative() {
			return nil, &models.InvalidRequestError{Reason: "beneficiary weight cannot be negative"}
		}
		totalWeight = totalWeight.Add(b.Weight)
	}

	weights := make([]decimal.Decimal, len(beneficiaries))
	if totalWeight.IsZero() {
		// No attendance recorded: everyone carries weight 1.
		for i := range beneficiaries {
			weights[i] = decimal.NewFromInt(1)
		}
		totalWeight = decimal.NewFromInt(int64(len(beneficiaries)))
	} else {
		for i, b := range beneficiaries {
			weights[i] = b.Weight
		}
	}

	results := make([]ShareResult, len(beneficiaries))
	amountSoFar := decimal.Zero
	percentSoFar := decimal.Zero
	for i, b := range beneficiaries {
		var amount, percentage decimal.Decimal
		if i == len(beneficiaries)-1 {
			amount = totalAmount.Sub(amountSoFar)
			percentage = hundred.Sub(percentSoFar)
		} else {
			amount = totalAmount.Mul(weights[i]).DivRound(totalWeight, 2)
			percentage = weights[i].Mul(hundred).DivRound(totalWeight, 2)
		}
		results[i] = ShareResult{
			SiteId:     b.SiteId,
			Weight:     b.Weight,
			Percentage: percentage,
			Amount:     amount,
		}
		amountSoFar = amountSoFar.Add(amount)
		percentSoFar = percentSoFar.Add(percentage)
	}
	return results, nil
}

// ApplyManualSplit uses caller-supplied percentages instead of weights. The
// mismatch flag is raised when the percentages do not sum to 100; the split
// is still computed as given (flag, do not silently correct). Conservation
// of the amount column is preserved the same way as the weighted path.
func ApplyManualSplit(totalAmount decimal.Decimal, shares []ManualShareInput) ([]ShareResult, bool, error) {
	if totalAmount.IsZero() || totalAmount.IsNegative() {
		return nil, false, &models.InvalidRequestError{Reason: "pool amount must be positive"}
	}
	if len(shares) == 0 {
		return nil, false, &models.InvalidRequestError{Reason: "at least one beneficiary is required"}
	}

	percentTotal := decimal.Zero
	for _, s := range shares {
		if s.Percentage.IsNegative() {
			return nil, false, &models.InvalidRequestError{Reason: "percentage cannot be negative"}
		}
		percentTotal = percentTotal.Add(s.Percentage)
	}
	mismatch := !percentTotal.Equal(hundred)

	results := make([]ShareResult, len(shares))
	amountSoFar := decimal.Zero
	for i, s := range shares {
		var amount decimal.Decimal
		if i == len(shares)-1 && !mismatch {
			amount = totalAmount.Sub(amountSoFar)
		} else {
			amount = totalAmount.Mul(s.Percentage).DivRound(hundred, 2)
		}
		results[i] = ShareResult{
			SiteId:     s.SiteId,
			Percentage: s.Percentage,
			Amount:     amount,
		}
		amountSoFar = amountSoFar.Add(amount)
	}
	return results, mismatch, nil
}

type SplitSharedPoolInput struct {
	BusinessId    string
	MaterialId    int
	FundingSiteId int
	PoolDate      time.Time
	TotalAmount   decimal.Decimal
	Beneficiaries []ShareInput
	// ManualShares switches to the override path when non-empty.
	ManualShares []ManualShareInput
	Notes        string
}

// SplitSharedPool records a shared cost pool and its per-site allocations in
// one transaction. Shares owed by sites other than the funder enter the
// settlement waterfall as pool obligations.
func SplitSharedPool(tx *gorm.DB, logger *logrus.Logger, input SplitSharedPoolInput) (*models.SharedPoolEntry, []*models.PoolAllocation, error) {
	if logger == nil {
		logger = config.GetLogger()
	}
	if input.BusinessId == "" || input.FundingSiteId <= 0 {
		return nil, nil, &models.InvalidRequestError{Reason: "business and funding site are required"}
	}

	var results []ShareResult
	var mismatch bool
	var err error
	manual := len(input.ManualShares) > 0
	if manual {
		results, mismatch, err = ApplyManualSplit(input.TotalAmount, input.ManualShares)
	} else {
		results, err = ComputeSplit(input.TotalAmount, input.Beneficiaries)
	}
	if err != nil {
		return nil, nil, err
	}

	poolNumber, err := models.NextReferenceNumber(tx, input.BusinessId, models.NumberModulePool, input.PoolDate)
	if err != nil {
		config.LogError(logger, "poolSplit.go", "SplitSharedPool", "NextReferenceNumber", input, err)
		return nil, nil, err
	}

	pool := &models.SharedPoolEntry{
		BusinessId:         input.BusinessId,
		PoolNumber:         poolNumber,
		MaterialId:         input.MaterialId,
		FundingSiteId:      input.FundingSiteId,
		PoolDate:           input.PoolDate,
		TotalAmount:        input.TotalAmount,
		IsManualSplit:      manual,
		PercentageMismatch: mismatch,
		Notes:              input.Notes,
	}
	if err := tx.Create(pool).Error; err != nil {
		config.LogError(logger, "poolSplit.go", "SplitSharedPool", "CreateSharedPoolEntry", pool, err)
		return nil, nil, err
	}

	allocations := make([]*models.PoolAllocation, 0, len(results))
	for i, r := range results {
		// A zero-amount share is born Settled: paid equals total already.
		status := models.SettlementStatusUnsettled
		if r.Amount.IsZero() {
			status = models.SettlementStatusSettled
		}
		allocation := &models.PoolAllocation{
			BusinessId:        input.BusinessId,
			PoolId:            pool.ID,
			BeneficiarySiteId: r.SiteId,
			Position:          i,
			Weight:            r.Weight,
			Percentage:        r.Percentage,
			Amount:            r.Amount,
			SettlementStatus:  status,
			AmountPaid:        decimal.Zero,
		}
		if err := tx.Create(allocation).Error; err != nil {
			config.LogError(logger, "poolSplit.go", "SplitSharedPool", "CreatePoolAllocation", allocation, err)
			return nil, nil, err
		}
		allocations = append(allocations, allocation)
	}

	if mismatch {
		logger.WithFields(logrus.Fields{
			"business_id": input.BusinessId,
			"pool_id":     pool.ID,
			"pool_number": pool.PoolNumber,
		}).Warn("ledger.pool.percentage_mismatch")
	}

	return pool, allocations, nil
}
