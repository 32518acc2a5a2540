package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/sitebooks/siteledger_backend/config"
	"github.com/sitebooks/siteledger_backend/models"
	"gorm.io/gorm"
)

var redisCtx = context.Background()

// BatchSummary is one batch's line in a consolidated item view.
type BatchSummary struct {
	BatchId           int                   `json:"batch_id"`
	BatchNumber       string                `json:"batch_number"`
	Ownership         models.BatchOwnership `json:"ownership"`
	FundingSiteId     int                   `json:"funding_site_id"`
	AcquisitionDate   time.Time             `json:"acquisition_date"`
	TotalQuantity     decimal.Decimal       `json:"total_quantity"`
	RemainingQuantity decimal.Decimal       `json:"remaining_quantity"`
	EffectiveUnitCost decimal.Decimal       `json:"effective_unit_cost"`
}

// ConsolidatedItem is the cross-batch summary of one material (optionally one
// brand): lifetime quantities plus the weighted average cost of what is still
// on hand.
type ConsolidatedItem struct {
	MaterialId        int             `json:"material_id"`
	BrandId           int             `json:"brand_id"`
	TotalAcquired     decimal.Decimal `json:"total_acquired"`
	TotalConsumed     decimal.Decimal `json:"total_consumed"`
	TotalRemaining    decimal.Decimal `json:"total_remaining"`
	// WeightedAverageCost covers only batches with remaining stock; exhausted
	// batches contribute to the lifetime totals but not the average.
	WeightedAverageCost decimal.Decimal `json:"weighted_average_cost"`
	// TotalValue is the cost of what is still on hand.
	TotalValue decimal.Decimal `json:"total_value"`
	Batches    []BatchSummary  `json:"batches"`
}

// ComputeConsolidation derives the consolidated view from a batch list. Pure:
// the remaining-value sum divided by the remaining quantity gives the weighted
// average cost, rounded to 4 decimals.
func ComputeConsolidation(batches []*models.CostBatch, materialId int, brandId int) *ConsolidatedItem {
	item := &ConsolidatedItem{
		MaterialId:          materialId,
		BrandId:             brandId,
		TotalAcquired:       decimal.Zero,
		TotalConsumed:       decimal.Zero,
		TotalRemaining:      decimal.Zero,
		WeightedAverageCost: decimal.Zero,
		TotalValue:          decimal.Zero,
	}

	remainingValue := decimal.Zero
	for _, b := range batches {
		item.TotalAcquired = item.TotalAcquired.Add(b.TotalQuantity)
		item.TotalConsumed = item.TotalConsumed.Add(b.ConsumedQuantity())
		item.TotalRemaining = item.TotalRemaining.Add(b.RemainingQuantity)

		effCost := b.EffectiveUnitCost()
		if b.RemainingQuantity.IsPositive() {
			remainingValue = remainingValue.Add(b.RemainingQuantity.Mul(effCost))
			item.Batches = append(item.Batches, BatchSummary{
				BatchId:           b.ID,
				BatchNumber:       b.BatchNumber,
				Ownership:         b.Ownership,
				FundingSiteId:     b.FundingSiteId,
				AcquisitionDate:   b.AcquisitionDate,
				TotalQuantity:     b.TotalQuantity,
				RemainingQuantity: b.RemainingQuantity,
				EffectiveUnitCost: effCost,
			})
		}
	}

	item.TotalValue = remainingValue.Round(2)
	if item.TotalRemaining.IsPositive() {
		item.WeightedAverageCost = remainingValue.DivRound(item.TotalRemaining, 4)
	}
	return item
}

func consolidationCacheKey(businessId string, materialId int, brandId int) string {
	return fmt.Sprintf("consolidation:%s:%d:%d", businessId, materialId, brandId)
}

// ConsolidateItem returns the consolidated view for a material, served from
// the redis read-cache when warm. The cache is best-effort: misses and redis
// errors both fall through to the database.
func ConsolidateItem(db *gorm.DB, logger *logrus.Logger, businessId string, materialId int, brandId int) (*ConsolidatedItem, error) {
	if logger == nil {
		logger = config.GetLogger()
	}
	if businessId == "" || materialId <= 0 {
		return nil, &models.InvalidRequestError{Reason: "business and material are required"}
	}

	cacheKey := consolidationCacheKey(businessId, materialId, brandId)
	ttl := config.ConsolidationCacheTTLSeconds()
	if ttl > 0 {
		var cached ConsolidatedItem
		found, err := config.GetRedisObject(cacheKey, &cached)
		if err != nil {
			config.LogError(logger, "consolidation.go", "ConsolidateItem", "GetRedisObject", cacheKey, err)
		} else if found {
			return &cached, nil
		}
	}

	batches, err := models.ListBatches(db, businessId, materialId, brandId)
	if err != nil {
		config.LogError(logger, "consolidation.go", "ConsolidateItem", "ListBatches", materialId, err)
		return nil, err
	}

	item := ComputeConsolidation(batches, materialId, brandId)

	if ttl > 0 {
		if err := config.SetRedisObject(cacheKey, item, time.Duration(ttl)*time.Second); err != nil {
			config.LogError(logger, "consolidation.go", "ConsolidateItem", "SetRedisObject", cacheKey, err)
		}
	}
	return item, nil
}

// InvalidateConsolidationCache drops every cached brand view of a material
// after a mutation touches its batches. Brand ids are not enumerable cheaply,
// so the brandless key plus a scan-by-prefix delete covers them.
func InvalidateConsolidationCache(businessId string, materialId int) {
	rdb := config.GetRedisDB()
	if rdb == nil {
		return
	}
	prefix := fmt.Sprintf("consolidation:%s:%d:", businessId, materialId)
	iter := rdb.Scan(redisCtx, 0, prefix+"*", 100).Iterator()
	keys := []string{}
	for iter.Next(redisCtx) {
		keys = append(keys, iter.Val())
	}
	if len(keys) > 0 {
		_ = config.RemoveRedisKey(keys...)
	}
}
