package workflow

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/sitebooks/siteledger_backend/models"
)

func TestComputeConsolidationWeightedAverage(t *testing.T) {
	batches := []*models.CostBatch{
		unitBatch(1, models.BatchOwnershipOwn, 1, day(0), "100", "40", "50"),
		unitBatch(2, models.BatchOwnershipShared, 2, day(1), "80", "60", "65"),
	}

	item := ComputeConsolidation(batches, 7, 0)
	if !item.TotalAcquired.Equal(decimal.RequireFromString("180")) {
		t.Errorf("acquired = %s, want 180", item.TotalAcquired)
	}
	if !item.TotalConsumed.Equal(decimal.RequireFromString("80")) {
		t.Errorf("consumed = %s, want 80", item.TotalConsumed)
	}
	if !item.TotalRemaining.Equal(decimal.RequireFromString("100")) {
		t.Errorf("remaining = %s, want 100", item.TotalRemaining)
	}
	// (40*50 + 60*65) / 100 = 5900 / 100 = 59.
	if !item.WeightedAverageCost.Equal(decimal.RequireFromString("59")) {
		t.Errorf("weighted average = %s, want 59", item.WeightedAverageCost)
	}
	if !item.TotalValue.Equal(decimal.RequireFromString("5900")) {
		t.Errorf("total value = %s, want 5900", item.TotalValue)
	}
	if len(item.Batches) != 2 {
		t.Errorf("expected both batches in the breakdown, got %d", len(item.Batches))
	}
}

func TestComputeConsolidationExcludesExhaustedFromAverage(t *testing.T) {
	batches := []*models.CostBatch{
		unitBatch(1, models.BatchOwnershipOwn, 1, day(0), "100", "0", "10"),
		unitBatch(2, models.BatchOwnershipOwn, 1, day(1), "50", "50", "30"),
	}

	item := ComputeConsolidation(batches, 7, 0)
	// The exhausted cheap batch counts in lifetime totals only.
	if !item.TotalAcquired.Equal(decimal.RequireFromString("150")) {
		t.Errorf("acquired = %s, want 150", item.TotalAcquired)
	}
	if !item.WeightedAverageCost.Equal(decimal.RequireFromString("30")) {
		t.Errorf("weighted average = %s, want 30", item.WeightedAverageCost)
	}
	if len(item.Batches) != 1 || item.Batches[0].BatchId != 2 {
		t.Errorf("only the open batch belongs in the breakdown, got %+v", item.Batches)
	}
}

func TestComputeConsolidationEmpty(t *testing.T) {
	item := ComputeConsolidation(nil, 7, 3)
	if !item.WeightedAverageCost.IsZero() || !item.TotalRemaining.IsZero() {
		t.Errorf("empty item should be zeroed, got %+v", item)
	}
	if item.MaterialId != 7 || item.BrandId != 3 {
		t.Errorf("identity not carried: %d/%d", item.MaterialId, item.BrandId)
	}
}

func TestComputeConsolidationMixedPricingModes(t *testing.T) {
	perWeight := &models.CostBatch{
		ID:                3,
		Ownership:         models.BatchOwnershipShared,
		FundingSiteId:     2,
		AcquisitionDate:   day(2),
		TotalQuantity:     decimal.RequireFromString("50"),
		RemainingQuantity: decimal.RequireFromString("50"),
		PricingMode:       models.PricingModePerWeight,
		TotalWeight:       decimal.RequireFromString("200"),
		WeightUnitCost:    decimal.RequireFromString("30"),
	}
	batches := []*models.CostBatch{
		unitBatch(1, models.BatchOwnershipOwn, 1, day(0), "50", "50", "100"),
		perWeight,
	}

	item := ComputeConsolidation(batches, 7, 0)
	// Per-weight batch costs (200/50)*30 = 120 per bag.
	// (50*100 + 50*120) / 100 = 110.
	if !item.WeightedAverageCost.Equal(decimal.RequireFromString("110")) {
		t.Errorf("weighted average = %s, want 110", item.WeightedAverageCost)
	}
}
