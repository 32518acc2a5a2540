package workflow

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sitebooks/siteledger_backend/models"
)

func day(n int) time.Time {
	return time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, n)
}

func unitBatch(id int, ownership models.BatchOwnership, fundingSiteId int, acquired time.Time, qty, remaining, unitCost string) *models.CostBatch {
	return &models.CostBatch{
		ID:                id,
		Ownership:         ownership,
		FundingSiteId:     fundingSiteId,
		AcquisitionDate:   acquired,
		TotalQuantity:     decimal.RequireFromString(qty),
		RemainingQuantity: decimal.RequireFromString(remaining),
		PricingMode:       models.PricingModePerUnit,
		UnitCost:          decimal.RequireFromString(unitCost),
	}
}

func TestPlanFifoDrawsOwnBeforeShared(t *testing.T) {
	// The shared batch is the oldest, but own stock must still go first.
	batches := []*models.CostBatch{
		unitBatch(1, models.BatchOwnershipOwn, 1, day(1), "10", "10", "50"),
		unitBatch(2, models.BatchOwnershipShared, 2, day(0), "10", "10", "40"),
		unitBatch(3, models.BatchOwnershipOwn, 1, day(2), "10", "10", "55"),
	}

	plans, err := PlanFifoDraws(batches, 7, 0, 1, decimal.RequireFromString("15"))
	if err != nil {
		t.Fatalf("PlanFifoDraws failed: %v", err)
	}
	if len(plans) != 2 {
		t.Fatalf("expected 2 draws, got %d", len(plans))
	}
	if plans[0].Batch.ID != 1 || !plans[0].Quantity.Equal(decimal.RequireFromString("10")) {
		t.Errorf("first draw should exhaust own batch 1, got batch %d qty %s", plans[0].Batch.ID, plans[0].Quantity)
	}
	if plans[1].Batch.ID != 3 || !plans[1].Quantity.Equal(decimal.RequireFromString("5")) {
		t.Errorf("second draw should take 5 from own batch 3, got batch %d qty %s", plans[1].Batch.ID, plans[1].Quantity)
	}
}

func TestPlanFifoDrawsOldestFirstWithinTier(t *testing.T) {
	batches := []*models.CostBatch{
		unitBatch(9, models.BatchOwnershipShared, 1, day(5), "30", "30", "10"),
		unitBatch(4, models.BatchOwnershipShared, 1, day(2), "30", "30", "12"),
	}

	plans, err := PlanFifoDraws(batches, 7, 0, 1, decimal.RequireFromString("40"))
	if err != nil {
		t.Fatalf("PlanFifoDraws failed: %v", err)
	}
	if plans[0].Batch.ID != 4 {
		t.Errorf("oldest shared batch should be drawn first, got batch %d", plans[0].Batch.ID)
	}
	if !plans[1].Quantity.Equal(decimal.RequireFromString("10")) {
		t.Errorf("newer batch should cover the remainder of 10, got %s", plans[1].Quantity)
	}
}

func TestPlanFifoDrawsCosting(t *testing.T) {
	// 120 units across two batches: 100 @ 50 + 20 @ 60 = 5000 + 1200.
	batches := []*models.CostBatch{
		unitBatch(1, models.BatchOwnershipShared, 1, day(0), "100", "100", "50"),
		unitBatch(2, models.BatchOwnershipShared, 1, day(3), "80", "80", "60"),
	}

	plans, err := PlanFifoDraws(batches, 7, 0, 1, decimal.RequireFromString("120"))
	if err != nil {
		t.Fatalf("PlanFifoDraws failed: %v", err)
	}
	if !plans[0].TotalCost.Equal(decimal.RequireFromString("5000")) {
		t.Errorf("first draw cost = %s, want 5000", plans[0].TotalCost)
	}
	if !plans[1].TotalCost.Equal(decimal.RequireFromString("1200")) {
		t.Errorf("second draw cost = %s, want 1200", plans[1].TotalCost)
	}

	total := decimal.Zero
	for _, p := range plans {
		total = total.Add(p.Quantity)
	}
	if !total.Equal(decimal.RequireFromString("120")) {
		t.Errorf("draw quantities sum to %s, want 120", total)
	}
}

func TestPlanFifoDrawsPerDrawRounding(t *testing.T) {
	batches := []*models.CostBatch{
		unitBatch(1, models.BatchOwnershipOwn, 1, day(0), "10", "10", "0.3333"),
	}

	plans, err := PlanFifoDraws(batches, 7, 0, 1, decimal.RequireFromString("7"))
	if err != nil {
		t.Fatalf("PlanFifoDraws failed: %v", err)
	}
	// 7 * 0.3333 = 2.3331, rounded at the draw to 2.33.
	if !plans[0].TotalCost.Equal(decimal.RequireFromString("2.33")) {
		t.Errorf("draw cost = %s, want 2.33", plans[0].TotalCost)
	}
}

func TestPlanFifoDrawsInsufficientStock(t *testing.T) {
	batches := []*models.CostBatch{
		unitBatch(1, models.BatchOwnershipOwn, 1, day(0), "10", "4", "50"),
		unitBatch(2, models.BatchOwnershipShared, 2, day(1), "10", "6", "40"),
	}

	_, err := PlanFifoDraws(batches, 7, 3, 1, decimal.RequireFromString("25"))
	var insufficient *models.InsufficientStockError
	if !errors.As(err, &insufficient) {
		t.Fatalf("expected InsufficientStockError, got %v", err)
	}
	if !insufficient.Available.Equal(decimal.RequireFromString("10")) {
		t.Errorf("available = %s, want 10", insufficient.Available)
	}
	if !insufficient.Shortfall().Equal(decimal.RequireFromString("15")) {
		t.Errorf("shortfall = %s, want 15", insufficient.Shortfall())
	}
	if insufficient.MaterialId != 7 || insufficient.BrandId != 3 {
		t.Errorf("error should carry material/brand identity, got %d/%d", insufficient.MaterialId, insufficient.BrandId)
	}
}

func TestPlanFifoDrawsRejectsNonPositiveQuantity(t *testing.T) {
	batches := []*models.CostBatch{
		unitBatch(1, models.BatchOwnershipOwn, 1, day(0), "10", "10", "50"),
	}

	for _, qty := range []string{"0", "-3"} {
		_, err := PlanFifoDraws(batches, 7, 0, 1, decimal.RequireFromString(qty))
		var invalid *models.InvalidRequestError
		if !errors.As(err, &invalid) {
			t.Errorf("qty %s: expected InvalidRequestError, got %v", qty, err)
		}
	}
}

func TestPlanFifoDrawsSkipsExhaustedBatches(t *testing.T) {
	batches := []*models.CostBatch{
		unitBatch(1, models.BatchOwnershipOwn, 1, day(0), "10", "0", "50"),
		unitBatch(2, models.BatchOwnershipOwn, 1, day(1), "10", "10", "55"),
	}

	plans, err := PlanFifoDraws(batches, 7, 0, 1, decimal.RequireFromString("5"))
	if err != nil {
		t.Fatalf("PlanFifoDraws failed: %v", err)
	}
	if len(plans) != 1 || plans[0].Batch.ID != 2 {
		t.Fatalf("exhausted batch must be skipped, got %+v", plans)
	}
}

func TestEffectiveUnitCostPerWeight(t *testing.T) {
	// 200kg across 50 bags at 30 per kg: (200/50)*30 = 120 per bag.
	batch := &models.CostBatch{
		PricingMode:    models.PricingModePerWeight,
		TotalQuantity:  decimal.RequireFromString("50"),
		TotalWeight:    decimal.RequireFromString("200"),
		WeightUnitCost: decimal.RequireFromString("30"),
	}
	if !batch.EffectiveUnitCost().Equal(decimal.RequireFromString("120")) {
		t.Errorf("effective unit cost = %s, want 120", batch.EffectiveUnitCost())
	}
}

func TestPlanFifoDrawsExcludesOtherSitesOwnStock(t *testing.T) {
	// Site 2's own batch is invisible to site 1; only the shared batch can
	// cover the request, and it cannot cover all of it.
	batches := []*models.CostBatch{
		unitBatch(1, models.BatchOwnershipOwn, 2, day(0), "100", "100", "50"),
		unitBatch(2, models.BatchOwnershipShared, 2, day(1), "10", "10", "40"),
	}

	plans, err := PlanFifoDraws(batches, 7, 0, 1, decimal.RequireFromString("8"))
	if err != nil {
		t.Fatalf("PlanFifoDraws failed: %v", err)
	}
	if len(plans) != 1 || plans[0].Batch.ID != 2 {
		t.Fatalf("only the shared batch is drawable by site 1, got %+v", plans)
	}

	_, err = PlanFifoDraws(batches, 7, 0, 1, decimal.RequireFromString("50"))
	var insufficient *models.InsufficientStockError
	if !errors.As(err, &insufficient) {
		t.Fatalf("expected InsufficientStockError, got %v", err)
	}
	if !insufficient.Available.Equal(decimal.RequireFromString("10")) {
		t.Errorf("available = %s, want 10 (other site's own stock must not count)", insufficient.Available)
	}
}

func TestPlanFifoDrawsDoesNotMutateInput(t *testing.T) {
	batches := []*models.CostBatch{
		unitBatch(2, models.BatchOwnershipShared, 1, day(0), "10", "10", "40"),
		unitBatch(1, models.BatchOwnershipOwn, 1, day(1), "10", "10", "50"),
	}

	if _, err := PlanFifoDraws(batches, 7, 0, 1, decimal.RequireFromString("12")); err != nil {
		t.Fatalf("PlanFifoDraws failed: %v", err)
	}
	if batches[0].ID != 2 || batches[1].ID != 1 {
		t.Errorf("input slice order changed: %d, %d", batches[0].ID, batches[1].ID)
	}
	if !batches[0].RemainingQuantity.Equal(decimal.RequireFromString("10")) {
		t.Errorf("planning must not decrement batches, remaining = %s", batches[0].RemainingQuantity)
	}
}
