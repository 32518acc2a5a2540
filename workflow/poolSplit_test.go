package workflow

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/sitebooks/siteledger_backend/models"
)

func shareSum(results []ShareResult) decimal.Decimal {
	total := decimal.Zero
	for _, r := range results {
		total = total.Add(r.Amount)
	}
	return total
}

func TestComputeSplitEqualWeightsRemainder(t *testing.T) {
	// 1000 across three equal sites cannot split evenly; the last beneficiary
	// absorbs the remainder: 333.33 + 333.33 + 333.34.
	results, err := ComputeSplit(decimal.RequireFromString("1000"), []ShareInput{
		{SiteId: 1, Weight: decimal.RequireFromString("5")},
		{SiteId: 2, Weight: decimal.RequireFromString("5")},
		{SiteId: 3, Weight: decimal.RequireFromString("5")},
	})
	if err != nil {
		t.Fatalf("ComputeSplit failed: %v", err)
	}
	if !results[0].Amount.Equal(decimal.RequireFromString("333.33")) {
		t.Errorf("share 1 = %s, want 333.33", results[0].Amount)
	}
	if !results[1].Amount.Equal(decimal.RequireFromString("333.33")) {
		t.Errorf("share 2 = %s, want 333.33", results[1].Amount)
	}
	if !results[2].Amount.Equal(decimal.RequireFromString("333.34")) {
		t.Errorf("share 3 = %s, want 333.34", results[2].Amount)
	}
	if !shareSum(results).Equal(decimal.RequireFromString("1000")) {
		t.Errorf("shares sum to %s, want 1000", shareSum(results))
	}
}

func TestComputeSplitWeighted(t *testing.T) {
	// 900 at weights 2:1 -> 600 and 300.
	results, err := ComputeSplit(decimal.RequireFromString("900"), []ShareInput{
		{SiteId: 1, Weight: decimal.RequireFromString("10")},
		{SiteId: 2, Weight: decimal.RequireFromString("5")},
	})
	if err != nil {
		t.Fatalf("ComputeSplit failed: %v", err)
	}
	if !results[0].Amount.Equal(decimal.RequireFromString("600")) {
		t.Errorf("share 1 = %s, want 600", results[0].Amount)
	}
	if !results[1].Amount.Equal(decimal.RequireFromString("300")) {
		t.Errorf("share 2 = %s, want 300", results[1].Amount)
	}
	if !results[0].Percentage.Equal(decimal.RequireFromString("66.67")) {
		t.Errorf("percentage 1 = %s, want 66.67", results[0].Percentage)
	}
	if !results[1].Percentage.Equal(decimal.RequireFromString("33.33")) {
		t.Errorf("percentage 2 = %s, want 33.33", results[1].Percentage)
	}
}

func TestComputeSplitZeroTotalWeightFallsBackToEqual(t *testing.T) {
	results, err := ComputeSplit(decimal.RequireFromString("100"), []ShareInput{
		{SiteId: 1, Weight: decimal.Zero},
		{SiteId: 2, Weight: decimal.Zero},
	})
	if err != nil {
		t.Fatalf("ComputeSplit failed: %v", err)
	}
	if !results[0].Amount.Equal(decimal.RequireFromString("50")) || !results[1].Amount.Equal(decimal.RequireFromString("50")) {
		t.Errorf("zero-weight pool should split equally, got %s and %s", results[0].Amount, results[1].Amount)
	}
}

func TestComputeSplitConservationUnderAwkwardWeights(t *testing.T) {
	weights := []string{"1", "3", "7", "2.5", "0.5"}
	beneficiaries := make([]ShareInput, len(weights))
	for i, w := range weights {
		beneficiaries[i] = ShareInput{SiteId: i + 1, Weight: decimal.RequireFromString(w)}
	}

	total := decimal.RequireFromString("777.77")
	results, err := ComputeSplit(total, beneficiaries)
	if err != nil {
		t.Fatalf("ComputeSplit failed: %v", err)
	}
	if !shareSum(results).Equal(total) {
		t.Errorf("shares sum to %s, want %s", shareSum(results), total)
	}
}

func TestComputeSplitRejectsBadInput(t *testing.T) {
	var invalid *models.InvalidRequestError

	_, err := ComputeSplit(decimal.Zero, []ShareInput{{SiteId: 1, Weight: decimal.NewFromInt(1)}})
	if !errors.As(err, &invalid) {
		t.Errorf("zero amount: expected InvalidRequestError, got %v", err)
	}

	_, err = ComputeSplit(decimal.RequireFromString("100"), nil)
	if !errors.As(err, &invalid) {
		t.Errorf("no beneficiaries: expected InvalidRequestError, got %v", err)
	}

	_, err = ComputeSplit(decimal.RequireFromString("100"), []ShareInput{
		{SiteId: 1, Weight: decimal.RequireFromString("-1")},
	})
	if !errors.As(err, &invalid) {
		t.Errorf("negative weight: expected InvalidRequestError, got %v", err)
	}
}

func TestApplyManualSplitFlagsMismatch(t *testing.T) {
	results, mismatch, err := ApplyManualSplit(decimal.RequireFromString("1000"), []ManualShareInput{
		{SiteId: 1, Percentage: decimal.RequireFromString("60")},
		{SiteId: 2, Percentage: decimal.RequireFromString("30")},
	})
	if err != nil {
		t.Fatalf("ApplyManualSplit failed: %v", err)
	}
	if !mismatch {
		t.Fatal("percentages summing to 90 must raise the mismatch flag")
	}
	// The split is applied as given, not corrected.
	if !results[0].Amount.Equal(decimal.RequireFromString("600")) {
		t.Errorf("share 1 = %s, want 600", results[0].Amount)
	}
	if !results[1].Amount.Equal(decimal.RequireFromString("300")) {
		t.Errorf("share 2 = %s, want 300", results[1].Amount)
	}
}

func TestApplyManualSplitExactHundredConserves(t *testing.T) {
	total := decimal.RequireFromString("1000")
	results, mismatch, err := ApplyManualSplit(total, []ManualShareInput{
		{SiteId: 1, Percentage: decimal.RequireFromString("33.33")},
		{SiteId: 2, Percentage: decimal.RequireFromString("33.33")},
		{SiteId: 3, Percentage: decimal.RequireFromString("33.34")},
	})
	if err != nil {
		t.Fatalf("ApplyManualSplit failed: %v", err)
	}
	if mismatch {
		t.Fatal("percentages sum to 100, mismatch flag must be clear")
	}
	if !shareSum(results).Equal(total) {
		t.Errorf("shares sum to %s, want %s", shareSum(results), total)
	}
}
