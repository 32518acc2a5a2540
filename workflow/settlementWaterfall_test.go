package workflow

import (
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sitebooks/siteledger_backend/models"
)

func obligation(kind models.ObligationKind, id int, date time.Time, total string) models.Obligation {
	return models.Obligation{
		Kind:        kind,
		ID:          id,
		SiteId:      1,
		EventDate:   date,
		TotalAmount: decimal.RequireFromString(total),
		AmountPaid:  decimal.Zero,
		Status:      models.SettlementStatusUnsettled,
	}
}

func TestPlanWaterfallOldestFirst(t *testing.T) {
	// 500 + 300 + 200 outstanding; a 600 payment settles the oldest and
	// leaves the second partially paid.
	obligations := []models.Obligation{
		obligation(models.ObligationKindAllocation, 1, day(0), "500"),
		obligation(models.ObligationKindAllocation, 2, day(1), "300"),
		obligation(models.ObligationKindPool, 3, day(2), "200"),
	}

	plan, err := PlanWaterfall(obligations, decimal.RequireFromString("600"))
	if err != nil {
		t.Fatalf("PlanWaterfall failed: %v", err)
	}
	if len(plan.Applications) != 2 {
		t.Fatalf("expected 2 applications, got %d", len(plan.Applications))
	}
	first, second := plan.Applications[0], plan.Applications[1]
	if first.ObligationId != 1 || !first.AppliedAmount.Equal(decimal.RequireFromString("500")) || first.NewStatus != models.SettlementStatusSettled {
		t.Errorf("first application wrong: %+v", first)
	}
	if second.ObligationId != 2 || !second.AppliedAmount.Equal(decimal.RequireFromString("100")) || second.NewStatus != models.SettlementStatusPartiallyPaid {
		t.Errorf("second application wrong: %+v", second)
	}
	if !plan.Unapplied.IsZero() {
		t.Errorf("unapplied = %s, want 0", plan.Unapplied)
	}

	// The follow-up 400 settles the rest.
	plan2, err := PlanWaterfall(obligations, decimal.RequireFromString("400"))
	if err != nil {
		t.Fatalf("second PlanWaterfall failed: %v", err)
	}
	for _, o := range obligations {
		if o.Status != models.SettlementStatusSettled {
			t.Errorf("obligation %d should be Settled after full payment, got %s", o.ID, o.Status)
		}
	}
	if !plan2.Unapplied.IsZero() {
		t.Errorf("unapplied = %s, want 0", plan2.Unapplied)
	}
}

func TestPlanWaterfallOverpaymentReported(t *testing.T) {
	obligations := []models.Obligation{
		obligation(models.ObligationKindAllocation, 1, day(0), "150"),
	}

	plan, err := PlanWaterfall(obligations, decimal.RequireFromString("200"))
	if err != nil {
		t.Fatalf("PlanWaterfall failed: %v", err)
	}
	if !plan.Unapplied.Equal(decimal.RequireFromString("50")) {
		t.Errorf("unapplied = %s, want 50", plan.Unapplied)
	}
	if obligations[0].Status != models.SettlementStatusSettled {
		t.Errorf("obligation status = %s, want Settled", obligations[0].Status)
	}
}

func TestPlanWaterfallSettledOnlyAtExactTotal(t *testing.T) {
	obligations := []models.Obligation{
		obligation(models.ObligationKindPool, 1, day(0), "100"),
	}

	plan, err := PlanWaterfall(obligations, decimal.RequireFromString("99.99"))
	if err != nil {
		t.Fatalf("PlanWaterfall failed: %v", err)
	}
	if plan.Applications[0].NewStatus != models.SettlementStatusPartiallyPaid {
		t.Errorf("one cent short must stay PartiallyPaid, got %s", plan.Applications[0].NewStatus)
	}

	plan, err = PlanWaterfall(obligations, decimal.RequireFromString("0.01"))
	if err != nil {
		t.Fatalf("PlanWaterfall failed: %v", err)
	}
	if plan.Applications[0].NewStatus != models.SettlementStatusSettled {
		t.Errorf("reaching the exact total must settle, got %s", plan.Applications[0].NewStatus)
	}
}

func TestPlanWaterfallEventDateTieBreak(t *testing.T) {
	// Same date: Allocation sorts before Pool, then lower id first.
	obligations := []models.Obligation{
		obligation(models.ObligationKindPool, 5, day(0), "100"),
		obligation(models.ObligationKindAllocation, 9, day(0), "100"),
		obligation(models.ObligationKindAllocation, 3, day(0), "100"),
	}

	plan, err := PlanWaterfall(obligations, decimal.RequireFromString("250"))
	if err != nil {
		t.Fatalf("PlanWaterfall failed: %v", err)
	}
	got := []struct {
		kind models.ObligationKind
		id   int
	}{}
	for _, a := range plan.Applications {
		got = append(got, struct {
			kind models.ObligationKind
			id   int
		}{a.Kind, a.ObligationId})
	}
	if got[0].kind != models.ObligationKindAllocation || got[0].id != 3 {
		t.Errorf("first application should hit Allocation 3, got %+v", got[0])
	}
	if got[1].kind != models.ObligationKindAllocation || got[1].id != 9 {
		t.Errorf("second application should hit Allocation 9, got %+v", got[1])
	}
	if got[2].kind != models.ObligationKindPool || got[2].id != 5 {
		t.Errorf("third application should hit Pool 5, got %+v", got[2])
	}
}

func TestPlanWaterfallRejectsNonPositiveAmount(t *testing.T) {
	obligations := []models.Obligation{
		obligation(models.ObligationKindAllocation, 1, day(0), "100"),
	}

	for _, amt := range []string{"0", "-10"} {
		_, err := PlanWaterfall(obligations, decimal.RequireFromString(amt))
		var invalid *models.InvalidRequestError
		if !errors.As(err, &invalid) {
			t.Errorf("amount %s: expected InvalidRequestError, got %v", amt, err)
		}
	}
}

// The waterfall must never produce a state where a newer obligation is
// Settled while an older one is not. Hammer the planner with random payment
// sequences and verify the invariant after every step.
func TestPlanWaterfallNeverViolatesFifoOrder(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for trial := 0; trial < 200; trial++ {
		n := 2 + rng.Intn(6)
		obligations := make([]models.Obligation, 0, n)
		for i := 0; i < n; i++ {
			kind := models.ObligationKindAllocation
			if rng.Intn(2) == 1 {
				kind = models.ObligationKindPool
			}
			total := decimal.NewFromInt(int64(1 + rng.Intn(500))).Add(decimal.New(int64(rng.Intn(100)), -2))
			obligations = append(obligations, obligation(kind, i+1, day(rng.Intn(10)), total.String()))
		}

		payments := 1 + rng.Intn(5)
		for p := 0; p < payments; p++ {
			amount := decimal.NewFromInt(int64(1 + rng.Intn(800)))
			if _, err := PlanWaterfall(obligations, amount); err != nil {
				t.Fatalf("trial %d payment %d: PlanWaterfall failed: %v", trial, p, err)
			}
			if violation := CheckFifoOrder(obligations); violation != nil {
				t.Fatalf("trial %d payment %d: %v", trial, p, violation)
			}
			for _, o := range obligations {
				if o.AmountPaid.GreaterThan(o.TotalAmount) {
					t.Fatalf("trial %d: obligation %d overpaid: %s > %s", trial, o.ID, o.AmountPaid, o.TotalAmount)
				}
			}
		}
	}
}

func TestCheckFifoOrderDetectsViolation(t *testing.T) {
	obligations := []models.Obligation{
		obligation(models.ObligationKindAllocation, 1, day(0), "100"),
		obligation(models.ObligationKindAllocation, 2, day(1), "100"),
	}
	obligations[1].AmountPaid = decimal.RequireFromString("100")
	obligations[1].Status = models.SettlementStatusSettled

	violation := CheckFifoOrder(obligations)
	if violation == nil {
		t.Fatal("settled newer obligation over unsettled older one must be flagged")
	}
	if violation.SettledID != 2 || violation.EarlierID != 1 {
		t.Errorf("violation identifies wrong rows: %+v", violation)
	}
	if violation.EarlierStatus != models.SettlementStatusUnsettled {
		t.Errorf("earlier status = %s, want Unsettled", violation.EarlierStatus)
	}
}

func TestCheckFifoOrderAcceptsCleanLedger(t *testing.T) {
	obligations := []models.Obligation{
		obligation(models.ObligationKindAllocation, 1, day(0), "100"),
		obligation(models.ObligationKindPool, 2, day(1), "100"),
		obligation(models.ObligationKindAllocation, 3, day(2), "100"),
	}
	obligations[0].AmountPaid = decimal.RequireFromString("100")
	obligations[0].Status = models.SettlementStatusSettled
	obligations[1].AmountPaid = decimal.RequireFromString("40")
	obligations[1].Status = models.SettlementStatusPartiallyPaid

	if violation := CheckFifoOrder(obligations); violation != nil {
		t.Fatalf("clean ledger flagged: %v", violation)
	}
}

func TestReplayWaterfallReproducesIncrementalState(t *testing.T) {
	fresh := func() []models.Obligation {
		return []models.Obligation{
			obligation(models.ObligationKindAllocation, 1, day(0), "500"),
			obligation(models.ObligationKindPool, 2, day(1), "300"),
			obligation(models.ObligationKindAllocation, 3, day(2), "200"),
		}
	}

	// Incremental: apply three payments one at a time.
	incremental := fresh()
	amounts := []string{"250", "400", "500"}
	for _, a := range amounts {
		if _, err := PlanWaterfall(incremental, decimal.RequireFromString(a)); err != nil {
			t.Fatalf("incremental PlanWaterfall failed: %v", err)
		}
	}

	// Replay: rebuild the same history from scratch.
	replays := make([]ReplayPayment, len(amounts))
	for i, a := range amounts {
		replays[i] = ReplayPayment{PaymentId: i + 1, Amount: decimal.RequireFromString(a)}
	}
	result, err := ReplayWaterfall(fresh(), replays)
	if err != nil {
		t.Fatalf("ReplayWaterfall failed: %v", err)
	}

	for i, want := range incremental {
		got := result.Obligations[i]
		if got.ID != want.ID || !got.AmountPaid.Equal(want.AmountPaid) || got.Status != want.Status {
			t.Errorf("obligation %d: replay state %s/%s, incremental state %s/%s",
				want.ID, got.AmountPaid, got.Status, want.AmountPaid, want.Status)
		}
	}

	// 250+400+500 = 1150 against 1000 outstanding: 150 unapplied on the last.
	if !result.Plans[3].Unapplied.Equal(decimal.RequireFromString("150")) {
		t.Errorf("last payment unapplied = %s, want 150", result.Plans[3].Unapplied)
	}
}

func TestReplayWaterfallIsIdempotent(t *testing.T) {
	obligations := []models.Obligation{
		obligation(models.ObligationKindAllocation, 1, day(0), "120.50"),
		obligation(models.ObligationKindPool, 2, day(1), "79.50"),
	}
	replays := []ReplayPayment{
		{PaymentId: 1, Amount: decimal.RequireFromString("100")},
		{PaymentId: 2, Amount: decimal.RequireFromString("60")},
	}

	first, err := ReplayWaterfall(obligations, replays)
	if err != nil {
		t.Fatalf("first replay failed: %v", err)
	}
	second, err := ReplayWaterfall(first.Obligations, replays)
	if err != nil {
		t.Fatalf("second replay failed: %v", err)
	}

	for i := range first.Obligations {
		a, b := first.Obligations[i], second.Obligations[i]
		if !a.AmountPaid.Equal(b.AmountPaid) || a.Status != b.Status {
			t.Errorf("obligation %d drifted between replays: %s/%s vs %s/%s",
				a.ID, a.AmountPaid, a.Status, b.AmountPaid, b.Status)
		}
	}
}

func TestPlanWaterfallSettlesZeroTotalObligations(t *testing.T) {
	// A free draw produces a valid obligation with total 0; it is fully paid
	// from the start and must never hold up the obligations behind it.
	obligations := []models.Obligation{
		obligation(models.ObligationKindAllocation, 1, day(0), "0"),
		obligation(models.ObligationKindAllocation, 2, day(1), "100"),
	}

	plan, err := PlanWaterfall(obligations, decimal.RequireFromString("100"))
	if err != nil {
		t.Fatalf("PlanWaterfall failed: %v", err)
	}
	if len(plan.Applications) != 1 || plan.Applications[0].ObligationId != 2 {
		t.Fatalf("payment should hit only the second obligation, got %+v", plan.Applications)
	}
	if obligations[0].Status != models.SettlementStatusSettled {
		t.Errorf("zero-total obligation status = %s, want Settled", obligations[0].Status)
	}
	if obligations[1].Status != models.SettlementStatusSettled {
		t.Errorf("paid obligation status = %s, want Settled", obligations[1].Status)
	}
	if violation := CheckFifoOrder(obligations); violation != nil {
		t.Fatalf("waterfall output flagged as out of order: %v", violation)
	}
}

func TestReplayWaterfallSettlesZeroTotalWithoutPayments(t *testing.T) {
	// A rebuild with no payment history must still land zero-total rows on
	// Settled, or every later rebuild would flag the site.
	obligations := []models.Obligation{
		obligation(models.ObligationKindAllocation, 1, day(0), "0"),
		obligation(models.ObligationKindPool, 2, day(1), "50"),
	}

	result, err := ReplayWaterfall(obligations, nil)
	if err != nil {
		t.Fatalf("ReplayWaterfall failed: %v", err)
	}
	if result.Obligations[0].Status != models.SettlementStatusSettled {
		t.Errorf("zero-total obligation status = %s, want Settled", result.Obligations[0].Status)
	}
	if result.Obligations[1].Status != models.SettlementStatusUnsettled {
		t.Errorf("unpaid obligation status = %s, want Unsettled", result.Obligations[1].Status)
	}
	if violation := CheckFifoOrder(result.Obligations); violation != nil {
		t.Fatalf("replay output flagged as out of order: %v", violation)
	}
}

func TestCheckFifoOrderIgnoresZeroOutstandingRows(t *testing.T) {
	// A stale Unsettled label on a row with nothing outstanding blocks
	// nothing: only money still owed can be skipped over.
	obligations := []models.Obligation{
		obligation(models.ObligationKindAllocation, 1, day(0), "0"),
		obligation(models.ObligationKindAllocation, 2, day(1), "100"),
	}
	obligations[1].AmountPaid = decimal.RequireFromString("100")
	obligations[1].Status = models.SettlementStatusSettled

	if violation := CheckFifoOrder(obligations); violation != nil {
		t.Fatalf("settled row after a zero-total row flagged: %v", violation)
	}
}

func TestCheckFifoOrderKeepsInputOrder(t *testing.T) {
	obligations := []models.Obligation{
		obligation(models.ObligationKindAllocation, 3, day(2), "100"),
		obligation(models.ObligationKindAllocation, 1, day(0), "100"),
		obligation(models.ObligationKindPool, 2, day(1), "100"),
	}

	if violation := CheckFifoOrder(obligations); violation != nil {
		t.Fatalf("clean ledger flagged: %v", violation)
	}
	for i, want := range []int{3, 1, 2} {
		if obligations[i].ID != want {
			t.Fatalf("input slice reordered: position %d has id %d, want %d", i, obligations[i].ID, want)
		}
	}
}
