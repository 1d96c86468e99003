package balance

import (
	"testing"
	"time"

	"arqueo/backend/internal/domain"
)

func testShift(floatCents int64) domain.Shift {
	return domain.Shift{
		ID:                "shift-1",
		OperatorID:        "op-1",
		OpeningFloatCents: floatCents,
		Status:            domain.ShiftStatusOpen,
		OpenedAt:          time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC),
	}
}

func TestComputeExpectedCash(t *testing.T) {
	base := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	sales := []domain.Sale{
		{ID: "s1", TotalCents: 5000, TenderType: domain.TenderCash, CreatedAt: base},
		{ID: "s2", TotalCents: 8000, TenderType: domain.TenderMixed, Splits: []domain.TenderSplit{
			{Method: domain.TenderCash, AmountCents: 3000},
			{Method: domain.TenderCard, AmountCents: 5000},
		}, CreatedAt: base.Add(time.Hour)},
		{ID: "s3", TotalCents: 4000, TenderType: domain.TenderCard, CreatedAt: base.Add(2 * time.Hour)},
	}
	movements := []domain.CashMovement{
		{ID: "m1", Direction: domain.MovementOut, AmountCents: 2000, Reason: "supplier", CreatedAt: base.Add(30 * time.Minute)},
		{ID: "m2", Direction: domain.MovementIn, AmountCents: 1500, Reason: "change top-up", CreatedAt: base.Add(90 * time.Minute)},
	}

	summary := Compute(testShift(10000), sales, movements)

	// 10000 + 5000 + 3000 + 1500 - 2000
	if summary.ExpectedCashCents != 17500 {
		t.Fatalf("expected 17500, got %d", summary.ExpectedCashCents)
	}
	if summary.Sales.CashCents != 8000 {
		t.Fatalf("expected cash bucket 8000, got %d", summary.Sales.CashCents)
	}
	if summary.Sales.CardCents != 9000 {
		t.Fatalf("expected card bucket 9000, got %d", summary.Sales.CardCents)
	}
	if summary.Sales.TotalCents != 17000 {
		t.Fatalf("expected sales total 17000, got %d", summary.Sales.TotalCents)
	}
	if summary.MovementsInCents != 1500 || summary.MovementsOutCents != 2000 {
		t.Fatalf("got in=%d out=%d", summary.MovementsInCents, summary.MovementsOutCents)
	}
}

func TestComputeIsCommutativeOverEventOrder(t *testing.T) {
	base := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	sales := []domain.Sale{
		{ID: "s1", TotalCents: 1200, TenderType: domain.TenderCash, CreatedAt: base},
		{ID: "s2", TotalCents: 3400, TenderType: domain.TenderCash, CreatedAt: base.Add(time.Minute)},
		{ID: "s3", TotalCents: 700, TenderType: domain.TenderTransfer, CreatedAt: base.Add(2 * time.Minute)},
	}
	movements := []domain.CashMovement{
		{ID: "m1", Direction: domain.MovementIn, AmountCents: 500, CreatedAt: base},
		{ID: "m2", Direction: domain.MovementOut, AmountCents: 900, CreatedAt: base.Add(time.Minute)},
	}

	forward := Compute(testShift(2000), sales, movements)

	reversedSales := []domain.Sale{sales[2], sales[0], sales[1]}
	reversedMovements := []domain.CashMovement{movements[1], movements[0]}
	shuffled := Compute(testShift(2000), reversedSales, reversedMovements)

	if forward.ExpectedCashCents != shuffled.ExpectedCashCents {
		t.Fatalf("expected cash differs by event order: %d vs %d", forward.ExpectedCashCents, shuffled.ExpectedCashCents)
	}
	if forward.Sales != shuffled.Sales {
		t.Fatalf("sales breakdown differs by event order: %+v vs %+v", forward.Sales, shuffled.Sales)
	}
}

func TestComputeFlaggedSalesContributeNothing(t *testing.T) {
	base := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	sales := []domain.Sale{
		{ID: "good", TotalCents: 5000, TenderType: domain.TenderCash, CreatedAt: base},
		{ID: "bad", TotalCents: 9000, TenderType: domain.TenderMixed, AllocationFlagged: true, CreatedAt: base},
	}

	summary := Compute(testShift(1000), sales, nil)
	if summary.ExpectedCashCents != 6000 {
		t.Fatalf("flagged sale leaked into expected cash: %d", summary.ExpectedCashCents)
	}
	if len(summary.FlaggedSaleIDs) != 1 || summary.FlaggedSaleIDs[0] != "bad" {
		t.Fatalf("expected flagged id [bad], got %v", summary.FlaggedSaleIDs)
	}
	// Flagged sale still counts toward the display total.
	if summary.Sales.TotalCents != 14000 {
		t.Fatalf("expected sales total 14000, got %d", summary.Sales.TotalCents)
	}
}

func TestComputeTimelineNewestFirst(t *testing.T) {
	base := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	sales := []domain.Sale{
		{ID: "s1", TotalCents: 1000, TenderType: domain.TenderCash, CreatedAt: base},
		{ID: "s2", TotalCents: 2000, TenderType: domain.TenderCard, CreatedAt: base.Add(time.Minute)},
	}
	movements := []domain.CashMovement{
		{ID: "m1", Direction: domain.MovementOut, AmountCents: 300, CreatedAt: base.Add(2 * time.Minute)},
	}

	summary := Compute(testShift(0), sales, movements)

	// Card-only sale touches no cash, so the timeline holds the movement and
	// the cash sale only.
	if len(summary.Timeline) != 2 {
		t.Fatalf("expected 2 timeline entries, got %d", len(summary.Timeline))
	}
	if summary.Timeline[0].ID != "m1" || summary.Timeline[1].ID != "s1" {
		t.Fatalf("timeline not newest-first: %v, %v", summary.Timeline[0].ID, summary.Timeline[1].ID)
	}
}

func TestClassify(t *testing.T) {
	cases := []struct {
		difference int64
		want       string
	}{
		{0, domain.ReconciliationMatched},
		{1, domain.ReconciliationOverage},
		{500, domain.ReconciliationOverage},
		{-1, domain.ReconciliationShortage},
		{-500, domain.ReconciliationShortage},
	}
	for _, tc := range cases {
		if got := Classify(tc.difference); got != tc.want {
			t.Fatalf("Classify(%d) = %s, want %s", tc.difference, got, tc.want)
		}
	}
}
