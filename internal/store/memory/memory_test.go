package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"arqueo/backend/internal/domain"
	"arqueo/backend/internal/store"
)

func TestConcurrentOpensAdmitExactlyOne(t *testing.T) {
	repo := NewSeeded()
	ctx := context.Background()

	const attempts = 32
	var wg sync.WaitGroup
	results := make(chan error, attempts)

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.CreateShift(ctx, domain.Shift{
				OperatorID:        "ana",
				OpeningFloatCents: 10000,
			})
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var succeeded, conflicted int
	for err := range results {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, store.ErrShiftAlreadyOpen):
			conflicted++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if succeeded != 1 {
		t.Fatalf("expected exactly one open to win, got %d", succeeded)
	}
	if conflicted != attempts-1 {
		t.Fatalf("expected %d conflicts, got %d", attempts-1, conflicted)
	}
}

func TestCloseFreesOperatorForNextShift(t *testing.T) {
	repo := NewSeeded()
	ctx := context.Background()

	first, err := repo.CreateShift(ctx, domain.Shift{OperatorID: "ana", OpeningFloatCents: 1000})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if _, err := repo.CloseShift(ctx, first.ID, store.ShiftClose{
		CountedCashCents:  1000,
		ExpectedCashCents: 1000,
		ClosedAt:          time.Now().UTC(),
	}); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	if _, err := repo.GetOpenShiftByOperator(ctx, "ana"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected no open shift after close, got %v", err)
	}

	second, err := repo.CreateShift(ctx, domain.Shift{OperatorID: "ana", OpeningFloatCents: 2000})
	if err != nil {
		t.Fatalf("reopen after close failed: %v", err)
	}
	if second.ID == first.ID {
		t.Fatalf("expected a fresh shift id")
	}
}

func TestWritesToClosedShiftRejected(t *testing.T) {
	repo := NewSeeded()
	ctx := context.Background()

	shift, err := repo.CreateShift(ctx, domain.Shift{OperatorID: "ana", OpeningFloatCents: 1000})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if _, err := repo.CloseShift(ctx, shift.ID, store.ShiftClose{ClosedAt: time.Now().UTC()}); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	if _, err := repo.CreateMovement(ctx, domain.CashMovement{
		ShiftID: shift.ID, Direction: domain.MovementIn, AmountCents: 500,
	}); !errors.Is(err, store.ErrShiftNotOpen) {
		t.Fatalf("expected ErrShiftNotOpen for movement, got %v", err)
	}
	if _, err := repo.CreateSale(ctx, domain.Sale{
		ShiftID: shift.ID, OperatorID: "ana", TotalCents: 500, TenderType: domain.TenderCash,
	}); !errors.Is(err, store.ErrShiftNotOpen) {
		t.Fatalf("expected ErrShiftNotOpen for sale, got %v", err)
	}
	if _, err := repo.CloseShift(ctx, shift.ID, store.ShiftClose{ClosedAt: time.Now().UTC()}); !errors.Is(err, store.ErrShiftNotOpen) {
		t.Fatalf("expected ErrShiftNotOpen on double close, got %v", err)
	}
}

func TestListClosedShiftsSearchAndWindow(t *testing.T) {
	repo := NewSeeded()
	ctx := context.Background()

	shift, err := repo.CreateShift(ctx, domain.Shift{OperatorID: "ana", OpeningFloatCents: 1000})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	closedAt := time.Date(2026, 3, 2, 18, 0, 0, 0, time.UTC)
	if _, err := repo.CloseShift(ctx, shift.ID, store.ShiftClose{
		Observations: "Faltante tras turno largo",
		ClosedAt:     closedAt,
	}); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	byText, err := repo.ListClosedShifts(ctx, domain.ClosedShiftFilter{SearchText: "faltante", Limit: 10})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(byText) != 1 {
		t.Fatalf("expected search to match observations, got %d results", len(byText))
	}

	before := closedAt.Add(-time.Hour)
	outside, err := repo.ListClosedShifts(ctx, domain.ClosedShiftFilter{To: &before, Limit: 10})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(outside) != 0 {
		t.Fatalf("expected window before close to be empty, got %d", len(outside))
	}
}
