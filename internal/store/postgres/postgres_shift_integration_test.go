package postgres

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"arqueo/backend/internal/domain"
	"arqueo/backend/internal/store"
)

func TestShiftLifecycleIntegration(t *testing.T) {
	databaseURL := os.Getenv("ARQUEO_TEST_DATABASE_URL")
	if databaseURL == "" {
		t.Skip("set ARQUEO_TEST_DATABASE_URL to run postgres integration test")
	}

	ctx := context.Background()
	s, err := New(ctx, databaseURL)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() {
		_ = s.Close()
	})

	stamp := time.Now().UnixNano()
	operatorID := fmt.Sprintf("op-it-%d", stamp)

	t.Cleanup(func() {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM sale_lines WHERE sale_id IN (SELECT id FROM sales WHERE operator_id = $1)`, operatorID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM sales WHERE operator_id = $1`, operatorID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM cash_movements WHERE shift_id IN (SELECT id FROM shifts WHERE operator_id = $1)`, operatorID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM shifts WHERE operator_id = $1`, operatorID)
	})

	shift, err := s.CreateShift(ctx, domain.Shift{
		OperatorID:        operatorID,
		OpeningFloatCents: 10000,
	})
	if err != nil {
		t.Fatalf("create shift: %v", err)
	}

	// The partial unique index must reject a second open shift.
	if _, err := s.CreateShift(ctx, domain.Shift{
		OperatorID:        operatorID,
		OpeningFloatCents: 5000,
	}); !errors.Is(err, store.ErrShiftAlreadyOpen) {
		t.Fatalf("expected ErrShiftAlreadyOpen, got %v", err)
	}

	if _, err := s.CreateSale(ctx, domain.Sale{
		OperatorID: operatorID,
		ShiftID:    shift.ID,
		TotalCents: 5000,
		TenderType: domain.TenderCash,
		Lines: []domain.SaleLine{
			{Description: "café", Qty: 2, UnitPriceCents: 2500},
		},
	}); err != nil {
		t.Fatalf("create sale: %v", err)
	}

	if _, err := s.CreateMovement(ctx, domain.CashMovement{
		ShiftID:     shift.ID,
		Direction:   domain.MovementOut,
		AmountCents: 2000,
		Reason:      "supplier",
	}); err != nil {
		t.Fatalf("create movement: %v", err)
	}

	closed, err := s.CloseShift(ctx, shift.ID, store.ShiftClose{
		CountedCashCents:  13000,
		ExpectedCashCents: 13000,
		DifferenceCents:   0,
		ClosedAt:          time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("close shift: %v", err)
	}
	if closed.Status != domain.ShiftStatusClosed || closed.ClosedAt == nil {
		t.Fatalf("expected closed shift, got %+v", closed)
	}

	// Closed shifts reject further writes and a second close.
	if _, err := s.CreateMovement(ctx, domain.CashMovement{
		ShiftID: shift.ID, Direction: domain.MovementIn, AmountCents: 100,
	}); !errors.Is(err, store.ErrShiftNotOpen) {
		t.Fatalf("expected ErrShiftNotOpen for movement, got %v", err)
	}
	if _, err := s.CloseShift(ctx, shift.ID, store.ShiftClose{ClosedAt: time.Now().UTC()}); !errors.Is(err, store.ErrShiftNotOpen) {
		t.Fatalf("expected ErrShiftNotOpen on double close, got %v", err)
	}

	sales, err := s.ListSalesByShift(ctx, shift.ID)
	if err != nil {
		t.Fatalf("list sales: %v", err)
	}
	if len(sales) != 1 || len(sales[0].Lines) != 1 {
		t.Fatalf("expected one sale with one line, got %+v", sales)
	}

	listed, err := s.ListClosedShifts(ctx, domain.ClosedShiftFilter{OperatorID: operatorID, Limit: 10})
	if err != nil {
		t.Fatalf("list closed: %v", err)
	}
	if len(listed) != 1 || listed[0].CountedCashCents != 13000 {
		t.Fatalf("expected one closed shift with counted 13000, got %+v", listed)
	}
}
