// Package balance recomputes a shift's cash position from the full event set
// on every call. There is no running total anywhere: the stored ledger events
// are the only source of truth, so retries and partial failures can never
// make the displayed balance drift from the sum of what actually happened.
package balance

import (
	"sort"

	"arqueo/backend/internal/domain"
	"arqueo/backend/internal/tender"
)

// Summary is the computed cash position of one shift.
type Summary struct {
	OpeningFloatCents int64
	ExpectedCashCents int64
	Sales             domain.SalesBreakdown
	MovementsInCents  int64
	MovementsOutCents int64
	FlaggedSaleIDs    []string
	Timeline          []domain.TimelineEntry
}

// Compute folds the shift's attributed sales and movements into the expected
// cash balance and per-tender breakdown. The fold is commutative over the
// event set; ordering only matters for the human-readable timeline, which is
// sorted newest first.
func Compute(shift domain.Shift, sales []domain.Sale, movements []domain.CashMovement) Summary {
	summary := Summary{
		OpeningFloatCents: shift.OpeningFloatCents,
	}

	timeline := make([]domain.TimelineEntry, 0, len(sales)+len(movements))

	for _, sale := range sales {
		alloc := tender.Decompose(sale)
		if alloc.Flagged {
			summary.FlaggedSaleIDs = append(summary.FlaggedSaleIDs, sale.ID)
		}
		summary.Sales.CashCents += alloc.CashCents
		summary.Sales.CardCents += alloc.CardCents
		summary.Sales.TransferCents += alloc.TransferCents
		summary.Sales.TotalCents += sale.TotalCents

		// Only the cash portion of a sale touches the drawer.
		if alloc.CashCents > 0 {
			timeline = append(timeline, domain.TimelineEntry{
				Kind:        "sale",
				ID:          sale.ID,
				Direction:   domain.MovementIn,
				AmountCents: alloc.CashCents,
				Label:       "sale " + sale.TenderType,
				At:          sale.CreatedAt,
			})
		}
	}

	for _, movement := range movements {
		switch movement.Direction {
		case domain.MovementIn:
			summary.MovementsInCents += movement.AmountCents
		case domain.MovementOut:
			summary.MovementsOutCents += movement.AmountCents
		}
		timeline = append(timeline, domain.TimelineEntry{
			Kind:        "movement",
			ID:          movement.ID,
			Direction:   movement.Direction,
			AmountCents: movement.AmountCents,
			Label:       movement.Reason,
			At:          movement.CreatedAt,
		})
	}

	sort.SliceStable(timeline, func(i, j int) bool {
		return timeline[i].At.After(timeline[j].At)
	})
	summary.Timeline = timeline

	summary.ExpectedCashCents = shift.OpeningFloatCents +
		summary.Sales.CashCents +
		summary.MovementsInCents -
		summary.MovementsOutCents

	return summary
}

// EpsilonCents is the reconciliation tolerance at close: one minor currency
// unit, absorbing rounding noise only.
const EpsilonCents = int64(1)

// Classify maps a close-time difference (counted - expected) to its
// reconciliation outcome: matched when |difference| < epsilon, otherwise
// overage for positive and shortage for negative differences.
func Classify(differenceCents int64) string {
	abs := differenceCents
	if abs < 0 {
		abs = -abs
	}
	switch {
	case abs < EpsilonCents:
		return domain.ReconciliationMatched
	case differenceCents > 0:
		return domain.ReconciliationOverage
	default:
		return domain.ReconciliationShortage
	}
}
