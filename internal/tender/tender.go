// Package tender turns a recorded sale into per-method amounts for the cash
// drawer ledger. Decomposition is a pure fold over the stored allocation:
// validation against the sale total happened on the write path, never here.
package tender

import (
	"errors"

	"arqueo/backend/internal/domain"
)

var (
	errUnknownTender  = errors.New("unknown tender type")
	errSplitsOnSingle = errors.New("splits not allowed on a single-tender sale")
	errSplitCount     = errors.New("mixed allocation needs 2 or 3 entries")
	errSplitMethod    = errors.New("mixed allocation only accepts cash, card or transfer")
	errSplitAmount    = errors.New("split amounts must be positive")
	errSplitSum       = errors.New("split amounts do not sum to the sale total")
)

// Allocation is the drawer-relevant split of one sale. Credit sales
// contribute zero to every bucket; they live on the receivables side.
type Allocation struct {
	CashCents     int64
	CardCents     int64
	TransferCents int64
	// Flagged marks a sale whose allocation is missing or malformed. The
	// whole sale contributes zero to every bucket and needs manual
	// reconciliation; it must never be silently treated as all-cash.
	Flagged bool
}

// Decompose maps a sale to its tender buckets.
func Decompose(sale domain.Sale) Allocation {
	if sale.AllocationFlagged {
		return Allocation{Flagged: true}
	}

	switch sale.TenderType {
	case domain.TenderCash:
		return Allocation{CashCents: sale.TotalCents}
	case domain.TenderCard:
		return Allocation{CardCents: sale.TotalCents}
	case domain.TenderTransfer:
		return Allocation{TransferCents: sale.TotalCents}
	case domain.TenderCredit:
		return Allocation{}
	case domain.TenderMixed:
		return decomposeMixed(sale.Splits)
	default:
		return Allocation{Flagged: true}
	}
}

func decomposeMixed(splits []domain.TenderSplit) Allocation {
	if len(splits) == 0 || len(splits) > domain.MaxTenderSplits {
		return Allocation{Flagged: true}
	}

	var alloc Allocation
	for _, split := range splits {
		if split.AmountCents < 1 {
			return Allocation{Flagged: true}
		}
		switch split.Method {
		case domain.TenderCash:
			alloc.CashCents += split.AmountCents
		case domain.TenderCard:
			alloc.CardCents += split.AmountCents
		case domain.TenderTransfer:
			alloc.TransferCents += split.AmountCents
		default:
			// Unknown method or credit inside a split.
			return Allocation{Flagged: true}
		}
	}
	return alloc
}

// ValidateRequest checks a tender description at construction time: a single
// supported method covering the full total, or a mixed split of up to three
// cash/card/transfer entries summing to the total within tolerance. Returns
// nil when the allocation is well-formed.
func ValidateRequest(totalCents int64, tenderType string, splits []domain.TenderSplit) error {
	switch tenderType {
	case domain.TenderCash, domain.TenderCard, domain.TenderTransfer, domain.TenderCredit:
		if len(splits) > 0 {
			return errSplitsOnSingle
		}
		return nil
	case domain.TenderMixed:
		return validateSplits(totalCents, splits)
	default:
		return errUnknownTender
	}
}

func validateSplits(totalCents int64, splits []domain.TenderSplit) error {
	if len(splits) < 2 || len(splits) > domain.MaxTenderSplits {
		return errSplitCount
	}
	sum := int64(0)
	for _, split := range splits {
		switch split.Method {
		case domain.TenderCash, domain.TenderCard, domain.TenderTransfer:
		default:
			return errSplitMethod
		}
		if split.AmountCents < 1 {
			return errSplitAmount
		}
		sum += split.AmountCents
	}
	diff := sum - totalCents
	if diff < -domain.SplitToleranceCents || diff > domain.SplitToleranceCents {
		return errSplitSum
	}
	return nil
}
