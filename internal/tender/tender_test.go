package tender

import (
	"testing"

	"arqueo/backend/internal/domain"
)

func TestDecomposeSingleTenders(t *testing.T) {
	cases := []struct {
		tenderType string
		wantCash   int64
		wantCard   int64
		wantWire   int64
	}{
		{domain.TenderCash, 5000, 0, 0},
		{domain.TenderCard, 0, 5000, 0},
		{domain.TenderTransfer, 0, 0, 5000},
		{domain.TenderCredit, 0, 0, 0},
	}
	for _, tc := range cases {
		alloc := Decompose(domain.Sale{TotalCents: 5000, TenderType: tc.tenderType})
		if alloc.Flagged {
			t.Fatalf("%s: unexpected flag", tc.tenderType)
		}
		if alloc.CashCents != tc.wantCash || alloc.CardCents != tc.wantCard || alloc.TransferCents != tc.wantWire {
			t.Fatalf("%s: got cash=%d card=%d transfer=%d", tc.tenderType, alloc.CashCents, alloc.CardCents, alloc.TransferCents)
		}
	}
}

func TestDecomposeMixedSplitsIntoBuckets(t *testing.T) {
	alloc := Decompose(domain.Sale{
		TotalCents: 8000,
		TenderType: domain.TenderMixed,
		Splits: []domain.TenderSplit{
			{Method: domain.TenderCash, AmountCents: 3000},
			{Method: domain.TenderCard, AmountCents: 5000},
		},
	})
	if alloc.Flagged {
		t.Fatalf("unexpected flag on well-formed mixed sale")
	}
	if alloc.CashCents != 3000 || alloc.CardCents != 5000 || alloc.TransferCents != 0 {
		t.Fatalf("got cash=%d card=%d transfer=%d", alloc.CashCents, alloc.CardCents, alloc.TransferCents)
	}
}

func TestDecomposeFlagsMalformedAllocations(t *testing.T) {
	cases := []struct {
		name string
		sale domain.Sale
	}{
		{"stored flag", domain.Sale{TotalCents: 1000, TenderType: domain.TenderCash, AllocationFlagged: true}},
		{"unknown tender", domain.Sale{TotalCents: 1000, TenderType: "voucher"}},
		{"mixed without splits", domain.Sale{TotalCents: 1000, TenderType: domain.TenderMixed}},
		{"too many splits", domain.Sale{TotalCents: 4000, TenderType: domain.TenderMixed, Splits: []domain.TenderSplit{
			{Method: domain.TenderCash, AmountCents: 1000},
			{Method: domain.TenderCard, AmountCents: 1000},
			{Method: domain.TenderTransfer, AmountCents: 1000},
			{Method: domain.TenderCash, AmountCents: 1000},
		}}},
		{"credit inside split", domain.Sale{TotalCents: 2000, TenderType: domain.TenderMixed, Splits: []domain.TenderSplit{
			{Method: domain.TenderCash, AmountCents: 1000},
			{Method: domain.TenderCredit, AmountCents: 1000},
		}}},
		{"non-positive split", domain.Sale{TotalCents: 2000, TenderType: domain.TenderMixed, Splits: []domain.TenderSplit{
			{Method: domain.TenderCash, AmountCents: 0},
			{Method: domain.TenderCard, AmountCents: 2000},
		}}},
	}
	for _, tc := range cases {
		alloc := Decompose(tc.sale)
		if !alloc.Flagged {
			t.Fatalf("%s: expected flagged allocation", tc.name)
		}
		if alloc.CashCents != 0 || alloc.CardCents != 0 || alloc.TransferCents != 0 {
			t.Fatalf("%s: flagged allocation must contribute zero to every bucket", tc.name)
		}
	}
}

func TestValidateRequestAcceptsSplitSumWithinTolerance(t *testing.T) {
	splits := []domain.TenderSplit{
		{Method: domain.TenderCash, AmountCents: 3000},
		{Method: domain.TenderCard, AmountCents: 5001},
	}
	if err := ValidateRequest(8000, domain.TenderMixed, splits); err != nil {
		t.Fatalf("one-cent overage should be tolerated, got %v", err)
	}
}

func TestValidateRequestRejections(t *testing.T) {
	cases := []struct {
		name       string
		total      int64
		tenderType string
		splits     []domain.TenderSplit
	}{
		{"unknown tender", 1000, "voucher", nil},
		{"splits on single tender", 1000, domain.TenderCash, []domain.TenderSplit{{Method: domain.TenderCash, AmountCents: 1000}}},
		{"one split only", 1000, domain.TenderMixed, []domain.TenderSplit{{Method: domain.TenderCash, AmountCents: 1000}}},
		{"sum off by two cents", 8000, domain.TenderMixed, []domain.TenderSplit{
			{Method: domain.TenderCash, AmountCents: 3000},
			{Method: domain.TenderCard, AmountCents: 5002},
		}},
		{"credit in split", 2000, domain.TenderMixed, []domain.TenderSplit{
			{Method: domain.TenderCredit, AmountCents: 1000},
			{Method: domain.TenderCash, AmountCents: 1000},
		}},
	}
	for _, tc := range cases {
		if err := ValidateRequest(tc.total, tc.tenderType, tc.splits); err == nil {
			t.Fatalf("%s: expected validation error", tc.name)
		}
	}
}
