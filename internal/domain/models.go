package domain

import "time"

// Tender methods. "credit" is a standalone terminal tender recorded against a
// customer account; it never touches the cash drawer and never appears inside
// a mixed split.
const (
	TenderCash     = "cash"
	TenderCard     = "card"
	TenderTransfer = "transfer"
	TenderCredit   = "credit"
	TenderMixed    = "mixed"
)

const (
	ShiftStatusOpen   = "open"
	ShiftStatusClosed = "closed"
)

const (
	MovementIn  = "in"
	MovementOut = "out"
)

// Reconciliation outcome at close: counted matches expected within one cent,
// or "sobra" (overage) / "falta" (shortage).
const (
	ReconciliationMatched  = "matched"
	ReconciliationOverage  = "sobra"
	ReconciliationShortage = "falta"
)

// MaxTenderSplits bounds a mixed allocation.
const MaxTenderSplits = 3

// SplitToleranceCents is the allowed gap between a mixed allocation's sum and
// the sale total at construction time.
const SplitToleranceCents = int64(1)

type Shift struct {
	ID                string     `json:"id"`
	OperatorID        string     `json:"operator_id"`
	OpeningFloatCents int64      `json:"opening_float_cents"`
	Status            string     `json:"status"`
	OpenedAt          time.Time  `json:"opened_at"`
	ClosedAt          *time.Time `json:"closed_at,omitempty"`
	CountedCashCents  int64      `json:"counted_cash_cents,omitempty"`
	ExpectedCashCents int64      `json:"expected_cash_cents,omitempty"`
	DifferenceCents   int64      `json:"difference_cents,omitempty"`
	Observations      string     `json:"observations,omitempty"`
}

type CashMovement struct {
	ID          string    `json:"id"`
	ShiftID     string    `json:"shift_id"`
	Direction   string    `json:"direction"`
	AmountCents int64     `json:"amount_cents"`
	Reason      string    `json:"reason"`
	CreatedAt   time.Time `json:"created_at"`
}

type TenderSplit struct {
	Method      string `json:"method"`
	AmountCents int64  `json:"amount_cents"`
}

type SaleLine struct {
	Description    string  `json:"description"`
	Qty            int     `json:"qty"`
	UnitPriceCents int64   `json:"unit_price_cents"`
	UnitCostCents  int64   `json:"unit_cost_cents"`
	TaxRatePercent float64 `json:"tax_rate_percent"`
}

type Sale struct {
	ID         string        `json:"id"`
	OperatorID string        `json:"operator_id"`
	ShiftID    string        `json:"shift_id"`
	TotalCents int64         `json:"total_cents"`
	TenderType string        `json:"tender_type"`
	Splits     []TenderSplit `json:"splits,omitempty"`
	// AllocationFlagged marks a sale whose tender allocation failed
	// construction-time validation. The sale is kept but contributes nothing
	// to the cash buckets until reviewed.
	AllocationFlagged bool       `json:"allocation_flagged,omitempty"`
	Lines             []SaleLine `json:"lines,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
}

type ShiftOpenRequest struct {
	OperatorID        string `json:"operator_id"`
	OpeningFloatCents int64  `json:"opening_float_cents"`
}

type ShiftResponse struct {
	Shift Shift `json:"shift"`
}

type MovementRequest struct {
	Direction   string `json:"direction"`
	AmountCents int64  `json:"amount_cents"`
	Reason      string `json:"reason"`
}

type MovementResponse struct {
	Movement CashMovement `json:"movement"`
}

type ShiftCloseRequest struct {
	CountedCashCents int64  `json:"counted_cash_cents"`
	Observations     string `json:"observations"`
	ManagerPIN       string `json:"manager_pin"`
}

type RecordSaleRequest struct {
	OperatorID string        `json:"operator_id"`
	TotalCents int64         `json:"total_cents"`
	TenderType string        `json:"tender_type"`
	Splits     []TenderSplit `json:"splits,omitempty"`
	Lines      []SaleLine    `json:"lines,omitempty"`
}

type RecordSaleResponse struct {
	Sale Sale `json:"sale"`
	// AllocationError carries the reason a flagged sale needs manual
	// reconciliation. Empty for well-formed sales.
	AllocationError string `json:"allocation_error,omitempty"`
}

// SalesBreakdown is the per-tender view of a shift's sales. TotalCents sums
// every attributed sale regardless of tender and is display-only.
type SalesBreakdown struct {
	CashCents     int64 `json:"cash_cents"`
	CardCents     int64 `json:"card_cents"`
	TransferCents int64 `json:"transfer_cents"`
	TotalCents    int64 `json:"total_cents"`
}

type TimelineEntry struct {
	Kind        string    `json:"kind"` // "sale" or "movement"
	ID          string    `json:"id"`
	Direction   string    `json:"direction"`
	AmountCents int64     `json:"amount_cents"`
	Label       string    `json:"label"`
	At          time.Time `json:"at"`
}

type BalanceResponse struct {
	ShiftID           string          `json:"shift_id"`
	OpeningFloatCents int64           `json:"opening_float_cents"`
	ExpectedCashCents int64           `json:"expected_cash_cents"`
	Sales             SalesBreakdown  `json:"sales"`
	MovementsInCents  int64           `json:"movements_in_cents"`
	MovementsOutCents int64           `json:"movements_out_cents"`
	FlaggedSaleIDs    []string        `json:"flagged_sale_ids,omitempty"`
	Timeline          []TimelineEntry `json:"timeline"`
}

type ReconciliationReport struct {
	ShiftID           string         `json:"shift_id"`
	OperatorID        string         `json:"operator_id"`
	OpeningFloatCents int64          `json:"opening_float_cents"`
	Sales             SalesBreakdown `json:"sales"`
	MovementsInCents  int64          `json:"movements_in_cents"`
	MovementsOutCents int64          `json:"movements_out_cents"`
	ExpectedCashCents int64          `json:"expected_cash_cents"`
	CountedCashCents  int64          `json:"counted_cash_cents"`
	DifferenceCents   int64          `json:"difference_cents"`
	Classification    string         `json:"classification"`
	Observations      string         `json:"observations,omitempty"`
	FlaggedSaleIDs    []string       `json:"flagged_sale_ids,omitempty"`
	OpenedAt          string         `json:"opened_at"`
	ClosedAt          string         `json:"closed_at,omitempty"`
}

type ClosedShiftSummary struct {
	ShiftID           string `json:"shift_id"`
	OperatorID        string `json:"operator_id"`
	OpeningFloatCents int64  `json:"opening_float_cents"`
	ExpectedCashCents int64  `json:"expected_cash_cents"`
	CountedCashCents  int64  `json:"counted_cash_cents"`
	DifferenceCents   int64  `json:"difference_cents"`
	Classification    string `json:"classification"`
	OpenedAt          string `json:"opened_at"`
	ClosedAt          string `json:"closed_at"`
}

type ClosedShiftFilter struct {
	OperatorID string
	From       *time.Time
	To         *time.Time
	SearchText string
	Limit      int
	Offset     int
}

type ClosedShiftListResponse struct {
	Shifts []ClosedShiftSummary `json:"shifts"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	ExpiresAt   string `json:"expires_at"`
}

type Actor struct {
	Username string
	Role     string
}

type OperatorCreateRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type OperatorUser struct {
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// UserAccount is an internal persistence model for auth credentials.
type UserAccount struct {
	Username  string
	Password  string
	Role      string
	Active    bool
	CreatedAt time.Time
}

type AuditLog struct {
	ID            string    `json:"id"`
	ActorUsername string    `json:"actor_username"`
	ActorRole     string    `json:"actor_role"`
	Action        string    `json:"action"`
	EntityType    string    `json:"entity_type"`
	EntityID      string    `json:"entity_id"`
	Detail        string    `json:"detail"`
	CreatedAt     time.Time `json:"created_at"`
}
