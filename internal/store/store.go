package store

import (
	"context"
	"errors"
	"time"

	"arqueo/backend/internal/domain"
)

var (
	ErrNotFound = errors.New("not found")
	// ErrShiftAlreadyOpen is returned when an operator attempts to open a
	// second shift while one is still open. Non-retryable until the existing
	// shift is closed.
	ErrShiftAlreadyOpen = errors.New("operator already has an open shift")
	// ErrShiftNotOpen is returned for movements, sales or close attempts
	// against a closed or nonexistent shift. Indicates stale client state.
	ErrShiftNotOpen = errors.New("shift is not open")
	// ErrInvalidAmount covers negative floats, non-positive movement amounts
	// and other amount validation failures. Rejected before any write.
	ErrInvalidAmount = errors.New("invalid amount")
	// ErrInvalidInput covers non-amount validation failures (missing ids,
	// blank usernames, unknown directions).
	ErrInvalidInput = errors.New("invalid input")
	// ErrNotShiftOwner is returned when an operator writes to a drawer shift
	// opened by a different operator. Admin actors are exempt.
	ErrNotShiftOwner = errors.New("shift belongs to another operator")
	// ErrMalformedAllocation marks a mixed-tender allocation that does not
	// parse or does not sum to the sale total within tolerance. The sale is
	// still recorded, flagged for manual reconciliation.
	ErrMalformedAllocation = errors.New("malformed tender allocation")
)

// ShiftClose carries the write-once fields persisted when a shift
// transitions to closed.
type ShiftClose struct {
	CountedCashCents  int64
	ExpectedCashCents int64
	DifferenceCents   int64
	Observations      string
	ClosedAt          time.Time
}

type Repository interface {
	// CreateShift persists a new open shift. Implementations must enforce the
	// single-open-shift-per-operator invariant atomically and return
	// ErrShiftAlreadyOpen on conflict.
	CreateShift(ctx context.Context, shift domain.Shift) (*domain.Shift, error)
	GetShift(ctx context.Context, shiftID string) (*domain.Shift, error)
	GetOpenShiftByOperator(ctx context.Context, operatorID string) (*domain.Shift, error)
	// CloseShift fills the closing fields and flips status to closed, only if
	// the shift is currently open; ErrShiftNotOpen otherwise. Closed shifts
	// are immutable.
	CloseShift(ctx context.Context, shiftID string, close ShiftClose) (*domain.Shift, error)
	ListClosedShifts(ctx context.Context, filter domain.ClosedShiftFilter) ([]domain.Shift, error)

	// CreateMovement appends a cash movement; the owning shift must be open.
	CreateMovement(ctx context.Context, movement domain.CashMovement) (*domain.CashMovement, error)
	ListMovementsByShift(ctx context.Context, shiftID string) ([]domain.CashMovement, error)

	// CreateSale appends a sale stamped with its owning shift id; the shift
	// must be open.
	CreateSale(ctx context.Context, sale domain.Sale) (*domain.Sale, error)
	ListSalesByShift(ctx context.Context, shiftID string) ([]domain.Sale, error)

	CreateAuditLog(ctx context.Context, entry domain.AuditLog) error
	ListAuditLogs(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error)

	CreateUser(ctx context.Context, user domain.UserAccount) error
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	UpdateUserPassword(ctx context.Context, username string, password string) error
}
