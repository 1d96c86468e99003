package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"arqueo/backend/internal/balance"
	"arqueo/backend/internal/cache"
	"arqueo/backend/internal/domain"
	"arqueo/backend/internal/store"
	"arqueo/backend/internal/tender"
	"arqueo/backend/internal/xid"
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

type Service struct {
	repo         store.Repository
	balanceCache cache.BalanceCache
	balanceTTL   time.Duration
}

func New(repo store.Repository, balanceCache cache.BalanceCache, balanceTTL time.Duration) *Service {
	if balanceCache == nil {
		balanceCache = cache.NoopBalanceCache{}
	}
	if balanceTTL < time.Second {
		balanceTTL = 15 * time.Second
	}

	return &Service{
		repo:         repo,
		balanceCache: balanceCache,
		balanceTTL:   balanceTTL,
	}
}

func (s *Service) OpenShift(ctx context.Context, req domain.ShiftOpenRequest) (domain.ShiftResponse, error) {
	req.OperatorID = strings.TrimSpace(req.OperatorID)
	if req.OperatorID == "" {
		if actor, ok := ActorFromContext(ctx); ok {
			req.OperatorID = actor.Username
		}
	}
	if req.OperatorID == "" {
		return domain.ShiftResponse{}, store.ErrInvalidInput
	}
	if req.OpeningFloatCents < 0 {
		return domain.ShiftResponse{}, store.ErrInvalidAmount
	}

	saved, err := s.repo.CreateShift(ctx, domain.Shift{
		ID:                xid.New("shift"),
		OperatorID:        req.OperatorID,
		OpeningFloatCents: req.OpeningFloatCents,
		Status:            domain.ShiftStatusOpen,
		OpenedAt:          time.Now().UTC(),
	})
	if err != nil {
		return domain.ShiftResponse{}, err
	}

	s.logAudit(ctx, "shift_open", "shift", saved.ID, fmt.Sprintf("operator=%s,float=%d", saved.OperatorID, saved.OpeningFloatCents))
	return domain.ShiftResponse{Shift: *saved}, nil
}

func (s *Service) CurrentShift(ctx context.Context, operatorID string) (domain.ShiftResponse, error) {
	operatorID = strings.TrimSpace(operatorID)
	if operatorID == "" {
		if actor, ok := ActorFromContext(ctx); ok {
			operatorID = actor.Username
		}
	}
	if operatorID == "" {
		return domain.ShiftResponse{}, store.ErrInvalidInput
	}

	shift, err := s.repo.GetOpenShiftByOperator(ctx, operatorID)
	if err != nil {
		return domain.ShiftResponse{}, err
	}
	return domain.ShiftResponse{Shift: *shift}, nil
}

func (s *Service) AddMovement(ctx context.Context, shiftID string, req domain.MovementRequest) (domain.MovementResponse, error) {
	shiftID = strings.TrimSpace(shiftID)
	if shiftID == "" {
		return domain.MovementResponse{}, store.ErrInvalidInput
	}
	if req.Direction != domain.MovementIn && req.Direction != domain.MovementOut {
		return domain.MovementResponse{}, store.ErrInvalidInput
	}
	if req.AmountCents < 1 {
		return domain.MovementResponse{}, store.ErrInvalidAmount
	}
	if _, err := s.authorizeShiftWrite(ctx, shiftID); err != nil {
		return domain.MovementResponse{}, err
	}

	saved, err := s.repo.CreateMovement(ctx, domain.CashMovement{
		ID:          xid.New("mov"),
		ShiftID:     shiftID,
		Direction:   req.Direction,
		AmountCents: req.AmountCents,
		Reason:      strings.TrimSpace(req.Reason),
		CreatedAt:   time.Now().UTC(),
	})
	if err != nil {
		return domain.MovementResponse{}, err
	}

	s.invalidateBalance(ctx, shiftID)
	s.logAudit(ctx, "cash_movement", "movement", saved.ID, fmt.Sprintf("shift=%s,%s=%d", shiftID, saved.Direction, saved.AmountCents))
	return domain.MovementResponse{Movement: *saved}, nil
}

// RecordSale attributes the sale to the operator's currently open shift at
// write time. A malformed tender allocation does not reject the sale: the
// sale is persisted flagged, excluded from the cash buckets, and the response
// carries the reason for manual review.
func (s *Service) RecordSale(ctx context.Context, req domain.RecordSaleRequest) (domain.RecordSaleResponse, error) {
	req.OperatorID = strings.TrimSpace(req.OperatorID)
	if req.OperatorID == "" {
		if actor, ok := ActorFromContext(ctx); ok {
			req.OperatorID = actor.Username
		}
	}
	if req.OperatorID == "" {
		return domain.RecordSaleResponse{}, store.ErrInvalidInput
	}
	if req.TotalCents < 1 {
		return domain.RecordSaleResponse{}, store.ErrInvalidAmount
	}

	shift, err := s.repo.GetOpenShiftByOperator(ctx, req.OperatorID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.RecordSaleResponse{}, store.ErrShiftNotOpen
		}
		return domain.RecordSaleResponse{}, err
	}

	allocationErr := tender.ValidateRequest(req.TotalCents, req.TenderType, req.Splits)

	sale := domain.Sale{
		ID:                xid.New("sale"),
		OperatorID:        req.OperatorID,
		ShiftID:           shift.ID,
		TotalCents:        req.TotalCents,
		TenderType:        req.TenderType,
		Splits:            req.Splits,
		AllocationFlagged: allocationErr != nil,
		Lines:             req.Lines,
		CreatedAt:         time.Now().UTC(),
	}

	saved, err := s.repo.CreateSale(ctx, sale)
	if err != nil {
		return domain.RecordSaleResponse{}, err
	}

	s.invalidateBalance(ctx, shift.ID)
	detail := fmt.Sprintf("shift=%s,total=%d,tender=%s", shift.ID, saved.TotalCents, saved.TenderType)
	if saved.AllocationFlagged {
		detail += ",flagged=true"
	}
	s.logAudit(ctx, "sale_record", "sale", saved.ID, detail)

	resp := domain.RecordSaleResponse{Sale: *saved}
	if allocationErr != nil {
		resp.AllocationError = store.ErrMalformedAllocation.Error() + ": " + allocationErr.Error()
	}
	return resp, nil
}

func (s *Service) CurrentBalance(ctx context.Context, shiftID string) (domain.BalanceResponse, error) {
	shiftID = strings.TrimSpace(shiftID)
	if shiftID == "" {
		return domain.BalanceResponse{}, store.ErrInvalidInput
	}

	if cached, ok, err := s.balanceCache.Get(ctx, shiftID); err != nil {
		log.Printf("[service] WARN: balance cache read shift=%s: %v", shiftID, err)
	} else if ok {
		return *cached, nil
	}

	resp, err := s.computeBalance(ctx, shiftID)
	if err != nil {
		return domain.BalanceResponse{}, err
	}

	if err := s.balanceCache.Set(ctx, shiftID, &resp, s.balanceTTL); err != nil {
		log.Printf("[service] WARN: balance cache write shift=%s: %v", shiftID, err)
	}
	return resp, nil
}

func (s *Service) computeBalance(ctx context.Context, shiftID string) (domain.BalanceResponse, error) {
	shift, err := s.repo.GetShift(ctx, shiftID)
	if err != nil {
		return domain.BalanceResponse{}, err
	}
	summary, err := s.summarize(ctx, *shift)
	if err != nil {
		return domain.BalanceResponse{}, err
	}

	return domain.BalanceResponse{
		ShiftID:           shift.ID,
		OpeningFloatCents: summary.OpeningFloatCents,
		ExpectedCashCents: summary.ExpectedCashCents,
		Sales:             summary.Sales,
		MovementsInCents:  summary.MovementsInCents,
		MovementsOutCents: summary.MovementsOutCents,
		FlaggedSaleIDs:    summary.FlaggedSaleIDs,
		Timeline:          summary.Timeline,
	}, nil
}

// CloseShift reconciles and closes in one step: the expected balance is
// recomputed from the ledger at the moment of close, compared against the
// counted drawer cash, classified, and persisted on the shift row. Close is
// terminal; a second attempt surfaces ErrShiftNotOpen.
func (s *Service) CloseShift(ctx context.Context, shiftID string, req domain.ShiftCloseRequest) (domain.ReconciliationReport, error) {
	shiftID = strings.TrimSpace(shiftID)
	if shiftID == "" {
		return domain.ReconciliationReport{}, store.ErrInvalidInput
	}
	if req.CountedCashCents < 0 {
		return domain.ReconciliationReport{}, store.ErrInvalidAmount
	}

	shift, err := s.authorizeShiftWrite(ctx, shiftID)
	if err != nil {
		return domain.ReconciliationReport{}, err
	}
	if shift.Status != domain.ShiftStatusOpen {
		return domain.ReconciliationReport{}, store.ErrShiftNotOpen
	}

	summary, err := s.summarize(ctx, *shift)
	if err != nil {
		return domain.ReconciliationReport{}, err
	}

	difference := req.CountedCashCents - summary.ExpectedCashCents
	closed, err := s.repo.CloseShift(ctx, shift.ID, store.ShiftClose{
		CountedCashCents:  req.CountedCashCents,
		ExpectedCashCents: summary.ExpectedCashCents,
		DifferenceCents:   difference,
		Observations:      strings.TrimSpace(req.Observations),
		ClosedAt:          time.Now().UTC(),
	})
	if err != nil {
		return domain.ReconciliationReport{}, err
	}

	s.invalidateBalance(ctx, shift.ID)
	s.logAudit(ctx, "shift_close", "shift", closed.ID,
		fmt.Sprintf("counted=%d,expected=%d,diff=%d,outcome=%s",
			closed.CountedCashCents, closed.ExpectedCashCents, closed.DifferenceCents, balance.Classify(closed.DifferenceCents)))

	return buildReport(*closed, summary), nil
}

// ClosedShiftReport rebuilds the reconciliation report for an already closed
// shift. The breakdown is recomputed from the stored events; the close-time
// figures (counted, expected, difference) come from the shift row.
func (s *Service) ClosedShiftReport(ctx context.Context, shiftID string) (domain.ReconciliationReport, error) {
	shift, err := s.repo.GetShift(ctx, strings.TrimSpace(shiftID))
	if err != nil {
		return domain.ReconciliationReport{}, err
	}
	if shift.Status != domain.ShiftStatusClosed {
		return domain.ReconciliationReport{}, store.ErrNotFound
	}

	summary, err := s.summarize(ctx, *shift)
	if err != nil {
		return domain.ReconciliationReport{}, err
	}
	return buildReport(*shift, summary), nil
}

func (s *Service) ListClosedShifts(ctx context.Context, filter domain.ClosedShiftFilter) (domain.ClosedShiftListResponse, error) {
	if filter.Limit < 1 || filter.Limit > 500 {
		filter.Limit = 100
	}

	shifts, err := s.repo.ListClosedShifts(ctx, filter)
	if err != nil {
		return domain.ClosedShiftListResponse{}, err
	}

	summaries := make([]domain.ClosedShiftSummary, 0, len(shifts))
	for _, shift := range shifts {
		summary := domain.ClosedShiftSummary{
			ShiftID:           shift.ID,
			OperatorID:        shift.OperatorID,
			OpeningFloatCents: shift.OpeningFloatCents,
			ExpectedCashCents: shift.ExpectedCashCents,
			CountedCashCents:  shift.CountedCashCents,
			DifferenceCents:   shift.DifferenceCents,
			Classification:    balance.Classify(shift.DifferenceCents),
			OpenedAt:          shift.OpenedAt.Format(time.RFC3339),
		}
		if shift.ClosedAt != nil {
			summary.ClosedAt = shift.ClosedAt.Format(time.RFC3339)
		}
		summaries = append(summaries, summary)
	}
	return domain.ClosedShiftListResponse{Shifts: summaries}, nil
}

func (s *Service) ListAuditLogs(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != "admin" {
		return nil, fmt.Errorf("admin role required")
	}
	if limit < 1 || limit > 1000 {
		limit = 200
	}
	if to.IsZero() {
		to = time.Now().UTC().Add(time.Minute)
	}
	return s.repo.ListAuditLogs(ctx, from, to, limit)
}

// authorizeShiftWrite loads the shift and verifies the acting operator owns
// it; admins may write to any drawer. A missing shift id reads as not-open,
// the same answer every other write against an unknown shift gets.
func (s *Service) authorizeShiftWrite(ctx context.Context, shiftID string) (*domain.Shift, error) {
	shift, err := s.repo.GetShift(ctx, shiftID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, store.ErrShiftNotOpen
		}
		return nil, err
	}
	if actor, ok := ActorFromContext(ctx); ok && actor.Role != "admin" && actor.Username != shift.OperatorID {
		return nil, store.ErrNotShiftOwner
	}
	return shift, nil
}

func (s *Service) summarize(ctx context.Context, shift domain.Shift) (balance.Summary, error) {
	sales, err := s.repo.ListSalesByShift(ctx, shift.ID)
	if err != nil {
		return balance.Summary{}, err
	}
	movements, err := s.repo.ListMovementsByShift(ctx, shift.ID)
	if err != nil {
		return balance.Summary{}, err
	}
	return balance.Compute(shift, sales, movements), nil
}

func buildReport(shift domain.Shift, summary balance.Summary) domain.ReconciliationReport {
	report := domain.ReconciliationReport{
		ShiftID:           shift.ID,
		OperatorID:        shift.OperatorID,
		OpeningFloatCents: shift.OpeningFloatCents,
		Sales:             summary.Sales,
		MovementsInCents:  summary.MovementsInCents,
		MovementsOutCents: summary.MovementsOutCents,
		ExpectedCashCents: shift.ExpectedCashCents,
		CountedCashCents:  shift.CountedCashCents,
		DifferenceCents:   shift.DifferenceCents,
		Classification:    balance.Classify(shift.DifferenceCents),
		Observations:      shift.Observations,
		FlaggedSaleIDs:    summary.FlaggedSaleIDs,
		OpenedAt:          shift.OpenedAt.Format(time.RFC3339),
	}
	if shift.ClosedAt != nil {
		report.ClosedAt = shift.ClosedAt.Format(time.RFC3339)
	}
	return report
}

func (s *Service) invalidateBalance(ctx context.Context, shiftID string) {
	if err := s.balanceCache.Invalidate(ctx, shiftID); err != nil {
		log.Printf("[service] WARN: balance cache invalidate shift=%s: %v", shiftID, err)
	}
}

func (s *Service) logAudit(ctx context.Context, action string, entityType string, entityID string, detail string) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		actor = domain.Actor{Username: "system", Role: "system"}
	}

	if err := s.repo.CreateAuditLog(ctx, domain.AuditLog{
		ID:            xid.New("audit"),
		ActorUsername: actor.Username,
		ActorRole:     actor.Role,
		Action:        action,
		EntityType:    entityType,
		EntityID:      entityID,
		Detail:        detail,
		CreatedAt:     time.Now().UTC(),
	}); err != nil {
		log.Printf("[audit] WARN: failed to write audit log action=%s entity=%s/%s: %v", action, entityType, entityID, err)
	}
}
