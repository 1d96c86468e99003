package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"arqueo/backend/internal/domain"
	"arqueo/backend/internal/store"
	"arqueo/backend/internal/xid"
)

type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) CreateShift(ctx context.Context, shift domain.Shift) (*domain.Shift, error) {
	if strings.TrimSpace(shift.OperatorID) == "" {
		return nil, store.ErrInvalidInput
	}
	if shift.OpeningFloatCents < 0 {
		return nil, store.ErrInvalidAmount
	}
	if shift.ID == "" {
		shift.ID = xid.New("shift")
	}
	if shift.OpenedAt.IsZero() {
		shift.OpenedAt = time.Now().UTC()
	}
	shift.Status = domain.ShiftStatusOpen
	shift.ClosedAt = nil

	// The partial unique index on (operator_id) WHERE status = 'open' makes
	// this insert the atomic single-open-shift check; no read-then-write.
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO shifts (
			id, operator_id, opening_float_cents, status, opened_at
		)
		VALUES ($1,$2,$3,$4,$5)
	`, shift.ID, shift.OperatorID, shift.OpeningFloatCents, shift.Status, shift.OpenedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrShiftAlreadyOpen
		}
		return nil, err
	}
	saved := shift
	return &saved, nil
}

const shiftColumns = `
	id, operator_id, opening_float_cents, status, opened_at, closed_at,
	counted_cash_cents, expected_cash_cents, difference_cents, observations
`

func scanShift(row interface{ Scan(...any) error }) (*domain.Shift, error) {
	var shift domain.Shift
	var closedAt sql.NullTime
	var counted, expected, difference sql.NullInt64
	var observations sql.NullString
	err := row.Scan(
		&shift.ID,
		&shift.OperatorID,
		&shift.OpeningFloatCents,
		&shift.Status,
		&shift.OpenedAt,
		&closedAt,
		&counted,
		&expected,
		&difference,
		&observations,
	)
	if err != nil {
		return nil, err
	}
	shift.OpenedAt = shift.OpenedAt.UTC()
	if closedAt.Valid {
		at := closedAt.Time.UTC()
		shift.ClosedAt = &at
	}
	shift.CountedCashCents = counted.Int64
	shift.ExpectedCashCents = expected.Int64
	shift.DifferenceCents = difference.Int64
	shift.Observations = observations.String
	return &shift, nil
}

func (s *Store) GetShift(ctx context.Context, shiftID string) (*domain.Shift, error) {
	shift, err := scanShift(s.db.QueryRowContext(ctx, `
		SELECT `+shiftColumns+`
		FROM shifts
		WHERE id = $1
	`, shiftID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return shift, nil
}

func (s *Store) GetOpenShiftByOperator(ctx context.Context, operatorID string) (*domain.Shift, error) {
	shift, err := scanShift(s.db.QueryRowContext(ctx, `
		SELECT `+shiftColumns+`
		FROM shifts
		WHERE operator_id = $1 AND status = 'open'
		LIMIT 1
	`, operatorID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return shift, nil
}

func (s *Store) CloseShift(ctx context.Context, shiftID string, close store.ShiftClose) (*domain.Shift, error) {
	closedAt := close.ClosedAt
	if closedAt.IsZero() {
		closedAt = time.Now().UTC()
	}

	shift, err := scanShift(s.db.QueryRowContext(ctx, `
		UPDATE shifts
		SET status = 'closed',
			counted_cash_cents = $2,
			expected_cash_cents = $3,
			difference_cents = $4,
			observations = $5,
			closed_at = $6
		WHERE id = $1 AND status = 'open'
		RETURNING `+shiftColumns+`
	`, shiftID, close.CountedCashCents, close.ExpectedCashCents, close.DifferenceCents,
		close.Observations, closedAt))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrShiftNotOpen
		}
		return nil, err
	}
	return shift, nil
}

func (s *Store) ListClosedShifts(ctx context.Context, filter domain.ClosedShiftFilter) ([]domain.Shift, error) {
	query := `
		SELECT ` + shiftColumns + `
		FROM shifts
		WHERE status = 'closed'
	`
	args := make([]any, 0, 6)
	if filter.OperatorID != "" {
		args = append(args, filter.OperatorID)
		query += fmt.Sprintf(" AND operator_id = $%d", len(args))
	}
	if filter.From != nil {
		args = append(args, *filter.From)
		query += fmt.Sprintf(" AND closed_at >= $%d", len(args))
	}
	if filter.To != nil {
		args = append(args, *filter.To)
		query += fmt.Sprintf(" AND closed_at < $%d", len(args))
	}
	if search := strings.TrimSpace(filter.SearchText); search != "" {
		args = append(args, "%"+strings.ToLower(search)+"%")
		query += fmt.Sprintf(" AND (lower(observations) LIKE $%d OR lower(operator_id) LIKE $%d)", len(args), len(args))
	}

	limit := filter.Limit
	if limit < 1 {
		limit = 100
	}
	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY closed_at DESC LIMIT $%d", len(args))
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	shifts := make([]domain.Shift, 0, limit)
	for rows.Next() {
		shift, err := scanShift(rows)
		if err != nil {
			return nil, err
		}
		shifts = append(shifts, *shift)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return shifts, nil
}

func (s *Store) CreateMovement(ctx context.Context, movement domain.CashMovement) (*domain.CashMovement, error) {
	if movement.AmountCents < 1 {
		return nil, store.ErrInvalidAmount
	}
	if movement.Direction != domain.MovementIn && movement.Direction != domain.MovementOut {
		return nil, store.ErrInvalidInput
	}
	if movement.ID == "" {
		movement.ID = xid.New("mov")
	}
	if movement.CreatedAt.IsZero() {
		movement.CreatedAt = time.Now().UTC()
	}

	// Guarded insert: the movement lands only while its shift is open, in the
	// same statement, so there is no window to append to a closed shift.
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO cash_movements (id, shift_id, direction, amount_cents, reason, created_at)
		SELECT $1, $2, $3, $4, $5, $6
		WHERE EXISTS (
			SELECT 1 FROM shifts WHERE id = $2 AND status = 'open'
		)
	`, movement.ID, movement.ShiftID, movement.Direction, movement.AmountCents, movement.Reason, movement.CreatedAt)
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, store.ErrShiftNotOpen
	}
	saved := movement
	return &saved, nil
}

func (s *Store) ListMovementsByShift(ctx context.Context, shiftID string) ([]domain.CashMovement, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, shift_id, direction, amount_cents, reason, created_at
		FROM cash_movements
		WHERE shift_id = $1
		ORDER BY created_at DESC
	`, shiftID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	movements := make([]domain.CashMovement, 0, 32)
	for rows.Next() {
		var movement domain.CashMovement
		if err := rows.Scan(&movement.ID, &movement.ShiftID, &movement.Direction,
			&movement.AmountCents, &movement.Reason, &movement.CreatedAt); err != nil {
			return nil, err
		}
		movement.CreatedAt = movement.CreatedAt.UTC()
		movements = append(movements, movement)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return movements, nil
}

func (s *Store) CreateSale(ctx context.Context, sale domain.Sale) (*domain.Sale, error) {
	if sale.TotalCents < 1 {
		return nil, store.ErrInvalidAmount
	}
	if sale.ID == "" {
		sale.ID = xid.New("sale")
	}
	if sale.CreatedAt.IsZero() {
		sale.CreatedAt = time.Now().UTC()
	}

	splitsJSON, err := encodeSplits(sale.Splits)
	if err != nil {
		return nil, err
	}

	pgTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return nil, err
	}
	defer func() { _ = pgTx.Rollback() }()

	res, err := pgTx.ExecContext(ctx, `
		INSERT INTO sales (
			id, operator_id, shift_id, total_cents, tender_type,
			tender_splits, allocation_flagged, created_at
		)
		SELECT $1, $2, $3, $4, $5, $6, $7, $8
		WHERE EXISTS (
			SELECT 1 FROM shifts WHERE id = $3 AND status = 'open'
		)
	`, sale.ID, sale.OperatorID, sale.ShiftID, sale.TotalCents, sale.TenderType,
		splitsJSON, sale.AllocationFlagged, sale.CreatedAt)
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, store.ErrShiftNotOpen
	}

	for _, line := range sale.Lines {
		_, err := pgTx.ExecContext(ctx, `
			INSERT INTO sale_lines (sale_id, description, qty, unit_price_cents, unit_cost_cents, tax_rate_percent)
			VALUES ($1,$2,$3,$4,$5,$6)
		`, sale.ID, line.Description, line.Qty, line.UnitPriceCents, line.UnitCostCents, line.TaxRatePercent)
		if err != nil {
			return nil, err
		}
	}

	if err := pgTx.Commit(); err != nil {
		return nil, err
	}
	saved := sale
	return &saved, nil
}

func (s *Store) ListSalesByShift(ctx context.Context, shiftID string) ([]domain.Sale, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, operator_id, shift_id, total_cents, tender_type,
			tender_splits, allocation_flagged, created_at
		FROM sales
		WHERE shift_id = $1
		ORDER BY created_at DESC
	`, shiftID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sales := make([]domain.Sale, 0, 64)
	for rows.Next() {
		var sale domain.Sale
		var splitsJSON sql.NullString
		if err := rows.Scan(&sale.ID, &sale.OperatorID, &sale.ShiftID, &sale.TotalCents,
			&sale.TenderType, &splitsJSON, &sale.AllocationFlagged, &sale.CreatedAt); err != nil {
			return nil, err
		}
		sale.CreatedAt = sale.CreatedAt.UTC()
		sale.Splits = decodeSplits(splitsJSON.String)
		sales = append(sales, sale)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range sales {
		lines, err := s.listSaleLines(ctx, sales[i].ID)
		if err != nil {
			return nil, err
		}
		sales[i].Lines = lines
	}
	return sales, nil
}

func (s *Store) listSaleLines(ctx context.Context, saleID string) ([]domain.SaleLine, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT description, qty, unit_price_cents, unit_cost_cents, tax_rate_percent
		FROM sale_lines
		WHERE sale_id = $1
	`, saleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	lines := make([]domain.SaleLine, 0, 8)
	for rows.Next() {
		var line domain.SaleLine
		if err := rows.Scan(&line.Description, &line.Qty, &line.UnitPriceCents,
			&line.UnitCostCents, &line.TaxRatePercent); err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return lines, nil
}

func (s *Store) CreateAuditLog(ctx context.Context, entry domain.AuditLog) error {
	if entry.ID == "" {
		entry.ID = xid.New("audit")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_logs (id, actor_username, actor_role, action, entity_type, entity_id, detail, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, entry.ID, entry.ActorUsername, entry.ActorRole, entry.Action, entry.EntityType, entry.EntityID, entry.Detail, entry.CreatedAt)
	return err
}

func (s *Store) ListAuditLogs(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	if limit < 1 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, actor_username, actor_role, action, entity_type, entity_id, detail, created_at
		FROM audit_logs
		WHERE created_at >= $1 AND created_at < $2
		ORDER BY created_at DESC
		LIMIT $3
	`, from, to, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := make([]domain.AuditLog, 0, limit)
	for rows.Next() {
		var entry domain.AuditLog
		if err := rows.Scan(&entry.ID, &entry.ActorUsername, &entry.ActorRole, &entry.Action,
			&entry.EntityType, &entry.EntityID, &entry.Detail, &entry.CreatedAt); err != nil {
			return nil, err
		}
		entry.CreatedAt = entry.CreatedAt.UTC()
		logs = append(logs, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return logs, nil
}

func (s *Store) CreateUser(ctx context.Context, user domain.UserAccount) error {
	if strings.TrimSpace(user.Username) == "" || user.Password == "" {
		return store.ErrInvalidInput
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (username, password, role, active, created_at)
		VALUES ($1,$2,$3,$4,$5)
	`, user.Username, user.Password, user.Role, user.Active, user.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrInvalidInput
		}
		return err
	}
	return nil
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT username, password, role, active, created_at
		FROM users
		ORDER BY username
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]domain.UserAccount, 0, 16)
	for rows.Next() {
		var user domain.UserAccount
		if err := rows.Scan(&user.Username, &user.Password, &user.Role, &user.Active, &user.CreatedAt); err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

func (s *Store) UpdateUserPassword(ctx context.Context, username string, password string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE users SET password = $2 WHERE username = $1
	`, username, password)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func encodeSplits(splits []domain.TenderSplit) (any, error) {
	if len(splits) == 0 {
		return nil, nil
	}
	payload, err := json.Marshal(splits)
	if err != nil {
		return nil, err
	}
	return string(payload), nil
}

func decodeSplits(raw string) []domain.TenderSplit {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" || !strings.HasPrefix(trimmed, "[") {
		return nil
	}
	var splits []domain.TenderSplit
	if err := json.Unmarshal([]byte(trimmed), &splits); err != nil {
		return nil
	}
	return splits
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
