/*
Package postgres provides a PostgreSQL-backed implementation of ledger.Store.

PURPOSE:
  Dialect twin of store/sqlite for deployments that already run Postgres.
  Same tables, same invariants; only placeholders and DDL types differ.

USAGE:
  db, err := sql.Open("postgres", os.Getenv("DATABASE_URL"))
  ...
  store, err := postgres.New(db)

SEE ALSO:
  - ledger/store.go: interface definition
  - store/sqlite: SQLite implementation with the schema rationale
*/
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/kampus/tuition-ledger/ledger"
)

// Store implements ledger.Store using PostgreSQL.
type Store struct {
	db *sql.DB
}

// New wraps an open Postgres connection and ensures the schema exists.
func New(db *sql.DB) (*Store, error) {
	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Open connects with the given DSN and ensures the schema exists.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	store, err := New(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

var _ ledger.Store = (*Store)(nil)

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS payment_plans (
		id TEXT PRIMARY KEY,
		student_id TEXT NOT NULL,
		course_id TEXT NOT NULL,
		month_reference TEXT NOT NULL,
		due_date DATE NOT NULL,
		amount_due NUMERIC(14, 2) NOT NULL,
		recorded_status TEXT NOT NULL DEFAULT 'pending',
		observations TEXT,
		created_at TIMESTAMPTZ NOT NULL,
		UNIQUE (student_id, course_id, month_reference)
	);

	CREATE INDEX IF NOT EXISTS idx_plans_student_course
		ON payment_plans(student_id, course_id);

	CREATE TABLE IF NOT EXISTS payments (
		id TEXT PRIMARY KEY,
		student_id TEXT NOT NULL,
		course_id TEXT NOT NULL,
		month_reference TEXT,
		amount_paid NUMERIC(14, 2) NOT NULL,
		payment_method TEXT NOT NULL,
		status TEXT NOT NULL,
		paid_date DATE NOT NULL,
		receipt_number TEXT,
		observations TEXT,
		created_at TIMESTAMPTZ NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_payments_student_course
		ON payments(student_id, course_id);

	CREATE TABLE IF NOT EXISTS penalty_policy (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		enabled BOOLEAN NOT NULL,
		tier1_percent NUMERIC(6, 2) NOT NULL,
		tier2_percent NUMERIC(6, 2) NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// PLANS
// =============================================================================

func (s *Store) SavePlans(ctx context.Context, rows []ledger.PaymentPlanRow) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, row := range rows {
		var existingID string
		err := tx.QueryRowContext(ctx,
			`SELECT id FROM payment_plans WHERE student_id = $1 AND course_id = $2 AND month_reference = $3`,
			string(row.StudentID), string(row.CourseID), string(row.Month),
		).Scan(&existingID)
		if err != nil && err != sql.ErrNoRows {
			return err
		}
		if err == nil && existingID != string(row.ID) {
			return ledger.ErrDuplicatePlanMonth
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO payment_plans
				(id, student_id, course_id, month_reference, due_date, amount_due, recorded_status, observations, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			ON CONFLICT (id) DO UPDATE SET
				due_date = EXCLUDED.due_date,
				amount_due = EXCLUDED.amount_due,
				recorded_status = EXCLUDED.recorded_status,
				observations = EXCLUDED.observations`,
			string(row.ID), string(row.StudentID), string(row.CourseID), string(row.Month),
			row.DueDate, row.BaseAmountDue.String(),
			string(row.RecordedStatus), nullable(row.Observations), time.Now().UTC(),
		)
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *Store) PlansFor(ctx context.Context, studentID ledger.StudentID, courseID ledger.CourseID) ([]ledger.PaymentPlanRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, student_id, course_id, month_reference, due_date, amount_due, recorded_status, observations
		FROM payment_plans
		WHERE student_id = $1 AND course_id = $2
		ORDER BY month_reference ASC`,
		string(studentID), string(courseID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []ledger.PaymentPlanRow
	for rows.Next() {
		var (
			row                         ledger.PaymentPlanRow
			id, sid, cid, month, status string
			amountDue                   string
			dueDate                     time.Time
			observations                sql.NullString
		)
		if err := rows.Scan(&id, &sid, &cid, &month, &dueDate, &amountDue, &status, &observations); err != nil {
			return nil, err
		}
		amount, err := decimal.NewFromString(amountDue)
		if err != nil {
			return nil, fmt.Errorf("corrupt amount_due %q: %w", amountDue, err)
		}

		row.ID = ledger.PlanRowID(id)
		row.StudentID = ledger.StudentID(sid)
		row.CourseID = ledger.CourseID(cid)
		row.Month = ledger.MonthRef(month)
		row.DueDate = dueDate.UTC()
		row.BaseAmountDue = amount
		row.RecordedStatus = ledger.PlanStatus(status)
		row.Observations = observations.String
		result = append(result, row)
	}
	return result, rows.Err()
}

// =============================================================================
// PAYMENTS
// =============================================================================

func (s *Store) AppendPayments(ctx context.Context, txs []ledger.PaymentTransaction) error {
	dbTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer dbTx.Rollback()

	for _, p := range txs {
		var month any
		if p.Allocated() {
			month = string(p.Month)
		}
		_, err := dbTx.ExecContext(ctx, `
			INSERT INTO payments
				(id, student_id, course_id, month_reference, amount_paid, payment_method, status, paid_date, receipt_number, observations, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
			string(p.ID), string(p.StudentID), string(p.CourseID), month,
			p.Amount.String(), string(p.Method), string(p.Status),
			p.PaidDate, nullable(p.ReceiptNumber), nullable(p.Observations), p.CreatedAt.UTC(),
		)
		if err != nil {
			return err
		}
	}
	return dbTx.Commit()
}

func (s *Store) MarkReversed(ctx context.Context, id ledger.PaymentID) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE payments SET status = $1 WHERE id = $2`,
		string(ledger.TxReversed), string(id))
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ledger.ErrPaymentNotFound
	}
	return nil
}

func (s *Store) PaymentsFor(ctx context.Context, studentID ledger.StudentID, courseID ledger.CourseID) ([]ledger.PaymentTransaction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, student_id, course_id, month_reference, amount_paid, payment_method, status, paid_date, receipt_number, observations, created_at
		FROM payments
		WHERE student_id = $1 AND course_id = $2
		ORDER BY paid_date ASC, created_at ASC`,
		string(studentID), string(courseID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []ledger.PaymentTransaction
	for rows.Next() {
		var (
			p                      ledger.PaymentTransaction
			id, sid, cid           string
			month, receipt, obs    sql.NullString
			amount, method, status string
			paidDate, createdAt    time.Time
		)
		if err := rows.Scan(&id, &sid, &cid, &month, &amount, &method, &status, &paidDate, &receipt, &obs, &createdAt); err != nil {
			return nil, err
		}
		amt, err := decimal.NewFromString(amount)
		if err != nil {
			return nil, fmt.Errorf("corrupt amount_paid %q: %w", amount, err)
		}

		p.ID = ledger.PaymentID(id)
		p.StudentID = ledger.StudentID(sid)
		p.CourseID = ledger.CourseID(cid)
		p.Month = ledger.MonthRef(month.String)
		p.Amount = amt
		p.Method = ledger.PaymentMethod(method)
		p.Status = ledger.TxStatus(status)
		p.PaidDate = paidDate.UTC()
		p.ReceiptNumber = receipt.String
		p.Observations = obs.String
		p.CreatedAt = createdAt.UTC()
		result = append(result, p)
	}
	return result, rows.Err()
}

// =============================================================================
// PENALTY POLICY
// =============================================================================

func (s *Store) Policy(ctx context.Context) (ledger.PenaltyPolicy, error) {
	var (
		enabled      bool
		tier1, tier2 string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT enabled, tier1_percent, tier2_percent FROM penalty_policy WHERE id = 1`,
	).Scan(&enabled, &tier1, &tier2)
	if err == sql.ErrNoRows {
		return ledger.DefaultPenaltyPolicy(), nil
	}
	if err != nil {
		return ledger.PenaltyPolicy{}, err
	}

	t1, err := decimal.NewFromString(tier1)
	if err != nil {
		return ledger.PenaltyPolicy{}, fmt.Errorf("corrupt tier1_percent %q: %w", tier1, err)
	}
	t2, err := decimal.NewFromString(tier2)
	if err != nil {
		return ledger.PenaltyPolicy{}, fmt.Errorf("corrupt tier2_percent %q: %w", tier2, err)
	}
	return ledger.PenaltyPolicy{Enabled: enabled, Tier1Percent: t1, Tier2Percent: t2}, nil
}

func (s *Store) SavePolicy(ctx context.Context, policy ledger.PenaltyPolicy) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO penalty_policy (id, enabled, tier1_percent, tier2_percent, updated_at)
		VALUES (1, $1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			enabled = EXCLUDED.enabled,
			tier1_percent = EXCLUDED.tier1_percent,
			tier2_percent = EXCLUDED.tier2_percent,
			updated_at = EXCLUDED.updated_at`,
		policy.Enabled, policy.Tier1Percent.String(), policy.Tier2Percent.String(),
		time.Now().UTC())
	return err
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
