/*
Package sqlite provides a SQLite-backed implementation of ledger.Store.

PURPOSE:
  Production persistence for plan rows, payments, and the penalty policy.
  The same patterns apply to PostgreSQL - see store/postgres for the
  dialect twin.

KEY TABLES:
  payment_plans:  one expected obligation per (student, course, month)
  payments:       recorded transactions; amount never updated, only the
                  paid -> reversed status transition
  penalty_policy: single-row policy configuration

INVARIANT ENFORCEMENT:
  idx_plans_student_course_month (UNIQUE) backs the one-row-per-month
  invariant at the database level, in addition to the engine-level check.

AMOUNTS:
  Stored as TEXT and parsed with shopspring/decimal - never floats.

WAL MODE:
  SQLite is opened with WAL for better read concurrency: multiple readers
  don't block, a single writer at a time, better crash recovery.

USAGE:
  store, err := sqlite.New("./data/ledger.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

SEE ALSO:
  - ledger/store.go: interface definition
  - ledger/store/memory.go: in-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/kampus/tuition-ledger/ledger"
)

// Store implements ledger.Store using SQLite.
type Store struct {
	db *sql.DB
}

// New creates a SQLite store at the given path. Use ":memory:" for an
// in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
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
	-- Payment plans: one expected monthly obligation per student+course+month
	CREATE TABLE IF NOT EXISTS payment_plans (
		id TEXT PRIMARY KEY,
		student_id TEXT NOT NULL,
		course_id TEXT NOT NULL,
		month_reference TEXT NOT NULL,
		due_date TEXT NOT NULL,
		amount_due TEXT NOT NULL,
		recorded_status TEXT NOT NULL DEFAULT 'pending',
		observations TEXT,
		created_at TEXT NOT NULL
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_plans_student_course_month
		ON payment_plans(student_id, course_id, month_reference);
	CREATE INDEX IF NOT EXISTS idx_plans_student_course
		ON payment_plans(student_id, course_id);

	-- Payments: amounts immutable; status is the only mutable column
	CREATE TABLE IF NOT EXISTS payments (
		id TEXT PRIMARY KEY,
		student_id TEXT NOT NULL,
		course_id TEXT NOT NULL,
		month_reference TEXT,            -- NULL = unallocated advance
		amount_paid TEXT NOT NULL,
		payment_method TEXT NOT NULL,
		status TEXT NOT NULL,
		paid_date TEXT NOT NULL,
		receipt_number TEXT,
		observations TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_payments_student_course
		ON payments(student_id, course_id);
	CREATE INDEX IF NOT EXISTS idx_payments_month
		ON payments(student_id, course_id, month_reference);
	CREATE INDEX IF NOT EXISTS idx_payments_receipt
		ON payments(receipt_number) WHERE receipt_number IS NOT NULL;

	-- Penalty policy: single row, id always 1
	CREATE TABLE IF NOT EXISTS penalty_policy (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		enabled INTEGER NOT NULL,
		tier1_percent TEXT NOT NULL,
		tier2_percent TEXT NOT NULL,
		updated_at TEXT NOT NULL
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
		// Reject a different row targeting an occupied month slot.
		var existingID string
		err := tx.QueryRowContext(ctx,
			`SELECT id FROM payment_plans WHERE student_id = ? AND course_id = ? AND month_reference = ?`,
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
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				due_date = excluded.due_date,
				amount_due = excluded.amount_due,
				recorded_status = excluded.recorded_status,
				observations = excluded.observations`,
			string(row.ID), string(row.StudentID), string(row.CourseID), string(row.Month),
			row.DueDate.Format("2006-01-02"), row.BaseAmountDue.String(),
			string(row.RecordedStatus), nullable(row.Observations),
			time.Now().UTC().Format(time.RFC3339),
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
		WHERE student_id = ? AND course_id = ?
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
			dueDate, amountDue          string
			observations                sql.NullString
		)
		if err := rows.Scan(&id, &sid, &cid, &month, &dueDate, &amountDue, &status, &observations); err != nil {
			return nil, err
		}
		due, err := time.Parse("2006-01-02", dueDate)
		if err != nil {
			return nil, fmt.Errorf("corrupt due_date %q: %w", dueDate, err)
		}
		amount, err := decimal.NewFromString(amountDue)
		if err != nil {
			return nil, fmt.Errorf("corrupt amount_due %q: %w", amountDue, err)
		}

		row.ID = ledger.PlanRowID(id)
		row.StudentID = ledger.StudentID(sid)
		row.CourseID = ledger.CourseID(cid)
		row.Month = ledger.MonthRef(month)
		row.DueDate = due
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
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			string(p.ID), string(p.StudentID), string(p.CourseID), month,
			p.Amount.String(), string(p.Method), string(p.Status),
			p.PaidDate.Format("2006-01-02"), nullable(p.ReceiptNumber),
			nullable(p.Observations), p.CreatedAt.UTC().Format(time.RFC3339),
		)
		if err != nil {
			return err
		}
	}
	return dbTx.Commit()
}

func (s *Store) MarkReversed(ctx context.Context, id ledger.PaymentID) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE payments SET status = ? WHERE id = ?`,
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
		WHERE student_id = ? AND course_id = ?
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
			paidDate, createdAt    string
		)
		if err := rows.Scan(&id, &sid, &cid, &month, &amount, &method, &status, &paidDate, &receipt, &obs, &createdAt); err != nil {
			return nil, err
		}
		amt, err := decimal.NewFromString(amount)
		if err != nil {
			return nil, fmt.Errorf("corrupt amount_paid %q: %w", amount, err)
		}
		paid, err := time.Parse("2006-01-02", paidDate)
		if err != nil {
			return nil, fmt.Errorf("corrupt paid_date %q: %w", paidDate, err)
		}
		created, _ := time.Parse(time.RFC3339, createdAt)

		p.ID = ledger.PaymentID(id)
		p.StudentID = ledger.StudentID(sid)
		p.CourseID = ledger.CourseID(cid)
		p.Month = ledger.MonthRef(month.String)
		p.Amount = amt
		p.Method = ledger.PaymentMethod(method)
		p.Status = ledger.TxStatus(status)
		p.PaidDate = paid
		p.ReceiptNumber = receipt.String
		p.Observations = obs.String
		p.CreatedAt = created
		result = append(result, p)
	}
	return result, rows.Err()
}

// =============================================================================
// PENALTY POLICY
// =============================================================================

func (s *Store) Policy(ctx context.Context) (ledger.PenaltyPolicy, error) {
	var (
		enabled      int
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
	return ledger.PenaltyPolicy{Enabled: enabled != 0, Tier1Percent: t1, Tier2Percent: t2}, nil
}

func (s *Store) SavePolicy(ctx context.Context, policy ledger.PenaltyPolicy) error {
	enabled := 0
	if policy.Enabled {
		enabled = 1
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO penalty_policy (id, enabled, tier1_percent, tier2_percent, updated_at)
		VALUES (1, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			enabled = excluded.enabled,
			tier1_percent = excluded.tier1_percent,
			tier2_percent = excluded.tier2_percent,
			updated_at = excluded.updated_at`,
		enabled, policy.Tier1Percent.String(), policy.Tier2Percent.String(),
		time.Now().UTC().Format(time.RFC3339))
	return err
}

// nullable maps empty strings to NULL.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
