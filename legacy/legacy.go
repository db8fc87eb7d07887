/*
Package legacy decodes the record shapes produced by the original PHP
backend into canonical ledger types.

PURPOSE:
  The original platform speaks three vocabularies at once: Portuguese
  database fields (curso_id, observacoes, pago), English API fields
  (amount_due, month_reference), and UI-local names. This package is the
  single translation point: one explicit mapping per record type, validated
  once on ingestion, so everything past this boundary uses one canonical
  vocabulary.

DEFENSIVE DECODING:
  Backend JSON is untyped. Amounts arrive as numbers, numeric strings, or
  garbage; flexMoney coerces all of them, yielding zero for anything
  non-numeric. Statuses and payment methods arrive in either language and
  are normalized through lookup tables.

SEE ALSO:
  - ledger/types.go: the canonical record types
  - api/handlers.go: the /api/import endpoint feeding this package
*/
package legacy

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kampus/tuition-ledger/ledger"
)

// =============================================================================
// FLEXIBLE MONEY - Tolerant numeric coercion
// =============================================================================

// flexMoney accepts a JSON number, a numeric string, or null. Anything else
// decodes to zero rather than failing the whole import.
type flexMoney struct {
	Value decimal.Decimal
}

func (m *flexMoney) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" || s == `""` {
		m.Value = decimal.Zero
		return nil
	}
	if len(s) >= 2 && s[0] == '"' {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			m.Value = decimal.Zero
			return nil
		}
		s = strings.TrimSpace(str)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		m.Value = decimal.Zero
		return nil
	}
	m.Value = d
	return nil
}

// =============================================================================
// WIRE RECORDS - Observed backend JSON shapes
// =============================================================================

// PlanRecord is one row from the backend payment-plan endpoint.
type PlanRecord struct {
	ID             json.Number `json:"id"`
	StudentID      json.Number `json:"student_id"`
	CursoID        string      `json:"curso_id"`
	MonthReference string      `json:"month_reference"`
	DueDate        string      `json:"due_date"`
	AmountDue      flexMoney   `json:"amount_due"`
	Status         string      `json:"status"`
	Observacoes    *string     `json:"observacoes"`
}

// PaymentRecord is one row from the backend payments endpoint.
type PaymentRecord struct {
	ID             json.Number `json:"id"`
	StudentID      json.Number `json:"student_id"`
	CursoID        string      `json:"curso_id"`
	MonthReference *string     `json:"month_reference"` // null = advance/credit
	AmountPaid     flexMoney   `json:"amount_paid"`
	PaymentMethod  string      `json:"payment_method"`
	Status         string      `json:"status"`
	PaidDate       string      `json:"paid_date"`
	ReceiptNumber  *string     `json:"receipt_number"`
	Observacoes    *string     `json:"observacoes"`
}

// =============================================================================
// VOCABULARY TABLES - Portuguese / English -> canonical
// =============================================================================

var planStatuses = map[string]ledger.PlanStatus{
	"pending":  ledger.PlanPending,
	"pendente": ledger.PlanPending,
	"partial":  ledger.PlanPartial,
	"parcial":  ledger.PlanPartial,
	"paid":     ledger.PlanPaid,
	"pago":     ledger.PlanPaid,
	"overdue":  ledger.PlanOverdue,
	"atrasado": ledger.PlanOverdue,
}

var txStatuses = map[string]ledger.TxStatus{
	"paid":      ledger.TxPaid,
	"pago":      ledger.TxPaid,
	"partial":   ledger.TxPartial,
	"parcial":   ledger.TxPartial,
	"reversed":  ledger.TxReversed,
	"estornado": ledger.TxReversed,
}

var methods = map[string]ledger.PaymentMethod{
	"cash":          ledger.MethodCash,
	"dinheiro":      ledger.MethodCash,
	"transfer":      ledger.MethodTransfer,
	"transferencia": ledger.MethodTransfer,
	"card":          ledger.MethodCard,
	"cartao":        ledger.MethodCard,
	"mpesa":         ledger.MethodMobileMoney,
	"other":         ledger.MethodOther,
	"outro":         ledger.MethodOther,
}

// =============================================================================
// CONVERSION
// =============================================================================

// ToPlanRow converts a wire plan record to the canonical type.
func (r PlanRecord) ToPlanRow() (ledger.PaymentPlanRow, error) {
	month, err := ledger.ParseMonthRef(r.MonthReference)
	if err != nil {
		return ledger.PaymentPlanRow{}, err
	}
	due, err := time.Parse("2006-01-02", r.DueDate)
	if err != nil {
		return ledger.PaymentPlanRow{}, fmt.Errorf("invalid due_date %q: %w", r.DueDate, err)
	}

	status, ok := planStatuses[strings.ToLower(strings.TrimSpace(r.Status))]
	if !ok {
		status = ledger.PlanPending
	}

	return ledger.PaymentPlanRow{
		ID:             ledger.PlanRowID("plan-" + r.ID.String()),
		StudentID:      ledger.StudentID(r.StudentID.String()),
		CourseID:       ledger.CourseID(r.CursoID),
		Month:          month,
		DueDate:        due,
		BaseAmountDue:  nonNegative(r.AmountDue.Value),
		RecordedStatus: status,
		Observations:   deref(r.Observacoes),
	}, nil
}

// ToTransaction converts a wire payment record to the canonical type.
func (r PaymentRecord) ToTransaction() (ledger.PaymentTransaction, error) {
	var month ledger.MonthRef
	if r.MonthReference != nil && *r.MonthReference != "" {
		m, err := ledger.ParseMonthRef(*r.MonthReference)
		if err != nil {
			return ledger.PaymentTransaction{}, err
		}
		month = m
	}
	paid, err := time.Parse("2006-01-02", r.PaidDate)
	if err != nil {
		return ledger.PaymentTransaction{}, fmt.Errorf("invalid paid_date %q: %w", r.PaidDate, err)
	}

	status, ok := txStatuses[strings.ToLower(strings.TrimSpace(r.Status))]
	if !ok {
		return ledger.PaymentTransaction{}, fmt.Errorf("unknown payment status %q", r.Status)
	}
	method, ok := methods[strings.ToLower(strings.TrimSpace(r.PaymentMethod))]
	if !ok {
		method = ledger.MethodOther
	}

	return ledger.PaymentTransaction{
		ID:            ledger.PaymentID("pay-" + r.ID.String()),
		StudentID:     ledger.StudentID(r.StudentID.String()),
		CourseID:      ledger.CourseID(r.CursoID),
		Month:         month,
		Amount:        nonNegative(r.AmountPaid.Value),
		Method:        method,
		Status:        status,
		PaidDate:      paid,
		ReceiptNumber: deref(r.ReceiptNumber),
		Observations:  deref(r.Observacoes),
		CreatedAt:     paid,
	}, nil
}

func nonNegative(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
