/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract: decimals render
  as JSON numbers, month references as "YYYY-MM" strings, dates as
  "YYYY-MM-DD".

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

VALIDATION:
  Request types carry validator tags; handlers run them through the shared
  validator before touching domain logic.

SEE ALSO:
  - handlers.go: uses these types
  - legacy/: wire records accepted by the import endpoint
*/
package api

import (
	"github.com/shopspring/decimal"

	"github.com/kampus/tuition-ledger/ledger"
)

// =============================================================================
// RESPONSE TYPES
// =============================================================================

// PlanRowDTO is a plan row annotated with its live classification.
type PlanRowDTO struct {
	ID             string          `json:"id"`
	MonthReference string          `json:"month_reference"`
	DueDate        string          `json:"due_date"`
	AmountDue      decimal.Decimal `json:"amount_due"`
	Status         string          `json:"status"`
	PaidSoFar      decimal.Decimal `json:"paid_so_far"`
	Penalty        decimal.Decimal `json:"penalty"`
	TotalOwed      decimal.Decimal `json:"total_owed"`
	Observations   string          `json:"observations,omitempty"`
}

// PaymentDTO is one recorded transaction, reversed ones included.
type PaymentDTO struct {
	ID             string          `json:"id"`
	MonthReference string          `json:"month_reference,omitempty"`
	AmountPaid     decimal.Decimal `json:"amount_paid"`
	PaymentMethod  string          `json:"payment_method"`
	Status         string          `json:"status"`
	PaidDate       string          `json:"paid_date"`
	ReceiptNumber  string          `json:"receipt_number,omitempty"`
	Observations   string          `json:"observations,omitempty"`
}

// SummaryDTO is the full financial view for one student/course pair.
type SummaryDTO struct {
	StudentID           string          `json:"student_id"`
	CourseID            string          `json:"course_id"`
	AsOf                string          `json:"as_of"`
	TotalPaid           decimal.Decimal `json:"total_paid"`
	TotalDueWithPenalty decimal.Decimal `json:"total_due_with_penalty"`
	CurrentBalance      decimal.Decimal `json:"current_balance"`
	WalletCredit        decimal.Decimal `json:"wallet_credit"`
	OverdueRows         []PlanRowDTO    `json:"overdue_rows"`
	AdvanceRows         []PlanRowDTO    `json:"advance_rows"`
	History             []PlanRowDTO    `json:"history"`
	Payments            []PaymentDTO    `json:"payments"`
}

// PolicyDTO mirrors the penalty policy settings form.
type PolicyDTO struct {
	Enabled      bool            `json:"enabled"`
	Tier1Percent decimal.Decimal `json:"tier1_percent_after_day_10"`
	Tier2Percent decimal.Decimal `json:"tier2_percent_after_day_20"`
}

// RecordPaymentResponse reports what was written for one recorded payment.
type RecordPaymentResponse struct {
	Payments        []PaymentDTO    `json:"payments"`
	WalletRemainder decimal.Decimal `json:"wallet_remainder"`
}

// ImportResponse reports how many legacy records were ingested.
type ImportResponse struct {
	PlansImported    int      `json:"plans_imported"`
	PaymentsImported int      `json:"payments_imported"`
	Skipped          []string `json:"skipped,omitempty"`
}

// ErrorResponse is the standard error envelope.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// =============================================================================
// REQUEST TYPES
// =============================================================================

// RecordPaymentRequest records one payment. An empty month_reference means
// an advance/credit deposit.
type RecordPaymentRequest struct {
	MonthReference string  `json:"month_reference" validate:"omitempty,len=7"`
	Amount         float64 `json:"amount" validate:"required,gt=0"`
	PaymentMethod  string  `json:"payment_method" validate:"omitempty,oneof=cash transfer card mpesa other"`
	PaidDate       string  `json:"paid_date" validate:"required,datetime=2006-01-02"`
	ReceiptNumber  string  `json:"receipt_number"`
	Observations   string  `json:"observations"`
	AllocationMode string  `json:"allocation_mode" validate:"omitempty,oneof=single_month oldest_first"`
}

// GeneratePlansRequest creates the billing rows for a course run.
type GeneratePlansRequest struct {
	StudentID     string  `json:"student_id" validate:"required"`
	CourseID      string  `json:"course_id" validate:"required"`
	FirstMonth    string  `json:"first_month" validate:"required,len=7"`
	Months        int     `json:"months" validate:"required,gt=0,lte=60"`
	MonthlyAmount float64 `json:"monthly_amount" validate:"gte=0"`
	DueDay        int     `json:"due_day" validate:"omitempty,gte=1,lte=31"`
	AsOf          string  `json:"as_of" validate:"omitempty,datetime=2006-01-02"`
}

// UpdatePolicyRequest replaces the penalty policy.
type UpdatePolicyRequest struct {
	Enabled      bool    `json:"enabled"`
	Tier1Percent float64 `json:"tier1_percent_after_day_10" validate:"gte=0"`
	Tier2Percent float64 `json:"tier2_percent_after_day_20" validate:"gte=0"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func toPlanRowDTO(r ledger.ClassifiedRow) PlanRowDTO {
	return PlanRowDTO{
		ID:             string(r.Row.ID),
		MonthReference: r.Row.Month.String(),
		DueDate:        r.Row.DueDate.Format("2006-01-02"),
		AmountDue:      r.Row.BaseAmountDue,
		Status:         string(r.Status),
		PaidSoFar:      r.PaidSoFar,
		Penalty:        r.Penalty,
		TotalOwed:      r.TotalOwed,
		Observations:   r.Row.Observations,
	}
}

func toPlanRowDTOs(rows []ledger.ClassifiedRow) []PlanRowDTO {
	dtos := make([]PlanRowDTO, len(rows))
	for i, r := range rows {
		dtos[i] = toPlanRowDTO(r)
	}
	return dtos
}

func toPaymentDTO(p ledger.PaymentTransaction) PaymentDTO {
	return PaymentDTO{
		ID:             string(p.ID),
		MonthReference: p.Month.String(),
		AmountPaid:     p.Amount,
		PaymentMethod:  string(p.Method),
		Status:         string(p.Status),
		PaidDate:       p.PaidDate.Format("2006-01-02"),
		ReceiptNumber:  p.ReceiptNumber,
		Observations:   p.Observations,
	}
}

func toPaymentDTOs(txs []ledger.PaymentTransaction) []PaymentDTO {
	dtos := make([]PaymentDTO, len(txs))
	for i, p := range txs {
		dtos[i] = toPaymentDTO(p)
	}
	return dtos
}

func toSummaryDTO(s ledger.StudentLedgerSummary) SummaryDTO {
	return SummaryDTO{
		StudentID:           string(s.StudentID),
		CourseID:            string(s.CourseID),
		AsOf:                s.AsOf.Format("2006-01-02"),
		TotalPaid:           s.TotalPaid,
		TotalDueWithPenalty: s.TotalDueWithPenalty,
		CurrentBalance:      s.CurrentBalance,
		WalletCredit:        s.WalletCredit,
		OverdueRows:         toPlanRowDTOs(s.OverdueRows),
		AdvanceRows:         toPlanRowDTOs(s.AdvanceRows),
		History:             toPlanRowDTOs(s.History),
		Payments:            toPaymentDTOs(s.Payments),
	}
}
