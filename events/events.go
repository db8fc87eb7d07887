// Package events defines the payment-recorded event payload and the no-op
// publisher used when no broker is configured. The kafka subpackage carries
// the production implementation.
package events

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kampus/tuition-ledger/ledger"
)

// =============================================================================
// EVENT PAYLOAD
// =============================================================================

// PaymentRecorded is emitted once per stored transaction after a successful
// write. Consumers (receipt mailers, reporting) must treat it as
// at-least-once.
type PaymentRecorded struct {
	PaymentID     string          `json:"payment_id"`
	StudentID     string          `json:"student_id"`
	CourseID      string          `json:"course_id"`
	Month         string          `json:"month_reference,omitempty"`
	Amount        decimal.Decimal `json:"amount_paid"`
	Method        string          `json:"payment_method"`
	Status        string          `json:"status"`
	PaidDate      string          `json:"paid_date"`
	ReceiptNumber string          `json:"receipt_number,omitempty"`
	RecordedAt    time.Time       `json:"recorded_at"`
}

// FromTransaction builds the event payload for one stored transaction.
func FromTransaction(tx ledger.PaymentTransaction) PaymentRecorded {
	return PaymentRecorded{
		PaymentID:     string(tx.ID),
		StudentID:     string(tx.StudentID),
		CourseID:      string(tx.CourseID),
		Month:         string(tx.Month),
		Amount:        tx.Amount,
		Method:        string(tx.Method),
		Status:        string(tx.Status),
		PaidDate:      tx.PaidDate.Format("2006-01-02"),
		ReceiptNumber: tx.ReceiptNumber,
		RecordedAt:    tx.CreatedAt,
	}
}

// =============================================================================
// NO-OP PUBLISHER
// =============================================================================

// Noop satisfies ledger.Publisher and discards everything. Used when no
// broker is configured.
type Noop struct{}

func (Noop) PaymentRecorded(context.Context, []ledger.PaymentTransaction) {}

var _ ledger.Publisher = Noop{}
