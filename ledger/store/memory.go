// Package store provides ledger.Store implementations.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/kampus/tuition-ledger/ledger"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu       sync.RWMutex
	plans    map[courseKey][]ledger.PaymentPlanRow
	payments map[courseKey][]ledger.PaymentTransaction
	byID     map[ledger.PaymentID]paymentRef
	policy   *ledger.PenaltyPolicy
}

type courseKey struct {
	StudentID ledger.StudentID
	CourseID  ledger.CourseID
}

type paymentRef struct {
	key   courseKey
	index int
}

func NewMemory() *Memory {
	return &Memory{
		plans:    make(map[courseKey][]ledger.PaymentPlanRow),
		payments: make(map[courseKey][]ledger.PaymentTransaction),
		byID:     make(map[ledger.PaymentID]paymentRef),
	}
}

var _ ledger.Store = (*Memory)(nil)

// SavePlans upserts rows, enforcing one row per (student, course, month).
// The batch is staged and committed only as a whole, matching the
// transactional SQL stores: a mid-batch duplicate leaves nothing saved.
func (m *Memory) SavePlans(_ context.Context, rows []ledger.PaymentPlanRow) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	staged := make(map[courseKey][]ledger.PaymentPlanRow)
	for _, row := range rows {
		k := courseKey{StudentID: row.StudentID, CourseID: row.CourseID}
		existing, ok := staged[k]
		if !ok {
			existing = append([]ledger.PaymentPlanRow(nil), m.plans[k]...)
		}

		replaced := false
		for i, have := range existing {
			if have.ID == row.ID {
				existing[i] = row
				replaced = true
				break
			}
			if have.Month == row.Month {
				return ledger.ErrDuplicatePlanMonth
			}
		}
		if !replaced {
			existing = append(existing, row)
		}
		sort.Slice(existing, func(i, j int) bool {
			return existing[i].Month.Before(existing[j].Month)
		})
		staged[k] = existing
	}

	for k, v := range staged {
		m.plans[k] = v
	}
	return nil
}

func (m *Memory) PlansFor(_ context.Context, studentID ledger.StudentID, courseID ledger.CourseID) ([]ledger.PaymentPlanRow, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	k := courseKey{StudentID: studentID, CourseID: courseID}
	result := make([]ledger.PaymentPlanRow, len(m.plans[k]))
	copy(result, m.plans[k])
	return result, nil
}

// AppendPayments adds transactions atomically: all or none.
func (m *Memory) AppendPayments(_ context.Context, txs []ledger.PaymentTransaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, tx := range txs {
		k := courseKey{StudentID: tx.StudentID, CourseID: tx.CourseID}
		m.payments[k] = append(m.payments[k], tx)
		m.byID[tx.ID] = paymentRef{key: k, index: len(m.payments[k]) - 1}
	}
	return nil
}

func (m *Memory) MarkReversed(_ context.Context, id ledger.PaymentID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	ref, ok := m.byID[id]
	if !ok {
		return ledger.ErrPaymentNotFound
	}
	m.payments[ref.key][ref.index].Status = ledger.TxReversed
	return nil
}

func (m *Memory) PaymentsFor(_ context.Context, studentID ledger.StudentID, courseID ledger.CourseID) ([]ledger.PaymentTransaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	k := courseKey{StudentID: studentID, CourseID: courseID}
	result := make([]ledger.PaymentTransaction, len(m.payments[k]))
	copy(result, m.payments[k])
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].PaidDate.Before(result[j].PaidDate)
	})
	return result, nil
}

func (m *Memory) Policy(_ context.Context) (ledger.PenaltyPolicy, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.policy == nil {
		return ledger.DefaultPenaltyPolicy(), nil
	}
	return *m.policy, nil
}

func (m *Memory) SavePolicy(_ context.Context, policy ledger.PenaltyPolicy) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.policy = &policy
	return nil
}
