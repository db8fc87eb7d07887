/*
handlers.go - HTTP API handlers for the payment ledger service

PURPOSE:
  Exposes the ledger engine via REST. Handles HTTP request/response, JSON
  serialization, and delegates to the ledger service.

ENDPOINTS:
  Students:
    GET  /api/students/{studentID}/courses/{courseID}/summary
    GET  /api/students/{studentID}/courses/{courseID}/plans
    GET  /api/students/{studentID}/courses/{courseID}/payments
    POST /api/students/{studentID}/courses/{courseID}/payments

  Payments:
    POST /api/payments/{id}/reverse

  Plans:
    POST /api/plans/generate

  Policy:
    GET  /api/policy
    PUT  /api/policy

  Import:
    POST /api/import

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: validation errors, invalid amounts
  - 404: unknown payment
  - 409: allocation conflicts, duplicate plan months
  - 500: store failures, incomplete data

SEE ALSO:
  - dto.go: request/response data structures
  - server.go: router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/kampus/tuition-ledger/ledger"
	"github.com/kampus/tuition-ledger/legacy"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Service *ledger.Service
	Store   ledger.Store

	validate *validator.Validate
}

// NewHandler creates a handler over the given service and store.
func NewHandler(service *ledger.Service, store ledger.Store) *Handler {
	return &Handler{
		Service:  service,
		Store:    store,
		validate: validator.New(),
	}
}

// =============================================================================
// SUMMARY / READS
// =============================================================================

// GetSummary returns the computed ledger view for a student/course.
// Accepts ?as_of=YYYY-MM-DD; defaults to today.
func (h *Handler) GetSummary(w http.ResponseWriter, r *http.Request) {
	studentID := ledger.StudentID(chi.URLParam(r, "studentID"))
	courseID := ledger.CourseID(chi.URLParam(r, "courseID"))

	asOf := time.Now().UTC()
	if v := r.URL.Query().Get("as_of"); v != "" {
		parsed, err := time.Parse("2006-01-02", v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid as_of date (use YYYY-MM-DD)", err)
			return
		}
		asOf = parsed
	}

	summary, err := h.Service.Summary(r.Context(), studentID, courseID, asOf)
	if err != nil {
		// Never surface a partial summary; the client shows a retryable
		// "could not load financial data" state instead.
		writeError(w, http.StatusInternalServerError, "could not load financial data", err)
		return
	}

	writeJSON(w, http.StatusOK, toSummaryDTO(summary))
}

// ListPlans returns the classified plan rows for a student/course.
func (h *Handler) ListPlans(w http.ResponseWriter, r *http.Request) {
	studentID := ledger.StudentID(chi.URLParam(r, "studentID"))
	courseID := ledger.CourseID(chi.URLParam(r, "courseID"))

	summary, err := h.Service.Summary(r.Context(), studentID, courseID, time.Now().UTC())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not load plans", err)
		return
	}
	writeJSON(w, http.StatusOK, toPlanRowDTOs(summary.History))
}

// ListPayments returns the full payment history, reversed entries included.
func (h *Handler) ListPayments(w http.ResponseWriter, r *http.Request) {
	studentID := ledger.StudentID(chi.URLParam(r, "studentID"))
	courseID := ledger.CourseID(chi.URLParam(r, "courseID"))

	payments, err := h.Store.PaymentsFor(r.Context(), studentID, courseID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not load payments", err)
		return
	}
	writeJSON(w, http.StatusOK, toPaymentDTOs(payments))
}

// =============================================================================
// RECORD / REVERSE PAYMENTS
// =============================================================================

// RecordPayment records one payment for a student/course.
func (h *Handler) RecordPayment(w http.ResponseWriter, r *http.Request) {
	studentID := ledger.StudentID(chi.URLParam(r, "studentID"))
	courseID := ledger.CourseID(chi.URLParam(r, "courseID"))

	var req RecordPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "validation failed", err)
		return
	}

	var month ledger.MonthRef
	if req.MonthReference != "" {
		m, err := ledger.ParseMonthRef(req.MonthReference)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid month_reference (use YYYY-MM)", err)
			return
		}
		month = m
	}
	paidDate, err := time.Parse("2006-01-02", req.PaidDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid paid_date (use YYYY-MM-DD)", err)
		return
	}

	result, err := h.Service.RecordPayment(r.Context(), ledger.RecordPaymentInput{
		StudentID:     studentID,
		CourseID:      courseID,
		Month:         month,
		Amount:        ledger.MoneyFromFloat(req.Amount),
		Method:        ledger.PaymentMethod(req.PaymentMethod),
		PaidDate:      paidDate,
		ReceiptNumber: req.ReceiptNumber,
		Observations:  req.Observations,
		Mode:          ledger.AllocationMode(req.AllocationMode),
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, RecordPaymentResponse{
		Payments:        toPaymentDTOs(result.Payments),
		WalletRemainder: result.Allocation.WalletRemainder,
	})
}

// ReversePayment marks an existing payment as reversed.
func (h *Handler) ReversePayment(w http.ResponseWriter, r *http.Request) {
	id := ledger.PaymentID(chi.URLParam(r, "id"))

	if err := h.Service.ReversePayment(r.Context(), id); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "reversed"})
}

// =============================================================================
// PLAN GENERATION
// =============================================================================

// GeneratePlans creates the billing rows for a course run and applies any
// standing wallet credit oldest-first.
func (h *Handler) GeneratePlans(w http.ResponseWriter, r *http.Request) {
	var req GeneratePlansRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "validation failed", err)
		return
	}

	firstMonth, err := ledger.ParseMonthRef(req.FirstMonth)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid first_month (use YYYY-MM)", err)
		return
	}
	asOf := time.Now().UTC()
	if req.AsOf != "" {
		asOf, _ = time.Parse("2006-01-02", req.AsOf)
	}

	rows, err := h.Service.GeneratePlanRows(r.Context(), ledger.GeneratePlansInput{
		StudentID:     ledger.StudentID(req.StudentID),
		CourseID:      ledger.CourseID(req.CourseID),
		FirstMonth:    firstMonth,
		Months:        req.Months,
		MonthlyAmount: ledger.MoneyFromFloat(req.MonthlyAmount),
		DueDay:        req.DueDay,
		AsOf:          asOf,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]int{"plans_created": len(rows)})
}

// =============================================================================
// PENALTY POLICY
// =============================================================================

// GetPolicy returns the active penalty policy.
func (h *Handler) GetPolicy(w http.ResponseWriter, r *http.Request) {
	policy, err := h.Service.Policy(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not load policy", err)
		return
	}
	writeJSON(w, http.StatusOK, PolicyDTO{
		Enabled:      policy.Enabled,
		Tier1Percent: policy.Tier1Percent,
		Tier2Percent: policy.Tier2Percent,
	})
}

// UpdatePolicy replaces the active penalty policy.
func (h *Handler) UpdatePolicy(w http.ResponseWriter, r *http.Request) {
	var req UpdatePolicyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "validation failed", err)
		return
	}

	policy := ledger.PenaltyPolicy{
		Enabled:      req.Enabled,
		Tier1Percent: ledger.MoneyFromFloat(req.Tier1Percent),
		Tier2Percent: ledger.MoneyFromFloat(req.Tier2Percent),
	}
	if err := h.Service.UpdatePolicy(r.Context(), policy); err != nil {
		writeError(w, http.StatusBadRequest, "invalid policy", err)
		return
	}
	writeJSON(w, http.StatusOK, PolicyDTO{
		Enabled:      policy.Enabled,
		Tier1Percent: policy.Tier1Percent,
		Tier2Percent: policy.Tier2Percent,
	})
}

// =============================================================================
// LEGACY IMPORT
// =============================================================================

// ImportRequest carries records in the original backend's wire shapes.
type ImportRequest struct {
	Plans    []legacy.PlanRecord    `json:"plans"`
	Payments []legacy.PaymentRecord `json:"payments"`
}

// Import ingests legacy backend records, translating field names and
// coercing amounts at the boundary. Records that fail conversion are
// reported and skipped; the rest import.
func (h *Handler) Import(w http.ResponseWriter, r *http.Request) {
	var req ImportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	var resp ImportResponse

	var rows []ledger.PaymentPlanRow
	for _, rec := range req.Plans {
		row, err := rec.ToPlanRow()
		if err != nil {
			resp.Skipped = append(resp.Skipped, "plan "+rec.ID.String()+": "+err.Error())
			continue
		}
		rows = append(rows, row)
	}
	if len(rows) > 0 {
		if err := h.Store.SavePlans(r.Context(), rows); err != nil {
			writeDomainError(w, err)
			return
		}
		resp.PlansImported = len(rows)
	}

	var txs []ledger.PaymentTransaction
	for _, rec := range req.Payments {
		tx, err := rec.ToTransaction()
		if err != nil {
			resp.Skipped = append(resp.Skipped, "payment "+rec.ID.String()+": "+err.Error())
			continue
		}
		txs = append(txs, tx)
	}
	if len(txs) > 0 {
		if err := h.Store.AppendPayments(r.Context(), txs); err != nil {
			writeDomainError(w, err)
			return
		}
		resp.PaymentsImported = len(txs)
	}

	writeJSON(w, http.StatusOK, resp)
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("api: encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string, err error) {
	resp := ErrorResponse{Error: msg}
	if err != nil {
		resp.Code = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps ledger errors to HTTP status codes.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ledger.ErrInvalidAmount), errors.Is(err, ledger.ErrReversedPayment):
		writeError(w, http.StatusBadRequest, err.Error(), err)
	case errors.Is(err, ledger.ErrInconsistentAllocation), errors.Is(err, ledger.ErrDuplicatePlanMonth):
		writeError(w, http.StatusConflict, err.Error(), err)
	case ledger.IsNotFound(err):
		writeError(w, http.StatusNotFound, err.Error(), err)
	default:
		writeError(w, http.StatusInternalServerError, "internal error", err)
	}
}
