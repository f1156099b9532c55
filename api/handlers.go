/*
handlers.go - HTTP handlers for the credit engine

PURPOSE:
  Exposes the credit engine via REST. Handles HTTP request/response, JSON
  serialization, and delegates every decision to the credit.Service.

REQUEST FLOW:
  1. Parse + validate input (amounts as decimal strings)
  2. Call the service
  3. Serialize response
  4. Map domain errors to status codes

ERROR HANDLING:
  - 400: invalid amount, malformed input, bad installment terms
  - 404: unknown account / entry / schedule
  - 409: inactive account, overpayment
  - 503: per-account serialization could not be obtained after retries
  - 500: anything else

SEE ALSO:
  - dto.go: request/response structures
  - server.go: router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/atlaspos/credit-engine/credit"
)

// =============================================================================
// HANDLER
// =============================================================================

// Handler holds the handler dependencies.
type Handler struct {
	Service *credit.Service
	now     func() time.Time
}

// NewHandler creates a handler over the given service.
func NewHandler(svc *credit.Service) *Handler {
	return &Handler{Service: svc, now: time.Now}
}

// =============================================================================
// ACCOUNT HANDLERS
// =============================================================================

// CreateAccount grants credit to a customer.
func (h *Handler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	var req CreateAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if req.CustomerID == "" {
		writeError(w, http.StatusBadRequest, "customer_id is required", nil)
		return
	}
	limit, err := parseAmount(req.CreditLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid credit_limit", err)
		return
	}

	acct, err := h.Service.CreateAccount(r.Context(), req.CustomerID, limit)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	view, err := h.Service.GetAccount(r.Context(), acct.ID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toAccountDTO(view))
}

// ListAccounts returns a page of accounts with derived fields.
func (h *Handler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	page, pageSize := pagination(r)
	views, total, err := h.Service.ListAccounts(r.Context(), page, pageSize)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	items := make([]AccountDTO, len(views))
	for i, v := range views {
		items[i] = toAccountDTO(v)
	}
	writeJSON(w, http.StatusOK, PageDTO[AccountDTO]{Items: items, Total: total, Page: page, PageSize: pageSize})
}

// GetAccount returns one account with balance, available credit, and health.
func (h *Handler) GetAccount(w http.ResponseWriter, r *http.Request) {
	view, err := h.Service.GetAccount(r.Context(), accountID(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAccountDTO(view))
}

// ActivateAccount restores the charge privilege.
func (h *Handler) ActivateAccount(w http.ResponseWriter, r *http.Request) {
	h.setActive(w, r, true)
}

// DeactivateAccount revokes the charge privilege. The account still accepts
// payments so the debt can be paid down.
func (h *Handler) DeactivateAccount(w http.ResponseWriter, r *http.Request) {
	h.setActive(w, r, false)
}

func (h *Handler) setActive(w http.ResponseWriter, r *http.Request, active bool) {
	if _, err := h.Service.SetActive(r.Context(), accountID(r), active); err != nil {
		writeDomainError(w, err)
		return
	}
	view, err := h.Service.GetAccount(r.Context(), accountID(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAccountDTO(view))
}

// SetCreditLimit changes the account's limit.
func (h *Handler) SetCreditLimit(w http.ResponseWriter, r *http.Request) {
	var req SetLimitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	limit, err := parseAmount(req.CreditLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid credit_limit", err)
		return
	}
	if _, err := h.Service.SetCreditLimit(r.Context(), accountID(r), limit); err != nil {
		writeDomainError(w, err)
		return
	}
	view, err := h.Service.GetAccount(r.Context(), accountID(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAccountDTO(view))
}

// =============================================================================
// LEDGER + SCHEDULE HANDLERS
// =============================================================================

// ListLedger returns a page of ledger entries, most recent first by default.
func (h *Handler) ListLedger(w http.ResponseWriter, r *http.Request) {
	page, pageSize := pagination(r)
	ord := credit.OrderDesc
	if r.URL.Query().Get("ordering") == "asc" {
		ord = credit.OrderAsc
	}

	entries, total, err := h.Service.ListLedger(r.Context(), accountID(r), page, pageSize, ord)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	items := make([]EntryDTO, len(entries))
	for i, e := range entries {
		items[i] = toEntryDTO(e)
	}
	writeJSON(w, http.StatusOK, PageDTO[EntryDTO]{Items: items, Total: total, Page: page, PageSize: pageSize})
}

// ListSchedules returns the account's schedules, filterable by status.
func (h *Handler) ListSchedules(w http.ResponseWriter, r *http.Request) {
	status := credit.ScheduleStatus(r.URL.Query().Get("status"))
	schedules, err := h.Service.ListSchedules(r.Context(), accountID(r), status)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	now := h.now().UTC()
	items := make([]ScheduleDTO, len(schedules))
	for i, s := range schedules {
		items[i] = toScheduleDTO(s, now)
	}
	writeJSON(w, http.StatusOK, items)
}

// =============================================================================
// WRITE HANDLERS
// =============================================================================

// RecordPayment implements pay(): appends a CREDIT_PAYMENT entry, allocates
// it oldest-due-first, and returns a stable receipt reference.
func (h *Handler) RecordPayment(w http.ResponseWriter, r *http.Request) {
	var req PaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid amount", err)
		return
	}

	start := time.Now()
	result, err := h.Service.RecordPayment(r.Context(), accountID(r), amount, req.Reference)
	observeOp("payment", start, amount, err)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	now := h.now().UTC()
	schedules := make([]ScheduleDTO, len(result.Schedules))
	for i, s := range result.Schedules {
		schedules[i] = toScheduleDTO(s, now)
	}
	writeJSON(w, http.StatusCreated, PaymentResponse{
		PaymentEntry: toEntryDTO(result.Entry),
		ReceiptURL:   receiptURL(result.Entry.ID),
		Schedules:    schedules,
	})
}

// RecordCharge records a sale on credit, optionally creating installment
// schedules.
func (h *Handler) RecordCharge(w http.ResponseWriter, r *http.Request) {
	var req ChargeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid amount", err)
		return
	}

	var terms *credit.InstallmentTerms
	if req.Installments > 0 {
		firstDue := h.now().UTC().AddDate(0, 1, 0)
		if req.FirstDueDate != "" {
			firstDue, err = time.Parse("2006-01-02", req.FirstDueDate)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid first_due_date", err)
				return
			}
		}
		terms = &credit.InstallmentTerms{Count: req.Installments, FirstDue: firstDue}
	}

	start := time.Now()
	entry, schedules, err := h.Service.RecordCharge(r.Context(), accountID(r), amount, req.Reference, terms)
	observeOp("charge", start, amount, err)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	now := h.now().UTC()
	dtos := make([]ScheduleDTO, len(schedules))
	for i, s := range schedules {
		dtos[i] = toScheduleDTO(s, now)
	}
	writeJSON(w, http.StatusCreated, ChargeResponse{Entry: toEntryDTO(entry), Schedules: dtos})
}

// RecordAdjustment records a manual correction of either sign.
func (h *Handler) RecordAdjustment(w http.ResponseWriter, r *http.Request) {
	var req AdjustmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid amount", err)
		return
	}

	start := time.Now()
	entry, err := h.Service.RecordAdjustment(r.Context(), accountID(r), amount, req.Reference)
	observeOp("adjustment", start, amount, err)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toEntryDTO(entry))
}

// RecordRefund credits a refund back to the account.
func (h *Handler) RecordRefund(w http.ResponseWriter, r *http.Request) {
	var req RefundRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid amount", err)
		return
	}

	start := time.Now()
	entry, err := h.Service.RecordRefund(r.Context(), accountID(r), amount, req.Reference)
	observeOp("refund", start, amount, err)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toEntryDTO(entry))
}

// =============================================================================
// RECEIPTS
// =============================================================================

// GetReceipt resolves a CREDIT_PAYMENT entry id to its printable receipt
// view. Only payment entries have receipts.
func (h *Handler) GetReceipt(w http.ResponseWriter, r *http.Request) {
	entryID := credit.EntryID(chi.URLParam(r, "entryID"))
	entry, err := h.Service.GetEntry(r.Context(), entryID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if entry.Type != credit.EntryPayment {
		writeError(w, http.StatusNotFound, "entry is not a payment", nil)
		return
	}
	writeJSON(w, http.StatusOK, ReceiptDTO{
		EntryID:   string(entry.ID),
		AccountID: string(entry.AccountID),
		Amount:    entry.Amount.Neg().String(),
		Reference: entry.Reference,
		PaidAt:    entry.CreatedAt.Format(time.RFC3339),
	})
}

func receiptURL(id credit.EntryID) string {
	return fmt.Sprintf("/api/receipts/%s", id)
}

// =============================================================================
// HELPERS
// =============================================================================

func accountID(r *http.Request) credit.AccountID {
	return credit.AccountID(chi.URLParam(r, "id"))
}

func parseAmount(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Decimal{}, errors.New("amount is required")
	}
	return decimal.NewFromString(s)
}

func pagination(r *http.Request) (page, pageSize int) {
	page, _ = strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	pageSize, _ = strconv.Atoi(r.URL.Query().Get("page_size"))
	if pageSize < 1 || pageSize > 200 {
		pageSize = 50
	}
	return page, pageSize
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string, err error) {
	body := ErrorDTO{Error: msg}
	if err != nil {
		body.Details = err.Error()
	}
	writeJSON(w, status, body)
}

// writeDomainError maps credit package errors to HTTP status codes.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, credit.ErrAccountNotFound),
		errors.Is(err, credit.ErrEntryNotFound),
		errors.Is(err, credit.ErrScheduleNotFound):
		writeError(w, http.StatusNotFound, "not found", err)
	case errors.Is(err, credit.ErrInvalidAmount),
		errors.Is(err, credit.ErrInvalidTerms):
		writeError(w, http.StatusBadRequest, "validation failed", err)
	case errors.Is(err, credit.ErrAccountInactive):
		writeError(w, http.StatusConflict, "account is inactive", err)
	case errors.Is(err, credit.ErrOverpayment):
		writeError(w, http.StatusConflict, "payment exceeds balance", err)
	case errors.Is(err, credit.ErrConcurrencyConflict):
		writeError(w, http.StatusServiceUnavailable, "account busy, retry later", err)
	default:
		writeError(w, http.StatusInternalServerError, "internal error", err)
	}
}
