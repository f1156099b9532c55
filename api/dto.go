/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  JSON structures for API communication, decoupling the domain model from
  the external contract. Money travels as decimal strings (never JSON
  numbers), dates as ISO-8601.

NAMING CONVENTION:
  - *DTO: response types returned to clients
  - *Request: request body types from clients
*/
package api

import (
	"time"

	"github.com/atlaspos/credit-engine/credit"
)

// =============================================================================
// ACCOUNTS
// =============================================================================

// AccountDTO is an account with its derived fields.
type AccountDTO struct {
	ID              string `json:"id"`
	CustomerID      string `json:"customer_id"`
	CreditLimit     string `json:"credit_limit"`
	IsActive        bool   `json:"is_active"`
	Balance         string `json:"balance"`
	AvailableCredit string `json:"available_credit"`
	Health          string `json:"health"`
	CreatedAt       string `json:"created_at"`
}

func toAccountDTO(v credit.AccountView) AccountDTO {
	return AccountDTO{
		ID:              string(v.Account.ID),
		CustomerID:      v.Account.CustomerID,
		CreditLimit:     v.Account.CreditLimit.String(),
		IsActive:        v.Account.IsActive,
		Balance:         v.Balance.String(),
		AvailableCredit: v.Available.String(),
		Health:          string(v.Health),
		CreatedAt:       v.Account.CreatedAt.Format(time.RFC3339),
	}
}

// CreateAccountRequest grants credit to a customer.
type CreateAccountRequest struct {
	CustomerID  string `json:"customer_id"`
	CreditLimit string `json:"credit_limit"`
}

// SetLimitRequest changes an account's credit limit.
type SetLimitRequest struct {
	CreditLimit string `json:"credit_limit"`
}

// =============================================================================
// LEDGER
// =============================================================================

// EntryDTO is a ledger entry in API responses.
type EntryDTO struct {
	ID           string `json:"id"`
	AccountID    string `json:"account_id"`
	EntryType    string `json:"entry_type"`
	Amount       string `json:"amount"`
	BalanceAfter string `json:"balance_after"`
	Reference    string `json:"reference,omitempty"`
	CreatedAt    string `json:"created_at"`
}

func toEntryDTO(e credit.LedgerEntry) EntryDTO {
	return EntryDTO{
		ID:           string(e.ID),
		AccountID:    string(e.AccountID),
		EntryType:    string(e.Type),
		Amount:       e.Amount.String(),
		BalanceAfter: e.BalanceAfter.String(),
		Reference:    e.Reference,
		CreatedAt:    e.CreatedAt.Format(time.RFC3339),
	}
}

// PageDTO wraps a paginated list.
type PageDTO[T any] struct {
	Items    []T `json:"items"`
	Total    int `json:"total"`
	Page     int `json:"page"`
	PageSize int `json:"page_size"`
}

// =============================================================================
// SCHEDULES
// =============================================================================

// ScheduleDTO is a payment schedule with its derived status.
type ScheduleDTO struct {
	ID         string `json:"id"`
	AccountID  string `json:"account_id"`
	DueDate    string `json:"due_date"`
	AmountDue  string `json:"amount_due"`
	AmountPaid string `json:"amount_paid"`
	Remaining  string `json:"remaining"`
	Status     string `json:"status"`
}

func toScheduleDTO(s credit.PaymentSchedule, now time.Time) ScheduleDTO {
	return ScheduleDTO{
		ID:         string(s.ID),
		AccountID:  string(s.AccountID),
		DueDate:    s.DueDate.Format(time.RFC3339),
		AmountDue:  s.AmountDue.String(),
		AmountPaid: s.AmountPaid.String(),
		Remaining:  s.Remaining().String(),
		Status:     string(s.StatusAt(now)),
	}
}

// =============================================================================
// WRITES
// =============================================================================

// PaymentRequest records a customer payment.
type PaymentRequest struct {
	Amount    string `json:"amount"`
	Reference string `json:"reference,omitempty"`
}

// PaymentResponse is the pay() contract: the new entry, a stable receipt
// reference, and every schedule the allocation touched.
type PaymentResponse struct {
	PaymentEntry EntryDTO      `json:"payment_entry"`
	ReceiptURL   string        `json:"receipt_url"`
	Schedules    []ScheduleDTO `json:"schedules"`
}

// ChargeRequest records a sale on credit, optionally on installment terms.
type ChargeRequest struct {
	Amount       string `json:"amount"`
	Reference    string `json:"reference,omitempty"`
	Installments int    `json:"installments,omitempty"`
	FirstDueDate string `json:"first_due_date,omitempty"` // ISO-8601 date
}

// ChargeResponse is the new entry plus any schedules created by terms.
type ChargeResponse struct {
	Entry     EntryDTO      `json:"entry"`
	Schedules []ScheduleDTO `json:"schedules,omitempty"`
}

// AdjustmentRequest records a manual correction (either sign).
type AdjustmentRequest struct {
	Amount    string `json:"amount"`
	Reference string `json:"reference,omitempty"`
}

// RefundRequest credits a refund back to the account.
type RefundRequest struct {
	Amount    string `json:"amount"`
	Reference string `json:"reference,omitempty"`
}

// ReceiptDTO is the printable-receipt view of a CREDIT_PAYMENT entry.
type ReceiptDTO struct {
	EntryID   string `json:"entry_id"`
	AccountID string `json:"account_id"`
	Amount    string `json:"amount"` // positive: the amount the customer paid
	Reference string `json:"reference,omitempty"`
	PaidAt    string `json:"paid_at"`
}

// ErrorDTO is the JSON error body.
type ErrorDTO struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
