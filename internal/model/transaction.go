package model

import (
	"time"

	"github.com/google/uuid"
)

type TransactionType string

const (
	TransactionTypeInvoice           TransactionType = "INVOICE"
	TransactionTypePayment           TransactionType = "PAYMENT"
	TransactionTypePricingAdjustment TransactionType = "PRICING_ADJUSTMENT"
)

// FinancialTransaction is one server-recorded movement against a
// contract. Amount is always non-negative; IsCredit carries the sign.
// Debit/credit/balance are derived by the ledger, not stored here.
type FinancialTransaction struct {
	ID              uuid.UUID
	ContractID      uuid.UUID
	Type            TransactionType
	TransactionDate time.Time
	Amount          float64
	IsCredit        bool
	Reference       string
	// Weak reference, e.g. a payment pointing at the invoice it
	// settles. Lookup only, no ownership.
	LinkedTransactionID *uuid.UUID
	CreatedAt           time.Time
}
