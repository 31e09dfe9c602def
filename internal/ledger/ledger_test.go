package ledger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/krasl809/tradedesk/internal/model"
)

var (
	d1 = time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	d2 = time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
)

func invoiceAndPayment() []model.FinancialTransaction {
	return []model.FinancialTransaction{
		{Type: model.TransactionTypeInvoice, Amount: 1000, IsCredit: false, TransactionDate: d1},
		{Type: model.TransactionTypePayment, Amount: 400, IsCredit: true, TransactionDate: d2},
	}
}

func TestCompute_ExportRunningBalance(t *testing.T) {
	st := Compute(model.DirectionExport, invoiceAndPayment(), nil)

	require.Len(t, st.Rows, 2)
	assert.Equal(t, 1000.0, st.Rows[0].Debit)
	assert.Equal(t, 0.0, st.Rows[0].Credit)
	assert.Equal(t, 1000.0, st.Rows[0].Balance)
	assert.Equal(t, 0.0, st.Rows[1].Debit)
	assert.Equal(t, 400.0, st.Rows[1].Credit)
	assert.Equal(t, 600.0, st.Rows[1].Balance)

	assert.Equal(t, 1000.0, st.TotalDebit)
	assert.Equal(t, 400.0, st.TotalCredit)
	assert.Equal(t, 600.0, st.NetBalance)
}

func TestCompute_ImportRunningBalanceIsInverted(t *testing.T) {
	st := Compute(model.DirectionImport, invoiceAndPayment(), &SyntheticInvoice{Amount: 9999})

	// A real invoice exists, so the synthetic candidate is suppressed.
	require.Len(t, st.Rows, 2)
	assert.False(t, st.Rows[0].Synthetic)

	assert.Equal(t, 1000.0, st.Rows[0].Debit)
	assert.Equal(t, -1000.0, st.Rows[0].Balance)
	assert.Equal(t, 400.0, st.Rows[1].Credit)
	assert.Equal(t, -600.0, st.Rows[1].Balance)
	assert.Equal(t, -600.0, st.NetBalance)
}

func TestCompute_SyntheticInvoiceInjectedForImport(t *testing.T) {
	txns := []model.FinancialTransaction{
		{Type: model.TransactionTypePayment, Amount: 250, IsCredit: true, TransactionDate: d2},
	}
	st := Compute(model.DirectionImport, txns, &SyntheticInvoice{Amount: 1200, Date: d1, Reference: "contract value"})

	require.Len(t, st.Rows, 2)
	assert.True(t, st.Rows[0].Synthetic)
	assert.Equal(t, model.TransactionTypeInvoice, st.Rows[0].Type)
	assert.Equal(t, 1200.0, st.Rows[0].Debit)
	assert.Equal(t, -1200.0, st.Rows[0].Balance)
	assert.Equal(t, -950.0, st.NetBalance)
}

func TestCompute_SyntheticInvoiceSkippedWhenZeroOrExport(t *testing.T) {
	txns := []model.FinancialTransaction{
		{Type: model.TransactionTypePayment, Amount: 250, IsCredit: true, TransactionDate: d2},
	}

	st := Compute(model.DirectionImport, txns, &SyntheticInvoice{Amount: 0})
	assert.Len(t, st.Rows, 1)

	st = Compute(model.DirectionExport, txns, &SyntheticInvoice{Amount: 1200})
	assert.Len(t, st.Rows, 1)

	st = Compute(model.DirectionImport, txns, nil)
	assert.Len(t, st.Rows, 1)
}

func TestCompute_ImportAdjustmentFollowsIsCredit(t *testing.T) {
	txns := []model.FinancialTransaction{
		{Type: model.TransactionTypeInvoice, Amount: 500, TransactionDate: d1},
		{Type: model.TransactionTypePricingAdjustment, Amount: 100, IsCredit: true, TransactionDate: d2},
		{Type: model.TransactionTypePricingAdjustment, Amount: 30, IsCredit: false, TransactionDate: d2},
	}
	st := Compute(model.DirectionImport, txns, nil)

	require.Len(t, st.Rows, 3)
	assert.Equal(t, 100.0, st.Rows[1].Credit)
	assert.Equal(t, 30.0, st.Rows[2].Debit)
	assert.Equal(t, -430.0, st.NetBalance)
}

func TestCompute_SortsByDateKeepingRecordedOrderOnTies(t *testing.T) {
	txns := []model.FinancialTransaction{
		{Type: model.TransactionTypePayment, Amount: 1, IsCredit: true, TransactionDate: d2, Reference: "first"},
		{Type: model.TransactionTypeInvoice, Amount: 10, TransactionDate: d1},
		{Type: model.TransactionTypePayment, Amount: 2, IsCredit: true, TransactionDate: d2, Reference: "second"},
	}
	st := Compute(model.DirectionExport, txns, nil)

	require.Len(t, st.Rows, 3)
	assert.Equal(t, model.TransactionTypeInvoice, st.Rows[0].Type)
	assert.Equal(t, "first", st.Rows[1].Reference)
	assert.Equal(t, "second", st.Rows[2].Reference)
}

func TestCompute_Deterministic(t *testing.T) {
	txns := invoiceAndPayment()
	first := Compute(model.DirectionImport, txns, &SyntheticInvoice{Amount: 500, Date: d1})
	second := Compute(model.DirectionImport, txns, &SyntheticInvoice{Amount: 500, Date: d1})

	assert.Equal(t, first, second)
	assert.Equal(t, first.Rows[len(first.Rows)-1].Balance, first.NetBalance)
}
