// Package ledger derives the statement of account for a contract from
// its recorded financial transactions. The derivation is pure: the same
// input always produces the same rows, and nothing is ever written back.
package ledger

import (
	"sort"
	"time"

	"github.com/krasl809/tradedesk/internal/model"
)

// Row is one statement line: the underlying transaction annotated with
// its direction-dependent debit/credit split and the running balance.
type Row struct {
	model.FinancialTransaction
	Synthetic bool
	Debit     float64
	Credit    float64
	Balance   float64
}

type Statement struct {
	Direction   model.Direction
	Rows        []Row
	TotalDebit  float64
	TotalCredit float64
	// NetBalance equals the last row's balance. For import contracts
	// it trends negative while money is owed; that sign convention is
	// deliberate and must not be flipped without domain confirmation.
	NetBalance float64
}

// SyntheticInvoice is the display-only invoice candidate: the full
// contract value, shown on import contracts until a real invoice
// transaction exists.
type SyntheticInvoice struct {
	Amount    float64
	Date      time.Time
	Reference string
}

// Compute builds the statement. The synthetic candidate may be nil; it
// is only injected for import contracts with no persisted invoice and a
// positive value. Sorting by transaction date is stable, so same-day
// rows keep their recorded order.
func Compute(direction model.Direction, txns []model.FinancialTransaction, synthetic *SyntheticInvoice) Statement {
	rows := make([]Row, 0, len(txns)+1)

	if direction == model.DirectionImport && synthetic != nil && synthetic.Amount > 0 && !hasInvoice(txns) {
		rows = append(rows, Row{
			FinancialTransaction: model.FinancialTransaction{
				Type:            model.TransactionTypeInvoice,
				TransactionDate: synthetic.Date,
				Amount:          synthetic.Amount,
				Reference:       synthetic.Reference,
			},
			Synthetic: true,
		})
	}

	for _, txn := range txns {
		rows = append(rows, Row{FinancialTransaction: txn})
	}

	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].TransactionDate.Before(rows[j].TransactionDate)
	})

	st := Statement{Direction: direction, Rows: rows}
	var balance float64
	for i := range st.Rows {
		debit, credit := split(direction, st.Rows[i].FinancialTransaction)
		st.Rows[i].Debit = debit
		st.Rows[i].Credit = credit

		if direction == model.DirectionImport {
			balance += credit - debit
		} else {
			balance += debit - credit
		}
		st.Rows[i].Balance = balance

		st.TotalDebit += debit
		st.TotalCredit += credit
	}
	st.NetBalance = balance
	return st
}

// split applies the direction-dependent sign convention. An import
// contract is read from the buyer's books: invoices are debits,
// payments credits, anything else follows its is_credit flag. An export
// contract is read from the seller's books and is type-agnostic.
func split(direction model.Direction, txn model.FinancialTransaction) (debit, credit float64) {
	if direction == model.DirectionImport {
		switch txn.Type {
		case model.TransactionTypeInvoice:
			return txn.Amount, 0
		case model.TransactionTypePayment:
			return 0, txn.Amount
		default:
			if txn.IsCredit {
				return 0, txn.Amount
			}
			return txn.Amount, 0
		}
	}

	if txn.IsCredit {
		return 0, txn.Amount
	}
	return txn.Amount, 0
}

func hasInvoice(txns []model.FinancialTransaction) bool {
	for _, txn := range txns {
		if txn.Type == model.TransactionTypeInvoice {
			return true
		}
	}
	return false
}
