package excel

import (
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/krasl809/tradedesk/internal/ledger"
	"github.com/krasl809/tradedesk/internal/model"
)

type Generator struct{}

func NewGenerator() *Generator {
	return &Generator{}
}

// Generate renders the statement of account as a workbook: a summary
// block followed by the ledger rows.
func (g *Generator) Generate(contract model.Contract, statement ledger.Statement) ([]byte, error) {
	file := excelize.NewFile()

	sheet := "Statement"
	file.SetSheetName("Sheet1", sheet)

	set := func(cell string, value interface{}) {
		_ = file.SetCellValue(sheet, cell, value)
	}

	set("A1", "Contract")
	set("B1", contract.Number)
	set("A2", "Direction")
	set("B2", directionLabel(contract.Direction))
	set("A3", "Currency")
	set("B3", contract.Currency)
	set("A4", "Total debit")
	set("B4", statement.TotalDebit)
	set("A5", "Total credit")
	set("B5", statement.TotalCredit)
	set("A6", "Net balance")
	set("B6", statement.NetBalance)

	tableRow := 8
	headers := []string{"Date", "Type", "Reference", "Debit", "Credit", "Balance"}
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, tableRow)
		set(cell, header)
	}

	for i, row := range statement.Rows {
		rowNum := tableRow + 1 + i
		reference := row.Reference
		if row.Synthetic {
			reference = fmt.Sprintf("%s (projected)", reference)
		}
		set(fmt.Sprintf("A%d", rowNum), formatDate(row.TransactionDate))
		set(fmt.Sprintf("B%d", rowNum), typeLabel(row.Type))
		set(fmt.Sprintf("C%d", rowNum), reference)
		set(fmt.Sprintf("D%d", rowNum), row.Debit)
		set(fmt.Sprintf("E%d", rowNum), row.Credit)
		set(fmt.Sprintf("F%d", rowNum), row.Balance)
	}

	_ = file.SetColWidth(sheet, "A", "A", 14)
	_ = file.SetColWidth(sheet, "B", "B", 22)
	_ = file.SetColWidth(sheet, "C", "C", 36)
	_ = file.SetColWidth(sheet, "D", "F", 16)

	file.SetActiveSheet(0)
	buf, err := file.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func directionLabel(direction model.Direction) string {
	switch direction {
	case model.DirectionImport:
		return "Import (buyer-side ledger)"
	case model.DirectionExport:
		return "Export (seller-side ledger)"
	default:
		return string(direction)
	}
}

func typeLabel(txnType model.TransactionType) string {
	switch txnType {
	case model.TransactionTypeInvoice:
		return "Invoice"
	case model.TransactionTypePayment:
		return "Payment"
	case model.TransactionTypePricingAdjustment:
		return "Pricing adjustment"
	default:
		return string(txnType)
	}
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("02.01.2006")
}
