package pdf

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"

	"github.com/krasl809/tradedesk/internal/ledger"
	"github.com/krasl809/tradedesk/internal/model"
)

type Generator struct {
	fontName string
}

func NewGenerator() *Generator {
	return &Generator{fontName: "Helvetica"}
}

func (g *Generator) Generate(contract model.Contract, statement ledger.Statement) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(15, 15, 15)
	pdf.AddPage()

	pdf.SetFont(g.fontName, "B", 14)
	pdf.CellFormat(0, 10, "Statement of Account", "", 1, "C", false, 0, "")

	pdf.SetFont(g.fontName, "", 11)
	pdf.CellFormat(0, 6, fmt.Sprintf("Contract %s (%s)", contract.Number, directionLabel(contract.Direction)), "", 1, "C", false, 0, "")
	pdf.CellFormat(0, 6, fmt.Sprintf("Currency: %s", contract.Currency), "", 1, "C", false, 0, "")
	pdf.Ln(4)

	headers := []string{"Date", "Type", "Reference", "Debit", "Credit", "Balance"}
	colWidths := []float64{24, 34, 46, 25, 25, 26}
	drawTableRow(pdf, g.fontName, headers, colWidths, true)

	for _, row := range statement.Rows {
		reference := row.Reference
		if row.Synthetic {
			reference = reference + " (projected)"
		}
		cells := []string{
			formatDate(row.TransactionDate),
			typeLabel(row.Type),
			reference,
			formatAmount(row.Debit),
			formatAmount(row.Credit),
			formatAmount(row.Balance),
		}
		drawTableRow(pdf, g.fontName, cells, colWidths, false)
	}

	pdf.Ln(4)
	pdf.SetFont(g.fontName, "", 11)
	pdf.CellFormat(0, 6, fmt.Sprintf("Total debit: %s", formatAmount(statement.TotalDebit)), "", 1, "R", false, 0, "")
	pdf.CellFormat(0, 6, fmt.Sprintf("Total credit: %s", formatAmount(statement.TotalCredit)), "", 1, "R", false, 0, "")
	pdf.SetFont(g.fontName, "B", 11)
	pdf.CellFormat(0, 6, fmt.Sprintf("Net balance: %s", formatAmount(statement.NetBalance)), "", 1, "R", false, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func drawTableRow(pdf *gofpdf.Fpdf, fontName string, cells []string, widths []float64, header bool) {
	if header {
		pdf.SetFont(fontName, "B", 10)
		pdf.SetFillColor(230, 230, 230)
	} else {
		pdf.SetFont(fontName, "", 10)
		pdf.SetFillColor(255, 255, 255)
	}
	for i, cell := range cells {
		align := "L"
		if i >= 3 {
			align = "R"
		}
		pdf.CellFormat(widths[i], 7, cell, "1", 0, align, header, 0, "")
	}
	pdf.Ln(-1)
}

func directionLabel(direction model.Direction) string {
	if direction == model.DirectionImport {
		return "import"
	}
	return "export"
}

func typeLabel(txnType model.TransactionType) string {
	switch txnType {
	case model.TransactionTypeInvoice:
		return "Invoice"
	case model.TransactionTypePayment:
		return "Payment"
	case model.TransactionTypePricingAdjustment:
		return "Pricing adj."
	default:
		return string(txnType)
	}
}

func formatAmount(value float64) string {
	return fmt.Sprintf("%.2f", value)
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("02.01.2006")
}
