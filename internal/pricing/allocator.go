// Package pricing tracks partial price fixations against contract line
// items. Priced and remaining quantities are always recomputed from the
// fixation log so they cannot drift from it.
package pricing

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/krasl809/tradedesk/internal/model"
)

// ValidationError reports a rejected allocation or confirmation along
// with the items that caused it.
type ValidationError struct {
	Msg   string
	Items []uuid.UUID
}

func (e *ValidationError) Error() string {
	if len(e.Items) == 0 {
		return e.Msg
	}
	ids := make([]string, len(e.Items))
	for i, id := range e.Items {
		ids[i] = id.String()
	}
	return fmt.Sprintf("%s: %s", e.Msg, strings.Join(ids, ", "))
}

// PricedQty sums the fixations recorded for one item.
func PricedQty(itemID uuid.UUID, fixations []model.PartialPricing) float64 {
	var total float64
	for _, f := range fixations {
		if f.ItemID == itemID {
			total += f.QtyPriced
		}
	}
	return total
}

// Remaining is the still-unpriced share of the contracted quantity.
func Remaining(item model.ContractItem, fixations []model.PartialPricing) float64 {
	return item.QtyTon - PricedQty(item.ID, fixations)
}

// RealizedValue is the item's value accumulated across fixations,
// independent of any fixed price field.
func RealizedValue(itemID uuid.UUID, fixations []model.PartialPricing) float64 {
	var total float64
	for _, f := range fixations {
		if f.ItemID == itemID {
			total += f.TotalValue()
		}
	}
	return total
}

// Allocate validates a new fixation against the item's remaining
// quantity and returns the record to persist. The invariant
// Σ qty_priced ≤ qty_ton is enforced here, before submission, not after.
func Allocate(item model.ContractItem, existing []model.PartialPricing, qtyToPrice, unitPrice float64, date time.Time) (model.PartialPricing, error) {
	if qtyToPrice <= 0 {
		return model.PartialPricing{}, &ValidationError{Msg: "qty_priced must be positive", Items: []uuid.UUID{item.ID}}
	}
	if unitPrice <= 0 {
		return model.PartialPricing{}, &ValidationError{Msg: "market_price must be positive", Items: []uuid.UUID{item.ID}}
	}
	remaining := Remaining(item, existing)
	if qtyToPrice > remaining {
		return model.PartialPricing{}, &ValidationError{
			Msg:   fmt.Sprintf("qty_priced %.3f exceeds remaining quantity %.3f", qtyToPrice, remaining),
			Items: []uuid.UUID{item.ID},
		}
	}

	return model.PartialPricing{
		ID:          uuid.New(),
		ItemID:      item.ID,
		QtyPriced:   qtyToPrice,
		Price:       unitPrice,
		PricingDate: date,
	}, nil
}

// ConfirmPricing gates the whole-document confirmation: every item must
// be fully priced. The error names the incomplete items so the caller
// can surface them.
func ConfirmPricing(items []model.ContractItem, fixations []model.PartialPricing) error {
	var incomplete []uuid.UUID
	for _, item := range items {
		if Remaining(item, fixations) != 0 {
			incomplete = append(incomplete, item.ID)
		}
	}
	if len(incomplete) > 0 {
		return &ValidationError{Msg: "items not fully priced", Items: incomplete}
	}
	return nil
}
