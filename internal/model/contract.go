package model

import (
	"time"

	"github.com/google/uuid"
)

type ContractStatus string

const (
	ContractStatusDraft          ContractStatus = "DRAFT"
	ContractStatusPricingPending ContractStatus = "PRICING_PENDING"
	ContractStatusPosted         ContractStatus = "POSTED"
	ContractStatusCompleted      ContractStatus = "COMPLETED"
	ContractStatusCancelled      ContractStatus = "CANCELLED"
)

// Direction tells which side of the trade the contract is booked from.
// It flips the debit/credit convention used for the statement of account.
type Direction string

const (
	DirectionExport Direction = "EXPORT"
	DirectionImport Direction = "IMPORT"
)

type PricingMode string

const (
	PricingModeFixed  PricingMode = "FIXED"
	PricingModeMarket PricingMode = "MARKET"
)

type Contract struct {
	ID           uuid.UUID
	Number       string
	Version      int64 // concurrency token, assigned by the server only
	Status       ContractStatus
	Direction    Direction
	SellerID     *uuid.UUID
	BuyerID      *uuid.UUID
	Incoterm     string
	Currency     string
	Items        []ContractItem
	CreatedAt    time.Time
	ModifiedDate time.Time
}

// Editable reports whether the contract still accepts field writes.
func (c Contract) Editable() bool {
	return c.Status == ContractStatusDraft || c.Status == ContractStatusPricingPending
}

// TotalValue sums the item totals in fixed-price terms. For import
// contracts this is the synthetic invoice candidate shown until a real
// invoice is recorded.
func (c Contract) TotalValue() float64 {
	var total float64
	for _, item := range c.Items {
		total += item.Total()
	}
	return total
}

type ContractItem struct {
	ID          uuid.UUID
	ContractID  uuid.UUID
	ArticleID   uuid.UUID
	QtyTon      float64 // contracted quantity, fixed once posted
	Price       float64
	Premium     float64
	PricingMode PricingMode
}

// Total is always derived from the current price/premium/qty_ton; it is
// never stored alongside them.
func (i ContractItem) Total() float64 {
	return i.QtyTon * (i.Price + i.Premium)
}

// WellFormed reports whether the item carries enough data to survive
// server-side validation.
func (i ContractItem) WellFormed() bool {
	return i.ArticleID != uuid.Nil && i.QtyTon > 0
}

// PartialPricing records one price fixation against a sub-quantity of a
// line item. qty_remaining is always recomputed from these records,
// never stored.
type PartialPricing struct {
	ID          uuid.UUID
	ItemID      uuid.UUID
	QtyPriced   float64
	Price       float64
	PricingDate time.Time
	Reference   string
}

// TotalValue is the realized value of this fixation.
func (p PartialPricing) TotalValue() float64 {
	return p.QtyPriced * p.Price
}

// CharterItem is a logistics line attached to an in-progress contract
// (vessel nomination). It rides along in draft snapshots.
type CharterItem struct {
	ID          uuid.UUID
	ContractID  uuid.UUID
	VesselName  string
	FreightRate float64
	LaycanStart time.Time
	LaycanEnd   time.Time
}
