package domain

import (
	"github.com/shopspring/decimal"
)

// PriceType selects how a line's base amount is derived.
type PriceType string

const (
	// PriceFixed multiplies a unit price by an integral quantity.
	PriceFixed PriceType = "fixed"
	// PriceWeight multiplies a per-unit-weight price by a measured weight.
	PriceWeight PriceType = "weight"
)

// Valid reports whether the price type is one of the supported modes.
func (p PriceType) Valid() bool {
	return p == PriceFixed || p == PriceWeight
}

// Inventory is the stock record embedded in a product. Stock is a decimal so
// weighed produce can be tracked in fractional units.
type Inventory struct {
	StockQuantity     decimal.Decimal `json:"stockQuantity"`
	StockCapacity     decimal.Decimal `json:"stockCapacity"`
	LowStockThreshold decimal.Decimal `json:"lowStockThreshold"`
	ReorderPoint      decimal.Decimal `json:"reorderPoint"`
}

// Product is the catalog view consumed by the settlement engine.
type Product struct {
	ID         string          `json:"id"`
	PLU        string          `json:"plu,omitempty"`
	Barcode    string          `json:"barcode,omitempty"`
	Name       string          `json:"name"`
	CategoryID string          `json:"categoryId,omitempty"`
	PriceType  PriceType       `json:"priceType"`
	Price      decimal.Decimal `json:"price"`
	Taxable    bool            `json:"taxable"`
	TaxRate    decimal.Decimal `json:"taxRate"`
	MinimumAge int             `json:"minimumAge,omitempty"`
	Active     bool            `json:"active"`
	Inventory  Inventory       `json:"inventory"`
}

// AgeRestricted reports whether the product requires age verification at the till.
func (p Product) AgeRestricted() bool {
	return p.MinimumAge > 0
}
