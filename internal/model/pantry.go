package model

import "time"

// LowStockThreshold is the quantity at or below which an item is shown as
// running low. It is a presentation rule, nothing is stored.
const LowStockThreshold = 1

// DefaultUnit is used for inventory items added without a unit.
const DefaultUnit = "pcs"

// InventoryItem mirrors the `inventory` table.
type InventoryItem struct {
	ID         string `json:"id"`
	ItemName   string `json:"item_name"`
	Quantity   int    `json:"quantity"`
	Unit       string `json:"unit"`
	FamilyCode string `json:"family_code"`
}

// LowStock reports whether the item should be flagged as running low.
func (i InventoryItem) LowStock() bool { return i.Quantity <= LowStockThreshold }

// CartItem mirrors the `shopping_cart` table.
type CartItem struct {
	ID          string    `json:"id"`
	ItemName    string    `json:"item_name"`
	Quantity    int       `json:"quantity"`
	IsPurchased bool      `json:"is_purchased"`
	FamilyCode  string    `json:"family_code"`
	CreatedAt   time.Time `json:"created_at"`
}

// ClampQuantity returns q, or zero when q is negative.
func ClampQuantity(q int) int {
	if q < 0 {
		return 0
	}
	return q
}
