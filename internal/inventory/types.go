package inventory

import (
	"errors"
	"time"
)

// Item types recognised by the inventory.
const (
	TypeMedication = "medication"
	TypeEquipment  = "equipment"
	TypeSupply     = "supply"
	TypeOther      = "other"
)

// Transaction directions.
const (
	DirectionAdd    = "add"
	DirectionRemove = "remove"
)

// Item is a stocked inventory record. Quantity is never negative.
type Item struct {
	ID            string    `json:"id"`
	Name          string    `json:"item_name"`
	Type          string    `json:"item_type"`
	Category      string    `json:"category,omitempty"`
	Quantity      int64     `json:"quantity"`
	Unit          string    `json:"unit,omitempty"`
	ReorderLevel  int64     `json:"reorder_level"`
	Supplier      string    `json:"supplier,omitempty"`
	Location      string    `json:"location,omitempty"`
	Notes         string    `json:"notes,omitempty"`
	LastRestocked time.Time `json:"last_restocked,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// LowStock reports whether the item is at or below its reorder level.
func (i Item) LowStock() bool { return i.Quantity <= i.ReorderLevel }

// Transaction is an append-only stock movement record. The signed sum of
// transactions for an item reconciles with its current quantity.
type Transaction struct {
	ID        string    `json:"id"`
	ItemID    string    `json:"inventory_id"`
	Direction string    `json:"transaction_type"`
	Quantity  int64     `json:"quantity"` // always positive; sign carried by Direction
	StaffID   string    `json:"staff_id"`
	Notes     string    `json:"notes,omitempty"`
	CreatedAt time.Time `json:"transaction_date"`
}

var (
	ErrNotFound          = errors.New("inventory item not found")
	ErrInvalidInput      = errors.New("invalid inventory input")
	ErrInsufficientStock = errors.New("insufficient stock")
)

// ValidType reports whether t is a recognised item type.
func ValidType(t string) bool {
	switch t {
	case TypeMedication, TypeEquipment, TypeSupply, TypeOther:
		return true
	}
	return false
}
