package domain

import "time"

// Slot is a physical dispensing location. CurrentItemCount is a
// denormalized aggregate: it must equal the sum of the quantities of the
// items bound to the slot after every committed mutation.
type Slot struct {
	ID               string
	Code             string
	Capacity         int
	CurrentItemCount int
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Item is a purchasable product bound to one slot. Price is in the
// smallest currency unit. Quantity never goes below zero.
type Item struct {
	ID        string
	SlotID    string
	Name      string
	Price     int
	Quantity  int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewItem is one row of a bulk insert request.
type NewItem struct {
	Name     string
	Price    int
	Quantity int
}

// Receipt is returned from a successful purchase. It is never persisted.
type Receipt struct {
	Item              string
	Price             int
	CashInserted      int
	ChangeReturned    int
	Change            ChangeBreakdown
	RemainingQuantity int
	Message           string
}
