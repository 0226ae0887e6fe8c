package domain

import (
	"errors"
	"fmt"
)

var (
	ErrItemNotFound     = errors.New("item not found")
	ErrSlotNotFound     = errors.New("slot not found")
	ErrOutOfStock       = errors.New("out of stock")
	ErrInvalidCash      = errors.New("invalid cash amount")
	ErrInvalidQuantity  = errors.New("invalid quantity")
	ErrCapacityExceeded = errors.New("slot capacity exceeded")
	ErrSlotNotEmpty     = errors.New("slot is not empty")
)

// InsufficientCashError reports the price of the item against the amount
// that was actually tendered.
type InsufficientCashError struct {
	Required int
	Given    int
}

func (e *InsufficientCashError) Error() string {
	return fmt.Sprintf("insufficient cash: price %d, inserted %d", e.Required, e.Given)
}
