package port

import (
	"context"

	"github.com/Sajal-kanwal/vending-machine-api/internal/core/domain"
)

// Store is the transactional inventory store. Implementations must back
// the *ForUpdate calls with blocking per-row exclusive locks (database
// SELECT ... FOR UPDATE or an in-process mutex table): the caller that
// holds the lock is the only one allowed to observe and mutate the row
// until its transaction ends.
type Store interface {
	// WithinTx runs fn inside a single transaction. The transaction
	// commits only when fn returns nil; any error rolls back every
	// staged write and releases every lock.
	WithinTx(ctx context.Context, fn func(tx Tx) error) error

	// GetItem reads an item without locking; returns (nil, nil) when absent.
	GetItem(ctx context.Context, itemID string) (*domain.Item, error)

	// GetSlot reads a slot without locking; returns (nil, nil) when absent.
	GetSlot(ctx context.Context, slotID string) (*domain.Slot, error)

	// ListSlots returns every slot.
	ListSlots(ctx context.Context) ([]domain.Slot, error)

	// CreateSlot persists a new slot row.
	CreateSlot(ctx context.Context, slot domain.Slot) error
}

// Tx exposes row operations bound to one open transaction. Handles
// returned by the *ForUpdate methods are valid only until the WithinTx
// callback returns. Lock acquisition order is fixed across all call
// sites: item first, then its owning slot.
type Tx interface {
	// ItemForUpdate locks and returns one item; (nil, nil) when absent.
	ItemForUpdate(ctx context.Context, itemID string) (*domain.Item, error)

	// SlotForUpdate locks and returns one slot; (nil, nil) when absent.
	SlotForUpdate(ctx context.Context, slotID string) (*domain.Slot, error)

	// UpdateItemQuantity sets the quantity of a locked item.
	UpdateItemQuantity(ctx context.Context, itemID string, quantity int) error

	// UpdateSlotCount sets the current item count of a locked slot.
	UpdateSlotCount(ctx context.Context, slotID string, count int) error

	// InsertItem creates a new item row bound to a locked slot.
	InsertItem(ctx context.Context, item domain.Item) error

	// DeleteSlot removes a locked slot.
	DeleteSlot(ctx context.Context, slotID string) error
}
