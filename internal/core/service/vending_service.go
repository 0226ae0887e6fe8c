package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Sajal-kanwal/vending-machine-api/internal/core/domain"
	"github.com/Sajal-kanwal/vending-machine-api/internal/port"
)

// StockSync is one cache refresh notice, emitted after a committed
// mutation of an item's quantity.
type StockSync struct {
	ItemID   string
	Quantity int
}

// VendingService holds the single authoritative copy of the inventory
// transaction logic. Every mutation runs inside one store transaction
// with rows locked item-first-then-slot, so concurrent purchases of the
// same item serialize at lock acquisition and the slot counter never
// drifts from the sum of its item quantities.
type VendingService struct {
	store         port.Store
	denominations []int
	syncQueue     chan StockSync
	log           zerolog.Logger
}

func NewVendingService(store port.Store, denominations []int, queueSize int, log zerolog.Logger) *VendingService {
	return &VendingService{
		store:         store,
		denominations: denominations,
		syncQueue:     make(chan StockSync, queueSize),
		log:           log,
	}
}

// Purchase sells one unit of an item for the tendered cash amount. The
// quantity check, cash validation and both decrements happen under the
// item and slot row locks; any failure rolls the transaction back with no
// partial mutation.
func (s *VendingService) Purchase(ctx context.Context, itemID string, cashInserted int) (*domain.Receipt, error) {
	var receipt *domain.Receipt

	err := s.store.WithinTx(ctx, func(tx port.Tx) error {
		item, err := tx.ItemForUpdate(ctx, itemID)
		if err != nil {
			return fmt.Errorf("lock item: %w", err)
		}
		if item == nil {
			return domain.ErrItemNotFound
		}

		slot, err := tx.SlotForUpdate(ctx, item.SlotID)
		if err != nil {
			return fmt.Errorf("lock slot: %w", err)
		}
		if slot == nil {
			return fmt.Errorf("slot %s missing for item %s", item.SlotID, item.ID)
		}

		if item.Quantity <= 0 {
			return domain.ErrOutOfStock
		}
		if cashInserted <= 0 {
			return domain.ErrInvalidCash
		}
		if cashInserted < item.Price {
			return &domain.InsufficientCashError{Required: item.Price, Given: cashInserted}
		}

		change := cashInserted - item.Price
		if err := tx.UpdateItemQuantity(ctx, item.ID, item.Quantity-1); err != nil {
			return fmt.Errorf("decrement item quantity: %w", err)
		}
		if err := tx.UpdateSlotCount(ctx, slot.ID, slot.CurrentItemCount-1); err != nil {
			return fmt.Errorf("decrement slot count: %w", err)
		}

		receipt = &domain.Receipt{
			Item:              item.Name,
			Price:             item.Price,
			CashInserted:      cashInserted,
			ChangeReturned:    change,
			Change:            domain.BreakDown(change, s.denominations),
			RemainingQuantity: item.Quantity - 1,
			Message:           "purchase successful",
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notifyStock(itemID, receipt.RemainingQuantity)
	return receipt, nil
}

// BulkInsert creates all requested items in one slot, or none of them.
// The capacity check runs once against the aggregate quantity, under the
// slot row lock, before any row is written.
func (s *VendingService) BulkInsert(ctx context.Context, slotID string, items []domain.NewItem) ([]string, error) {
	created := make([]string, 0, len(items))

	err := s.store.WithinTx(ctx, func(tx port.Tx) error {
		slot, err := tx.SlotForUpdate(ctx, slotID)
		if err != nil {
			return fmt.Errorf("lock slot: %w", err)
		}
		if slot == nil {
			return domain.ErrSlotNotFound
		}

		total := 0
		for _, it := range items {
			if it.Quantity <= 0 {
				return domain.ErrInvalidQuantity
			}
			total += it.Quantity
		}

		if slot.CurrentItemCount+total > slot.Capacity {
			return domain.ErrCapacityExceeded
		}

		for _, it := range items {
			row := domain.Item{
				ID:       uuid.NewString(),
				SlotID:   slot.ID,
				Name:     it.Name,
				Price:    it.Price,
				Quantity: it.Quantity,
			}
			if err := tx.InsertItem(ctx, row); err != nil {
				return fmt.Errorf("insert item: %w", err)
			}
			created = append(created, row.ID)
		}

		if err := tx.UpdateSlotCount(ctx, slot.ID, slot.CurrentItemCount+total); err != nil {
			return fmt.Errorf("increment slot count: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for i, it := range items {
		s.notifyStock(created[i], it.Quantity)
	}
	return created, nil
}

// BreakDown splits a change amount over the configured denomination set.
func (s *VendingService) BreakDown(change int) domain.ChangeBreakdown {
	return domain.BreakDown(change, s.denominations)
}

// CreateSlot registers a new, empty slot.
func (s *VendingService) CreateSlot(ctx context.Context, code string, capacity int) (*domain.Slot, error) {
	slot := domain.Slot{
		ID:       uuid.NewString(),
		Code:     code,
		Capacity: capacity,
	}
	if err := s.store.CreateSlot(ctx, slot); err != nil {
		return nil, fmt.Errorf("create slot: %w", err)
	}
	return &slot, nil
}

// DeleteSlot removes a slot. Deletion is refused while the slot still
// holds items; the count check runs under the slot row lock so a
// concurrent bulk insert cannot slip rows into a dying slot.
func (s *VendingService) DeleteSlot(ctx context.Context, slotID string) error {
	return s.store.WithinTx(ctx, func(tx port.Tx) error {
		slot, err := tx.SlotForUpdate(ctx, slotID)
		if err != nil {
			return fmt.Errorf("lock slot: %w", err)
		}
		if slot == nil {
			return domain.ErrSlotNotFound
		}
		if slot.CurrentItemCount > 0 {
			return domain.ErrSlotNotEmpty
		}
		if err := tx.DeleteSlot(ctx, slot.ID); err != nil {
			return fmt.Errorf("delete slot: %w", err)
		}
		return nil
	})
}

func (s *VendingService) GetItem(ctx context.Context, itemID string) (*domain.Item, error) {
	item, err := s.store.GetItem(ctx, itemID)
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	if item == nil {
		return nil, domain.ErrItemNotFound
	}
	return item, nil
}

func (s *VendingService) GetSlot(ctx context.Context, slotID string) (*domain.Slot, error) {
	slot, err := s.store.GetSlot(ctx, slotID)
	if err != nil {
		return nil, fmt.Errorf("get slot: %w", err)
	}
	if slot == nil {
		return nil, domain.ErrSlotNotFound
	}
	return slot, nil
}

func (s *VendingService) ListSlots(ctx context.Context) ([]domain.Slot, error) {
	slots, err := s.store.ListSlots(ctx)
	if err != nil {
		return nil, fmt.Errorf("list slots: %w", err)
	}
	return slots, nil
}

// SyncQueue exposes committed stock changes for cache refresh workers.
func (s *VendingService) SyncQueue() <-chan StockSync {
	return s.syncQueue
}

// Close stops the sync queue; workers draining it will exit.
func (s *VendingService) Close() {
	close(s.syncQueue)
}

// notifyStock never blocks a committed purchase on the cache pipeline: a
// full queue drops the event, the next mutation of the item refreshes it.
func (s *VendingService) notifyStock(itemID string, quantity int) {
	select {
	case s.syncQueue <- StockSync{ItemID: itemID, Quantity: quantity}:
	default:
		s.log.Warn().Str("item_id", itemID).Msg("stock sync queue full, dropping event")
	}
}
