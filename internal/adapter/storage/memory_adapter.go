package storage

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Sajal-kanwal/vending-machine-api/internal/core/domain"
	"github.com/Sajal-kanwal/vending-machine-api/internal/port"
)

// MemoryStore is an in-process port.Store backed by a per-entity mutex
// table. A *ForUpdate call blocks on the row's mutex exactly like a
// database row lock would; writes are staged in the transaction and
// applied only on commit, so a failed callback leaves every row
// untouched. Deadlock freedom relies on the same fixed item-then-slot
// lock order the service uses against MySQL. Plain reads take the row
// mutex too, so unlike a database snapshot read they block behind an
// open transaction holding the row.
type MemoryStore struct {
	mu    sync.Mutex
	items map[string]*itemRow
	slots map[string]*slotRow
}

type itemRow struct {
	mu   sync.Mutex
	item domain.Item
}

type slotRow struct {
	mu   sync.Mutex
	slot domain.Slot
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		items: make(map[string]*itemRow),
		slots: make(map[string]*slotRow),
	}
}

func (m *MemoryStore) WithinTx(ctx context.Context, fn func(tx port.Tx) error) error {
	t := &memoryTx{
		store:      m,
		itemWrites: make(map[string]int),
		slotWrites: make(map[string]int),
	}
	defer t.unlockAll()

	if err := fn(t); err != nil {
		return err
	}

	t.commit()
	return nil
}

func (m *MemoryStore) GetItem(ctx context.Context, itemID string) (*domain.Item, error) {
	m.mu.Lock()
	row, ok := m.items[itemID]
	m.mu.Unlock()
	if !ok {
		return nil, nil
	}

	row.mu.Lock()
	item := row.item
	row.mu.Unlock()
	return &item, nil
}

func (m *MemoryStore) GetSlot(ctx context.Context, slotID string) (*domain.Slot, error) {
	m.mu.Lock()
	row, ok := m.slots[slotID]
	m.mu.Unlock()
	if !ok {
		return nil, nil
	}

	row.mu.Lock()
	slot := row.slot
	row.mu.Unlock()
	return &slot, nil
}

func (m *MemoryStore) ListSlots(ctx context.Context) ([]domain.Slot, error) {
	m.mu.Lock()
	rows := make([]*slotRow, 0, len(m.slots))
	for _, row := range m.slots {
		rows = append(rows, row)
	}
	m.mu.Unlock()

	slots := make([]domain.Slot, 0, len(rows))
	for _, row := range rows {
		row.mu.Lock()
		slots = append(slots, row.slot)
		row.mu.Unlock()
	}
	return slots, nil
}

func (m *MemoryStore) CreateSlot(ctx context.Context, slot domain.Slot) error {
	now := time.Now()
	slot.CreatedAt = now
	slot.UpdatedAt = now

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.slots[slot.ID]; exists {
		return fmt.Errorf("slot %s already exists", slot.ID)
	}
	m.slots[slot.ID] = &slotRow{slot: slot}
	return nil
}

type memoryTx struct {
	store       *MemoryStore
	lockedItems []*itemRow
	lockedSlots []*slotRow
	itemWrites  map[string]int // item id -> new quantity
	slotWrites  map[string]int // slot id -> new count
	inserts     []domain.Item
	slotDeletes []string
}

func (t *memoryTx) ItemForUpdate(ctx context.Context, itemID string) (*domain.Item, error) {
	t.store.mu.Lock()
	row, ok := t.store.items[itemID]
	t.store.mu.Unlock()
	if !ok {
		return nil, nil
	}

	// Blocks until the competing transaction commits or rolls back.
	row.mu.Lock()

	// The holder may have deleted the row while we waited; re-check the
	// mapping after the wait, the way FOR UPDATE re-reads the row.
	t.store.mu.Lock()
	current, live := t.store.items[itemID]
	t.store.mu.Unlock()
	if !live || current != row {
		row.mu.Unlock()
		return nil, nil
	}

	t.lockedItems = append(t.lockedItems, row)

	item := row.item
	return &item, nil
}

func (t *memoryTx) SlotForUpdate(ctx context.Context, slotID string) (*domain.Slot, error) {
	t.store.mu.Lock()
	row, ok := t.store.slots[slotID]
	t.store.mu.Unlock()
	if !ok {
		return nil, nil
	}

	row.mu.Lock()

	t.store.mu.Lock()
	current, live := t.store.slots[slotID]
	t.store.mu.Unlock()
	if !live || current != row {
		row.mu.Unlock()
		return nil, nil
	}

	t.lockedSlots = append(t.lockedSlots, row)

	slot := row.slot
	return &slot, nil
}

func (t *memoryTx) UpdateItemQuantity(ctx context.Context, itemID string, quantity int) error {
	t.itemWrites[itemID] = quantity
	return nil
}

func (t *memoryTx) UpdateSlotCount(ctx context.Context, slotID string, count int) error {
	t.slotWrites[slotID] = count
	return nil
}

func (t *memoryTx) InsertItem(ctx context.Context, item domain.Item) error {
	t.inserts = append(t.inserts, item)
	return nil
}

func (t *memoryTx) DeleteSlot(ctx context.Context, slotID string) error {
	t.slotDeletes = append(t.slotDeletes, slotID)
	return nil
}

// commit applies the staged writes. The mutated rows are still locked by
// this transaction, so no reader observes a half-applied state.
func (t *memoryTx) commit() {
	now := time.Now()

	for _, row := range t.lockedItems {
		if quantity, ok := t.itemWrites[row.item.ID]; ok {
			row.item.Quantity = quantity
			row.item.UpdatedAt = now
		}
	}
	for _, row := range t.lockedSlots {
		if count, ok := t.slotWrites[row.slot.ID]; ok {
			row.slot.CurrentItemCount = count
			row.slot.UpdatedAt = now
		}
	}

	if len(t.inserts) == 0 && len(t.slotDeletes) == 0 {
		return
	}

	t.store.mu.Lock()
	for _, item := range t.inserts {
		item.CreatedAt = now
		item.UpdatedAt = now
		t.store.items[item.ID] = &itemRow{item: item}
	}
	for _, slotID := range t.slotDeletes {
		delete(t.store.slots, slotID)
	}
	t.store.mu.Unlock()
}

func (t *memoryTx) unlockAll() {
	for i := len(t.lockedSlots) - 1; i >= 0; i-- {
		t.lockedSlots[i].mu.Unlock()
	}
	for i := len(t.lockedItems) - 1; i >= 0; i-- {
		t.lockedItems[i].mu.Unlock()
	}
}
