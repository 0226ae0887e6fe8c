package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Sajal-kanwal/vending-machine-api/internal/core/domain"
	"github.com/Sajal-kanwal/vending-machine-api/internal/port"
)

// MySQLStore implements port.Store on InnoDB row locks: every *ForUpdate
// call issues SELECT ... FOR UPDATE inside the open transaction, so the
// read-check-write sequence in the service layer runs fully serialized
// per row.
type MySQLStore struct {
	db *sql.DB
}

func NewMySQLStore(db *sql.DB) *MySQLStore {
	return &MySQLStore{db: db}
}

func (m *MySQLStore) WithinTx(ctx context.Context, fn func(tx port.Tx) error) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&mysqlTx{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (m *MySQLStore) GetItem(ctx context.Context, itemID string) (*domain.Item, error) {
	var item domain.Item
	err := m.db.QueryRowContext(ctx, `
		SELECT id, slot_id, name, price, quantity, created_at, updated_at
		FROM items WHERE id = ?`, itemID,
	).Scan(&item.ID, &item.SlotID, &item.Name, &item.Price, &item.Quantity,
		&item.CreatedAt, &item.UpdatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query item: %w", err)
	}
	return &item, nil
}

func (m *MySQLStore) GetSlot(ctx context.Context, slotID string) (*domain.Slot, error) {
	var slot domain.Slot
	err := m.db.QueryRowContext(ctx, `
		SELECT id, code, capacity, current_item_count, created_at, updated_at
		FROM slots WHERE id = ?`, slotID,
	).Scan(&slot.ID, &slot.Code, &slot.Capacity, &slot.CurrentItemCount,
		&slot.CreatedAt, &slot.UpdatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query slot: %w", err)
	}
	return &slot, nil
}

func (m *MySQLStore) ListSlots(ctx context.Context) ([]domain.Slot, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT id, code, capacity, current_item_count, created_at, updated_at
		FROM slots ORDER BY code`)
	if err != nil {
		return nil, fmt.Errorf("query slots: %w", err)
	}
	defer rows.Close()

	var slots []domain.Slot
	for rows.Next() {
		var slot domain.Slot
		if err := rows.Scan(&slot.ID, &slot.Code, &slot.Capacity, &slot.CurrentItemCount,
			&slot.CreatedAt, &slot.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan slot: %w", err)
		}
		slots = append(slots, slot)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate slots: %w", err)
	}
	return slots, nil
}

func (m *MySQLStore) CreateSlot(ctx context.Context, slot domain.Slot) error {
	_, err := m.db.ExecContext(ctx, `
		INSERT INTO slots (id, code, capacity, current_item_count, created_at, updated_at)
		VALUES (?, ?, ?, ?, NOW(), NOW())`,
		slot.ID, slot.Code, slot.Capacity, slot.CurrentItemCount,
	)
	if err != nil {
		return fmt.Errorf("insert slot: %w", err)
	}
	return nil
}

type mysqlTx struct {
	tx *sql.Tx
}

func (t *mysqlTx) ItemForUpdate(ctx context.Context, itemID string) (*domain.Item, error) {
	var item domain.Item
	err := t.tx.QueryRowContext(ctx, `
		SELECT id, slot_id, name, price, quantity, created_at, updated_at
		FROM items WHERE id = ? FOR UPDATE`, itemID,
	).Scan(&item.ID, &item.SlotID, &item.Name, &item.Price, &item.Quantity,
		&item.CreatedAt, &item.UpdatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lock item: %w", err)
	}
	return &item, nil
}

func (t *mysqlTx) SlotForUpdate(ctx context.Context, slotID string) (*domain.Slot, error) {
	var slot domain.Slot
	err := t.tx.QueryRowContext(ctx, `
		SELECT id, code, capacity, current_item_count, created_at, updated_at
		FROM slots WHERE id = ? FOR UPDATE`, slotID,
	).Scan(&slot.ID, &slot.Code, &slot.Capacity, &slot.CurrentItemCount,
		&slot.CreatedAt, &slot.UpdatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lock slot: %w", err)
	}
	return &slot, nil
}

func (t *mysqlTx) UpdateItemQuantity(ctx context.Context, itemID string, quantity int) error {
	_, err := t.tx.ExecContext(ctx, `
		UPDATE items SET quantity = ?, updated_at = NOW() WHERE id = ?`,
		quantity, itemID,
	)
	if err != nil {
		return fmt.Errorf("update item quantity: %w", err)
	}
	return nil
}

func (t *mysqlTx) UpdateSlotCount(ctx context.Context, slotID string, count int) error {
	_, err := t.tx.ExecContext(ctx, `
		UPDATE slots SET current_item_count = ?, updated_at = NOW() WHERE id = ?`,
		count, slotID,
	)
	if err != nil {
		return fmt.Errorf("update slot count: %w", err)
	}
	return nil
}

func (t *mysqlTx) InsertItem(ctx context.Context, item domain.Item) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO items (id, slot_id, name, price, quantity, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, NOW(), NOW())`,
		item.ID, item.SlotID, item.Name, item.Price, item.Quantity,
	)
	if err != nil {
		return fmt.Errorf("insert item: %w", err)
	}
	return nil
}

func (t *mysqlTx) DeleteSlot(ctx context.Context, slotID string) error {
	_, err := t.tx.ExecContext(ctx, `DELETE FROM slots WHERE id = ?`, slotID)
	if err != nil {
		return fmt.Errorf("delete slot: %w", err)
	}
	return nil
}
