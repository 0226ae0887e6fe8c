package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Sajal-kanwal/vending-machine-api/internal/core/domain"
	"github.com/Sajal-kanwal/vending-machine-api/internal/port"
)

func TestMemoryStore_TxRollbackLeavesRowsUntouched(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if err := store.CreateSlot(ctx, domain.Slot{ID: "s1", Code: "A1", Capacity: 5}); err != nil {
		t.Fatalf("CreateSlot failed: %v", err)
	}

	failure := errors.New("abort")
	err := store.WithinTx(ctx, func(tx port.Tx) error {
		if _, err := tx.SlotForUpdate(ctx, "s1"); err != nil {
			return err
		}
		if err := tx.InsertItem(ctx, domain.Item{ID: "i1", SlotID: "s1", Name: "soda", Price: 10, Quantity: 2}); err != nil {
			return err
		}
		if err := tx.UpdateSlotCount(ctx, "s1", 2); err != nil {
			return err
		}
		return failure
	})
	if !errors.Is(err, failure) {
		t.Fatalf("expected the callback error back, got: %v", err)
	}

	item, err := store.GetItem(ctx, "i1")
	if err != nil {
		t.Fatalf("GetItem failed: %v", err)
	}
	if item != nil {
		t.Error("rolled back insert is visible")
	}

	slot, err := store.GetSlot(ctx, "s1")
	if err != nil {
		t.Fatalf("GetSlot failed: %v", err)
	}
	if slot.CurrentItemCount != 0 {
		t.Errorf("rolled back count update is visible: %d", slot.CurrentItemCount)
	}
}

// A transaction that waits out a competing delete must not get the dead
// row back as a live handle; like a database FOR UPDATE, the lock wait
// ends with a re-read that finds no row.
func TestMemoryStore_SlotForUpdateAfterCommittedDelete(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if err := store.CreateSlot(ctx, domain.Slot{ID: "s1", Code: "A1", Capacity: 5}); err != nil {
		t.Fatalf("CreateSlot failed: %v", err)
	}

	locked := make(chan struct{})
	deleteDone := make(chan error, 1)

	go func() {
		deleteDone <- store.WithinTx(ctx, func(tx port.Tx) error {
			slot, err := tx.SlotForUpdate(ctx, "s1")
			if err != nil {
				return err
			}
			if slot == nil {
				return errors.New("slot missing before delete")
			}
			close(locked)
			// hold the row lock long enough for the second transaction
			// to queue up behind it
			time.Sleep(50 * time.Millisecond)
			return tx.DeleteSlot(ctx, "s1")
		})
	}()

	<-locked
	err := store.WithinTx(ctx, func(tx port.Tx) error {
		slot, err := tx.SlotForUpdate(ctx, "s1")
		if err != nil {
			return err
		}
		if slot != nil {
			t.Errorf("deleted slot came back as a live handle: %+v", slot)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("WithinTx failed: %v", err)
	}

	if err := <-deleteDone; err != nil {
		t.Fatalf("delete tx failed: %v", err)
	}

	slot, err := store.GetSlot(ctx, "s1")
	if err != nil {
		t.Fatalf("GetSlot failed: %v", err)
	}
	if slot != nil {
		t.Errorf("slot still present after committed delete: %+v", slot)
	}
}

// A rolled-back delete must not hide the row from the waiting
// transaction.
func TestMemoryStore_SlotForUpdateAfterRolledBackDelete(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if err := store.CreateSlot(ctx, domain.Slot{ID: "s1", Code: "A1", Capacity: 5}); err != nil {
		t.Fatalf("CreateSlot failed: %v", err)
	}

	locked := make(chan struct{})
	abort := errors.New("abort")
	deleteDone := make(chan error, 1)

	go func() {
		deleteDone <- store.WithinTx(ctx, func(tx port.Tx) error {
			if _, err := tx.SlotForUpdate(ctx, "s1"); err != nil {
				return err
			}
			if err := tx.DeleteSlot(ctx, "s1"); err != nil {
				return err
			}
			close(locked)
			time.Sleep(50 * time.Millisecond)
			return abort
		})
	}()

	<-locked
	err := store.WithinTx(ctx, func(tx port.Tx) error {
		slot, err := tx.SlotForUpdate(ctx, "s1")
		if err != nil {
			return err
		}
		if slot == nil {
			t.Error("slot vanished behind a rolled-back delete")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("WithinTx failed: %v", err)
	}

	if err := <-deleteDone; !errors.Is(err, abort) {
		t.Fatalf("expected the callback error back, got: %v", err)
	}
}
