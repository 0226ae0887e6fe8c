package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/Sajal-kanwal/vending-machine-api/internal/adapter/storage"
	"github.com/Sajal-kanwal/vending-machine-api/internal/core/domain"
	"github.com/Sajal-kanwal/vending-machine-api/internal/core/service"
)

const (
	initialQuantity = 20
	totalRequests   = 50
	itemPrice       = 10
	queueSize       = 100
)

// Fires concurrent purchases at a single item through the in-process
// store and checks exactly-once semantics: one success per unit of stock,
// the rest rejected as out of stock, and the slot counter consistent.
func main() {
	ctx := context.Background()
	logger := zerolog.New(os.Stderr).With().Timestamp().Logger()

	store := storage.NewMemoryStore()
	vending := service.NewVendingService(store, []int{1, 5, 10, 25}, queueSize, logger)
	defer vending.Close()

	// Drain the sync queue in background.
	go func() {
		for range vending.SyncQueue() {
		}
	}()

	slot, err := vending.CreateSlot(ctx, "A1", initialQuantity)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create slot")
	}

	ids, err := vending.BulkInsert(ctx, slot.ID, []domain.NewItem{
		{Name: "soda", Price: itemPrice, Quantity: initialQuantity},
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to stock slot")
	}
	itemID := ids[0]

	var successCount atomic.Int32
	var soldOutCount atomic.Int32
	var otherCount atomic.Int32

	var wg sync.WaitGroup
	start := time.Now()

	for i := 0; i < totalRequests; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			_, err := vending.Purchase(ctx, itemID, itemPrice)
			switch {
			case err == nil:
				successCount.Add(1)
			case errors.Is(err, domain.ErrOutOfStock):
				soldOutCount.Add(1)
			default:
				otherCount.Add(1)
			}
		}()
	}

	wg.Wait()
	elapsed := time.Since(start)

	success := successCount.Load()
	soldOut := soldOutCount.Load()

	fmt.Println("========== STRESS TEST RESULTS ==========")
	fmt.Printf("Initial Quantity: %d\n", initialQuantity)
	fmt.Printf("Total Requests:   %d\n", totalRequests)
	fmt.Printf("Successful:       %d\n", success)
	fmt.Printf("Out Of Stock:     %d\n", soldOut)
	fmt.Printf("Other Errors:     %d\n", otherCount.Load())
	fmt.Printf("Duration:         %v\n", elapsed)
	fmt.Println("==========================================")

	if success == initialQuantity && soldOut == totalRequests-initialQuantity {
		fmt.Printf("PASS: Exactly %d purchases succeeded, %d rejected\n", initialQuantity, totalRequests-initialQuantity)
	} else {
		fmt.Printf("FAIL: Expected %d success/%d rejected, got %d/%d\n",
			initialQuantity, totalRequests-initialQuantity, success, soldOut)
	}

	item, err := vending.GetItem(ctx, itemID)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to read final item")
	}
	finalSlot, err := vending.GetSlot(ctx, slot.ID)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to read final slot")
	}

	fmt.Printf("Final Quantity:   %d\n", item.Quantity)
	fmt.Printf("Final Slot Count: %d\n", finalSlot.CurrentItemCount)

	if item.Quantity == 0 && finalSlot.CurrentItemCount == 0 {
		fmt.Println("PASS: Stock depleted to 0 with a consistent slot counter")
	} else {
		fmt.Printf("FAIL: Expected 0/0, got quantity %d, slot count %d\n",
			item.Quantity, finalSlot.CurrentItemCount)
	}
}
