package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"github.com/Sajal-kanwal/vending-machine-api/internal/adapter/storage"
	"github.com/Sajal-kanwal/vending-machine-api/internal/core/domain"
	"github.com/Sajal-kanwal/vending-machine-api/internal/core/service"
)

type fakeCache struct {
	mu    sync.Mutex
	stock map[string]int
}

func newFakeCache() *fakeCache {
	return &fakeCache{stock: make(map[string]int)}
}

func (f *fakeCache) SetStock(ctx context.Context, itemID string, quantity int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stock[itemID] = quantity
	return nil
}

func (f *fakeCache) GetStock(ctx context.Context, itemID string) (int, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	quantity, ok := f.stock[itemID]
	return quantity, ok, nil
}

func (f *fakeCache) DeleteStock(ctx context.Context, itemID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.stock, itemID)
	return nil
}

func newTestHandler(t *testing.T) (*http.ServeMux, *service.VendingService, *fakeCache) {
	t.Helper()

	store := storage.NewMemoryStore()
	svc := service.NewVendingService(store, []int{1, 5, 10, 25}, 256, zerolog.Nop())
	t.Cleanup(svc.Close)

	cache := newFakeCache()
	mux := http.NewServeMux()
	NewHTTPHandler(svc, cache).Register(mux)
	return mux, svc, cache
}

func doJSON(t *testing.T, mux *http.ServeMux, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request: %v", err)
		}
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func seedItem(t *testing.T, svc *service.VendingService, price, quantity int) (slotID, itemID string) {
	t.Helper()
	ctx := context.Background()

	slot, err := svc.CreateSlot(ctx, "A1", 50)
	if err != nil {
		t.Fatalf("CreateSlot failed: %v", err)
	}
	ids, err := svc.BulkInsert(ctx, slot.ID, []domain.NewItem{{Name: "soda", Price: price, Quantity: quantity}})
	if err != nil {
		t.Fatalf("BulkInsert failed: %v", err)
	}
	return slot.ID, ids[0]
}

func TestPurchaseEndpoint_Success(t *testing.T) {
	mux, svc, _ := newTestHandler(t)
	_, itemID := seedItem(t, svc, 13, 1)

	w := doJSON(t, mux, http.MethodPost, "/api/purchase", PurchaseRequest{ItemID: itemID, CashInserted: 50})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp ReceiptResponse
	decodeBody(t, w, &resp)

	if resp.Item != "soda" || resp.ChangeReturned != 37 || resp.RemainingQuantity != 0 {
		t.Errorf("unexpected receipt: %+v", resp)
	}
	want := map[string]int{"25": 1, "10": 1, "1": 2}
	for label, count := range want {
		if resp.ChangeDenominations[label] != count {
			t.Errorf("denomination %s: expected %d, got %d", label, count, resp.ChangeDenominations[label])
		}
	}
}

func TestPurchaseEndpoint_ErrorMapping(t *testing.T) {
	mux, svc, _ := newTestHandler(t)
	_, itemID := seedItem(t, svc, 10, 1)

	// insufficient cash carries the price and the tendered amount
	w := doJSON(t, mux, http.MethodPost, "/api/purchase", PurchaseRequest{ItemID: itemID, CashInserted: 5})
	if w.Code != http.StatusBadRequest {
		t.Errorf("insufficient cash: expected 400, got %d", w.Code)
	}
	var errResp ErrorResponse
	decodeBody(t, w, &errResp)
	if errResp.RequiredPrice != 10 || errResp.CashInserted != 5 {
		t.Errorf("expected (10, 5) in error payload, got (%d, %d)", errResp.RequiredPrice, errResp.CashInserted)
	}

	if w := doJSON(t, mux, http.MethodPost, "/api/purchase", PurchaseRequest{ItemID: itemID, CashInserted: 0}); w.Code != http.StatusBadRequest {
		t.Errorf("invalid cash: expected 400, got %d", w.Code)
	}

	if w := doJSON(t, mux, http.MethodPost, "/api/purchase", PurchaseRequest{ItemID: "ghost", CashInserted: 10}); w.Code != http.StatusNotFound {
		t.Errorf("unknown item: expected 404, got %d", w.Code)
	}

	// drain the stock, then expect out-of-stock
	if w := doJSON(t, mux, http.MethodPost, "/api/purchase", PurchaseRequest{ItemID: itemID, CashInserted: 10}); w.Code != http.StatusOK {
		t.Fatalf("purchase failed with %d", w.Code)
	}
	if w := doJSON(t, mux, http.MethodPost, "/api/purchase", PurchaseRequest{ItemID: itemID, CashInserted: 10}); w.Code != http.StatusBadRequest {
		t.Errorf("out of stock: expected 400, got %d", w.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/purchase", bytes.NewReader([]byte("{not json")))
	w = httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("malformed body: expected 400, got %d", w.Code)
	}
}

func TestBulkInsertEndpoint(t *testing.T) {
	mux, svc, _ := newTestHandler(t)

	slot, err := svc.CreateSlot(context.Background(), "B2", 5)
	if err != nil {
		t.Fatalf("CreateSlot failed: %v", err)
	}

	w := doJSON(t, mux, http.MethodPost, "/api/slots/"+slot.ID+"/items/bulk", BulkInsertRequest{
		Items: []BulkInsertItem{
			{Name: "I1", Price: 10, Quantity: 2},
			{Name: "I2", Price: 10, Quantity: 2},
		},
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var resp BulkInsertResponse
	decodeBody(t, w, &resp)
	if len(resp.ItemIDs) != 2 {
		t.Errorf("expected 2 item ids, got %v", resp.ItemIDs)
	}

	// remaining capacity is 1, so this must be rejected atomically
	w = doJSON(t, mux, http.MethodPost, "/api/slots/"+slot.ID+"/items/bulk", BulkInsertRequest{
		Items: []BulkInsertItem{{Name: "I3", Price: 10, Quantity: 10}},
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("capacity exceeded: expected 400, got %d", w.Code)
	}

	w = doJSON(t, mux, http.MethodPost, "/api/slots/ghost/items/bulk", BulkInsertRequest{
		Items: []BulkInsertItem{{Name: "I1", Price: 10, Quantity: 1}},
	})
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown slot: expected 404, got %d", w.Code)
	}

	w = doJSON(t, mux, http.MethodPost, "/api/slots/"+slot.ID+"/items/bulk", BulkInsertRequest{})
	if w.Code != http.StatusBadRequest {
		t.Errorf("empty items: expected 400, got %d", w.Code)
	}

	w = doJSON(t, mux, http.MethodPost, "/api/slots/"+slot.ID+"/items/bulk", BulkInsertRequest{
		Items: []BulkInsertItem{{Name: "", Price: 10, Quantity: 1}},
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("unnamed item: expected 400, got %d", w.Code)
	}
}

func TestChangeEndpoint(t *testing.T) {
	mux, _, _ := newTestHandler(t)

	w := doJSON(t, mux, http.MethodGet, "/api/change?amount=37", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp BreakdownResponse
	decodeBody(t, w, &resp)
	if resp.Change != 37 {
		t.Errorf("expected change 37, got %d", resp.Change)
	}
	if resp.Denominations["25"] != 1 || resp.Denominations["10"] != 1 || resp.Denominations["1"] != 2 {
		t.Errorf("unexpected breakdown: %v", resp.Denominations)
	}

	if w := doJSON(t, mux, http.MethodGet, "/api/change?amount=abc", nil); w.Code != http.StatusBadRequest {
		t.Errorf("bad amount: expected 400, got %d", w.Code)
	}
	if w := doJSON(t, mux, http.MethodGet, "/api/change?amount=-1", nil); w.Code != http.StatusBadRequest {
		t.Errorf("negative amount: expected 400, got %d", w.Code)
	}
}

func TestSlotEndpoints(t *testing.T) {
	mux, _, _ := newTestHandler(t)

	w := doJSON(t, mux, http.MethodPost, "/api/slots", CreateSlotRequest{Code: "A100", Capacity: 10})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var slot SlotResponse
	decodeBody(t, w, &slot)
	if slot.ID == "" || slot.Code != "A100" || slot.Capacity != 10 {
		t.Errorf("unexpected slot: %+v", slot)
	}

	if w := doJSON(t, mux, http.MethodPost, "/api/slots", CreateSlotRequest{Code: "", Capacity: 10}); w.Code != http.StatusBadRequest {
		t.Errorf("missing code: expected 400, got %d", w.Code)
	}
	if w := doJSON(t, mux, http.MethodPost, "/api/slots", CreateSlotRequest{Code: "A101", Capacity: 0}); w.Code != http.StatusBadRequest {
		t.Errorf("zero capacity: expected 400, got %d", w.Code)
	}

	w = doJSON(t, mux, http.MethodGet, "/api/slots", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var slots []SlotResponse
	decodeBody(t, w, &slots)
	if len(slots) != 1 {
		t.Errorf("expected 1 slot, got %d", len(slots))
	}

	// fill it, deletion must be refused until empty
	w = doJSON(t, mux, http.MethodPost, "/api/slots/"+slot.ID+"/items/bulk", BulkInsertRequest{
		Items: []BulkInsertItem{{Name: "soda", Price: 10, Quantity: 1}},
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("bulk insert failed with %d", w.Code)
	}
	var created BulkInsertResponse
	decodeBody(t, w, &created)

	if w := doJSON(t, mux, http.MethodDelete, "/api/slots/"+slot.ID, nil); w.Code != http.StatusBadRequest {
		t.Errorf("non-empty delete: expected 400, got %d", w.Code)
	}

	if w := doJSON(t, mux, http.MethodPost, "/api/purchase", PurchaseRequest{ItemID: created.ItemIDs[0], CashInserted: 10}); w.Code != http.StatusOK {
		t.Fatalf("purchase failed with %d", w.Code)
	}

	if w := doJSON(t, mux, http.MethodDelete, "/api/slots/"+slot.ID, nil); w.Code != http.StatusNoContent {
		t.Errorf("empty delete: expected 204, got %d", w.Code)
	}
	if w := doJSON(t, mux, http.MethodDelete, "/api/slots/ghost", nil); w.Code != http.StatusNotFound {
		t.Errorf("unknown slot delete: expected 404, got %d", w.Code)
	}
}

func TestItemStockEndpoint(t *testing.T) {
	mux, svc, cache := newTestHandler(t)
	_, itemID := seedItem(t, svc, 10, 3)

	// cold cache falls back to the store
	w := doJSON(t, mux, http.MethodGet, "/api/items/"+itemID+"/stock", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp StockResponse
	decodeBody(t, w, &resp)
	if resp.Quantity != 3 || resp.Source != "store" {
		t.Errorf("expected 3 from store, got %+v", resp)
	}

	// warm cache wins
	cache.SetStock(context.Background(), itemID, 2)
	w = doJSON(t, mux, http.MethodGet, "/api/items/"+itemID+"/stock", nil)
	decodeBody(t, w, &resp)
	if resp.Quantity != 2 || resp.Source != "cache" {
		t.Errorf("expected 2 from cache, got %+v", resp)
	}

	if w := doJSON(t, mux, http.MethodGet, "/api/items/ghost/stock", nil); w.Code != http.StatusNotFound {
		t.Errorf("unknown item: expected 404, got %d", w.Code)
	}

	w = doJSON(t, mux, http.MethodGet, "/api/items/"+itemID, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var item ItemResponse
	decodeBody(t, w, &item)
	if item.ID != itemID || item.Quantity != 3 {
		t.Errorf("unexpected item payload: %+v", item)
	}
}
