package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/Sajal-kanwal/vending-machine-api/internal/core/domain"
	"github.com/Sajal-kanwal/vending-machine-api/internal/core/service"
	"github.com/Sajal-kanwal/vending-machine-api/internal/port"
)

type HTTPHandler struct {
	vending *service.VendingService
	cache   port.CacheRepository
}

// NewHTTPHandler wires the JSON surface over the vending service. cache
// may be nil; stock reads then always hit the store.
func NewHTTPHandler(vending *service.VendingService, cache port.CacheRepository) *HTTPHandler {
	return &HTTPHandler{vending: vending, cache: cache}
}

func (h *HTTPHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.HealthCheck)
	mux.HandleFunc("POST /api/purchase", h.Purchase)
	mux.HandleFunc("GET /api/change", h.ChangeBreakdown)
	mux.HandleFunc("POST /api/slots", h.CreateSlot)
	mux.HandleFunc("GET /api/slots", h.ListSlots)
	mux.HandleFunc("DELETE /api/slots/{slot}", h.DeleteSlot)
	mux.HandleFunc("POST /api/slots/{slot}/items/bulk", h.BulkInsert)
	mux.HandleFunc("GET /api/items/{item}", h.GetItem)
	mux.HandleFunc("GET /api/items/{item}/stock", h.ItemStock)
}

type PurchaseRequest struct {
	ItemID       string `json:"item_id"`
	CashInserted int    `json:"cash_inserted"`
}

type ReceiptResponse struct {
	Item                string         `json:"item"`
	Price               int            `json:"price"`
	CashInserted        int            `json:"cash_inserted"`
	ChangeReturned      int            `json:"change_returned"`
	ChangeDenominations map[string]int `json:"change_denominations"`
	RemainingQuantity   int            `json:"remaining_quantity"`
	Message             string         `json:"message"`
}

type BulkInsertRequest struct {
	Items []BulkInsertItem `json:"items"`
}

type BulkInsertItem struct {
	Name     string `json:"name"`
	Price    int    `json:"price"`
	Quantity int    `json:"quantity"`
}

type BulkInsertResponse struct {
	ItemIDs []string `json:"item_ids"`
}

type CreateSlotRequest struct {
	Code     string `json:"code"`
	Capacity int    `json:"capacity"`
}

type SlotResponse struct {
	ID               string `json:"id"`
	Code             string `json:"code"`
	Capacity         int    `json:"capacity"`
	CurrentItemCount int    `json:"current_item_count"`
}

type ItemResponse struct {
	ID       string `json:"id"`
	SlotID   string `json:"slot_id"`
	Name     string `json:"name"`
	Price    int    `json:"price"`
	Quantity int    `json:"quantity"`
}

type StockResponse struct {
	ItemID   string `json:"item_id"`
	Quantity int    `json:"quantity"`
	Source   string `json:"source"`
}

type BreakdownResponse struct {
	Change        int            `json:"change"`
	Denominations map[string]int `json:"denominations"`
}

type ErrorResponse struct {
	Error         string `json:"error"`
	RequiredPrice int    `json:"required_price,omitempty"`
	CashInserted  int    `json:"cash_inserted,omitempty"`
}

func (h *HTTPHandler) Purchase(w http.ResponseWriter, r *http.Request) {
	var req PurchaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}
	if req.ItemID == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "missing required fields"})
		return
	}

	receipt, err := h.vending.Purchase(r.Context(), req.ItemID, req.CashInserted)
	if err != nil {
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, ReceiptResponse{
		Item:                receipt.Item,
		Price:               receipt.Price,
		CashInserted:        receipt.CashInserted,
		ChangeReturned:      receipt.ChangeReturned,
		ChangeDenominations: labelCounts(receipt.Change.Counts),
		RemainingQuantity:   receipt.RemainingQuantity,
		Message:             receipt.Message,
	})
}

func (h *HTTPHandler) BulkInsert(w http.ResponseWriter, r *http.Request) {
	slotID := r.PathValue("slot")

	var req BulkInsertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}
	if len(req.Items) == 0 {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "missing required fields"})
		return
	}

	items := make([]domain.NewItem, 0, len(req.Items))
	for _, it := range req.Items {
		if it.Name == "" || it.Price <= 0 {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "missing required fields"})
			return
		}
		items = append(items, domain.NewItem{Name: it.Name, Price: it.Price, Quantity: it.Quantity})
	}

	ids, err := h.vending.BulkInsert(r.Context(), slotID, items)
	if err != nil {
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, BulkInsertResponse{ItemIDs: ids})
}

func (h *HTTPHandler) ChangeBreakdown(w http.ResponseWriter, r *http.Request) {
	amount, err := strconv.Atoi(r.URL.Query().Get("amount"))
	if err != nil || amount < 0 {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid amount"})
		return
	}

	breakdown := h.vending.BreakDown(amount)
	writeJSON(w, http.StatusOK, BreakdownResponse{
		Change:        breakdown.Change,
		Denominations: labelCounts(breakdown.Counts),
	})
}

func (h *HTTPHandler) CreateSlot(w http.ResponseWriter, r *http.Request) {
	var req CreateSlotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}
	if req.Code == "" || req.Capacity <= 0 {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "missing required fields"})
		return
	}

	slot, err := h.vending.CreateSlot(r.Context(), req.Code, req.Capacity)
	if err != nil {
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, slotResponse(*slot))
}

func (h *HTTPHandler) ListSlots(w http.ResponseWriter, r *http.Request) {
	slots, err := h.vending.ListSlots(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}

	resp := make([]SlotResponse, 0, len(slots))
	for _, slot := range slots {
		resp = append(resp, slotResponse(slot))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *HTTPHandler) DeleteSlot(w http.ResponseWriter, r *http.Request) {
	if err := h.vending.DeleteSlot(r.Context(), r.PathValue("slot")); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *HTTPHandler) GetItem(w http.ResponseWriter, r *http.Request) {
	item, err := h.vending.GetItem(r.Context(), r.PathValue("item"))
	if err != nil {
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, ItemResponse{
		ID:       item.ID,
		SlotID:   item.SlotID,
		Name:     item.Name,
		Price:    item.Price,
		Quantity: item.Quantity,
	})
}

// ItemStock serves availability from the cache when warm, falling back to
// the store. The cached value may trail a just-committed purchase; the
// store row is authoritative.
func (h *HTTPHandler) ItemStock(w http.ResponseWriter, r *http.Request) {
	itemID := r.PathValue("item")

	if h.cache != nil {
		if quantity, ok, err := h.cache.GetStock(r.Context(), itemID); err == nil && ok {
			writeJSON(w, http.StatusOK, StockResponse{ItemID: itemID, Quantity: quantity, Source: "cache"})
			return
		}
	}

	item, err := h.vending.GetItem(r.Context(), itemID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, StockResponse{ItemID: item.ID, Quantity: item.Quantity, Source: "store"})
}

func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *HTTPHandler) writeError(w http.ResponseWriter, err error) {
	var insufficient *domain.InsufficientCashError

	switch {
	case errors.Is(err, domain.ErrItemNotFound), errors.Is(err, domain.ErrSlotNotFound):
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: err.Error()})
	case errors.As(err, &insufficient):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:         insufficient.Error(),
			RequiredPrice: insufficient.Required,
			CashInserted:  insufficient.Given,
		})
	case errors.Is(err, domain.ErrOutOfStock),
		errors.Is(err, domain.ErrInvalidCash),
		errors.Is(err, domain.ErrInvalidQuantity),
		errors.Is(err, domain.ErrCapacityExceeded),
		errors.Is(err, domain.ErrSlotNotEmpty):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error()})
	default:
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
	}
}

func slotResponse(slot domain.Slot) SlotResponse {
	return SlotResponse{
		ID:               slot.ID,
		Code:             slot.Code,
		Capacity:         slot.Capacity,
		CurrentItemCount: slot.CurrentItemCount,
	}
}

func labelCounts(counts map[int]int) map[string]int {
	labeled := make(map[string]int, len(counts))
	for denomination, count := range counts {
		labeled[strconv.Itoa(denomination)] = count
	}
	return labeled
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
