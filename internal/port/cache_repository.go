package port

import "context"

// CacheRepository is the non-authoritative stock read cache. The store
// rows remain the source of truth; losing the cache is harmless.
type CacheRepository interface {
	// SetStock records the last committed quantity for an item.
	SetStock(ctx context.Context, itemID string, quantity int) error

	// GetStock returns the cached quantity; ok is false on a miss.
	GetStock(ctx context.Context, itemID string) (quantity int, ok bool, err error)

	// DeleteStock drops an item from the cache.
	DeleteStock(ctx context.Context, itemID string) error
}
