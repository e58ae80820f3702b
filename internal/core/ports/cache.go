package ports

import (
	"context"

	"github.com/avatarctic/taskflow-assetproxy/internal/core/domain/asset"
)

// CacheStorage is the set of named cache stores. Implementations must make single operations
// atomic; overlapping writes to the same key may race with last-write-wins.
type CacheStorage interface {
	// Open returns the named store, creating it when absent.
	Open(ctx context.Context, name string) (CacheStore, error)
	// Has reports whether the named store exists.
	Has(ctx context.Context, name string) (bool, error)
	// Delete removes the named store and all its entries. ok=false if it did not exist.
	Delete(ctx context.Context, name string) (bool, error)
	// Keys lists store names in creation order.
	Keys(ctx context.Context) ([]string, error)
}

// CacheStore is one named store keyed by normalized absolute URL.
type CacheStore interface {
	Name() string
	// Get returns the entry stored for url. ok=false if not found.
	Get(ctx context.Context, url string) (*asset.Entry, bool, error)
	// Put stores entry, replacing any entry for the same URL.
	Put(ctx context.Context, entry *asset.Entry) error
	// PutAll stores every entry or none of them.
	PutAll(ctx context.Context, entries []*asset.Entry) error
	// Delete removes the entry for url; absence is not an error.
	Delete(ctx context.Context, url string) (bool, error)
	// Keys lists stored URLs.
	Keys(ctx context.Context) ([]string, error)
}
