package datastore

import (
	"context"
)

// --------------------------------------------------------------------------
// Interface Definition
// --------------------------------------------------------------------------

// IStore is the interface of a remote data store service. It covers the one-shot
// request/response operations (read, write, increment, remove) and the paginated
// listings. All methods are safe for concurrent use and honor the passed context.
//
// Read operations on missing keys return an error matching ErrNotFound, failures of the
// underlying connection return an error matching ErrTransport.
type IStore interface {
	// Get returns the latest version of a key. Removed keys are reported as ErrNotFound.
	Get(ctx context.Context, ref StoreRef, key string) (entry Entry, err error)
	// GetVersion returns a specific version of a key, including versions of removed keys.
	GetVersion(ctx context.Context, ref StoreRef, key, version string) (entry Entry, err error)
	// Set writes a new version of a key and returns its version id.
	// The value must be valid JSON.
	Set(ctx context.Context, ref StoreRef, key string, value []byte, opts SetOptions) (version string, err error)
	// Increment adds delta to the integer stored at key (a missing key counts as 0)
	// and returns the newly written entry.
	Increment(ctx context.Context, ref StoreRef, key string, delta int64, opts SetOptions) (entry Entry, err error)
	// Remove marks a key as deleted and returns the entry that was removed.
	// The version history is kept.
	Remove(ctx context.Context, ref StoreRef, key string) (entry Entry, err error)

	// ListKeys returns one page of keys. An empty token requests the first page.
	ListKeys(ctx context.Context, query KeyQuery, token string) (page Page[KeyInfo], err error)
	// ListVersions returns one page of versions of a single key.
	ListVersions(ctx context.Context, query VersionQuery, token string) (page Page[VersionInfo], err error)
	// ListStores returns one page of data stores of the universe.
	ListStores(ctx context.Context, query StoreQuery, token string) (page Page[StoreInfo], err error)
}

// StoreFactory creates a new store. It is used by tests and servers to abstract the
// creation of the backend from its consumers.
type StoreFactory func() IStore
