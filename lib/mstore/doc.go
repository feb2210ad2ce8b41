// Package mstore implements the datastore.IStore interface in memory. It holds a
// complete universe: named data stores, scopes, keys and the version history of
// every key. Data is not persisted between process restarts.
//
// Key Features:
//   - Versioned writes: every Set and Increment appends a version with a unique id
//   - Soft removal: Remove marks the latest version as deleted, the history stays
//     readable through GetVersion and ListVersions
//   - Optimistic concurrency with SetOptions.ExclusiveCreate and SetOptions.MatchVersion
//   - Sorted, prefix-filtered listings with opaque continuation tokens
//
// Implementation Details:
//
//   - Write Index Management: The store maintains an atomic counter that increments
//     with each write. Versions carry this index, which orders version listings and
//     serves as their continuation cursor.
//
//   - Data Stores: Data stores live in an xsync.MapOf and are created on their first
//     write. Each has its own RWMutex, so operations on different data stores do not
//     contend.
//
//   - Continuation Tokens: A token is the base64 encoded sort key of the last item of the
//     previous page. A token that cannot be decoded is rejected with RetCInvalidOperation.
//
// Thread Safety:
//
//	All operations are safe for concurrent use. Returned entries are copies.
//
// Usage Example:
//
//	store := mstore.NewStore()
//	ref := datastore.StoreRef{Name: "players"}
//
//	version, err := store.Set(ctx, ref, "alice", []byte(`{"level":3}`), datastore.SetOptions{})
//	entry, err := store.Get(ctx, ref, "alice")
//	page, err := store.ListKeys(ctx, datastore.KeyQuery{Store: ref}, "")
//
// The store backs every universe of the RPC server and is the reference backend of the
// conformance suite in lib/datastore/testing.
package mstore
