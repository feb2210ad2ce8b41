// Package datastore defines the types and the service interface of a remote,
// versioned key-value data store. It is the contract shared by the backends
// (mstore, the RPC client) and by the client-side machinery built on top of them
// (change notification in the watch package, enumeration in the paging package).
//
// The package focuses on:
//   - A unified interface (IStore) for reads, writes, increments, removals and listings
//   - Versioned entries with user ids and metadata
//   - Bounded pages with opaque continuation tokens
//   - Unified error handling with typed return codes
//
// Key Components:
//
//   - IStore Interface: The service abstraction. Every backend implements it, so
//     applications can switch between an in-process store and a remote one without
//     code changes. All methods take a context.Context.
//
//   - Page: One page of a listing. The NextPageToken is opaque; an empty token means
//     the listing is exhausted. Queries are described by KeyQuery, VersionQuery and
//     StoreQuery; page sizes are capped at MaxPageSize.
//
//   - Error System: Errors carry a RetCode. The sentinel values ErrNotFound,
//     ErrTransport, ErrEndOfSequence, ErrVersionMismatch and ErrAlreadyExists can be
//     matched with errors.Is against any error returned by a backend.
//
// Error Taxonomy:
//
//	ErrTransport is transient. Pollers keep running when they see it, listing
//	calls return it to the caller who may retry. ErrEndOfSequence is a control
//	condition and not a fault. ErrNotFound is the "absent value" of a read.
package datastore
