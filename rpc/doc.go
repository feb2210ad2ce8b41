// Package rpc provides the remote procedure call layer of cloudstore. It connects
// the client facade (lib/service) to data store universes served by another process.
//
// The package is organized into several subpackages:
//
//   - common: Message protocol, configuration structures and logging.
//
//   - transport: Network communication abstractions with pluggable implementations
//     (TCP, Unix sockets, HTTP with optional h2c).
//
//   - serializer: Message serialization (CBOR, JSON, GOB) for converting between
//     Message objects and byte arrays.
//
//   - client: datastore.IStore implementation that forwards every operation to a
//     remote universe.
//
//   - server: Serves one or more universes, each backed by an in-memory store.
package rpc
