// Package serializer provides message serialization for the cloudstore RPC system.
// It defines a common interface and multiple implementations for serializing and
// deserializing messages between client and server components.
//
// Key Components:
//
//   - IRPCSerializer: Core interface that all serializer implementations must satisfy.
//
//   - cborSerializerImpl: CBOR (RFC 8949) encoding via fxamacker/cbor. Compact, fast
//     and schema-less, it handles the nested entries and listing pages of the message
//     without any custom layout. Recommended for production use.
//
//   - jsonSerializerImpl: Implementation using JSON encoding, useful for debugging
//     or interoperability with other systems, but with larger payloads.
//
//   - gobSerializerImpl: Implementation using Go's built-in gob encoding. Every message
//     carries the type description, so payloads are large for small requests.
//
// Selecting a serializer by name (as done by the CLI):
//
//	s, err := serializer.New("cbor") // "json", "gob" or "cbor"
//
// Thread Safety:
//
//	All serializer implementations are stateless and safe for concurrent use
//	across multiple goroutines without additional synchronization.
//
// Usage:
//
//	serializer := serializer.NewCBORSerializer()
//	data, err := serializer.Serialize(message)
//	// ... send data ...
//	var receivedMsg common.Message
//	err = serializer.Deserialize(receivedData, &receivedMsg)
package serializer
