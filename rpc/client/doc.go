// Package client implements the RPC client of cloudstore. NewRPCStore returns a
// datastore.IStore that forwards every operation to a universe served by a remote
// server (see package rpc/server) via the configured transport and serializer.
//
// Errors keep their meaning across the wire: a missing key on the server is reported
// as datastore.ErrNotFound on the client, a failed precondition as ErrVersionMismatch
// or ErrAlreadyExists. Failures of the transport (connection refused, timeouts,
// cancelled contexts) are reported as datastore.ErrTransport, the underlying error
// stays in the chain.
//
// Usage Example:
//
//	config := common.ClientConfig{
//		TimeoutSecond: 5,
//		Transport: common.ClientTransportConfig{
//			Endpoints:              []string{"localhost:8080"},
//			RetryCount:             3,
//			ConnectionsPerEndpoint: 1,
//		},
//	}
//
//	store, err := client.NewRPCStore(1, config, tcp.NewTCPClientTransport(), serializer.NewCBORSerializer())
//	if err != nil { ... }
//
//	svc := service.NewDataStoreService(store, watch.DefaultConfig())
//	version, err := svc.GetDataStore("players", "").Set(ctx, "alice", []byte(`{"level":1}`), datastore.SetOptions{})
//
// Performance Considerations:
//
//   - For applications that frequently send large payloads, increasing ConnectionsPerEndpoint
//     can improve throughput by allowing parallel requests.
//
//   - For small messages, a single connection per endpoint is often more efficient due to
//     reduced connection overhead.
//
//   - The choice of serializer affects performance. CBOR provides the smallest payloads.
//
// Thread Safety:
//
//	The client is thread-safe and can be used concurrently from multiple goroutines
//	without additional synchronization.
package client
