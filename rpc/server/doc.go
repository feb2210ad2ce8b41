// Package server implements the RPC server of cloudstore. A server hosts one or more
// universes, each one an independent set of data stores backed by its own store
// (by default the in-memory mstore), and answers the requests of rpc/client.
//
// Key Components:
//
//   - IRPCServerAdapter: Interface defining the contract for all server adapters,
//     with the Handle method that processes incoming requests against a datastore.IStore.
//
//   - NewIStoreServerAdapter: Factory function creating an adapter that translates
//     RPC requests to datastore.IStore method calls. Every request is counted in
//     cloudstore_rpc_requests_total{type,code} and timed in
//     cloudstore_rpc_request_duration_seconds{type} (VictoriaMetrics/metrics). The http
//     transport exposes them on GET /metrics.
//
//   - NewRPCServer: Factory function creating a configured server with the specified
//     transport and serializer mechanisms.
//
// Usage Example:
//
//	config := common.ServerConfig{
//		Universes:     []uint64{1, 2},
//		TimeoutSecond: 5,
//		Transport: common.ServerTransportConfig{
//			Endpoint:       "0.0.0.0:8080",
//			WorkersPerConn: 16,
//		},
//		LogLevel: "info",
//	}
//
//	s := server.NewRPCServer(config, tcp.NewTCPDefaultServerTransport(), serializer.NewCBORSerializer())
//	if err := s.Serve(); err != nil {
//		log.Fatalf("Server error: %v", err)
//	}
//
// Requests for a universe that is not configured are answered with RetCInvalidOperation.
// A panic while handling a request is reported as RetCInternalError and does not stop
// the server.
//
// Thread Safety:
//
//	The server implementation is thread-safe and can handle concurrent requests
//	across multiple connections. Each request is processed independently.
//	Serve should be called only once.
package server
