// Package transport defines the interfaces and abstractions for RPC communication
// in cloudstore. It provides a common contract that all transport implementations
// must fulfill, enabling protocol-agnostic communication.
//
// Key Components:
//
//   - IRPCClientTransport: Interface for client-side transport implementations that
//     handles connection management and request sending.
//
//   - IRPCServerTransport: Interface for server-side transport implementations that
//     receives requests and passes them to the registered handler together with the
//     universe the request is addressed to.
//
//   - ServerHandleFunc: Function type for request handling callbacks.
//
//   - IMetricsProvider: Optional interface of client transports that record request
//     latency, errors and retries in a go-metrics registry.
//
// Implementations live in the subpackages tcp, unix (both built on base) and http.
package transport
