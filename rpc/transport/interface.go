package transport

import (
	"context"

	"github.com/ValentinKolb/cloudstore/rpc/common"
	gometrics "github.com/rcrowley/go-metrics"
)

// --------------------------------------------------------------------------
// Server Transport
// --------------------------------------------------------------------------

// ServerHandleFunc is a function type that handles incoming requests
// This function is called by a server transport layer when a request is received
// It takes a universeID and a request as parameters and returns a response
type ServerHandleFunc func(universeID uint64, req []byte) (resp []byte)

// IRPCServerTransport is the interface for the RPC transport layer
// It must accept a ServerConfig as a parameter
type IRPCServerTransport interface {
	// RegisterHandler registers a handler for the transport layer
	// This handler should be called when a request is received
	// The transport layer is responsible for passing the universe of the request to the handler
	RegisterHandler(handler ServerHandleFunc)
	// Listen starts the transport layer and blocks until the transport is closed.
	// It returns nil after Close was called.
	Listen(config common.ServerConfig) error
	// Close stops accepting requests and closes the listener
	Close() error
}

// --------------------------------------------------------------------------
// Client Transport
// --------------------------------------------------------------------------

// IRPCClientTransport is the interface for the RPC client transport
type IRPCClientTransport interface {
	// Connect initializes the transport with the given configuration
	Connect(config common.ClientConfig) error
	// Send sends a request to the server and returns the response.
	// Cancelling ctx aborts the request and all pending retries.
	Send(ctx context.Context, universeID uint64, req []byte) (resp []byte, err error)
	// Close closes the transport connection
	Close() error
}

// IMetricsProvider is implemented by client transports that collect request metrics
type IMetricsProvider interface {
	// Metrics returns the registry holding the request timer, the error meter and the retry counter
	Metrics() gometrics.Registry
}
