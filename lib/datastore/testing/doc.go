// Package testing provides standardised tests and benchmarks for
// backends that satisfy the datastore.IStore interface.
//
// The package contains:
//   - testing: A comprehensive test suite for validating conformance to the IStore contract
//     (versions, removal, increments, preconditions, pagination, scopes, error codes)
//   - benchmark: Performance tests for measuring throughput of common store operations
//
// The suite is run against the in-memory backend and against the RPC client talking to
// an in-process server, so both are held to the same contract.
//
// Example usage:
//
//	// Creating a factory function for your implementation
//	factory := func() datastore.IStore {
//		return NewMyStore()
//	}
//
//	// Running the standard test suite
//	testing.RunStoreTests(t, "MyStore", factory)
//
//	// Running performance benchmarks
//	testing.RunStoreBenchmarks(b, "MyStore", factory)
package testing
