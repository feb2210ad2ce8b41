// Package cmd implements the command-line interface of cloudstore. It provides
// a hierarchical command structure with operations for running the server and
// interacting with it as a client.
//
// The package is organized into several subpackages:
//
//   - ds: Commands for data store operations (get, set, incr, keys, versions, watch, etc.)
//   - serve: Commands for starting and configuring the cloudstore server
//   - util: Shared utilities for command-line processing and configuration (internal use)
//
// See cloudstore -help for a list of all commands.
package cmd
