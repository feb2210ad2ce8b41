// Package tcp implements the TCP socket based transport of the cloudstore RPC system.
// It provides concrete implementations of the base package's connector interfaces.
//
// This package builds on the base package's transport functionality, inheriting its
// connection pooling, buffer reuse, retries and request correlation. See the base
// package documentation for details on the underlying transport mechanisms.
//
// Key Components:
//
//   - clientConnector: TCP-specific implementation of base.IClientConnector
//
//   - serverConnector: TCP-specific implementation of base.IServerConnector
//
// Both connectors apply the socket options of common.SocketConf and common.TCPConf
// (no delay, keep-alive, linger, buffer sizes) to every connection.
//
// The default server buffer size is set to 512 KB, which provides good performance
// for typical workloads, but can be customized with NewTCPServerTransport.
package tcp
