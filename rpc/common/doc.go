// Package common provides the data structures shared by the RPC client, the RPC
// server and the transports of cloudstore.
//
// Key Components:
//
//   - Message: Single structure for all RPC requests and responses. Which fields
//     are set depends on the MessageType. Factory functions build the requests of
//     every datastore.IStore operation and their responses. Errors travel as a
//     datastore.RetCode plus message, ResponseErr turns them back into a
//     *datastore.Error that matches the datastore sentinels with errors.Is.
//
//   - MessageType: Enumeration of all supported operations (get, set, increment,
//     listing ...) and the general success and error messages.
//
//   - ServerConfig / ClientConfig: Configuration of the server (served universes,
//     timeouts, transport endpoint) and of the client (endpoints, retries, pooling).
//
//   - Logger: Custom implementation of dragonboat's logger.ILogger. InitLoggers
//     installs it as the logger factory and sets the level of all package loggers.
package common
