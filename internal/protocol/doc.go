// ABOUTME: Package protocol implements the JSON-RPC 2.0 message layer: envelope
// ABOUTME: parsing, the method handler registry, and the invocation gating pipeline.

// Package protocol owns the wire protocol spoken over a persistent
// connection. It recognizes three methods — handshake, capabilities/list and
// capabilities/invoke — and routes everything through a registered handler
// map. All mutable per-connection state lives in the session handed to
// Dispatch; the protocol layer itself is stateless apart from the registry
// and backends it was built with.
package protocol
