// ABOUTME: Package gateway wires the protocol core, session manager, store and
// ABOUTME: transport into the long-lived daemon: HTTP surface, WebSocket connect
// ABOUTME: endpoint, liveness probing, and graceful shutdown.
package gateway
