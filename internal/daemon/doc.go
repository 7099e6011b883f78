// Package daemon coordinates the long-running chatbridge process.
//
// It wires configuration, the per-account queue registry, the inbound
// consumers, the outbound senders, the recovery sweeper, and the HTTP API into
// a single lifecycle with flock-based locking. The lock enforces the one
// consumer per queue assumption the store relies on.
//
// Keep orchestration logic here: message handling lives in the inbound and
// outbound packages while the daemon focuses on startup, shutdown, and
// wakeups.
package daemon
