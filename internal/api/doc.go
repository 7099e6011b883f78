// Package api defines the wire-format types, request validation, and queue
// service used by the daemon's HTTP server and the CLI client.
//
// # Key Types
//
// InboundRequest/OutboundRequest: ingestion payloads, validated with
// go-playground/validator before they reach the queue.
//
// EnqueueResponse: enqueue outcome. Duplicates are acknowledged with
// enqueued=false and a reason rather than an error status.
//
// StatsResponse/HealthResponse/FailedResponse: introspection payloads.
//
// # Service
//
// QueueService resolves an account to its queue.Store through a
// queue.Registry, restricted to the configured accounts, and signals the
// matching consumer or sender after a successful enqueue.
//
// # Client
//
// Client is a resty-based HTTP client for the daemon API used by CLI
// commands.
//
// # Design Notes
//
// JSON keys are snake_case. Timestamps use RFC3339 with milliseconds.
package api
