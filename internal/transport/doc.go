// Package transport delivers messages to the chat platform.
//
// Transport is the contract the outbound sender depends on; HTTPClient is the
// production implementation for the platform's bot messaging API. Platform
// rejections surface as *Error carrying the numeric error code, and
// IsRetryable classifies them against a fixed set of codes that will not
// succeed on a later attempt (missing permissions, bot removed from the chat,
// oversized content, unknown media keys). Network failures, timeouts, and an
// open circuit breaker are always retryable.
package transport
