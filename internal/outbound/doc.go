// Package outbound delivers queued replies to the chat platform.
//
// Delivery has two retry layers that never share state. The Sender's poll loop
// applies the queue contract (claim, complete, or schedule a retry with
// backoff). Inside one claimed attempt, SendWithRetry keeps calling the
// transport with the same backoff formula, sleeping in-process between
// attempts, until the send succeeds, the error is a permanent platform
// rejection, the attempt budget runs out, or shutdown cancels the context.
//
// Classify picks the message form: skip sentinels and empty text complete
// without sending, short plain text goes out as a text message, and anything
// longer or carrying markdown structure is rendered as an interactive card.
package outbound
