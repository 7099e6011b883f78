// Package notifications publishes operator alerts via ntfy.
//
// Messages that exhaust their retry budget are otherwise only visible in the
// log and in `chatbridge queue failed`; publishing them to an ntfy topic gets
// a human involved before the row ages out. NewService degrades to a no-op when
// no topic is configured, so callers never need to check.
package notifications
