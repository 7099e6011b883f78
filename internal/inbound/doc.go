// Package inbound drains an account's inbound queue into the processing
// backend.
//
// A Consumer runs one sweep at a time: Run blocks on the enqueue signal with a
// fallback timer, and an atomic guard makes a concurrent Sweep call a no-op.
// Each row is claimed, its attachments decoded, its session resolved, and the
// message submitted under a deadline. Success completes the row; any failure,
// including the deadline, schedules a retry. The chat platform was already
// acknowledged at ingestion, so a slow backend only grows queue depth.
package inbound
