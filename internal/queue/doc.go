// Package queue persists inbound and outbound chat messages in SQLite and
// exposes the transitions that drive their delivery lifecycle.
//
// A Store owns one database file per account. Inbound rows are keyed by the
// platform's external message id and enqueued with insert-or-ignore; outbound
// rows are deduplicated against unresolved rows and the sent ledger within a
// short window. Rows move pending -> processing -> completed, or back to
// pending with a backoff delay via MarkInboundRetry/MarkOutboundRetry until the
// retry budget is exhausted, at which point they become failed_permanent and
// stay in the database for manual review.
//
// Open resets every processing row to pending because a row left processing
// across a restart is an interrupted attempt. Dequeue does not claim rows;
// callers must MarkProcessing themselves, which is only safe with a single
// consumer per queue. The daemon enforces that with a lock file.
//
// Schema changes bump the version in schema.go; users clear the database to
// adopt the new schema.
package queue
