// Package preflight provides readiness checks for the directories and
// external services chatbridge depends on.
//
// These checks run in two contexts:
//   - The daemon calls RunAll at startup and logs failures. Queued messages
//     are durable, so a failing check delays work instead of blocking startup.
//   - The CLI "chatbridge health" command prints the same results next to the
//     queue database diagnostics.
//
// Service checks are skipped when the service is not configured.
package preflight
