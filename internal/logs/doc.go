// Package logs reads the daemon log for the CLI.
//
// Tail prints the last lines of a log file and optionally follows it. The
// daemon writes one file per run and points chatbridge.log at the newest, so
// following resolves the link on every poll and restarts from the top of a new
// target.
package logs
