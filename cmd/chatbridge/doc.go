// Package main hosts the chatbridge CLI entrypoint and command graph.
//
// The Cobra-based command tree runs the daemon in the foreground and
// translates inspection commands (stats, health, failed-message review and
// resend) into HTTP calls against the daemon API. Configuration resolution and
// API client setup live in the command context so subcommands only render.
//
// Add new functionality in the internal packages first, then surface it here.
package main
