// Package sweeper runs the periodic maintenance pass over every account's
// queue: stuck processing rows are handed back to pending, completed rows and
// sent records past the TTL are purged, and downloaded media files older than
// the same TTL are removed from disk.
//
// Filesystem cleanup is best effort. A missing media directory or a file that
// disappears mid-scan is not an error; anything else is logged and reported in
// the pass result without stopping the sweep.
package sweeper
