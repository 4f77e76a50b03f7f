// Package database provides SQLite-based scan history for rdpscan.
//
// Every scan run is stored with its counters and the list of endpoints
// found alive, which lets the history command list past runs and show
// which endpoints appeared or disappeared between two of them.
//
// The database is a single file (rdpscan.db) under the XDG data
// directory, opened through the CGO-free modernc.org/sqlite driver.
package database
