// Package model defines the core data structures shared by rdpscan packages.
//
// This package contains the following main types:
//   - Endpoint: An IPv4 address and TCP port to probe
//   - ErrorKind: The classification of a single probe result
//   - Outcome: The result of probing one Endpoint
//   - Summary: Aggregated outcomes of one scan run
//
// The types are serializable to JSON for report output and database storage.
package model
