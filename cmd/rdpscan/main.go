// Package main provides the entry point for the rdpscan CLI.
//
// rdpscan checks a list of IPv4 endpoints for Remote Desktop Protocol
// services with a single 19-byte negotiation request per endpoint, and
// prints every endpoint that answers like an RDP server.
//
// Usage:
//
//	rdpscan scan -i targets.txt
//	rdpscan scan -i targets.txt --rate 500 --timeout 3
//	rdpscan history
//
// See --help for all available options.
package main

// main is the entry point for rdpscan.
func main() {
	Execute()
}
